package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/insight-agent/insight/agent"
	"github.com/ZanzyTHEbar/insight-agent/insight/agent/adapters"
	"github.com/ZanzyTHEbar/insight-agent/insight/config"
	"github.com/ZanzyTHEbar/insight-agent/insight/logging"
	"github.com/ZanzyTHEbar/insight-agent/insight/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent over HTTP",
	Long: `Start the HTTP API. Every client session key gets its own agent and
conversation; generated charts and reports are served under /artifacts/.

The config file is watched while serving and log level changes apply
without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.start(ctx); err != nil {
		return err
	}

	var opts []server.Option
	if store, ok := a.runtime.Store.(*adapters.SQLConversationStore); ok {
		opts = append(opts, server.WithArtifacts(store))
	}
	sessions := a.runtime.NewSessions(
		agent.WithMaxSessions(a.cfg.Server.MaxSessions),
		agent.WithIdleTTL(a.cfg.Server.SessionIdle),
	)
	srv := server.New(a.cfg.Server, a.cfg.App.OutputDir, sessions, a.runtime.Registry, a.data, a.logger, opts...)

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	err = config.Watch(func(cfg *config.Config, e fsnotify.Event) {
		level := logging.SetLevel(cfg.App.LogLevel)
		a.logger.Info().Str("file", e.Name).Str("level", level.String()).Msg("Config reloaded")
	}, func(err error) {
		a.logger.Error().Err(err).Msg("Failed to reload config")
	})
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		a.logger.Warn().Err(err).Msg("Config watch disabled")
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		a.logger.Info().Msg("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("Shutdown did not complete")
		}
	}()

	a.logger.Info().
		Str("addr", addr).
		Str("output_dir", a.cfg.App.OutputDir).
		Msg("Insight API listening")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
