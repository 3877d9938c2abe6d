package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/insight-agent/insight/agent"
	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/config"
	"github.com/ZanzyTHEbar/insight-agent/insight/datastore"
	"github.com/ZanzyTHEbar/insight-agent/insight/db"
	"github.com/ZanzyTHEbar/insight-agent/insight/llm/providers"
	"github.com/ZanzyTHEbar/insight-agent/insight/logging"
	"github.com/ZanzyTHEbar/insight-agent/insight/telemetry"
)

// app is the process-wide object graph shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	dataDB   *sql.DB
	stateDB  *sql.DB
	data     *datastore.Store
	provider ports.Provider
	runtime  *agent.Runtime

	shutdownTelemetry func(context.Context) error
}

// loadApp reads the config and builds the logger.
func loadApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}

	logger := logging.New(logOptions(cfg.App)).With().Str("service", cfg.App.Name).Logger()
	if used := config.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("Loaded config")
	} else {
		logger.Debug().Msg("No config file found, using defaults and environment")
	}

	return &app{cfg: cfg, logger: logger}, nil
}

func logOptions(c config.AppConfig) logging.Options {
	return logging.Options{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
	}
}

// openData connects to the analysed database.
func (a *app) openData(ctx context.Context) error {
	conn, err := db.Open(ctx, db.Options{Driver: a.cfg.Database.Driver, Path: a.cfg.Database.Path}, a.logger)
	if err != nil {
		return fmt.Errorf("open data database: %w", err)
	}
	a.dataDB = conn
	a.data = datastore.New(conn, a.logger)
	return nil
}

// openState connects to and migrates the conversation database. It is a
// no-op when state persistence is disabled.
func (a *app) openState(ctx context.Context) error {
	if !a.cfg.State.Enabled {
		return nil
	}
	conn, err := db.Open(ctx, db.Options{Driver: a.cfg.State.Driver, Path: a.cfg.State.Path, Create: true}, a.logger)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	if err := db.Migrate(ctx, conn, a.cfg.State.Driver, a.logger); err != nil {
		conn.Close()
		return fmt.Errorf("migrate state database: %w", err)
	}
	a.stateDB = conn
	return nil
}

// start wires everything an agent needs: telemetry, both databases, the
// LLM provider and the runtime.
func (a *app) start(ctx context.Context) error {
	shutdown, err := telemetry.Init(ctx, a.cfg.Telemetry, a.logger)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		shutdown = func(context.Context) error { return nil }
	}
	a.shutdownTelemetry = shutdown

	if err := a.openData(ctx); err != nil {
		return err
	}
	if err := a.openState(ctx); err != nil {
		return err
	}

	provider, err := providers.New(ctx, a.cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm provider: %w", err)
	}
	a.provider = provider

	rt, err := agent.NewFactory(a.cfg, a.stateDB, a.logger).CreateRuntime(ctx, provider, a.data)
	if err != nil {
		return fmt.Errorf("create agent runtime: %w", err)
	}
	a.runtime = rt
	return nil
}

// Close releases whatever start opened.
func (a *app) Close() {
	if c, ok := a.provider.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close llm provider")
		}
	}
	if a.stateDB != nil {
		a.stateDB.Close()
	}
	if a.dataDB != nil {
		a.dataDB.Close()
	}
	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(context.Background()); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}
}
