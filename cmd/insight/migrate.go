package main

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/insight-agent/insight/db"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the conversation-state migrations",
	Long: `Create or upgrade the database that stores conversation turns and
tool artifacts. Other commands migrate automatically; this command is for
inspecting or preparing the state database ahead of time.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show applied and pending migrations without applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	conn, err := db.Open(ctx, db.Options{Driver: a.cfg.State.Driver, Path: a.cfg.State.Path, Create: true}, a.logger)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer conn.Close()

	if !migrateStatus {
		if err := db.Migrate(ctx, conn, a.cfg.State.Driver, a.logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("State database is up to date: ")+a.cfg.State.Path)
		return nil
	}

	statuses, err := db.Status(ctx, conn, a.cfg.State.Driver)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}

	tw := tablewriter.NewWriter(cmd.OutOrStdout())
	tw.SetHeader([]string{"Version", "Source", "State", "Applied"})
	for _, s := range statuses {
		applied := ""
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.Format(time.RFC3339)
		}
		tw.Append([]string{fmt.Sprint(s.Source.Version), s.Source.Path, string(s.State), applied})
	}
	tw.Render()
	return nil
}
