package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewMigrator returns a goose provider over the embedded state migrations.
func NewMigrator(db *sql.DB, driver string) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	dialect := goose.DialectSQLite3
	if driver == "" || driver == DriverLibSQL {
		dialect = goose.DialectTurso
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create goose provider: %w", err)
	}
	return provider, nil
}

// Migrate applies every pending state migration.
func Migrate(ctx context.Context, db *sql.DB, driver string, logger zerolog.Logger) error {
	provider, err := NewMigrator(db, driver)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	for _, r := range results {
		logger.Info().
			Int64("version", r.Source.Version).
			Str("source", r.Source.Path).
			Dur("duration", r.Duration).
			Msg("Applied migration")
	}
	return nil
}

// Status reports applied and pending state migrations.
func Status(ctx context.Context, db *sql.DB, driver string) ([]*goose.MigrationStatus, error) {
	provider, err := NewMigrator(db, driver)
	if err != nil {
		return nil, err
	}
	return provider.Status(ctx)
}
