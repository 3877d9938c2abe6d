package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
	_ "modernc.org/sqlite"
)

// Registered database/sql driver names.
const (
	DriverLibSQL = "libsql"
	DriverSQLite = "sqlite"
)

// Options describes an embedded database file.
type Options struct {
	Driver string // DriverLibSQL (default) or DriverSQLite
	Path   string // path to the .db file
	Create bool   // create the file and its directory when missing
}

// Open connects to an embedded SQLite-family database and verifies it answers.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (*sql.DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverLibSQL
	}
	if opts.Driver != DriverLibSQL && opts.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	if _, err := os.Stat(opts.Path); os.IsNotExist(err) {
		if !opts.Create {
			return nil, fmt.Errorf("database not found at %s", opts.Path)
		}
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory for %s: %w", opts.Path, err)
		}
		logger.Info().Str("path", opts.Path).Msg("Database not found, creating a new one")
		file, err := os.Create(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("could not create db at path %s: %w", opts.Path, err)
		}
		file.Close()
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL", opts.Path)
	if opts.Driver == DriverSQLite {
		// modernc applies _pragma on every new connection in the pool
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", opts.Path)
	}

	logger.Debug().Str("driver", opts.Driver).Str("dsn", dsn).Msg("Connecting to database")

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", opts.Driver, err)
	}

	if err := verify(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// verify checks basic connectivity.
func verify(ctx context.Context, db *sql.DB) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("basic connectivity test failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("basic connectivity test failed: unexpected result %d", result)
	}
	return nil
}
