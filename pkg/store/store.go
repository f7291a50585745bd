// Package store is the SQLite-backed persistence layer: activity notes,
// entities, the entity graph and time-bucketed aggregates.
package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type Store struct {
	db     *sqlx.DB
	logger *log.Logger
}

// Open connects to the SQLite database at dbPath (creating parent
// directories), enables WAL mode and runs pending migrations.
func Open(ctx context.Context, logger *log.Logger, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating database directory")
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to SQLite")
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return nil, errors.Wrap(err, "enabling WAL mode")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		return nil, errors.Wrap(err, "enabling foreign keys")
	}

	if err := runMigrations(db.DB, logger); err != nil {
		return nil, errors.Wrap(err, "running migrations")
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
