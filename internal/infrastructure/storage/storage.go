// Package storage persists what a reconciliation run produces: run
// bookkeeping, matches, the open anomaly list and learned supplier
// histories. SQLite is the only backend; the schema is managed by goose.
//
// Example usage:
//
//	store, err := storage.NewStorage("reconciler.db", storage.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//	histories, err := store.LoadHistories(ctx)
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access.
// It implements the Repository interface.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// Option customises a Storage
type Option func(*Storage)

// WithLogger sets the logger used for migration output
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStorage opens (creating if needed) the SQLite database at dbPath and
// brings its schema up to date.
func NewStorage(dbPath string, opts ...Option) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps the pragma below in force and serialises writers.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := runMigrations(context.Background(), db, s.logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the latest applied migration version
func (s *Storage) SchemaVersion(ctx context.Context) (int64, error) {
	return schemaVersion(ctx, s.db)
}
