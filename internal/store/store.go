// Package store is the data access layer for the recolte catalog.
//
// One Store owns one SQLite database. Higher layers (registry, tags,
// pipeline adapters) issue their queries through the Store so every SQL
// statement in the repo is parameter-bound and lives behind this package
// or one of its direct consumers.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/recolte/dbopen"
	"github.com/hazyhaar/recolte/internal/faults"
)

// Store wraps the catalog database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection and applies
// the schema. Schema application is idempotent. Initialization failure is
// fatal and reported as a DATABASE_ERROR.
func New(db *sql.DB) (*Store, error) {
	if err := ApplySchema(db); err != nil {
		return nil, faults.Database(fmt.Errorf("apply schema: %w", err))
	}
	return &Store{DB: db}, nil
}

// Open opens (or creates) the catalog at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	db, err := dbopen.Open(path, append(opts, dbopen.WithMkdirAll())...)
	if err != nil {
		return nil, faults.Database(err)
	}
	st, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

// WithTx runs fn in a transaction with busy retry, rolling back on any error.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return dbopen.RunTx(ctx, s.DB, fn)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
