// Package store is the SQLite staging store: raw source documents, the
// identity map, stream checkpoints and the failure log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lherron/ghl2hs/internal/db"
)

// Store is the root store wrapping the staging database.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	return &Store{
		db:  database,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// Close closes the underlying database
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
