// Package store persists mirrored catalog metadata in SQLite.
// One writer connection, foreign keys on, grants cascade with entries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the mirror database
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the mirror database at path. Use ":memory:"
// for an in-memory store.
func Open(path string) (*Store, error) {
	dsn := "file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	instance := &Store{db: db}
	if err := instance.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return instance, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies the schema
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	mime_type TEXT,
	parent_ids TEXT,
	size_bytes INTEGER,
	created_at TEXT,
	modified_at TEXT,
	is_folder INTEGER NOT NULL DEFAULT 0,
	trashed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS grants (
	id TEXT PRIMARY KEY,
	entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	grantee_type TEXT NOT NULL,
	role TEXT NOT NULL,
	email_address TEXT,
	domain TEXT,
	discoverable INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sync_state (
	scope TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	total_entries INTEGER NOT NULL DEFAULT 0,
	processed_entries INTEGER NOT NULL DEFAULT 0,
	processed_grants INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_grants_entry_id ON grants(entry_id);
`

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
