/*
Package sqlite provides a SQLite-backed implementation of attendance.Store.

PURPOSE:
  Persists the engine's hierarchical key-value tree in a single table. Each
  path holds one JSON document; a write replaces the whole document.

INTERFACES IMPLEMENTED:
  attendance.Store: Read, Write, Delete, List

KEY TABLES:
  nodes: path -> value, with the instant of the last write

PREFIX LISTING:
  Paths are slash separated ("attendanceRecords/e1_2025-05-01"), so listing a
  subtree is a primary-key range scan on the prefix.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single open connection so that
  ":memory:" databases are shared by every caller.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  repo := attendance.NewRepository(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - attendance/store.go: Interface definition and path layout
  - attendance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements attendance.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- One JSON document per path
	CREATE TABLE IF NOT EXISTS nodes (
		path TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- For "most recently changed" admin queries
	CREATE INDEX IF NOT EXISTS idx_nodes_updated_at
		ON nodes(updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// KEY-VALUE STORE (attendance.Store interface)
// =============================================================================

// Read returns the value at path.
func (s *Store) Read(ctx context.Context, path string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM nodes WHERE path = ?", path).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

// Write replaces the value at path.
func (s *Store) Write(ctx context.Context, path string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO nodes (path, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, query, path, string(value), now)
	return err
}

// Delete removes path. Deleting a missing path is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM nodes WHERE path = ?", path)
	return err
}

// List returns every path under prefix with its value.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rows *sql.Rows
		err  error
	)
	if prefix == "" {
		rows, err = s.db.QueryContext(ctx, "SELECT path, value FROM nodes")
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT path, value FROM nodes WHERE path >= ? AND path < ?",
			prefix, prefixEnd(prefix),
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var path, value string
		if err := rows.Scan(&path, &value); err != nil {
			return nil, err
		}
		out[path] = []byte(value)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// prefixEnd is the smallest string greater than every string starting with
// prefix. The prefixes used here end in '/', so bumping the last byte is
// enough.
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return string(b) + "\xff"
}
