// Package store implements the local catalog replica: a single SQLite
// database holding normalized catalog tables, the sync status record, and
// the user-owned team data side table.
//
// The database runs embedded (ncruces/go-sqlite3) with WAL mode so search
// reads can interleave with in-progress sync writes. All mutation happens
// inside a transaction scoped to the calling operation; the store assumes
// a single writer process.
//
// Normalized rows are created and updated only by the upsert executor,
// deleted only by the deletion propagator or an incoming tombstone, and
// read by the search engine and the read API.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Common errors returned by store operations. Check with errors.Is.
var (
	// ErrNotFound is returned when a lookup by id matches no row.
	ErrNotFound = errors.New("catalog object not found")
)

// EventSink receives change notifications from the upsert executor and
// deletion propagator. The events package provides the production
// implementation; the store itself never imports it.
type EventSink interface {
	ObjectUpdated(objectType, id string, raw []byte)
	ObjectDeleted(objectType, id string, raw []byte)
}

// Store wraps the SQLite connection for the catalog replica.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
	events EventSink
}

// Option configures a Store at open time.
type Option func(*Store)

// WithLogger sets the logger used for warnings and skipped-row reports.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithEventSink sets the sink that receives per-object change events.
// Without a sink, upserts and deletes commit silently.
func WithEventSink(sink EventSink) Option {
	return func(s *Store) { s.events = sink }
}

// Open creates a database connection at the specified path and prepares it
// for use: WAL mode, busy timeout, and foreign keys. The schema is NOT
// created here; call EnsureSchema before any other operation.
//
// The caller must call Close when done.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	// WAL mode lets searches read committed state while a sync writes.
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection for integration with
// libraries that expect one.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error. Every mutation in the store goes through here.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
