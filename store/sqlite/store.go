// Package sqlite implements store.Store on SQLite via mattn/go-sqlite3.
// Suited to single-node deployments that want durability without an
// external database. The pending queue is a rowid-ordered table; every
// transition runs in an immediate transaction so the write lock is taken
// up front and no two transitions interleave.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/execq/execq/history"
	"github.com/execq/execq/job"
)

// Compile-time interface checks.
var (
	_ job.Store     = (*Store)(nil)
	_ history.Store = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS execq_jobs (
	id              TEXT PRIMARY KEY,
	command         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	version         INTEGER NOT NULL DEFAULT 0,
	output          TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMP,
	finished_at     TIMESTAMP,
	cancelled_at    TIMESTAMP,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_execq_jobs_status ON execq_jobs (status);

CREATE TABLE IF NOT EXISTS execq_queue (
	position        INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id          TEXT NOT NULL UNIQUE REFERENCES execq_jobs (id)
);

CREATE TABLE IF NOT EXISTS execq_history (
	id              TEXT PRIMARY KEY,
	command         TEXT NOT NULL,
	status          TEXT NOT NULL,
	version         INTEGER NOT NULL DEFAULT 0,
	output          TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMP,
	finished_at     TIMESTAMP,
	cancelled_at    TIMESTAMP,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
`

// Store is a SQLite-backed implementation of store.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens (or creates) the database at path. Use ":memory:" for an
// ephemeral store.
func New(path string, opts ...Option) (*Store, error) {
	// _txlock=immediate takes the write lock at BEGIN, so concurrent
	// transitions queue up instead of failing mid-transaction.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("execq/sqlite: open: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent claims.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("execq/sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying sql.DB for advanced usage.
func (s *Store) DB() *sql.DB { return s.db }
