// Package sqlite provides the versioned, transactional persistence
// backend for agents, policies, rules, and mandates (C3/C4/C7),
// implemented against modernc.org/sqlite. Grounded on the teacher's
// own go.mod, which already carries modernc.org/sqlite as a
// dependency with no file in the teacher repo actually importing it —
// this package is that dependency's first real use. The pool-sizing
// and Ping-on-open wiring shape is grounded on
// Kocoro-lab/Shannon's internal/db.Client (config struct with
// MaxConnections/IdleConnections defaults, SetMaxOpenConns/
// SetMaxIdleConns, a bounded PingContext before the constructor
// returns).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	httpadapter "github.com/mandate-authority/mandate-authority/internal/adapter/inbound/http"
)

// Config configures the sqlite-backed persistence pool.
type Config struct {
	// DSN is the sqlite data source name, e.g. "file:mandate.db" or
	// ":memory:" for tests.
	DSN string

	// MaxOpenConns bounds the pool. sqlite serializes writes internally
	// regardless, but bounding this avoids "database is locked" churn
	// under concurrent readers. Defaults to 10.
	MaxOpenConns int

	// ConnMaxLifetime recycles pooled connections. Defaults to 1 hour.
	ConnMaxLifetime time.Duration
}

// DB wraps a *sql.DB with the schema this service needs and implements
// http.DatabasePinger so the health endpoint can probe it directly.
type DB struct {
	conn *sql.DB
	cfg  Config
}

// Open opens (and if necessary creates) the sqlite database at
// cfg.DSN, applies the schema, and verifies connectivity before
// returning.
func Open(cfg Config) (*DB, error) {
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = time.Hour
	}

	conn, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping satisfies http.DatabasePinger.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Stats satisfies http.DatabasePinger.
func (db *DB) Stats() httpadapter.DBPoolStats {
	s := db.conn.Stats()
	return httpadapter.DBPoolStats{
		Total:   s.OpenConnections,
		Idle:    s.Idle,
		Waiting: int(s.WaitCount),
	}
}

// MaxConnections satisfies http.DatabasePinger.
func (db *DB) MaxConnections() int {
	return db.cfg.MaxOpenConns
}

// schema creates every table this service's stores need. Rows are
// never deleted, only marked inactive (P7/P8): agent_versions and the
// policy/rule version tables retain full history, and mandates are
// insert-only.
const schema = `
CREATE TABLE IF NOT EXISTS agents (
	agent_id     TEXT PRIMARY KEY,
	api_key_hash TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	principal    TEXT NOT NULL,
	environment  TEXT NOT NULL,
	status       TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_versions (
	policy_id  TEXT NOT NULL,
	version    INTEGER NOT NULL,
	name       TEXT NOT NULL,
	authority  TEXT NOT NULL,
	active     INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (policy_id, version)
);
CREATE INDEX IF NOT EXISTS idx_policy_versions_latest
	ON policy_versions (policy_id, version DESC);

CREATE TABLE IF NOT EXISTS rule_versions (
	rule_id     TEXT NOT NULL,
	version     INTEGER NOT NULL,
	conditions  TEXT NOT NULL,
	match_mode  TEXT NOT NULL,
	agent_ids   TEXT NOT NULL DEFAULT '[]',
	policy_id   TEXT NOT NULL,
	active      INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	seq         INTEGER,
	PRIMARY KEY (rule_id, version)
);
CREATE INDEX IF NOT EXISTS idx_rule_versions_latest
	ON rule_versions (rule_id, version DESC);

CREATE TABLE IF NOT EXISTS mandates (
	mandate_id       TEXT PRIMARY KEY,
	agent_id         TEXT NOT NULL,
	context          TEXT NOT NULL,
	authority        TEXT NOT NULL,
	matched_rules    TEXT NOT NULL,
	applied_policies TEXT NOT NULL,
	issued_at        TEXT NOT NULL,
	expires_at       TEXT NOT NULL,
	schema_version   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mandates_agent ON mandates (agent_id, issued_at);
`

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, schema)
	return err
}

var _ httpadapter.DatabasePinger = (*DB)(nil)
