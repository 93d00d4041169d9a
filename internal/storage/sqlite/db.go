// Package sqlite implements the lite deployment profile's storage backend:
// all internal/storage interfaces backed by a single embedded SQLite file
// via the pure-Go modernc.org/sqlite driver (no CGO, single static binary).
// Schema is kept column-compatible with internal/storage/postgres so the
// two backends are interchangeable from the caller's point of view.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Conn is the subset of *sql.DB / *sql.Tx every store needs. Stores take a
// Conn rather than a concrete *DB so a future transaction manager can run
// the same repository code against a shared *sql.Tx.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the embedded database. Single-node, single-file: the lite
// profile trades horizontal scale for a zero-dependency deploy.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
}

// Open creates (or attaches to) the SQLite file at path, enables WAL mode
// and foreign keys, and runs schema migration. Parent directory is created
// with mode 0700; the database file is chmod'd 0600 after creation.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("invalid path contains '..': %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// modernc.org/sqlite serializes writes internally; a single connection
	// avoids "database is locked" errors under concurrent writers.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}

	d := &DB{db: sqlDB, logger: logger, path: path}
	if err := d.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if err := os.Chmod(path, 0600); err != nil {
		logger.Warn("failed to set sqlite file permissions", "path", path, "error", err)
	}

	logger.Info("sqlite storage initialized", "path", path, "wal_mode", true)
	return d, nil
}

// Raw returns the underlying *sql.DB for callers (e.g. internal/txn) that
// need to start a transaction.
func (d *DB) Raw() *sql.DB { return d.db }

// Begin starts a new transaction. SQLite serializes all writers onto the
// single connection opened by Open, so only one write transaction is ever
// in flight at a time.
func (d *DB) Begin(ctx context.Context) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, nil)
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Health(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// migrate creates every table the lite profile needs. Column-compatible
// with the Postgres schema (internal/migrations) minus jsonb/enum types,
// which SQLite represents as TEXT.
func (d *DB) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS files (
	id TEXT NOT NULL,
	org TEXT NOT NULL,
	app TEXT NOT NULL,
	file_path TEXT NOT NULL,
	version INTEGER NOT NULL,
	tag TEXT,
	url TEXT NOT NULL,
	size INTEGER NOT NULL,
	sha256 TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (org, app, file_path, version)
);
CREATE INDEX IF NOT EXISTS idx_files_checksum ON files(org, app, file_path, sha256);
CREATE UNIQUE INDEX IF NOT EXISTS idx_files_tag ON files(org, app, file_path, tag) WHERE tag IS NOT NULL;

CREATE TABLE IF NOT EXISTS packages_v2 (
	id TEXT NOT NULL,
	org TEXT NOT NULL,
	app TEXT NOT NULL,
	version INTEGER NOT NULL,
	index_ref TEXT,
	files TEXT NOT NULL DEFAULT '[]',
	tag TEXT,
	package_group_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (org, app, version)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_packages_tag ON packages_v2(org, app, tag) WHERE tag IS NOT NULL;

CREATE TABLE IF NOT EXISTS dimensions (
	org TEXT NOT NULL,
	app TEXT NOT NULL,
	name TEXT NOT NULL,
	position INTEGER NOT NULL,
	schema TEXT NOT NULL DEFAULT '{}',
	type TEXT NOT NULL,
	depends_on TEXT,
	description TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (org, app, name)
);

CREATE TABLE IF NOT EXISTS cohort_definitions (
	org TEXT NOT NULL,
	app TEXT NOT NULL,
	dimension_name TEXT NOT NULL,
	depends_on TEXT,
	enum TEXT NOT NULL DEFAULT '[]',
	definitions TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (org, app, dimension_name)
);

CREATE TABLE IF NOT EXISTS releases (
	id TEXT PRIMARY KEY,
	org TEXT NOT NULL,
	app TEXT NOT NULL,
	package_version INTEGER NOT NULL,
	config_version TEXT NOT NULL DEFAULT 'v0',
	dimension_context TEXT NOT NULL DEFAULT '{}',
	control_overrides TEXT NOT NULL DEFAULT '{}',
	experiment_overrides TEXT NOT NULL DEFAULT '{}',
	traffic_percentage INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	chosen_variant TEXT,
	experiment_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	created_by TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_releases_org_app_status ON releases(org, app, status);

CREATE TABLE IF NOT EXISTS workspace_names (
	org TEXT NOT NULL,
	app TEXT NOT NULL,
	workspace_name TEXT NOT NULL,
	PRIMARY KEY (org, app)
);

CREATE TABLE IF NOT EXISTS application_settings (
	org TEXT NOT NULL,
	app TEXT NOT NULL,
	key TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	default_value TEXT NOT NULL DEFAULT 'null',
	json_schema TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (org, app, key)
);

CREATE TABLE IF NOT EXISTS cleanup_outbox (
	transaction_id TEXT NOT NULL,
	entity_name TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	state TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	last_attempt INTEGER,
	PRIMARY KEY (transaction_id, entity_name, entity_type)
);
CREATE INDEX IF NOT EXISTS idx_cleanup_outbox_created_at ON cleanup_outbox(created_at);
`
	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("sqlite schema migration failed: %w", err)
	}
	d.logger.Debug("sqlite schema migrated")
	return nil
}
