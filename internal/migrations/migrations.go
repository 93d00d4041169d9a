// Package migrations owns the Postgres schema for the relational store:
// files, packages_v2, dimensions, cohort_definitions, releases,
// workspace_names, application_settings, cleanup_outbox. Grounded on the
// teacher's internal/infrastructure/migrations (same pressly/goose/v3
// dependency and connect/up/down/status shape), trimmed to what this
// repository's single schema actually needs — the teacher's bespoke
// backup/health/CLI subsystem belongs to its own multi-tenant alert
// store and has no SPEC_FULL.md component to serve, so it is not carried
// here (see DESIGN.md).
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedFS embed.FS

const dir = "sql"

// Manager applies and inspects the goose-versioned Postgres schema.
type Manager struct {
	db     *sql.DB
	logger *slog.Logger
}

// New builds a Manager bound to an already-open *sql.DB (e.g. via
// jackc/pgx/v5/stdlib, the same driver package the pgxpool-based
// repositories sit on top of).
func New(db *sql.DB, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	goose.SetBaseFS(embedFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("migrations: set dialect: %w", err)
	}
	return &Manager{db: db, logger: logger}, nil
}

// Up applies every pending migration.
func (m *Manager) Up(ctx context.Context) error {
	if err := goose.UpContext(ctx, m.db, dir); err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	m.logger.Info("migrations applied")
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := goose.DownContext(ctx, m.db, dir); err != nil {
		return fmt.Errorf("migrations: down: %w", err)
	}
	m.logger.Info("migration rolled back")
	return nil
}

// Status logs the applied/pending state of every migration.
func (m *Manager) Status(ctx context.Context) error {
	return goose.StatusContext(ctx, m.db, dir)
}

// Version reports the current schema version.
func (m *Manager) Version(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, m.db)
}
