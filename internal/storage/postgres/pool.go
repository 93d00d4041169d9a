// Package postgres wraps jackc/pgx/v5/pgxpool with the connection
// lifecycle, health checking, and metrics the teacher's
// internal/database/postgres wraps around its own alert store, adapted
// here to front the release engine's relational repositories.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/juspay/airborne/internal/config"
)

// Conn is the minimal surface repositories depend on, satisfied by both
// *Pool and a pgx.Tx, so repository methods work unchanged inside the
// Transaction Manager's operations.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Pool wraps a pgxpool.Pool with lifecycle management, health checks,
// and per-query metrics.
type Pool struct {
	pool     *pgxpool.Pool
	cfg      config.DatabaseConfig
	logger   *slog.Logger
	metrics  *PoolMetrics
	health   HealthChecker
	isClosed atomic.Bool
}

// New constructs a Pool. Call Connect before use.
func New(cfg config.DatabaseConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{cfg: cfg, logger: logger, metrics: NewPoolMetrics()}
	p.health = NewHealthChecker(p)
	return p
}

// Connect establishes the pool and verifies connectivity.
func (p *Pool) Connect(ctx context.Context) error {
	if p.isClosed.Load() {
		return ErrConnectionClosed
	}

	p.logger.Info("connecting to postgres",
		"host", p.cfg.Host, "port", p.cfg.Port, "database", p.cfg.Database,
		"max_conns", p.cfg.MaxConnections, "min_conns", p.cfg.MinConnections)

	poolConfig, err := pgxpool.ParseConfig(p.cfg.DSN())
	if err != nil {
		p.metrics.RecordConnectionError()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	poolConfig.MaxConns = p.cfg.MaxConnections
	poolConfig.MinConns = p.cfg.MinConnections
	poolConfig.MaxConnLifetime = p.cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = p.cfg.MaxConnIdleTime

	connectCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	start := time.Now()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		p.metrics.RecordConnectionError()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		p.metrics.RecordConnectionError()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	p.pool = pool
	p.metrics.RecordConnectionWait(time.Since(start))
	p.metrics.RecordSuccessfulConnection()
	p.logger.Info("connected to postgres", "connection_time", time.Since(start))

	return nil
}

// Disconnect closes the pool.
func (p *Pool) Disconnect(ctx context.Context) error {
	if p.pool == nil {
		return nil
	}
	if p.isClosed.Load() {
		return ErrConnectionClosed
	}
	p.pool.Close()
	p.isClosed.Store(true)
	p.logger.Info("disconnected from postgres")
	return nil
}

// IsConnected reports whether the pool currently holds live connections.
func (p *Pool) IsConnected() bool {
	if p.isClosed.Load() || p.pool == nil {
		return false
	}
	return p.pool.Stat().TotalConns() > 0
}

// Health runs a health check query against the pool.
func (p *Pool) Health(ctx context.Context) error {
	if p.isClosed.Load() {
		return ErrConnectionClosed
	}
	if p.pool == nil {
		return ErrNotConnected
	}
	return p.health.CheckHealth(ctx)
}

// Stats returns a metrics snapshot.
func (p *Pool) Stats() PoolStats {
	if p.pool == nil {
		return PoolStats{}
	}
	stats := p.pool.Stat()
	total := int64(stats.TotalConns())
	acquired := int64(stats.AcquireCount())
	p.metrics.UpdateConnectionStats(int32(acquired), int32(total-acquired), total)
	return p.metrics.Snapshot()
}

// Exec runs a statement with no result rows.
func (p *Pool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if p.pool == nil {
		return pgconn.CommandTag{}, ErrNotConnected
	}
	start := time.Now()
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		p.metrics.RecordQueryError()
		return tag, err
	}
	p.metrics.RecordQueryExecution(time.Since(start))
	return tag, nil
}

// Query runs a statement and returns matching rows.
func (p *Pool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if p.pool == nil {
		return nil, ErrNotConnected
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		p.metrics.RecordQueryError()
		return nil, err
	}
	p.metrics.RecordQueryExecution(time.Since(start))
	return rows, nil
}

// QueryRow runs a statement expected to return at most one row.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if p.pool == nil {
		return &errorRow{err: ErrNotConnected}
	}
	start := time.Now()
	row := p.pool.QueryRow(ctx, sql, args...)
	p.metrics.RecordQueryExecution(time.Since(start))
	return row
}

// Begin starts a new transaction.
func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.pool == nil {
		return nil, ErrNotConnected
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		p.metrics.RecordQueryError()
		return nil, err
	}
	return tx, nil
}

// Close closes the pool.
func (p *Pool) Close() error {
	return p.Disconnect(context.Background())
}

// Raw returns the underlying pgxpool.Pool, e.g. for advisorylock.
func (p *Pool) Raw() *pgxpool.Pool { return p.pool }

// Metrics returns the pool's metrics snapshot source.
func (p *Pool) Metrics() *PoolMetrics { return p.metrics }

type errorRow struct{ err error }

func (r *errorRow) Scan(dest ...interface{}) error { return r.err }
