package postgres

import (
	"sync/atomic"
	"time"
)

// PoolMetrics tracks connection-pool health with lock-free counters,
// snapshotted on demand for the admin status endpoint.
type PoolMetrics struct {
	ActiveConnections  atomic.Int32
	IdleConnections    atomic.Int32
	TotalConnections   atomic.Int64
	ConnectionWaitTime atomic.Int64 // nanoseconds
	QueryExecutionTime atomic.Int64 // nanoseconds
	TotalQueries       atomic.Int64
	ConnectionErrors   atomic.Int64
	QueryErrors        atomic.Int64

	SuccessfulConnections atomic.Int64
	FailedConnections     atomic.Int64
}

// PoolStats is a point-in-time snapshot of PoolMetrics.
type PoolStats struct {
	ActiveConnections     int32
	IdleConnections       int32
	TotalConnections      int64
	ConnectionWaitTime    time.Duration
	QueryExecutionTime    time.Duration
	TotalQueries          int64
	ConnectionErrors      int64
	QueryErrors           int64
	SuccessfulConnections int64
	FailedConnections     int64
}

// NewPoolMetrics constructs an empty PoolMetrics.
func NewPoolMetrics() *PoolMetrics {
	return &PoolMetrics{}
}

// Snapshot returns the current metric values.
func (m *PoolMetrics) Snapshot() PoolStats {
	return PoolStats{
		ActiveConnections:     m.ActiveConnections.Load(),
		IdleConnections:       m.IdleConnections.Load(),
		TotalConnections:      m.TotalConnections.Load(),
		ConnectionWaitTime:    time.Duration(m.ConnectionWaitTime.Load()),
		QueryExecutionTime:    time.Duration(m.QueryExecutionTime.Load()),
		TotalQueries:          m.TotalQueries.Load(),
		ConnectionErrors:      m.ConnectionErrors.Load(),
		QueryErrors:           m.QueryErrors.Load(),
		SuccessfulConnections: m.SuccessfulConnections.Load(),
		FailedConnections:     m.FailedConnections.Load(),
	}
}

func (m *PoolMetrics) RecordConnectionWait(d time.Duration) { m.ConnectionWaitTime.Add(d.Nanoseconds()) }

func (m *PoolMetrics) RecordQueryExecution(d time.Duration) {
	m.QueryExecutionTime.Add(d.Nanoseconds())
	m.TotalQueries.Add(1)
}

func (m *PoolMetrics) RecordConnectionError() {
	m.ConnectionErrors.Add(1)
	m.FailedConnections.Add(1)
}

func (m *PoolMetrics) RecordQueryError() { m.QueryErrors.Add(1) }

func (m *PoolMetrics) RecordSuccessfulConnection() { m.SuccessfulConnections.Add(1) }

func (m *PoolMetrics) UpdateConnectionStats(active, idle int32, total int64) {
	m.ActiveConnections.Store(active)
	m.IdleConnections.Store(idle)
	m.TotalConnections.Store(total)
}
