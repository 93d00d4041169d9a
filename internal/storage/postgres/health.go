package postgres

import (
	"context"
	"time"
)

// HealthChecker probes pool connectivity.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
	IsHealthy() bool
	LastCheckTime() time.Time
}

type defaultHealthChecker struct {
	pool      *Pool
	lastCheck time.Time
	isHealthy bool
}

// NewHealthChecker builds the default SELECT-1-based health checker.
func NewHealthChecker(pool *Pool) HealthChecker {
	return &defaultHealthChecker{pool: pool, lastCheck: time.Now()}
}

func (h *defaultHealthChecker) CheckHealth(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	err := h.pool.pool.QueryRow(checkCtx, "SELECT 1").Scan(&result)
	h.lastCheck = time.Now()
	if err != nil || result != 1 {
		h.isHealthy = false
		if err != nil {
			return err
		}
		return ErrHealthCheckFailed
	}

	h.isHealthy = true
	return nil
}

func (h *defaultHealthChecker) IsHealthy() bool         { return h.isHealthy }
func (h *defaultHealthChecker) LastCheckTime() time.Time { return h.lastCheck }
