// Package retry provides exponential-backoff retry and circuit-breaker
// helpers shared by the external-service and object-store adapters,
// adapted from the connection-retry machinery the teacher wires
// directly into its database pool.
package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Config controls backoff timing for Executor.
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultConfig returns sane exponential-backoff defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// Executor runs an operation with retries, a shouldRetry predicate, and
// exponential backoff with jitter.
type Executor struct {
	config      Config
	shouldRetry func(error) bool
	logger      *slog.Logger
}

// NewExecutor builds an Executor. shouldRetry defaults to "retry any
// non-nil error" when nil.
func NewExecutor(config Config, shouldRetry func(error) bool, logger *slog.Logger) *Executor {
	if shouldRetry == nil {
		shouldRetry = func(err error) bool { return err != nil }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{config: config, shouldRetry: shouldRetry, logger: logger}
}

// Execute runs operation, retrying on failure per config.
func (r *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("operation succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}

		lastErr = err

		if attempt < r.config.MaxRetries && r.shouldRetry(err) {
			r.logger.Warn("operation failed, retrying", "attempt", attempt+1,
				"max_retries", r.config.MaxRetries, "delay", delay, "error", err)

			if !waitWithContext(ctx, delay) {
				return ctx.Err()
			}
			delay = r.nextDelay(delay)
			continue
		}
		break
	}

	r.logger.Error("operation failed after all retries", "max_retries", r.config.MaxRetries, "error", lastErr)
	return lastErr
}

func waitWithContext(ctx context.Context, delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Executor) nextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * r.config.BackoffFactor)
	if next > r.config.MaxDelay {
		next = r.config.MaxDelay
	}
	if r.config.JitterFactor > 0 {
		jitter := time.Duration(float64(next) * r.config.JitterFactor * rand.Float64())
		next += jitter
	}
	return next
}

// BreakerState is the circuit breaker's current state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// CircuitBreaker trips open after maxFailures consecutive failures and
// resets to half-open after resetTimeout.
type CircuitBreaker struct {
	state        BreakerState
	failureCount int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
}

// NewCircuitBreaker constructs a closed CircuitBreaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{maxFailures: maxFailures, resetTimeout: resetTimeout}
}

// ErrCircuitOpen is returned by Call while the breaker is open.
var ErrCircuitOpen = circuitOpenError{}

type circuitOpenError struct{}

func (circuitOpenError) Error() string { return "circuit breaker is open" }

// Call runs operation through the breaker, tripping it on repeated failure.
func (cb *CircuitBreaker) Call(operation func() error) error {
	if cb.state == BreakerOpen {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = BreakerHalfOpen
		} else {
			return ErrCircuitOpen
		}
	}

	err := operation()
	if err != nil {
		cb.failureCount++
		cb.lastFailure = time.Now()
		if cb.failureCount >= cb.maxFailures {
			cb.state = BreakerOpen
		}
		return err
	}

	cb.failureCount = 0
	cb.state = BreakerClosed
	return nil
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState { return cb.state }
