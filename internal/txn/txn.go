// Package txn implements the Release Transaction Manager of spec.md
// §4.6: a run-fail-end executor over a list of operations, where every
// op but the last runs in parallel and the last runs strictly
// happens-after. Grounded on the teacher's worker-pool/fan-out pattern
// (internal/infrastructure workers), generalized from a fixed pipeline
// into an arbitrary-length op list using golang.org/x/sync/errgroup.
package txn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/juspay/airborne/pkg/metrics"
)

// FailureKind classifies why an operation did not produce a result,
// matching spec.md §4.6's "failure modes surfaced to caller".
type FailureKind int

const (
	// FailureOperation is a normal error returned by the op itself.
	FailureOperation FailureKind = iota
	// FailurePanic is a recovered panic inside the op.
	FailurePanic
	// FailureJoin is a task-infrastructure failure (context cancelled
	// before the op ran).
	FailureJoin
	// FailureMissingResult is an internal invariant breach: an op
	// reported success but produced no result slot.
	FailureMissingResult
)

// Failure is the error type returned by Run on any op failure.
type Failure struct {
	Index int
	Kind  FailureKind
	Err   error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case FailurePanic:
		return fmt.Sprintf("txn: op %d panicked: %v", f.Index, f.Err)
	case FailureJoin:
		return fmt.Sprintf("txn: op %d did not run: %v", f.Index, f.Err)
	case FailureMissingResult:
		return fmt.Sprintf("txn: op %d reported success with no result", f.Index)
	default:
		return fmt.Sprintf("txn: op %d failed: %v", f.Index, f.Err)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// Op is a single transaction-group step.
type Op func(ctx context.Context) (interface{}, error)

// Rollback is invoked with the indices of ops that succeeded before the
// failure, exactly once per failing Run.
type Rollback func(ctx context.Context, successes []int)

// Manager executes op groups with the run-fail-end contract.
type Manager struct {
	logger  *slog.Logger
	metrics *metrics.TxnMetrics
}

// New builds a Manager.
func New(m *metrics.TxnMetrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{metrics: m, logger: logger}
}

// Run executes ops per spec.md §4.6: n==0 succeeds trivially; n==1 runs
// alone; otherwise ops[:n-1] run in parallel and ops[n-1] runs strictly
// after all of them succeed. On any failure, rollback is invoked exactly
// once with the indices that had already succeeded, and the first error
// encountered (by op index, not completion time) is returned.
func (m *Manager) Run(ctx context.Context, ops []Op, rollback Rollback) (results []interface{}, err error) {
	start := time.Now()
	defer func() { m.observe(start, err) }()

	n := len(ops)
	if n == 0 {
		return nil, nil
	}
	if n == 1 {
		res, runErr := runOne(ctx, ops[0], 0)
		if runErr != nil {
			if rollback != nil {
				m.countRollback()
				rollback(ctx, nil)
			}
			return nil, runErr
		}
		return []interface{}{res}, nil
	}

	prefix := ops[:n-1]
	results = make([]interface{}, n)
	succeeded := make([]bool, n-1)
	errs := make([]error, n-1)

	g, gctx := errgroup.WithContext(ctx)
	for i, op := range prefix {
		i, op := i, op
		g.Go(func() error {
			res, runErr := runOne(gctx, op, i)
			if runErr != nil {
				errs[i] = runErr
				return runErr
			}
			results[i] = res
			succeeded[i] = true
			return nil
		})
	}
	if groupErr := g.Wait(); groupErr != nil {
		var successes []int
		for i, ok := range succeeded {
			if ok {
				successes = append(successes, i)
			}
		}
		if rollback != nil {
			m.countRollback()
			rollback(ctx, successes)
		}
		return nil, firstFailure(errs, groupErr)
	}

	last, lastErr := runOne(ctx, ops[n-1], n-1)
	if lastErr != nil {
		successes := make([]int, n-1)
		for i := range successes {
			successes[i] = i
		}
		if rollback != nil {
			m.countRollback()
			rollback(ctx, successes)
		}
		return nil, lastErr
	}
	results[n-1] = last
	return results, nil
}

func runOne(ctx context.Context, op Op, index int) (res interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Failure{Index: index, Kind: FailurePanic, Err: fmt.Errorf("%v", r)}
		}
	}()
	if ctx.Err() != nil {
		return nil, &Failure{Index: index, Kind: FailureJoin, Err: ctx.Err()}
	}
	res, err = op(ctx)
	if err != nil {
		if f, ok := err.(*Failure); ok {
			return nil, f
		}
		return nil, &Failure{Index: index, Kind: FailureOperation, Err: err}
	}
	return res, nil
}

// firstFailure picks the failure with the lowest op index among those
// that failed, per spec.md §4.6's "task ordering deterministic by op
// index, not by completion time" — errgroup.Wait returns whichever error
// arrived first chronologically, which is not necessarily the lowest
// index, so every op's error is recorded and re-scanned in index order.
func firstFailure(errs []error, groupErr error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return groupErr
}

func (m *Manager) observe(start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		idx := "unknown"
		if f, ok := err.(*Failure); ok {
			idx = fmt.Sprintf("%d", f.Index)
		}
		m.metrics.FailuresByIdx.WithLabelValues(idx).Inc()
	}
	m.metrics.RunDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func (m *Manager) countRollback() {
	if m.metrics != nil {
		m.metrics.Rollbacks.WithLabelValues().Inc()
	}
}
