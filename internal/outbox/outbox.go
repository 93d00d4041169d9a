// Package outbox implements the cleanup outbox drain worker of spec.md
// §4.6/§4.7: a background ticker loop that claims durable compensating
// actions and retries them with bounded backoff, idempotent by
// transaction_id+entity. Grounded on the teacher's
// internal/business/silencing gcWorker (ticker-based periodic run,
// immediate first pass, graceful stop via stopCh/doneCh).
package outbox

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/storage"
	"github.com/juspay/airborne/pkg/metrics"
)

// Compensator applies one compensating action against a remote system
// (external config service, object store). Returning an error leaves the
// row in place for a later retry.
type Compensator func(ctx context.Context, row *domain.OutboxRow) error

// Worker drains the cleanup outbox on a ticker, routing each row to the
// Compensator registered for its EntityType.
type Worker struct {
	store        storage.OutboxStore
	compensators map[string]Compensator
	cfg          config.OutboxConfig
	logger       *slog.Logger
	metrics      *metrics.OutboxMetrics

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Worker. Register compensators with Register before Start.
func New(store storage.OutboxStore, cfg config.OutboxConfig, m *metrics.OutboxMetrics, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 15 * time.Minute
	}
	return &Worker{
		store:        store,
		compensators: map[string]Compensator{},
		cfg:          cfg,
		logger:       logger,
		metrics:      m,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Register binds a Compensator to an entity_type.
func (w *Worker) Register(entityType string, c Compensator) {
	w.compensators[entityType] = c
}

// Start runs the drain loop in a background goroutine: an immediate pass
// on startup, then one per PollInterval, until Stop or ctx cancellation.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
	w.logger.Info("outbox worker started", "poll_interval", w.cfg.PollInterval, "batch_size", w.cfg.BatchSize)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("outbox worker stopped (explicit stop)")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// Stop gracefully stops the worker, blocking until the in-flight drain
// (if any) completes.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// drain claims one batch and attempts every row. Ordering is
// created_at-ascending per spec.md §5 (ClaimBatch owns that guarantee);
// errors on individual rows are logged and don't stop the batch.
func (w *Worker) drain(ctx context.Context) {
	rows, err := w.store.ClaimBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("outbox claim failed", "error", err)
		return
	}
	for _, row := range rows {
		w.attempt(ctx, row)
	}
}

func (w *Worker) attempt(ctx context.Context, row *domain.OutboxRow) {
	comp, ok := w.compensators[row.EntityType]
	if !ok {
		w.logger.Warn("outbox row has no registered compensator", "entity_type", row.EntityType, "entity_name", row.EntityName)
		return
	}

	err := comp(ctx, row)
	attempts := row.Attempts + 1
	lastAttempt := attempts >= w.cfg.MaxAttempts

	if err == nil {
		if derr := w.store.Delete(ctx, row.TransactionID, row.EntityType, row.EntityName); derr != nil {
			w.logger.Error("outbox delete after success failed", "error", derr, "key", row.DedupeKey())
			return
		}
		if w.metrics != nil {
			w.metrics.RowsDrained.WithLabelValues(row.EntityType).Inc()
			w.metrics.Attempts.WithLabelValues().Observe(float64(attempts))
		}
		return
	}

	w.logger.Warn("outbox compensation failed", "error", err, "key", row.DedupeKey(), "attempts", attempts, "last_attempt", lastAttempt)
	if w.metrics != nil {
		w.metrics.DrainErrors.WithLabelValues(row.EntityType).Inc()
	}
	if merr := w.store.MarkAttempt(ctx, row.TransactionID, row.EntityType, row.EntityName, attempts, lastAttempt); merr != nil {
		w.logger.Error("outbox mark-attempt failed", "error", merr, "key", row.DedupeKey())
	}
	if lastAttempt {
		w.logger.Error("outbox row exhausted retries", "key", row.DedupeKey(), "attempts", attempts)
	}
}

// Backoff returns the retry delay for a row that has failed attempts
// times: BaseBackoff doubled per attempt, capped at MaxBackoff. Neither
// drain nor ClaimBatch consults it; a failed row is attempted again on
// every drain pass.
func Backoff(cfg config.OutboxConfig, attempts int) time.Duration {
	d := time.Duration(float64(cfg.BaseBackoff) * math.Pow(2, float64(attempts)))
	if d > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return d
}

// Enqueue is a convenience wrapper used by internal/txn rollback
// callbacks to durably record a compensating action before rollback
// itself begins, per spec.md §4.6's durability guarantee.
func Enqueue(ctx context.Context, store storage.OutboxStore, transactionID, entityType, entityName string, state domain.Document, m *metrics.OutboxMetrics) error {
	row := &domain.OutboxRow{
		TransactionID: transactionID,
		EntityType:    entityType,
		EntityName:    entityName,
		State:         state,
		CreatedAt:     time.Now(),
	}
	if err := store.Enqueue(ctx, row); err != nil {
		return err
	}
	if m != nil {
		m.RowsEnqueued.WithLabelValues(entityType).Inc()
	}
	return nil
}
