// Package metrics provides per-component Prometheus collectors for the
// release engine, registered via promauto the way the teacher's
// repository-layer metrics structs are (one struct per component,
// constructed alongside it) rather than as one global taxonomy.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "release_engine"

// CatalogMetrics instruments internal/catalog.
type CatalogMetrics struct {
	OperationDuration *prometheus.HistogramVec
	Operations        *prometheus.CounterVec
}

// NewCatalogMetrics constructs and registers catalog metrics.
func NewCatalogMetrics() *CatalogMetrics {
	return &CatalogMetrics{
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "operation_duration_seconds",
			Help:      "Duration of file catalog operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "operations_total",
			Help:      "Total file catalog operations by outcome.",
		}, []string{"operation", "status"}),
	}
}

// ResolverMetrics instruments internal/resolver.
type ResolverMetrics struct {
	ResolveDuration   *prometheus.HistogramVec
	ResolveErrors     *prometheus.CounterVec
	VariantsApplied   *prometheus.HistogramVec
}

// NewResolverMetrics constructs and registers resolver metrics.
func NewResolverMetrics() *ResolverMetrics {
	return &ResolverMetrics{
		ResolveDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of release resolution requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		ResolveErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolve_errors_total",
			Help:      "Total resolution errors by reason.",
		}, []string{"reason"}),
		VariantsApplied: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "variants_applied",
			Help:      "Number of applicable variants folded into a resolution.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}, []string{}),
	}
}

// TxnMetrics instruments internal/txn.
type TxnMetrics struct {
	RunDuration   *prometheus.HistogramVec
	Rollbacks     *prometheus.CounterVec
	FailuresByIdx *prometheus.CounterVec
}

// NewTxnMetrics constructs and registers transaction-manager metrics.
func NewTxnMetrics() *TxnMetrics {
	return &TxnMetrics{
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "run_duration_seconds",
			Help:      "Duration of a run-fail-end transaction group.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		Rollbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "rollbacks_total",
			Help:      "Total rollback invocations.",
		}, []string{}),
		FailuresByIdx: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "failures_total",
			Help:      "Total operation failures by op index.",
		}, []string{"kind"}),
	}
}

// OutboxMetrics instruments internal/outbox.
type OutboxMetrics struct {
	RowsEnqueued *prometheus.CounterVec
	RowsDrained  *prometheus.CounterVec
	DrainErrors  *prometheus.CounterVec
	Attempts     *prometheus.HistogramVec
}

// NewOutboxMetrics constructs and registers outbox worker metrics.
func NewOutboxMetrics() *OutboxMetrics {
	return &OutboxMetrics{
		RowsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "rows_enqueued_total",
			Help:      "Compensating rows enqueued.",
		}, []string{"entity_type"}),
		RowsDrained: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "rows_drained_total",
			Help:      "Compensating rows successfully drained.",
		}, []string{"entity_type"}),
		DrainErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "drain_errors_total",
			Help:      "Errors encountered draining the outbox.",
		}, []string{"entity_type"}),
		Attempts: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "attempts",
			Help:      "Attempts needed to drain a row before success.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}, []string{}),
	}
}

// LockMetrics instruments internal/advisorylock.
type LockMetrics struct {
	Acquisitions *prometheus.CounterVec
}

// NewLockMetrics constructs and registers advisory-lock metrics.
func NewLockMetrics() *LockMetrics {
	return &LockMetrics{
		Acquisitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advisory_lock",
			Name:      "acquisitions_total",
			Help:      "Advisory lock acquisition attempts by outcome.",
		}, []string{"namespace", "outcome"}),
	}
}

// ObjectStoreMetrics instruments internal/objectstore.
type ObjectStoreMetrics struct {
	OperationDuration *prometheus.HistogramVec
	Operations        *prometheus.CounterVec
}

// NewObjectStoreMetrics constructs and registers object-store adapter metrics.
func NewObjectStoreMetrics() *ObjectStoreMetrics {
	return &ObjectStoreMetrics{
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "object_store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of object store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "object_store",
			Name:      "operations_total",
			Help:      "Total object store operations by outcome.",
		}, []string{"operation", "status"}),
	}
}

func (m *ObjectStoreMetrics) observe(operation string, d time.Duration, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.OperationDuration.WithLabelValues(operation, status).Observe(d.Seconds())
	m.Operations.WithLabelValues(operation, status).Inc()
}

// ObservePut records a PutObject call.
func (m *ObjectStoreMetrics) ObservePut(d time.Duration, ok bool) { m.observe("put", d, ok) }

// ObserveGet records a GetObject call.
func (m *ObjectStoreMetrics) ObserveGet(d time.Duration, ok bool) { m.observe("get", d, ok) }

// ObserveDownload records a Download call.
func (m *ObjectStoreMetrics) ObserveDownload(d time.Duration, ok bool) { m.observe("download", d, ok) }

// ExternalConfigMetrics instruments internal/externalconfig.
type ExternalConfigMetrics struct {
	CallDuration *prometheus.HistogramVec
	Calls        *prometheus.CounterVec
	CircuitOpen  *prometheus.CounterVec
}

// NewExternalConfigMetrics constructs and registers external config
// service client metrics.
func NewExternalConfigMetrics() *ExternalConfigMetrics {
	return &ExternalConfigMetrics{
		CallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external_config",
			Name:      "call_duration_seconds",
			Help:      "Duration of external config-and-experimentation service calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		Calls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external_config",
			Name:      "calls_total",
			Help:      "Total external config service calls by outcome.",
		}, []string{"method", "status"}),
		CircuitOpen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external_config",
			Name:      "circuit_open_total",
			Help:      "Calls rejected because the circuit breaker was open.",
		}, []string{"method"}),
	}
}

// Observe records one external config service call.
func (m *ExternalConfigMetrics) Observe(method string, d time.Duration, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.CallDuration.WithLabelValues(method, status).Observe(d.Seconds())
	m.Calls.WithLabelValues(method, status).Inc()
}

// WorkspaceCacheMetrics instruments internal/workspace.
type WorkspaceCacheMetrics struct {
	Hits      *prometheus.CounterVec
	Misses    *prometheus.CounterVec
	Collapsed *prometheus.CounterVec
}

// NewWorkspaceCacheMetrics constructs and registers workspace-cache metrics.
func NewWorkspaceCacheMetrics() *WorkspaceCacheMetrics {
	return &WorkspaceCacheMetrics{
		Hits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace_cache",
			Name:      "hits_total",
			Help:      "Workspace cache hits.",
		}, []string{"tier"}),
		Misses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace_cache",
			Name:      "misses_total",
			Help:      "Workspace cache misses.",
		}, []string{}),
		Collapsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace_cache",
			Name:      "collapsed_fetches_total",
			Help:      "Concurrent misses collapsed into a single upstream fetch.",
		}, []string{}),
	}
}

// APIMetrics instruments the HTTP surface in internal/api, the way the
// teacher's internal/api/middleware/metrics.go instruments its router.
type APIMetrics struct {
	RequestDuration *prometheus.HistogramVec
	Requests        *prometheus.CounterVec
	InFlight        *prometheus.GaugeVec
}

// NewAPIMetrics constructs and registers HTTP-layer metrics.
func NewAPIMetrics() *APIMetrics {
	return &APIMetrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route, method and status.",
		}, []string{"method", "route", "status"}),
		InFlight: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}, []string{"route"}),
	}
}
