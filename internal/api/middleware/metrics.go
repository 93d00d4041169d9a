package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/juspay/airborne/pkg/metrics"
)

// metricsResponseWriter wraps http.ResponseWriter to capture the status
// code for instrumentation.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments every request against m, the way the
// teacher's own metrics middleware instruments its router, but through
// the component-scoped metrics.APIMetrics struct this codebase's other
// packages use rather than package-level promauto vars. The route label
// is gorilla/mux's matched route template so dynamic path segments
// (org/app/ids) don't blow up cardinality the way raw r.URL.Path would.
func MetricsMiddleware(m *metrics.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeTemplate(r)
			start := time.Now()

			m.InFlight.WithLabelValues(route).Inc()
			defer m.InFlight.WithLabelValues(route).Dec()

			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			m.Requests.WithLabelValues(r.Method, route, status).Inc()
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
