package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthorizationDecisionsTotal *prometheus.CounterVec
	ScopedQueriesTotal          *prometheus.CounterVec

	// Public identifier metrics
	EntityIDAllocationsTotal   *prometheus.CounterVec
	EntityIDAllocationRetries  *prometheus.CounterVec
	EntityIDAllocationDuration *prometheus.HistogramVec
	BackfillRowsTotal          *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockroom_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockroom_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthorizationDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockroom_authorization_decisions_total",
				Help: "Authorization decisions by resource, action, decision and reason",
			},
			[]string{"resource", "action", "decision", "reason"},
		),
		ScopedQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockroom_scoped_queries_total",
				Help: "Organization scoping applied to read queries, by mode",
			},
			[]string{"resource", "mode"},
		),
		EntityIDAllocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockroom_entity_id_allocations_total",
				Help: "Public identifier allocations by entity type and outcome",
			},
			[]string{"entity_type", "outcome"},
		),
		EntityIDAllocationRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockroom_entity_id_allocation_retries_total",
				Help: "Public identifier allocation attempts retried after a conflict",
			},
			[]string{"entity_type"},
		),
		EntityIDAllocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockroom_entity_id_allocation_duration_seconds",
				Help:    "Public identifier allocation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"entity_type"},
		),
		BackfillRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockroom_backfill_rows_total",
				Help: "Rows visited by the public identifier backfill, by result",
			},
			[]string{"entity_type", "result"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockroom_db_connections_active",
				Help: "Number of in-use database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockroom_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthorizationDecisionsTotal,
		m.ScopedQueriesTotal,
		m.EntityIDAllocationsTotal,
		m.EntityIDAllocationRetries,
		m.EntityIDAllocationDuration,
		m.BackfillRowsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// RecordAuthorization counts an allow/deny decision
func (m *Metrics) RecordAuthorization(resource, action, decision, reason string) {
	if m == nil {
		return
	}
	m.AuthorizationDecisionsTotal.WithLabelValues(resource, action, decision, reason).Inc()
}

// RecordScopedQuery counts how a read query was scoped
func (m *Metrics) RecordScopedQuery(resource, mode string) {
	if m == nil {
		return
	}
	m.ScopedQueriesTotal.WithLabelValues(resource, mode).Inc()
}

// RecordAllocation counts an allocation outcome and its duration
func (m *Metrics) RecordAllocation(entityType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.EntityIDAllocationsTotal.WithLabelValues(entityType, outcome).Inc()
	m.EntityIDAllocationDuration.WithLabelValues(entityType).Observe(duration.Seconds())
}

// RecordAllocationRetry counts a retried allocation attempt
func (m *Metrics) RecordAllocationRetry(entityType string) {
	if m == nil {
		return
	}
	m.EntityIDAllocationRetries.WithLabelValues(entityType).Inc()
}

// RecordBackfill adds backfill row counts
func (m *Metrics) RecordBackfill(entityType string, allocated, skipped, failed int) {
	if m == nil {
		return
	}
	m.BackfillRowsTotal.WithLabelValues(entityType, "allocated").Add(float64(allocated))
	m.BackfillRowsTotal.WithLabelValues(entityType, "skipped").Add(float64(skipped))
	m.BackfillRowsTotal.WithLabelValues(entityType, "failed").Add(float64(failed))
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel uses the route name, then the path template, so that IDs in
// paths do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// It must be installed with mux.Router.Use so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			if metrics == nil {
				return
			}
			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
