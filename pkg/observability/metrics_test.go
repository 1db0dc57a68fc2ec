package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordAuthorization("items", "update", "deny", "cross_org")
	m.RecordAuthorization("items", "update", "deny", "cross_org")
	m.RecordScopedQuery("items", "scoped")
	m.RecordAllocation("item", "allocated", 3*time.Millisecond)
	m.RecordAllocationRetry("item")
	m.RecordBackfill("item", 5, 2, 1)
	m.UpdateDBStats(sql.DBStats{InUse: 3, Idle: 4})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthorizationDecisionsTotal.WithLabelValues("items", "update", "deny", "cross_org")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScopedQueriesTotal.WithLabelValues("items", "scoped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntityIDAllocationsTotal.WithLabelValues("item", "allocated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntityIDAllocationRetries.WithLabelValues("item")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.BackfillRowsTotal.WithLabelValues("item", "allocated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackfillRowsTotal.WithLabelValues("item", "skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DBConnectionsActive))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DBConnectionsIdle))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordAuthorization("items", "view", "allow", "")
	m.RecordScopedQuery("items", "scoped")
	m.RecordAllocation("item", "failed", time.Second)
	m.RecordAllocationRetry("item")
	m.RecordBackfill("item", 1, 1, 1)
	m.UpdateDBStats(sql.DBStats{})
}

func TestHTTPMetricsMiddleware_UsesRouteName(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/api/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete).Name("items.delete")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/items/17", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("DELETE", "items.delete", "204")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RecordAuthorization("plans", "create", "deny", "no_perms")

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stockroom_authorization_decisions_total"))
}
