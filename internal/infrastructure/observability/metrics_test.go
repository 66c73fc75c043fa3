package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveUpstream("ok", time.Second)
		c.ObserveBuild("ready", 2, map[string]int{"emotion": 1}, time.Millisecond)
		c.CacheLookup(true)
		c.SessionOpened()
		c.SessionClosed()
		c.NotifyEvent("memory_processed")
		c.NotifyTransition("connected", "reconnecting")
	})
}

func TestCollector_Records(t *testing.T) {
	c := NewCollector("test")

	c.ObserveUpstream("rate_limited", 10*time.Millisecond)
	c.ObserveBuild("ready", 3, map[string]int{"emotion": 2, "notes": 1}, time.Millisecond)
	c.CacheLookup(true)
	c.CacheLookup(false)
	c.CacheLookup(false)
	c.SessionOpened()
	c.NotifyTransition("", "connected")
	c.NotifyTransition("connected", "reconnecting")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.UpstreamRequests.WithLabelValues("rate_limited")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.GraphEdges.WithLabelValues("emotion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveSessions))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.NotifyState.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NotifyState.WithLabelValues("reconnecting")))
}

func TestMetricsMiddleware(t *testing.T) {
	c := NewCollector("test")
	r := chi.NewRouter()
	r.Use(MetricsMiddleware(c))
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/things/{id}", "418")))

	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}
