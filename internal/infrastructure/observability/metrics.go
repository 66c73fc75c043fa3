// Package observability holds the Prometheus collector and OpenTelemetry
// setup of the service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Every method
// is safe on a nil receiver so components can run without metrics.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration prometheus.Histogram

	// Network metrics
	GraphBuilds   *prometheus.CounterVec
	GraphDuration prometheus.Histogram
	GraphNodes    prometheus.Histogram
	GraphEdges    *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheItems  prometheus.Gauge

	// Realtime metrics
	ActiveSessions prometheus.Gauge
	NotifyEvents   *prometheus.CounterVec
	NotifyState    *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to the memories API by outcome",
		}, []string{"outcome"}),
		UpstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Memories API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		GraphBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_builds_total",
			Help:      "Network builds by resulting state",
		}, []string{"state"}),
		GraphDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_build_duration_seconds",
			Help:      "Network build duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		GraphNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes per built network",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		GraphEdges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_edges_total",
			Help:      "Inferred edges by connection type",
		}, []string{"type"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of snapshot cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of snapshot cache misses",
		}),
		CacheItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_items",
			Help:      "Snapshots held in the cache after the last sweep",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Interactive network sessions currently open",
		}),
		NotifyEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_events_total",
			Help:      "Notification events received by type",
		}, []string{"event"}),
		NotifyState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notify_connections",
			Help:      "Notification watchers by connection state",
		}, []string{"state"}),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.UpstreamRequests,
		c.UpstreamDuration,
		c.GraphBuilds,
		c.GraphDuration,
		c.GraphNodes,
		c.GraphEdges,
		c.CacheHits,
		c.CacheMisses,
		c.CacheItems,
		c.ActiveSessions,
		c.NotifyEvents,
		c.NotifyState,
	)
	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveUpstream records one memories API call.
func (c *Collector) ObserveUpstream(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamRequests.WithLabelValues(outcome).Inc()
	c.UpstreamDuration.Observe(d.Seconds())
}

// ObserveBuild records one network build.
func (c *Collector) ObserveBuild(state string, nodes int, edgesByType map[string]int, d time.Duration) {
	if c == nil {
		return
	}
	c.GraphBuilds.WithLabelValues(state).Inc()
	c.GraphDuration.Observe(d.Seconds())
	c.GraphNodes.Observe(float64(nodes))
	for t, n := range edgesByType {
		c.GraphEdges.WithLabelValues(t).Add(float64(n))
	}
}

// CacheLookup counts a snapshot cache hit or miss.
func (c *Collector) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

// CacheSize records the number of cached snapshots.
func (c *Collector) CacheSize(items int) {
	if c != nil {
		c.CacheItems.Set(float64(items))
	}
}

// SessionOpened and SessionClosed track interactive sessions.
func (c *Collector) SessionOpened() {
	if c != nil {
		c.ActiveSessions.Inc()
	}
}

func (c *Collector) SessionClosed() {
	if c != nil {
		c.ActiveSessions.Dec()
	}
}

// NotifyEvent counts a notification event.
func (c *Collector) NotifyEvent(event string) {
	if c != nil {
		c.NotifyEvents.WithLabelValues(event).Inc()
	}
}

// NotifyTransition moves one watcher between connection states.
func (c *Collector) NotifyTransition(from, to string) {
	if c == nil {
		return
	}
	if from != "" {
		c.NotifyState.WithLabelValues(from).Dec()
	}
	if to != "" {
		c.NotifyState.WithLabelValues(to).Inc()
	}
}
