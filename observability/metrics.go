// Package observability exposes prometheus metrics for the phylogeny cache
// and the HTTP API, and builds the OpenTelemetry tracer provider.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teranos/phylo/phylogeny"
)

// Collector holds all prometheus metrics for one process. Each collector has
// its own registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Cache metrics
	Refreshes       *prometheus.CounterVec
	RebuildDuration prometheus.Histogram
	CacheNodes      prometheus.Gauge
	Queries         *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec

	// Websocket
	WSClients prometheus.Gauge
}

var _ phylogeny.MetricsRecorder = (*Collector)(nil)

// NewCollector creates and registers every metric under namespace.
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
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "phylogeny",
			Name:      "refreshes_total",
			Help:      "Cache refresh checks by outcome",
		}, []string{"outcome"}),
		RebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "phylogeny",
			Name:      "rebuild_duration_seconds",
			Help:      "Time spent fetching rows and building the tree",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		CacheNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "phylogeny",
			Name:      "cached_concepts",
			Help:      "Concepts in the current cache snapshot",
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "phylogeny",
			Name:      "queries_total",
			Help:      "Phylogeny queries by operation and whether the name matched",
		}, []string{"operation", "found"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "phylogeny",
			Name:      "query_duration_seconds",
			Help:      "Phylogeny query latency including any refresh",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}),
	}

	c.registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.Refreshes, c.RebuildDuration, c.CacheNodes, c.Queries, c.QueryDuration,
		c.WSClients,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRefresh counts a refresh check.
func (c *Collector) ObserveRefresh(outcome string) {
	c.Refreshes.WithLabelValues(outcome).Inc()
}

// ObserveRebuild records a completed rebuild.
func (c *Collector) ObserveRebuild(d time.Duration, nodes int) {
	c.RebuildDuration.Observe(d.Seconds())
	c.CacheNodes.Set(float64(nodes))
}

// ObserveQuery records a phylogeny query.
func (c *Collector) ObserveQuery(op string, found bool, d time.Duration) {
	c.Queries.WithLabelValues(op, strconv.FormatBool(found)).Inc()
	c.QueryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveHTTP records a served request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
