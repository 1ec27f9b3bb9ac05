// Package metrics defines the Prometheus collectors recorded by search
// sessions and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a process.
type Metrics struct {
	DocsAddedTotal      *prometheus.CounterVec
	CommitsTotal        *prometheus.CounterVec
	CommitDuration      prometheus.Histogram
	SpillsTotal         prometheus.Counter
	WriterBufferedBytes prometheus.Gauge
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	OpenSnapshots       prometheus.Gauge

	CircuitState *prometheus.GaugeVec

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		DocsAddedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanesearch_documents_added_total",
				Help: "Documents offered to the write session by outcome (buffered, invalid, error).",
			},
			[]string{"outcome"},
		),
		CommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanesearch_commits_total",
				Help: "Write session commits by status.",
			},
			[]string{"status"},
		),
		CommitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sanesearch_commit_duration_seconds",
				Help:    "Commit latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),
		SpillsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sanesearch_writer_spills_total",
				Help: "Spill segments written because the writer heap budget was reached.",
			},
		),
		WriterBufferedBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sanesearch_writer_buffered_bytes",
				Help: "Bytes currently buffered in memory by the write session.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanesearch_search_queries_total",
				Help: "Search queries by path (simple, top) and result type (hit, zero_result, error).",
			},
			[]string{"path", "result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sanesearch_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"path"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sanesearch_search_results_count",
				Help:    "Number of results returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sanesearch_cache_hits_total",
				Help: "Simple-search result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sanesearch_cache_misses_total",
				Help: "Simple-search result cache misses.",
			},
		),
		OpenSnapshots: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sanesearch_open_snapshots",
				Help: "Search snapshots currently open.",
			},
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sanesearch_circuit_state",
				Help: "Circuit breaker state by dependency (0 closed, 1 open, 2 half-open).",
			},
			[]string{"name"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sanesearch_http_requests_total",
				Help: "HTTP requests by method, path and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sanesearch_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sanesearch_http_requests_in_flight",
				Help: "HTTP requests currently being served.",
			},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sanesearch_http_response_size_bytes",
				Help:    "HTTP response body size in bytes by path.",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"path"},
		),
	}

	reg.MustRegister(
		m.DocsAddedTotal,
		m.CommitsTotal,
		m.CommitDuration,
		m.SpillsTotal,
		m.WriterBufferedBytes,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.OpenSnapshots,
		m.CircuitState,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.HTTPResponseSize,
	)
	return m
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors, for hosts that keep their metrics off the default registry.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the scrape handler for gatherer. A nil gatherer serves the
// default registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
