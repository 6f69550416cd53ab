// Package metrics provides Prometheus metrics export for the
// recommendation core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports recommendation metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	retrievalLatency  *prometheus.HistogramVec
	retrievalRequests *prometheus.CounterVec
	degradedFallbacks prometheus.Counter

	embeddingRequests *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec

	sessionsSwept prometheus.Counter
	ingestActive  prometheus.Gauge
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewExporter creates a new Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.retrievalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stylist",
			Subsystem: "recommend",
			Name:      "retrieval_latency_seconds",
			Help:      "Candidate retrieval latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"mode"},
	)

	e.retrievalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylist",
			Subsystem: "recommend",
			Name:      "retrieval_requests_total",
			Help:      "Total number of candidate retrievals",
		},
		[]string{"mode", "status"},
	)

	e.degradedFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stylist",
			Subsystem: "recommend",
			Name:      "degraded_fallbacks_total",
			Help:      "Retrievals served from the full wardrobe instead of the index",
		},
	)

	e.embeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylist",
			Subsystem: "ai",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding provider requests",
		},
		[]string{"kind", "status"},
	)

	e.generationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stylist",
			Subsystem: "ai",
			Name:      "generation_latency_seconds",
			Help:      "Outfit generation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"operation"},
	)

	e.sessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stylist",
			Subsystem: "session",
			Name:      "swept_total",
			Help:      "Conversation sessions removed by the retention sweep",
		},
	)

	e.ingestActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stylist",
			Subsystem: "ingest",
			Name:      "tasks_active",
			Help:      "Batch ingestion tasks currently running",
		},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylist",
			Subsystem: "store",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylist",
			Subsystem: "store",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	registry.MustRegister(
		e.retrievalLatency,
		e.retrievalRequests,
		e.degradedFallbacks,
		e.embeddingRequests,
		e.generationLatency,
		e.sessionsSwept,
		e.ingestActive,
		e.cacheHits,
		e.cacheMisses,
	)

	return e
}

// RecordRetrieval records one candidate retrieval.
func (e *Exporter) RecordRetrieval(mode string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.retrievalRequests.WithLabelValues(mode, status).Inc()
	e.retrievalLatency.WithLabelValues(mode).Observe(latency.Seconds())
}

// RecordDegradedFallback records a full-wardrobe fallback.
func (e *Exporter) RecordDegradedFallback() {
	e.degradedFallbacks.Inc()
}

// RecordEmbeddingRequest records one embedding provider call.
func (e *Exporter) RecordEmbeddingRequest(kind string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.embeddingRequests.WithLabelValues(kind, status).Inc()
}

// RecordGeneration records one generation provider call.
func (e *Exporter) RecordGeneration(operation string, latency time.Duration) {
	e.generationLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordSessionsSwept adds to the retention sweep counter.
func (e *Exporter) RecordSessionsSwept(count int) {
	e.sessionsSwept.Add(float64(count))
}

// SetActiveIngestTasks sets the number of running ingestion tasks.
func (e *Exporter) SetActiveIngestTasks(count int) {
	e.ingestActive.Set(float64(count))
}

// RecordCacheHit records a cache hit.
func (e *Exporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *Exporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
