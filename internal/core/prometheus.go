package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder publishes accessor metrics through a Prometheus
// registry: an operation duration histogram, result counters, cache hit/miss
// counters, and a retry counter.
type PrometheusMetricsRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
	cache     *prometheus.CounterVec
	retries   *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder constructs a recorder and registers its
// collectors with the supplied registerer. A nil registerer defaults to
// prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "researchdash",
			Subsystem: "accessor",
			Name:      "operation_duration_seconds",
			Help:      "Duration of remote table operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdash",
			Subsystem: "accessor",
			Name:      "operations_total",
			Help:      "Remote table operations by outcome.",
		}, []string{"operation", "status"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdash",
			Subsystem: "accessor",
			Name:      "cache_events_total",
			Help:      "Read cache hits and misses.",
		}, []string{"event"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchdash",
			Subsystem: "accessor",
			Name:      "retries_total",
			Help:      "Backoff retries scheduled per operation.",
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{rec.durations, rec.results, rec.cache, rec.retries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe records one remote operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// CacheEvent records a read-cache hit or miss.
func (r *PrometheusMetricsRecorder) CacheEvent(hit bool) {
	event := "miss"
	if hit {
		event = "hit"
	}
	r.cache.WithLabelValues(event).Inc()
}

// RetryScheduled records one backoff sleep.
func (r *PrometheusMetricsRecorder) RetryScheduled(operation string) {
	r.retries.WithLabelValues(operation).Inc()
}
