package core

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsRecorder receives accessor and service outcomes. Implementations
// must be safe for concurrent use.
type MetricsRecorder interface {
	// Observe records one remote operation outcome with its duration.
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	// CacheEvent records a read-cache hit or miss.
	CacheEvent(hit bool)
	// RetryScheduled records one backoff sleep for the operation.
	RetryScheduled(operation string)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetrics) CacheEvent(bool)                                      {}
func (noopMetrics) RetryScheduled(string)                                {}

var expvarSeq uint64

// ExpvarMetricsRecorder publishes aggregate timing and result counters via
// expvar, for deployments that prefer process-local metrics without external
// dependencies. Totals are milliseconds per operation plus success/error,
// cache, and retry counters.
type ExpvarMetricsRecorder struct {
	name string

	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
	retries   map[string]int64
	cacheHits int64
	cacheMiss int64
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	Retries     map[string]int64            `json:"retries_total"`
	CacheHits   int64                       `json:"cache_hits_total"`
	CacheMisses int64                       `json:"cache_misses_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs an expvar-backed recorder published
// under the supplied name. When name is empty, a unique identifier is
// generated.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("accessor_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
		retries:   make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, statusCounts := range r.results {
		cpy := make(map[string]int64, len(statusCounts))
		for status, count := range statusCounts {
			cpy[status] = count
		}
		results[op] = cpy
	}
	retries := make(map[string]int64, len(r.retries))
	for op, count := range r.retries {
		retries[op] = count
	}

	return ExpvarMetricsSnapshot{
		DurationsMS: durations,
		Results:     results,
		Retries:     retries,
		CacheHits:   r.cacheHits,
		CacheMisses: r.cacheMiss,
		RecordedAt:  time.Now().UTC(),
	}
}

// Observe records one remote operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	status := "error"
	if success {
		status = "success"
	}

	r.mu.Lock()
	r.durations[operation] += ms
	if _, ok := r.results[operation]; !ok {
		r.results[operation] = make(map[string]int64, 2)
	}
	r.results[operation][status]++
	r.mu.Unlock()
}

// CacheEvent records a read-cache hit or miss.
func (r *ExpvarMetricsRecorder) CacheEvent(hit bool) {
	r.mu.Lock()
	if hit {
		r.cacheHits++
	} else {
		r.cacheMiss++
	}
	r.mu.Unlock()
}

// RetryScheduled records one backoff sleep.
func (r *ExpvarMetricsRecorder) RetryScheduled(operation string) {
	r.mu.Lock()
	r.retries[operation]++
	r.mu.Unlock()
}
