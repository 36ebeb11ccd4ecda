package core

import (
	"context"
	"testing"
	"time"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")

	ctx := context.Background()
	rec.Observe(ctx, "load", true, 40*time.Millisecond)
	rec.Observe(ctx, "load", true, 60*time.Millisecond)
	rec.Observe(ctx, "save", false, 10*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored
	rec.CacheEvent(true)
	rec.CacheEvent(false)
	rec.CacheEvent(false)
	rec.RetryScheduled("read")
	rec.RetryScheduled("read")

	snap := rec.Snapshot()
	if got := snap.DurationsMS["load"]; got != 100 {
		t.Fatalf("load duration total = %v, want 100", got)
	}
	if got := snap.Results["load"]["success"]; got != 2 {
		t.Fatalf("load successes = %d, want 2", got)
	}
	if got := snap.Results["save"]["error"]; got != 1 {
		t.Fatalf("save errors = %d, want 1", got)
	}
	if snap.CacheHits != 1 || snap.CacheMisses != 2 {
		t.Fatalf("cache hits/misses = %d/%d, want 1/2", snap.CacheHits, snap.CacheMisses)
	}
	if got := snap.Retries["read"]; got != 2 {
		t.Fatalf("read retries = %d, want 2", got)
	}
	if _, ok := snap.Results[""]; ok {
		t.Fatal("empty operation name must be ignored")
	}
}

func TestExpvarMetricsRecorderUniqueNames(t *testing.T) {
	a := NewExpvarMetricsRecorder("")
	b := NewExpvarMetricsRecorder("")
	if a.Name() == b.Name() {
		t.Fatalf("generated names collide: %q", a.Name())
	}
}

func TestExpvarMetricsSnapshotIsolation(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "load", true, time.Millisecond)

	snap := rec.Snapshot()
	snap.DurationsMS["load"] = 9999
	snap.Results["load"]["success"] = 9999

	if got := rec.Snapshot().DurationsMS["load"]; got != 1 {
		t.Fatalf("snapshot mutation leaked into recorder: %v", got)
	}
}
