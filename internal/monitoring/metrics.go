// Package monitoring - metrics.go provides the gateway counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - total_calls:        Every facade operation started
//   - cache_hits/misses:  Response cache performance (reset by ClearCache)
//   - queue_enqueued:     Requests deferred by the backpressure queue
//   - errors:             Terminal failures, also broken down by error kind
//
// Counters never influence gateway behaviour. Collector exports them to Prometheus.
package monitoring

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a snapshot of the gateway counters.
type Stats struct {
	TotalCalls    int64 `json:"total_calls"`
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	QueueEnqueued int64 `json:"queue_enqueued"`
	Errors        int64 `json:"errors"`
}

// MetricsCollector collects gateway counters. Safe for concurrent use.
type MetricsCollector struct {
	startedAt time.Time

	totalCalls    atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	queueEnqueued atomic.Int64
	errors        atomic.Int64

	mu           sync.Mutex
	errorsByKind map[string]int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startedAt:    time.Now(),
		errorsByKind: make(map[string]int64),
	}
}

// RecordCall records the start of a facade operation.
func (mc *MetricsCollector) RecordCall() { mc.totalCalls.Add(1) }

// RecordCacheHit records a cache hit.
func (mc *MetricsCollector) RecordCacheHit() { mc.cacheHits.Add(1) }

// RecordCacheMiss records a cache miss.
func (mc *MetricsCollector) RecordCacheMiss() { mc.cacheMisses.Add(1) }

// RecordEnqueued records a request deferred to the queue.
func (mc *MetricsCollector) RecordEnqueued() { mc.queueEnqueued.Add(1) }

// RecordError records a terminal failure of the given kind.
func (mc *MetricsCollector) RecordError(kind string) {
	mc.errors.Add(1)
	mc.mu.Lock()
	mc.errorsByKind[kind]++
	mc.mu.Unlock()
}

// ResetCache zeroes the cache hit/miss counters.
func (mc *MetricsCollector) ResetCache() {
	mc.cacheHits.Store(0)
	mc.cacheMisses.Store(0)
}

// StartedAt returns when the metrics collector was created.
func (mc *MetricsCollector) StartedAt() time.Time { return mc.startedAt }

// Snapshot returns the current counters.
func (mc *MetricsCollector) Snapshot() Stats {
	return Stats{
		TotalCalls:    mc.totalCalls.Load(),
		CacheHits:     mc.cacheHits.Load(),
		CacheMisses:   mc.cacheMisses.Load(),
		QueueEnqueued: mc.queueEnqueued.Load(),
		Errors:        mc.errors.Load(),
	}
}

// ErrorsByKind returns a copy of the per-kind error counts.
func (mc *MetricsCollector) ErrorsByKind() map[string]int64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	out := make(map[string]int64, len(mc.errorsByKind))
	for k, v := range mc.errorsByKind {
		out[k] = v
	}
	return out
}

// FullStats returns all metrics in a structured format for the stats command.
func (mc *MetricsCollector) FullStats() StatsResponse {
	uptime := time.Since(mc.startedAt)
	s := mc.Snapshot()

	var cacheHitRate float64
	if total := s.CacheHits + s.CacheMisses; total > 0 {
		cacheHitRate = float64(s.CacheHits) / float64(total) * 100
	}

	byKind := mc.ErrorsByKind()
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	errs := make([]ErrorCount, 0, len(kinds))
	for _, k := range kinds {
		errs = append(errs, ErrorCount{Kind: k, Count: byKind[k]})
	}

	return StatsResponse{
		Uptime:        formatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		StartedAt:     mc.startedAt.Format(time.RFC3339),
		Stats:         s,
		CacheHitRate:  cacheHitRate,
		ErrorsByKind:  errs,
	}
}

// StatsResponse is the structured stats report.
type StatsResponse struct {
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartedAt     string       `json:"started_at"`
	Stats         Stats        `json:"stats"`
	CacheHitRate  float64      `json:"cache_hit_rate"`
	ErrorsByKind  []ErrorCount `json:"errors_by_kind"`
}

// ErrorCount is the number of failures of one kind.
type ErrorCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
