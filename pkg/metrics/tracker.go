// Package metrics tracks cache effectiveness and query latency of the
// subscription layer.
package metrics

import (
	"sync"
	"time"
)

// WindowSize is the number of latency samples kept for the rolling average.
const WindowSize = 100

// Metrics is a point-in-time copy of the tracker's counters.
type Metrics struct {
	SubscriptionCount   int       `json:"subscriptionCount"`
	CacheHits           int       `json:"cacheHits"`
	CacheMisses         int       `json:"cacheMisses"`
	ErrorCount          int       `json:"errorCount"`
	CacheHitRate        float64   `json:"cacheHitRate"`
	AvgQueryTimeMs      float64   `json:"avgQueryTimeMs"`
	QueryTimesMs        []float64 `json:"queryTimesMs"`
	OptimizationSavings int       `json:"optimizationSavings"`
	LastOptimizationRun time.Time `json:"lastOptimizationRun"`
}

// TotalRequests is the number of cache lookups recorded.
func (m Metrics) TotalRequests() int {
	return m.CacheHits + m.CacheMisses
}

type Tracker struct {
	mu      sync.Mutex
	m       Metrics
	samples []float64
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// StartTimer starts a latency measurement. The returned func stops it,
// records the elapsed time and returns it.
func (t *Tracker) StartTimer() func() time.Duration {
	start := t.now()
	return func() time.Duration {
		elapsed := t.now().Sub(start)
		t.RecordQueryTime(elapsed)
		return elapsed
	}
}

// RecordQueryTime appends a sample to the rolling window and recomputes the average.
func (t *Tracker) RecordQueryTime(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, ms)
	if len(t.samples) > WindowSize {
		t.samples = t.samples[len(t.samples)-WindowSize:]
	}
	var sum float64
	for _, s := range t.samples {
		sum += s
	}
	t.m.AvgQueryTimeMs = sum / float64(len(t.samples))
}

func (t *Tracker) IncrementCacheHits() {
	t.mu.Lock()
	t.m.CacheHits++
	t.updateHitRate()
	t.mu.Unlock()
}

func (t *Tracker) IncrementCacheMisses() {
	t.mu.Lock()
	t.m.CacheMisses++
	t.updateHitRate()
	t.mu.Unlock()
}

func (t *Tracker) updateHitRate() {
	total := t.m.CacheHits + t.m.CacheMisses
	if total == 0 {
		t.m.CacheHitRate = 0
		return
	}
	t.m.CacheHitRate = float64(t.m.CacheHits) / float64(total) * 100
}

func (t *Tracker) IncrementErrors() {
	t.mu.Lock()
	t.m.ErrorCount++
	t.mu.Unlock()
}

func (t *Tracker) IncrementSubscriptions() {
	t.mu.Lock()
	t.m.SubscriptionCount++
	t.mu.Unlock()
}

// RecordOptimizationSavings adds an estimate of reads avoided by scoped queries.
func (t *Tracker) RecordOptimizationSavings(reads int) {
	t.mu.Lock()
	t.m.OptimizationSavings += reads
	t.mu.Unlock()
}

func (t *Tracker) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.m
	out.QueryTimesMs = append([]float64(nil), t.samples...)
	out.LastOptimizationRun = t.now()
	return out
}
