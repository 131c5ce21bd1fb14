// internal/utils/metrics.go
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// Operation names tracked by the metrics collector.
const (
	OpExtraction = "extraction"
	OpGeneration = "generation"
	OpSynthesis  = "synthesis"
	OpPlayback   = "playback"
)

// Metrics collects per-operation counters and latency stats for the
// generation pipeline.
type Metrics struct {
	ops map[string]*opStats
	mu  sync.RWMutex

	startedAt time.Time
}

// opStats tracks one operation - atomics for counters, mutex for latency.
type opStats struct {
	success int64
	failure int64

	mu         sync.Mutex
	totalMs    int64
	minMs      int64
	maxMs      int64
	latencyCnt int64
}

// OpSnapshot is the exported view of one operation's stats.
type OpSnapshot struct {
	Success  int64 `json:"success"`
	Failure  int64 `json:"failure"`
	AvgMs    int64 `json:"avg_ms"`
	MinMs    int64 `json:"min_ms"`
	MaxMs    int64 `json:"max_ms"`
	LatencyN int64 `json:"latency_samples"`
}

// Snapshot is the exported view of the collector.
type Snapshot struct {
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Operations    map[string]OpSnapshot `json:"operations"`
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics collector.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ops:       make(map[string]*opStats),
			startedAt: time.Now(),
		}
	})
	return globalMetrics
}

// getOp returns the stats bucket for an operation, creating it if needed.
func (m *Metrics) getOp(name string) *opStats {
	// Fast path with read lock.
	m.mu.RLock()
	stats, exists := m.ops[name]
	m.mu.RUnlock()
	if exists {
		return stats
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Double-check after acquiring write lock.
	if stats, exists = m.ops[name]; !exists {
		stats = &opStats{minMs: -1}
		m.ops[name] = stats
	}
	return stats
}

// RecordSuccess records a successful operation and its latency.
func (m *Metrics) RecordSuccess(name string, elapsed time.Duration) {
	stats := m.getOp(name)
	atomic.AddInt64(&stats.success, 1)

	ms := elapsed.Milliseconds()
	stats.mu.Lock()
	defer stats.mu.Unlock()

	stats.totalMs += ms
	stats.latencyCnt++
	if stats.minMs < 0 || ms < stats.minMs {
		stats.minMs = ms
	}
	if ms > stats.maxMs {
		stats.maxMs = ms
	}
}

// RecordFailure records a failed operation.
func (m *Metrics) RecordFailure(name string) {
	stats := m.getOp(name)
	atomic.AddInt64(&stats.failure, 1)
}

// GetSnapshot exports the current state of all operations.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
		Operations:    make(map[string]OpSnapshot, len(m.ops)),
	}

	for name, stats := range m.ops {
		stats.mu.Lock()
		op := OpSnapshot{
			Success:  atomic.LoadInt64(&stats.success),
			Failure:  atomic.LoadInt64(&stats.failure),
			MinMs:    stats.minMs,
			MaxMs:    stats.maxMs,
			LatencyN: stats.latencyCnt,
		}
		if stats.latencyCnt > 0 {
			op.AvgMs = stats.totalMs / stats.latencyCnt
		}
		if op.MinMs < 0 {
			op.MinMs = 0
		}
		stats.mu.Unlock()

		snapshot.Operations[name] = op
	}

	return snapshot
}
