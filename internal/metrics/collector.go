// Package metrics provides in-memory statistics for the sync layer.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated counters for one sync operation kind.
type OperationMetrics struct {
	Count    int64
	Failures int64

	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the full client-side sync statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Polls         *OperationSnapshot
	Mutations     *OperationSnapshot
	PushEvents    int64
	DroppedEvents int64
	Reconnects    int64
}

// Operation names for the collector.
const (
	OpPoll     = "poll"
	OpMutation = "mutation"
)

// Collector aggregates in-memory sync statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics

	pushEvents    int64
	droppedEvents int64
	reconnects    int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records one completed operation.
func (c *Collector) RecordTiming(op string, duration time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	if failed {
		m.Failures++
	}
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordPushEvent counts one applied push event.
func (c *Collector) RecordPushEvent() {
	c.mu.Lock()
	c.pushEvents++
	c.mu.Unlock()
}

// RecordDroppedEvent counts one malformed push payload.
func (c *Collector) RecordDroppedEvent() {
	c.mu.Lock()
	c.droppedEvents++
	c.mu.Unlock()
}

// RecordReconnect counts one websocket reconnect attempt.
func (c *Collector) RecordReconnect() {
	c.mu.Lock()
	c.reconnects++
	c.mu.Unlock()
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Polls:         snapshotOp(c.ops[OpPoll]),
		Mutations:     snapshotOp(c.ops[OpMutation]),
		PushEvents:    c.pushEvents,
		DroppedEvents: c.droppedEvents,
		Reconnects:    c.reconnects,
	}
}
