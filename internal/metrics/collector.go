// Package metrics provides in-memory runtime statistics collection for the
// dev chat server.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated timings for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                      `json:"uptimeSeconds"`
	Operations    map[string]OperationSnapshot `json:"operations"`
	Gauges        map[string]int64             `json:"gauges"`
}

// Operation names for the collector.
const (
	OpResolve   = "resolve"
	OpList      = "list_conversations"
	OpHistory   = "history"
	OpSubmit    = "submit"
	OpBroadcast = "broadcast"
)

// Gauge names for the collector.
const (
	GaugeChannelClients = "channel_clients"
	GaugeConversations  = "conversations"
	GaugeMessages       = "messages"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	gauges    map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		gauges:    make(map[string]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// AddGauge moves a gauge by delta. Negative deltas are allowed.
func (c *Collector) AddGauge(name string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[name] += delta
}

// SetGauge sets a gauge to an absolute value.
func (c *Collector) SetGauge(name string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[name] = value
}

// GetSnapshot returns the current statistics.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    make(map[string]OperationSnapshot, len(c.ops)),
		Gauges:        make(map[string]int64, len(c.gauges)),
	}
	for op, m := range c.ops {
		if m.Count == 0 {
			continue
		}
		snap.Operations[op] = OperationSnapshot{
			Count:       m.Count,
			TotalTimeMs: m.TotalTime.Milliseconds(),
			AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
			MinTimeMs:   m.MinTime.Milliseconds(),
			MaxTimeMs:   m.MaxTime.Milliseconds(),
		}
	}
	for name, v := range c.gauges {
		snap.Gauges[name] = v
	}
	return snap
}
