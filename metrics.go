package mqttbuf

import (
	"sync/atomic"
	"time"

	"github.com/mqttbuf/mqttbuf/internal/interfaces"
)

// Metrics tracks operational statistics for a Core's buffering activity.
type Metrics struct {
	// Read counters
	ReadsCompleted   atomic.Uint64 // Reads that returned all wanted bytes
	ReadsInterrupted atomic.Uint64 // Short reads reported via Interrupted
	ReadErrors       atomic.Uint64
	BytesRead        atomic.Uint64

	// Write counters
	WritesCompleted atomic.Uint64
	WriteErrors     atomic.Uint64
	BytesWritten    atomic.Uint64

	// Buffering statistics
	QueuePromotions atomic.Uint64 // Default-queue-to-per-socket promotions
	MaxTraceDepth   atomic.Uint32 // Call-stack high-water mark across all threads

	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano
}

// NewMetrics creates a new metrics instance with its start time set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRead records a completed or failed read.
func (m *Metrics) RecordRead(bytes uint64, success bool) {
	if success {
		m.ReadsCompleted.Add(1)
		m.BytesRead.Add(bytes)
	} else {
		m.ReadErrors.Add(1)
	}
}

// RecordReadInterrupted records a short read reported to the inbound
// buffer's Interrupted, whether or not it promoted the default queue
// (promotions are counted by RecordQueuePromoted).
func (m *Metrics) RecordReadInterrupted() {
	m.ReadsInterrupted.Add(1)
}

// RecordWrite records a completed or failed write.
func (m *Metrics) RecordWrite(bytes uint64, success bool) {
	if success {
		m.WritesCompleted.Add(1)
		m.BytesWritten.Add(bytes)
	} else {
		m.WriteErrors.Add(1)
	}
}

// RecordQueuePromoted records a default-queue promotion.
func (m *Metrics) RecordQueuePromoted() {
	m.QueuePromotions.Add(1)
}

// RecordTraceDepth updates the trace-depth high-water mark.
func (m *Metrics) RecordTraceDepth(depth int) {
	for {
		current := m.MaxTraceDepth.Load()
		if uint32(depth) <= current {
			return
		}
		if m.MaxTraceDepth.CompareAndSwap(current, uint32(depth)) {
			return
		}
	}
}

// Stop marks the metrics as stopped, freezing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics plus
// derived rates.
type MetricsSnapshot struct {
	ReadsCompleted   uint64
	ReadsInterrupted uint64
	ReadErrors       uint64
	BytesRead        uint64
	WritesCompleted  uint64
	WriteErrors      uint64
	BytesWritten     uint64
	QueuePromotions  uint64
	MaxTraceDepth    uint32

	UptimeNs       uint64
	ReadBandwidth  float64 // bytes/sec
	WriteBandwidth float64 // bytes/sec
	ErrorRate      float64 // percentage of failed reads+writes
}

// Snapshot returns a point-in-time snapshot with derived rates.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ReadsCompleted:   m.ReadsCompleted.Load(),
		ReadsInterrupted: m.ReadsInterrupted.Load(),
		ReadErrors:       m.ReadErrors.Load(),
		BytesRead:        m.BytesRead.Load(),
		WritesCompleted:  m.WritesCompleted.Load(),
		WriteErrors:      m.WriteErrors.Load(),
		BytesWritten:     m.BytesWritten.Load(),
		QueuePromotions:  m.QueuePromotions.Load(),
		MaxTraceDepth:    m.MaxTraceDepth.Load(),
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.ReadBandwidth = float64(snap.BytesRead) / uptimeSeconds
		snap.WriteBandwidth = float64(snap.BytesWritten) / uptimeSeconds
	}

	totalOps := snap.ReadsCompleted + snap.WritesCompleted
	totalErrors := snap.ReadErrors + snap.WriteErrors
	if totalOps+totalErrors > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(totalOps+totalErrors) * 100.0
	}

	return snap
}

// Reset zeroes all counters and restarts the uptime clock.
func (m *Metrics) Reset() {
	m.ReadsCompleted.Store(0)
	m.ReadsInterrupted.Store(0)
	m.ReadErrors.Store(0)
	m.BytesRead.Store(0)
	m.WritesCompleted.Store(0)
	m.WriteErrors.Store(0)
	m.BytesWritten.Store(0)
	m.QueuePromotions.Store(0)
	m.MaxTraceDepth.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// NoOpObserver discards every observation. It is the default Observer
// for a Core constructed without one.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRead(uint64, bool)  {}
func (NoOpObserver) ObserveReadInterrupted()    {}
func (NoOpObserver) ObserveWrite(uint64, bool) {}
func (NoOpObserver) ObserveQueuePromoted()      {}
func (NoOpObserver) ObserveTraceDepth(int)      {}

// MetricsObserver implements interfaces.Observer by recording into a
// Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRead(bytes uint64, success bool) {
	o.metrics.RecordRead(bytes, success)
}

func (o *MetricsObserver) ObserveReadInterrupted() {
	o.metrics.RecordReadInterrupted()
}

func (o *MetricsObserver) ObserveWrite(bytes uint64, success bool) {
	o.metrics.RecordWrite(bytes, success)
}

func (o *MetricsObserver) ObserveQueuePromoted() {
	o.metrics.RecordQueuePromoted()
}

func (o *MetricsObserver) ObserveTraceDepth(depth int) {
	o.metrics.RecordTraceDepth(depth)
}

var (
	_ interfaces.Observer = (*MetricsObserver)(nil)
	_ interfaces.Observer = NoOpObserver{}
)
