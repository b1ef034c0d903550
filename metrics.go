package ioring

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering 1us to 10s with logarithmic spacing. Unchanged from the
// teacher's metrics.go.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for the
// runtime. Generalizes the teacher's Metrics (which counted ublk's
// fixed Read/Write/Discard/Flush categories) to this module's
// completion categories: every operation is first allocated, then
// completes synchronously or asynchronously, or is rejected outright.
type Metrics struct {
	Allocated      atomic.Uint64 // Operations allocated from the pool
	CompletedSync  atomic.Uint64 // Operations completed on the submitting thread
	CompletedAsync atomic.Uint64 // Operations completed by the poller
	Rejected       atomic.Uint64 // Operations whose submission was rejected

	BytesTransferred atomic.Uint64

	SyncErrors  atomic.Uint64
	AsyncErrors atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// LatencyHistogram[i] holds the cumulative count of operations with
	// latency <= LatencyBuckets[i] (the package-level histogram bounds).
	LatencyHistogram [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordAllocate records an operation being allocated from the pool.
func (m *Metrics) RecordAllocate() {
	m.Allocated.Add(1)
}

// RecordCompletedSync records a synchronously completed operation.
func (m *Metrics) RecordCompletedSync(bytes uint64, latencyNs uint64, success bool) {
	m.CompletedSync.Add(1)
	if success {
		m.BytesTransferred.Add(bytes)
	} else {
		m.SyncErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordCompletedAsync records an operation completed by the poller.
func (m *Metrics) RecordCompletedAsync(bytes uint64, latencyNs uint64, success bool) {
	m.CompletedAsync.Add(1)
	if success {
		m.BytesTransferred.Add(bytes)
	} else {
		m.AsyncErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordRejected records an operation whose submission was rejected.
func (m *Metrics) RecordRejected() {
	m.Rejected.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyHistogram[i].Add(1)
		}
	}
}

// Stop marks the runtime as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	Allocated      uint64
	CompletedSync  uint64
	CompletedAsync uint64
	Rejected       uint64

	BytesTransferred uint64

	SyncErrors  uint64
	AsyncErrors uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps   uint64
	Throughput float64 // bytes/sec
	ErrorRate  float64 // failed completions as a percentage of TotalOps (rejections included in TotalOps)
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Allocated:        m.Allocated.Load(),
		CompletedSync:    m.CompletedSync.Load(),
		CompletedAsync:   m.CompletedAsync.Load(),
		Rejected:         m.Rejected.Load(),
		BytesTransferred: m.BytesTransferred.Load(),
		SyncErrors:       m.SyncErrors.Load(),
		AsyncErrors:      m.AsyncErrors.Load(),
	}

	snap.TotalOps = snap.CompletedSync + snap.CompletedAsync + snap.Rejected

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		snap.Throughput = float64(snap.BytesTransferred) / (float64(snap.UptimeNs) / 1e9)
	}

	totalErrors := snap.SyncErrors + snap.AsyncErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyHistogram[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
// Unchanged in method from the teacher's metrics.go.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyHistogram[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyHistogram[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Useful for testing.
func (m *Metrics) Reset() {
	m.Allocated.Store(0)
	m.CompletedSync.Store(0)
	m.CompletedAsync.Store(0)
	m.Rejected.Store(0)
	m.BytesTransferred.Store(0)
	m.SyncErrors.Store(0)
	m.AsyncErrors.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyHistogram[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// MetricsObserver implements opcore.Observer using the built-in
// Metrics type, satisfying opcore's locally-defined Observer interface
// structurally (opcore never imports this package, avoiding a cycle).
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given
// metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAllocate() { o.metrics.RecordAllocate() }

func (o *MetricsObserver) ObserveCompletedSync(bytes, latencyNs uint64, success bool) {
	o.metrics.RecordCompletedSync(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveCompletedAsync(bytes, latencyNs uint64, success bool) {
	o.metrics.RecordCompletedAsync(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveRejected() { o.metrics.RecordRejected() }
