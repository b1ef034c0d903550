package ioring

import "github.com/prometheus/client_golang/prometheus"

// PrometheusCollector adapts Metrics to prometheus.Collector, the
// domain-stack wiring SPEC_FULL.md's ambient stack section calls for:
// the teacher's Metrics/MetricsSnapshot pair has no Prometheus exporter
// of its own, so this is new code grounded on the corpus's general
// client_golang Collector pattern rather than on a specific teacher
// file.
type PrometheusCollector struct {
	metrics *Metrics

	allocated      *prometheus.Desc
	completedSync  *prometheus.Desc
	completedAsync *prometheus.Desc
	rejected       *prometheus.Desc
	bytesTotal     *prometheus.Desc
	syncErrors     *prometheus.Desc
	asyncErrors    *prometheus.Desc
	latencyP50     *prometheus.Desc
	latencyP99     *prometheus.Desc
	latencyP999    *prometheus.Desc
}

// NewPrometheusCollector wraps m for registration with a
// prometheus.Registry.
func NewPrometheusCollector(m *Metrics) *PrometheusCollector {
	ns := "ioring"
	return &PrometheusCollector{
		metrics:        m,
		allocated:      prometheus.NewDesc(ns+"_operations_allocated_total", "Operations allocated from the pool.", nil, nil),
		completedSync:  prometheus.NewDesc(ns+"_operations_completed_sync_total", "Operations completed synchronously.", nil, nil),
		completedAsync: prometheus.NewDesc(ns+"_operations_completed_async_total", "Operations completed by the poller.", nil, nil),
		rejected:       prometheus.NewDesc(ns+"_operations_rejected_total", "Operations whose submission was rejected.", nil, nil),
		bytesTotal:     prometheus.NewDesc(ns+"_bytes_transferred_total", "Bytes transferred by completed operations.", nil, nil),
		syncErrors:     prometheus.NewDesc(ns+"_sync_errors_total", "Synchronous completions that failed.", nil, nil),
		asyncErrors:    prometheus.NewDesc(ns+"_async_errors_total", "Async completions that failed.", nil, nil),
		latencyP50:     prometheus.NewDesc(ns+"_latency_p50_nanoseconds", "Estimated 50th percentile operation latency.", nil, nil),
		latencyP99:     prometheus.NewDesc(ns+"_latency_p99_nanoseconds", "Estimated 99th percentile operation latency.", nil, nil),
		latencyP999:    prometheus.NewDesc(ns+"_latency_p999_nanoseconds", "Estimated 99.9th percentile operation latency.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocated
	ch <- c.completedSync
	ch <- c.completedAsync
	ch <- c.rejected
	ch <- c.bytesTotal
	ch <- c.syncErrors
	ch <- c.asyncErrors
	ch <- c.latencyP50
	ch <- c.latencyP99
	ch <- c.latencyP999
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.allocated, prometheus.CounterValue, float64(snap.Allocated))
	ch <- prometheus.MustNewConstMetric(c.completedSync, prometheus.CounterValue, float64(snap.CompletedSync))
	ch <- prometheus.MustNewConstMetric(c.completedAsync, prometheus.CounterValue, float64(snap.CompletedAsync))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(snap.Rejected))
	ch <- prometheus.MustNewConstMetric(c.bytesTotal, prometheus.CounterValue, float64(snap.BytesTransferred))
	ch <- prometheus.MustNewConstMetric(c.syncErrors, prometheus.CounterValue, float64(snap.SyncErrors))
	ch <- prometheus.MustNewConstMetric(c.asyncErrors, prometheus.CounterValue, float64(snap.AsyncErrors))
	ch <- prometheus.MustNewConstMetric(c.latencyP50, prometheus.GaugeValue, float64(snap.LatencyP50Ns))
	ch <- prometheus.MustNewConstMetric(c.latencyP99, prometheus.GaugeValue, float64(snap.LatencyP99Ns))
	ch <- prometheus.MustNewConstMetric(c.latencyP999, prometheus.GaugeValue, float64(snap.LatencyP999Ns))
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)
