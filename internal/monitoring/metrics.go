// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics.
// For production, export these to Prometheus or similar.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	requests         atomic.Int64
	successes        atomic.Int64
	streams          atomic.Int64
	retries          atomic.Int64
	summaryFallbacks atomic.Int64
	cancellations    atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordRequest records a request.
func (mc *MetricsCollector) RecordRequest(success bool, _ time.Duration) {
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// RecordStream records a completed SSE stream.
func (mc *MetricsCollector) RecordStream() { mc.streams.Add(1) }

// RecordRetry records an upstream retry attempt.
func (mc *MetricsCollector) RecordRetry() { mc.retries.Add(1) }

// RecordSummaryFallback records a degraded summary (empty text after retries).
func (mc *MetricsCollector) RecordSummaryFallback() { mc.summaryFallbacks.Add(1) }

// RecordCancellation records a client disconnect mid-stream.
func (mc *MetricsCollector) RecordCancellation() { mc.cancellations.Add(1) }

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"requests":          mc.requests.Load(),
		"successes":         mc.successes.Load(),
		"streams":           mc.streams.Load(),
		"retries":           mc.retries.Load(),
		"summary_fallbacks": mc.summaryFallbacks.Load(),
		"cancellations":     mc.cancellations.Load(),
	}
}
