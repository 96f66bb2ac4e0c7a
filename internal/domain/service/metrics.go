package service

import (
	"time"
)

// Metrics defines the interface for collecting resilience-layer metrics.
// This abstraction keeps the limiter, cache and monitor independent of the
// specific monitoring implementation (e.g. Prometheus).
type Metrics interface {
	// RecordLimiterWait records a caller that was delayed by a limiter.
	RecordLimiterWait(limiter, algorithm string, wait time.Duration)

	// RecordLimiterFailOpen records a shared limiter that skipped throttling
	// because its store failed.
	RecordLimiterFailOpen(limiter string)

	// RecordCacheAccess records a cache lookup; result is hit, miss, bypass or error.
	RecordCacheAccess(prefix, result string)

	// RecordAPICall records one outbound call outcome and its latency.
	RecordAPICall(api string, success bool, rateLimited bool, latency time.Duration)

	// RecordRateLimitAlert records an alert raised for api.
	RecordRateLimitAlert(api string)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordLimiterWait(limiter, algorithm string, wait time.Duration)         {}
func (NoopMetrics) RecordLimiterFailOpen(limiter string)                                    {}
func (NoopMetrics) RecordCacheAccess(prefix, result string)                                 {}
func (NoopMetrics) RecordAPICall(api string, success, rateLimited bool, lat time.Duration) {}
func (NoopMetrics) RecordRateLimitAlert(api string)                                         {}

// MetricsOrNoop returns m, or NoopMetrics when m is nil.
func MetricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return NoopMetrics{}
	}
	return m
}
