// Package models holds the value types shared by the resilience components and
// the market-data call-sites.
package models

import (
	"time"
)

// APICallStats is the persisted per-API bucket. It lives for the monitor's
// window and restarts from zero once the store expires it.
type APICallStats struct {
	Total       int64     `json:"total"`
	Failed      int64     `json:"failed"`
	RateLimited int64     `json:"rate_limited"`
	LatenciesMs []float64 `json:"latencies"`
	StartTime   time.Time `json:"start_time"`
}

// NewAPICallStats returns an empty bucket that starts at now.
func NewAPICallStats(now time.Time) *APICallStats {
	return &APICallStats{
		LatenciesMs: []float64{},
		StartTime:   now,
	}
}

// AppendLatency records a sample and keeps only the most recent max entries.
func (s *APICallStats) AppendLatency(ms float64, max int) {
	s.LatenciesMs = append(s.LatenciesMs, ms)
	if len(s.LatenciesMs) > max {
		s.LatenciesMs = append([]float64(nil), s.LatenciesMs[len(s.LatenciesMs)-max:]...)
	}
}

// RateLimitedFraction returns RateLimited/Total, or 0 for an empty bucket.
func (s *APICallStats) RateLimitedFraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.RateLimited) / float64(s.Total)
}

// APIStatsSnapshot is the read-only view returned to operators.
type APIStatsSnapshot struct {
	APIName               string     `json:"api_name" yaml:"api_name"`
	TotalCalls            int64      `json:"total_calls" yaml:"total_calls"`
	SuccessfulCalls       int64      `json:"successful_calls" yaml:"successful_calls"`
	FailedCalls           int64      `json:"failed_calls" yaml:"failed_calls"`
	RateLimitedCalls      int64      `json:"rate_limited_calls" yaml:"rate_limited_calls"`
	SuccessRate           float64    `json:"success_rate" yaml:"success_rate"`
	RateLimitedPercentage float64    `json:"rate_limited_percentage" yaml:"rate_limited_percentage"`
	AverageLatencyMs      float64    `json:"average_latency_ms" yaml:"average_latency_ms"`
	WindowStart           *time.Time `json:"window_start,omitempty" yaml:"window_start,omitempty"`
	WindowMinutes         int        `json:"window_minutes" yaml:"window_minutes"`
}

// Snapshot derives the operator view from a bucket. Every ratio is zero when
// its denominator is zero.
func (s *APICallStats) Snapshot(apiName string, windowMinutes int) APIStatsSnapshot {
	snap := APIStatsSnapshot{
		APIName:          apiName,
		TotalCalls:       s.Total,
		SuccessfulCalls:  s.Total - s.Failed,
		FailedCalls:      s.Failed,
		RateLimitedCalls: s.RateLimited,
		WindowMinutes:    windowMinutes,
	}
	if s.Total > 0 {
		snap.SuccessRate = float64(snap.SuccessfulCalls) / float64(s.Total)
		snap.RateLimitedPercentage = float64(s.RateLimited) / float64(s.Total)
	}
	if n := len(s.LatenciesMs); n > 0 {
		var sum float64
		for _, v := range s.LatenciesMs {
			sum += v
		}
		snap.AverageLatencyMs = sum / float64(n)
	}
	if !s.StartTime.IsZero() {
		start := s.StartTime
		snap.WindowStart = &start
	}
	return snap
}

// RateLimitAlert is raised when an API's 429 share crosses its threshold.
type RateLimitAlert struct {
	AlertID     string           `json:"alert_id"`
	APIName     string           `json:"api_name"`
	Threshold   float64          `json:"threshold"`
	Stats       APIStatsSnapshot `json:"stats"`
	RaisedAt    time.Time        `json:"raised_at"`
	Recommended string           `json:"recommended_action"`
}
