package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/marketguard/internal/domain/service"
)

// Outcome label values for marketguard_api_calls_total.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeRateLimited = "rate_limited"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	LimiterWaits    *prometheus.CounterVec
	LimiterWaitTime *prometheus.HistogramVec
	LimiterFailOpen *prometheus.CounterVec
	CacheRequests   *prometheus.CounterVec
	APICalls        *prometheus.CounterVec
	APICallLatency  *prometheus.HistogramVec
	RateLimitAlerts *prometheus.CounterVec
}

var _ service.Metrics = (*Metrics)(nil)

// NewMetrics creates the metrics and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		LimiterWaits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketguard_rate_limiter_waits_total",
				Help: "Total number of callers delayed by a rate limiter.",
			},
			[]string{"limiter", "algorithm"},
		),
		LimiterWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketguard_rate_limiter_wait_seconds",
				Help:    "Time callers spent waiting on a rate limiter.",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5, 10},
			},
			[]string{"limiter", "algorithm"},
		),
		LimiterFailOpen: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketguard_rate_limiter_fail_open_total",
				Help: "Total number of calls admitted without throttling because the shared store failed.",
			},
			[]string{"limiter"},
		),
		CacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketguard_cache_requests_total",
				Help: "Total number of result cache lookups by result.",
			},
			[]string{"prefix", "result"},
		),
		APICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketguard_api_calls_total",
				Help: "Total number of outbound API calls by outcome.",
			},
			[]string{"api", "outcome"},
		),
		APICallLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketguard_api_call_latency_seconds",
				Help:    "Latency of outbound API calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),
		RateLimitAlerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketguard_api_rate_limit_alerts_total",
				Help: "Total number of rate-limit alerts raised.",
			},
			[]string{"api"},
		),
	}
}

func (m *Metrics) RecordLimiterWait(limiter, algorithm string, wait time.Duration) {
	m.LimiterWaits.WithLabelValues(limiter, algorithm).Inc()
	m.LimiterWaitTime.WithLabelValues(limiter, algorithm).Observe(wait.Seconds())
}

func (m *Metrics) RecordLimiterFailOpen(limiter string) {
	m.LimiterFailOpen.WithLabelValues(limiter).Inc()
}

func (m *Metrics) RecordCacheAccess(prefix, result string) {
	m.CacheRequests.WithLabelValues(prefix, result).Inc()
}

// RecordAPICall counts a 429 under rate_limited in addition to failure.
func (m *Metrics) RecordAPICall(api string, success bool, rateLimited bool, latency time.Duration) {
	if success {
		m.APICalls.WithLabelValues(api, OutcomeSuccess).Inc()
	} else {
		m.APICalls.WithLabelValues(api, OutcomeFailure).Inc()
	}
	if rateLimited {
		m.APICalls.WithLabelValues(api, OutcomeRateLimited).Inc()
	}
	if latency > 0 {
		m.APICallLatency.WithLabelValues(api).Observe(latency.Seconds())
	}
}

func (m *Metrics) RecordRateLimitAlert(api string) {
	m.RateLimitAlerts.WithLabelValues(api).Inc()
}
