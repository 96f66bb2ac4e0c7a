// Package monitoring records outbound API outcomes, raises rate-limit alerts
// and carries the process logger, Prometheus metrics and tracing.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/pkg/constants"
	"github.com/turtacn/marketguard/pkg/logger"
)

const (
	cooldownValue     = "1"
	recommendedAction = "Consider increasing cache TTL or switching APIs"
)

// MonitorOptions configures an APICallMonitor.
type MonitorOptions struct {
	APIName string

	// RateLimitThreshold is the fraction of 429 responses above which an
	// alert is raised. Nil or negative selects the default of 0.05; zero
	// alerts on any 429.
	RateLimitThreshold *float64

	// WindowMinutes is the lifetime of the stats bucket. Zero selects 5.
	WindowMinutes int

	// Now overrides the clock.
	Now func() time.Time
}

// APICallMonitor aggregates call outcomes for one external API in the shared
// store and raises an alert when the provider starts rate limiting.
type APICallMonitor struct {
	apiName   string
	threshold float64
	window    int
	now       func() time.Time

	store   service.KVStore
	logger  logger.Logger
	metrics service.Metrics
	handler service.AlertHandler

	// mu serialises this process's read-modify-write of the bucket.
	mu sync.Mutex
}

// ThresholdOf returns a pointer for MonitorOptions.RateLimitThreshold.
func ThresholdOf(v float64) *float64 { return &v }

// NewAPICallMonitor creates a monitor. A nil handler logs alerts.
func NewAPICallMonitor(store service.KVStore, opts MonitorOptions, log logger.Logger, metrics service.Metrics, handler service.AlertHandler) *APICallMonitor {
	threshold := constants.DefaultRateLimitThreshold
	if opts.RateLimitThreshold != nil && *opts.RateLimitThreshold >= 0 {
		threshold = *opts.RateLimitThreshold
	}
	if opts.WindowMinutes <= 0 {
		opts.WindowMinutes = constants.DefaultWindowMinutes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log = logger.OrNoop(log).WithComponent("api_monitor").WithFields(logger.String("api", opts.APIName))
	if handler == nil {
		handler = NewLogAlertHandler(log)
	}
	return &APICallMonitor{
		apiName:   opts.APIName,
		threshold: threshold,
		window:    opts.WindowMinutes,
		now:       opts.Now,
		store:     store,
		logger:    log,
		metrics:   service.MetricsOrNoop(metrics),
		handler:   handler,
	}
}

// Name returns the monitored API name.
func (m *APICallMonitor) Name() string { return m.apiName }

// Threshold returns the alerting fraction.
func (m *APICallMonitor) Threshold() float64 { return m.threshold }

// WindowMinutes returns the bucket lifetime in minutes.
func (m *APICallMonitor) WindowMinutes() int { return m.window }

func (m *APICallMonitor) statsKey() string {
	return strings.Join([]string{constants.MonitorKeyPrefix, m.apiName, constants.MonitorCallsSuffix}, constants.KeySeparator)
}

func (m *APICallMonitor) cooldownKey() string {
	return strings.Join([]string{constants.MonitorKeyPrefix, m.apiName, constants.MonitorCooldownSuffix}, constants.KeySeparator)
}

func (m *APICallMonitor) windowTTL() time.Duration {
	return time.Duration(m.window) * time.Minute
}

// CallOption annotates a recorded call.
type CallOption func(*callInfo)

type callInfo struct {
	code       int
	hasCode    bool
	latencyMs  float64
	hasLatency bool
}

// WithResponseCode records the provider's status code. 429 counts as rate limited.
func WithResponseCode(code int) CallOption {
	return func(c *callInfo) {
		c.code = code
		c.hasCode = true
	}
}

// WithLatency records how long the call took.
func WithLatency(d time.Duration) CallOption {
	return WithLatencyMs(float64(d) / float64(time.Millisecond))
}

// WithLatencyMs records how long the call took, in milliseconds.
func WithLatencyMs(ms float64) CallOption {
	return func(c *callInfo) {
		c.latencyMs = ms
		c.hasLatency = true
	}
}

// RecordCall adds one call outcome to the current bucket. Store failures are
// logged and dropped.
func (m *APICallMonitor) RecordCall(ctx context.Context, success bool, opts ...CallOption) {
	var info callInfo
	for _, opt := range opts {
		opt(&info)
	}
	rateLimited := info.hasCode && info.code == constants.StatusTooManyRequests

	m.metrics.RecordAPICall(m.apiName, success, rateLimited,
		time.Duration(info.latencyMs*float64(time.Millisecond)))

	m.mu.Lock()
	defer m.mu.Unlock()

	stats, err := m.load(ctx)
	if err != nil {
		m.logger.Error(ctx, "Failed to record API call", err)
		return
	}

	stats.Total++
	if !success {
		stats.Failed++
	}
	if rateLimited {
		stats.RateLimited++
	}
	if info.hasLatency {
		stats.AppendLatency(info.latencyMs, constants.MaxLatencySamples)
	}

	if err := m.save(ctx, stats); err != nil {
		m.logger.Error(ctx, "Failed to record API call", err)
		return
	}

	m.checkThreshold(ctx, stats)
}

func (m *APICallMonitor) checkThreshold(ctx context.Context, stats *models.APICallStats) {
	if stats.Total < constants.MinAlertSampleSize {
		return
	}
	fraction := stats.RateLimitedFraction()
	if fraction <= m.threshold {
		return
	}

	_, cooling, err := m.store.Get(ctx, m.cooldownKey())
	if err != nil {
		m.logger.Error(ctx, "Failed to read alert cooldown", err)
		return
	}
	if cooling {
		return
	}

	snapshot := stats.Snapshot(m.apiName, m.window)
	m.logger.Warn(ctx, fmt.Sprintf("%s RATE LIMIT ALERT", strings.ToUpper(m.apiName)),
		logger.Int64("rate_limited_calls", stats.RateLimited),
		logger.Int64("total_calls", stats.Total),
		logger.String("rate_limited_percentage", fmt.Sprintf("%.1f%%", fraction*100)),
		logger.String("threshold", fmt.Sprintf("%.1f%%", m.threshold*100)),
		logger.String("action", recommendedAction),
		logger.Any("stats", snapshot),
	)

	if err := m.store.Set(ctx, m.cooldownKey(), []byte(cooldownValue), constants.AlertCooldown); err != nil {
		m.logger.Error(ctx, "Failed to set alert cooldown", err)
	}

	alert := models.RateLimitAlert{
		AlertID:     uuid.New().String(),
		APIName:     m.apiName,
		Threshold:   m.threshold,
		Stats:       snapshot,
		RaisedAt:    m.now(),
		Recommended: recommendedAction,
	}
	if err := m.handler.HandleRateLimitAlert(ctx, alert); err != nil {
		m.logger.Error(ctx, "Rate limit alert handler failed", err, logger.String("alert_id", alert.AlertID))
	}
	m.metrics.RecordRateLimitAlert(m.apiName)
}

// GetStats returns the current bucket. A missing bucket or a store failure
// yields an empty snapshot.
func (m *APICallMonitor) GetStats(ctx context.Context) models.APIStatsSnapshot {
	stats, err := m.load(ctx)
	if err != nil {
		m.logger.Error(ctx, "Failed to read API stats", err)
		return (&models.APICallStats{}).Snapshot(m.apiName, m.window)
	}
	return stats.Snapshot(m.apiName, m.window)
}

// ResetStats discards the current bucket.
func (m *APICallMonitor) ResetStats(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, m.statsKey()); err != nil {
		return fmt.Errorf("reset %s stats: %w", m.apiName, err)
	}
	m.logger.Info(ctx, "Reset API statistics")
	return nil
}

// load returns the stored bucket, or a fresh one when none exists or it
// cannot be decoded.
func (m *APICallMonitor) load(ctx context.Context) (*models.APICallStats, error) {
	raw, ok, err := m.store.Get(ctx, m.statsKey())
	if err != nil {
		return nil, err
	}
	if !ok {
		return models.NewAPICallStats(m.now()), nil
	}
	var stats models.APICallStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		m.logger.Warn(ctx, "Discarding undecodable API stats", logger.Err(err))
		return models.NewAPICallStats(m.now()), nil
	}
	return &stats, nil
}

func (m *APICallMonitor) save(ctx context.Context, stats *models.APICallStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.statsKey(), raw, m.windowTTL())
}
