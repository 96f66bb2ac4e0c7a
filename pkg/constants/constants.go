// Package constants defines system-wide constants for marketguard.
// Storage key layouts, provider names and error codes live here so every
// component derives them the same way.
package constants

import "time"

// ================================================================================
// Provider Names
// ================================================================================

const (
	// ProviderYFinance is the Yahoo-Finance-like quote provider.
	ProviderYFinance = "yfinance"

	// ProviderFinnhub is the Finnhub-like news and quote provider.
	ProviderFinnhub = "finnhub"
)

// ================================================================================
// Storage Key Layout
// ================================================================================

const (
	// RateLimitKeyPrefix prefixes sliding-window state: rate_limit:<limiter>.
	RateLimitKeyPrefix = "rate_limit"

	// CacheKeyPrefix prefixes memoized results: cache:<prefix>:<digest>.
	CacheKeyPrefix = "cache"

	// MonitorKeyPrefix prefixes monitor buckets: api_monitor:<api>:calls.
	MonitorKeyPrefix = "api_monitor"

	// MonitorCallsSuffix names the per-API call bucket.
	MonitorCallsSuffix = "calls"

	// MonitorCooldownSuffix names the per-API alert cooldown flag.
	MonitorCooldownSuffix = "alert_cooldown"

	// RateLimiterProbeKey is written and read back at startup to confirm the
	// shared store is usable.
	RateLimiterProbeKey = "_rate_limiter_probe"

	// KeySeparator joins key segments.
	KeySeparator = ":"
)

// ================================================================================
// Cache Prefixes
// ================================================================================

const (
	CachePrefixStockInfo     = "stock_info"
	CachePrefixMarketContext = "market_context"
	CachePrefixFinnhubNews   = "finnhub_news"
	CachePrefixVWAP          = "vwap"
)

// ================================================================================
// Monitor Defaults
// ================================================================================

const (
	// DefaultRateLimitThreshold is the fraction of 429 responses that raises an alert.
	DefaultRateLimitThreshold = 0.05

	// DefaultWindowMinutes is the lifetime of a monitor bucket.
	DefaultWindowMinutes = 5

	// AlertCooldown suppresses repeated alerts for the same API.
	AlertCooldown = 5 * time.Minute

	// MinAlertSampleSize is the call count below which alerts are never evaluated.
	MinAlertSampleSize = 20

	// MaxLatencySamples bounds the latency list kept per bucket.
	MaxLatencySamples = 100

	// StatusTooManyRequests is the response code counted as rate limited.
	StatusTooManyRequests = 429
)

// ================================================================================
// Rate Limiter Algorithms and Modes
// ================================================================================

const (
	AlgorithmTokenBucket   = "token_bucket"
	AlgorithmSlidingWindow = "sliding_window"

	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// ================================================================================
// Error Codes
// ================================================================================

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

const (
	ErrCodeInvalidRequest   ErrorCode = "invalid_request"
	ErrCodeNotFound         ErrorCode = "not_found"
	ErrCodeStoreUnavailable ErrorCode = "store_unavailable"
	ErrCodeUpstream         ErrorCode = "upstream_error"
	ErrCodeRateLimited      ErrorCode = "rate_limited"
	ErrCodeConfiguration    ErrorCode = "configuration_error"
	ErrCodeInternal         ErrorCode = "internal_error"
)

// ================================================================================
// Log Levels
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"
)

// ================================================================================
// HTTP Headers
// ================================================================================

const (
	HeaderRequestID = "X-Request-ID"
)
