// Package service defines the interfaces the resilience components depend on.
// Concrete implementations live under internal/infrastructure.
package service

import (
	"context"
	"errors"
	"time"
)

// ErrNotSupported is returned by capability helpers when a store does not
// implement an optional operation.
var ErrNotSupported = errors.New("operation not supported by store")

//go:generate mockery --name KVStore --output mocks --outpkg mocks
// KVStore is the shared key-value namespace that holds cache entries, limiter
// windows, monitor buckets and alert cooldowns. Values are opaque bytes;
// callers own their encoding.
type KVStore interface {
	// Get returns the value and true, or nil and false when the key is absent
	// or expired. err is non-nil only when the store itself failed.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A ttl of zero or less means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// PatternDeleter is implemented by stores that can delete by glob pattern.
type PatternDeleter interface {
	// DeletePattern removes every key matching pattern (glob syntax, e.g.
	// "cache:stock_info:*") and returns how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

// StatsReporter is implemented by stores that expose aggregate statistics.
type StatsReporter interface {
	Stats(ctx context.Context) (*StoreStats, error)
}

// Pinger is implemented by stores with a liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreStats is a backend-agnostic summary of store health.
type StoreStats struct {
	Backend string `json:"backend" yaml:"backend"`
	Keys    int64  `json:"keys" yaml:"keys"`
	Hits    int64  `json:"hits" yaml:"hits"`
	Misses  int64  `json:"misses" yaml:"misses"`
	// HitRate is Hits/(Hits+Misses), 0 when neither is known.
	HitRate float64 `json:"hit_rate" yaml:"hit_rate"`
}

// Capabilities records which optional interfaces a store implements. It is
// resolved once when a component is constructed.
type Capabilities struct {
	PatternDeleter PatternDeleter
	StatsReporter  StatsReporter
}

// ResolveCapabilities inspects store for optional interfaces.
func ResolveCapabilities(store KVStore) Capabilities {
	var caps Capabilities
	if pd, ok := store.(PatternDeleter); ok {
		caps.PatternDeleter = pd
	}
	if sr, ok := store.(StatsReporter); ok {
		caps.StatsReporter = sr
	}
	return caps
}

// CanDeletePattern reports whether pattern deletion is available.
func (c Capabilities) CanDeletePattern() bool { return c.PatternDeleter != nil }

// CanReportStats reports whether aggregate stats are available.
func (c Capabilities) CanReportStats() bool { return c.StatsReporter != nil }
