package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/pkg/constants"
	"github.com/turtacn/marketguard/pkg/logger"
)

// TokenBucket is a process-local blocking token bucket. Its capacity equals
// its refill rate, so an idle bucket allows a burst of one second's worth of
// calls and then admits one call every 1/capacity seconds.
type TokenBucket struct {
	name string
	opts options

	mu         sync.Mutex
	capacity   float64   // Maximum tokens, also tokens added per second
	tokens     float64   // Current tokens, always within [0, capacity]
	lastRefill time.Time // Last time tokens were refilled
}

var _ Limiter = (*TokenBucket)(nil)

// NewTokenBucket creates a full bucket.
//
// Parameters:
//   - name: limiter name used in logs and metrics
//   - callsPerSecond: capacity and refill rate; values <= 0 become 1
//   - opts: clock, sleeper, logger and metrics overrides
//
// Returns:
//   - *TokenBucket: bucket holding callsPerSecond tokens
func NewTokenBucket(name string, callsPerSecond float64, opts ...Option) *TokenBucket {
	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}
	o := applyOptions(opts)
	o.logger = o.logger.WithComponent("ratelimit").WithFields(logger.String("limiter", name))

	return &TokenBucket{
		name:       name,
		opts:       o,
		capacity:   callsPerSecond,
		tokens:     callsPerSecond,
		lastRefill: o.now(),
	}
}

func (tb *TokenBucket) Name() string      { return tb.name }
func (tb *TokenBucket) Algorithm() string { return constants.AlgorithmTokenBucket }

// Wait consumes one token, sleeping first when fewer than one is available.
// The lock is held across the sleep so concurrent callers queue in order and
// each sees the refill left by the one before it.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= 1 {
		tb.tokens--
		return nil
	}

	wait := time.Duration((1 - tb.tokens) / tb.capacity * float64(time.Second))
	tb.opts.logger.Debug(ctx, "Rate limit: waiting", logger.Duration("wait", wait))
	if err := tb.opts.sleep(ctx, wait); err != nil {
		return err
	}
	tb.opts.metrics.RecordLimiterWait(tb.name, constants.AlgorithmTokenBucket, wait)

	// The token earned while sleeping belongs to this caller.
	tb.tokens = 0
	tb.lastRefill = tb.opts.now()
	return nil
}

// refill adds tokens for the time elapsed since the last refill.
// Must be called with lock held.
func (tb *TokenBucket) refill() {
	now := tb.opts.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	tb.tokens += elapsed * tb.capacity
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Available returns the tokens available right now.
func (tb *TokenBucket) Available() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

// Stats returns a snapshot of the bucket.
func (tb *TokenBucket) Stats() models.TokenBucketStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return models.TokenBucketStats{
		Name:       tb.name,
		Capacity:   tb.capacity,
		Tokens:     tb.tokens,
		LastRefill: tb.lastRefill,
	}
}

// Reset refills the bucket to capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.opts.now()
}
