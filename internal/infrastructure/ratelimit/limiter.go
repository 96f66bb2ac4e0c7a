// Package ratelimit throttles outbound calls to external providers.
//
// Two algorithms are provided. TokenBucket coordinates callers inside one
// process; SlidingWindow keeps call timestamps in a shared KVStore so several
// processes respect one limit. Both block the caller until a slot is free and
// never reject a call because of rate.
package ratelimit

import (
	"context"
	"time"

	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/pkg/logger"
)

// Limiter delays callers so that a provider is not called faster than its
// configured rate.
type Limiter interface {
	// Wait blocks until the caller may proceed. The only error is ctx's.
	Wait(ctx context.Context) error

	// Name identifies the limiter, usually the provider name.
	Name() string

	// Algorithm returns "token_bucket" or "sliding_window".
	Algorithm() string
}

// Func is the shape of a wrappable outbound call.
type Func[T any] func(ctx context.Context, args ...any) (T, error)

// Wrap returns fn gated by l. Each invocation waits on l first; if the wait
// is cancelled fn is not called and ctx's error is returned.
func Wrap[T any](l Limiter, fn Func[T]) Func[T] {
	return func(ctx context.Context, args ...any) (T, error) {
		if err := l.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx, args...)
	}
}

// Option configures a limiter.
type Option func(*options)

type options struct {
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	logger  logger.Logger
	metrics service.Metrics
}

func defaultOptions() options {
	return options{
		now:     time.Now,
		sleep:   sleepContext,
		logger:  logger.NewNoopLogger(),
		metrics: service.NoopMetrics{},
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSleeper overrides how waits are performed.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = logger.OrNoop(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m service.Metrics) Option {
	return func(o *options) { o.metrics = service.MetricsOrNoop(m) }
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
