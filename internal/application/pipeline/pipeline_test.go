package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/turtacn/marketguard/internal/infrastructure/cache"
	"github.com/turtacn/marketguard/internal/infrastructure/monitoring"
	"github.com/turtacn/marketguard/internal/infrastructure/persistence/memory"
	"github.com/turtacn/marketguard/pkg/constants"
)

type countingLimiter struct {
	waits atomic.Int32
	err   error
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits.Add(1)
	return l.err
}

func (l *countingLimiter) Name() string      { return "test" }
func (l *countingLimiter) Algorithm() string { return constants.AlgorithmTokenBucket }

type statusErr int

func (e statusErr) Error() string   { return "upstream failed" }
func (e statusErr) StatusCode() int { return int(e) }

func newPipeline(t *testing.T, limiter *countingLimiter) (*Pipeline, *monitoring.APICallMonitor) {
	t.Helper()
	store := memory.NewStore(time.Minute)
	mon := monitoring.NewAPICallMonitor(store, monitoring.MonitorOptions{APIName: "yfinance"}, nil, nil, nil)
	c := cache.New(store, cache.Options{TTL: time.Minute, Prefix: constants.CachePrefixStockInfo}, nil, nil)
	return New("stock_info", WithLimiter(limiter), WithCache(c), WithMonitor(mon)), mon
}

func TestRun_CacheHitSkipsCallAndMonitor(t *testing.T) {
	limiter := &countingLimiter{}
	p, mon := newPipeline(t, limiter)
	ctx := context.Background()

	var calls int
	fetch := func(context.Context) (float64, error) {
		calls++
		return 189.5, nil
	}
	inv := cache.Invocation{Name: "get_quote", Args: []any{"AAPL"}}

	v1, err := Run(ctx, p, inv, fetch)
	require.NoError(t, err)
	v2, err := Run(ctx, p, inv, fetch)
	require.NoError(t, err)

	assert.Equal(t, 189.5, v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int32(2), limiter.waits.Load(), "limiter runs before the cache lookup")

	stats := mon.GetStats(ctx)
	assert.Equal(t, int64(1), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.SuccessfulCalls)
}

func TestRun_ErrorPropagatesAndRecordsStatus(t *testing.T) {
	p, mon := newPipeline(t, &countingLimiter{})
	ctx := context.Background()

	var calls int
	fetch := func(context.Context) (float64, error) {
		calls++
		return 0, statusErr(429)
	}
	inv := cache.Invocation{Name: "get_quote", Args: []any{"MSFT"}}

	_, err := Run(ctx, p, inv, fetch)
	var se statusErr
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 429, se.StatusCode())

	_, err = Run(ctx, p, inv, fetch)
	require.Error(t, err)
	assert.Equal(t, 2, calls, "failures are never cached")

	stats := mon.GetStats(ctx)
	assert.Equal(t, int64(2), stats.TotalCalls)
	assert.Equal(t, int64(2), stats.FailedCalls)
	assert.Equal(t, int64(2), stats.RateLimitedCalls)
}

func TestRun_ErrorWithoutStatusCode(t *testing.T) {
	p, mon := newPipeline(t, &countingLimiter{})
	ctx := context.Background()

	_, err := Run(ctx, p, cache.Invocation{Name: "get_quote", Args: []any{"X"}}, func(context.Context) (int, error) {
		return 0, errors.New("connection refused")
	})
	require.EqualError(t, err, "connection refused")

	stats := mon.GetStats(ctx)
	assert.Equal(t, int64(1), stats.FailedCalls)
	assert.Equal(t, int64(0), stats.RateLimitedCalls)
}

func TestRun_LimiterCancelled(t *testing.T) {
	limiter := &countingLimiter{err: context.Canceled}
	p, mon := newPipeline(t, limiter)

	called := false
	_, err := Run(context.Background(), p, cache.Invocation{Name: "get_quote"}, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, int64(0), mon.GetStats(context.Background()).TotalCalls)
}

func TestRun_BarePipeline(t *testing.T) {
	p := New("bare")
	var calls int
	for i := 0; i < 3; i++ {
		v, err := Run(context.Background(), p, cache.Invocation{Name: "f"}, func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	}
	assert.Equal(t, 3, calls)
	assert.Nil(t, p.Limiter())
	assert.Nil(t, p.Cache())
	assert.Nil(t, p.Monitor())
}

func TestWrap_ArgumentsFormTheKey(t *testing.T) {
	p, _ := newPipeline(t, &countingLimiter{})
	var calls int
	add := Wrap(p, "add", func(_ context.Context, args ...any) (int, error) {
		calls++
		return args[0].(int) + args[1].(int), nil
	})
	ctx := context.Background()

	v, err := add(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	v, err = add(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	_, err = add(ctx, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRun_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tm := monitoring.NewTracingManagerWithProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)), nil)
	p := New("finnhub_news", WithTracer(tm), WithLimiter(&countingLimiter{}))

	_, err := Run(context.Background(), p, cache.Invocation{Name: "company_news"}, func(context.Context) (int, error) {
		return 0, statusErr(503)
	})
	require.Error(t, err)

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "pipeline.finnhub_news", ended[0].Name())
	assert.Len(t, ended[0].Events(), 1)
}
