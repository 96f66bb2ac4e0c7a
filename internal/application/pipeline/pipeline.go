// Package pipeline composes rate limiting, result caching and outcome
// monitoring around a unit of outbound work.
//
// A call runs in this order: limiter wait, cache lookup, the call itself,
// monitor record, cache store. Every stage is optional.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/marketguard/internal/infrastructure/cache"
	"github.com/turtacn/marketguard/internal/infrastructure/monitoring"
	"github.com/turtacn/marketguard/internal/infrastructure/ratelimit"
	"github.com/turtacn/marketguard/pkg/logger"
)

// StatusCoder is implemented by errors that carry a provider response code.
type StatusCoder interface {
	StatusCode() int
}

// Pipeline is one configured call-site: a name plus the limiter, cache and
// monitor it shares with other call-sites for the same provider.
type Pipeline struct {
	name    string
	limiter ratelimit.Limiter
	cache   *cache.ResultCache
	monitor *monitoring.APICallMonitor
	tracer  *monitoring.TracingManager
	logger  logger.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLimiter throttles every call through l.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// WithCache memoizes successful results in c.
func WithCache(c *cache.ResultCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithMonitor records each real call on m.
func WithMonitor(m *monitoring.APICallMonitor) Option {
	return func(p *Pipeline) { p.monitor = m }
}

// WithTracer opens a span per call.
func WithTracer(t *monitoring.TracingManager) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.logger = logger.OrNoop(l) }
}

// New creates a pipeline called name.
func New(name string, opts ...Option) *Pipeline {
	p := &Pipeline{name: name, logger: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("pipeline").WithFields(logger.String("pipeline", name))
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Limiter returns the pipeline's limiter, or nil.
func (p *Pipeline) Limiter() ratelimit.Limiter { return p.limiter }

// Cache returns the pipeline's cache, or nil.
func (p *Pipeline) Cache() *cache.ResultCache { return p.cache }

// Monitor returns the pipeline's monitor, or nil.
func (p *Pipeline) Monitor() *monitoring.APICallMonitor { return p.monitor }

// Run executes fn for inv through p. Errors from fn are returned unchanged
// and never cached; the only other error is ctx's, from the limiter wait.
func Run[T any](ctx context.Context, p *Pipeline, inv cache.Invocation, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.tracer != nil {
		var span trace.Span
		ctx, span = startSpan(ctx, p, inv)
		defer span.End()
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
	}

	v, err := cache.Do(ctx, p.cache, inv, func(ctx context.Context) (T, error) {
		start := time.Now()
		v, err := fn(ctx)
		p.record(ctx, err, time.Since(start))
		return v, err
	})
	if err != nil && p.tracer != nil {
		p.tracer.RecordError(ctx, err)
	}
	return v, err
}

// Wrap returns fn routed through p under name, in the same shape as
// ratelimit.Wrap and cache.Wrap.
func Wrap[T any](p *Pipeline, name string, fn ratelimit.Func[T]) ratelimit.Func[T] {
	return func(ctx context.Context, args ...any) (T, error) {
		return Run(ctx, p, cache.Invocation{Name: name, Args: args}, func(ctx context.Context) (T, error) {
			return fn(ctx, args...)
		})
	}
}

func (p *Pipeline) record(ctx context.Context, err error, latency time.Duration) {
	if p.monitor == nil {
		return
	}
	opts := []monitoring.CallOption{monitoring.WithLatency(latency)}
	if err == nil {
		p.monitor.RecordCall(ctx, true, append(opts, monitoring.WithResponseCode(200))...)
		return
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		opts = append(opts, monitoring.WithResponseCode(sc.StatusCode()))
	}
	p.logger.Debug(ctx, "Outbound call failed", logger.Err(err))
	p.monitor.RecordCall(ctx, false, opts...)
}

func startSpan(ctx context.Context, p *Pipeline, inv cache.Invocation) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("pipeline.name", p.name),
		attribute.String("pipeline.function", inv.Name),
	}
	if p.limiter != nil {
		attrs = append(attrs, attribute.String("ratelimit.algorithm", p.limiter.Algorithm()))
	}
	return p.tracer.StartSpan(ctx, "pipeline."+p.name, attrs...)
}
