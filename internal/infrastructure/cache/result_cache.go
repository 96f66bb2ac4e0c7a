// Package cache memoizes the results of outbound calls in a KVStore.
//
// A ResultCache is bound to one prefix and TTL. Keys are derived from the
// call name and its arguments, so identical calls made by any process sharing
// the store are served from a single entry until it expires.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/internal/infrastructure/ratelimit"
	"github.com/turtacn/marketguard/pkg/logger"
)

// Cache access results reported to Metrics.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultBypass = "bypass"
	ResultError  = "error"
)

// Options configures a ResultCache.
type Options struct {
	// TTL bounds each entry's life. Zero or negative disables storing.
	TTL    time.Duration
	Prefix string
}

// Info describes a cache's configuration.
type Info struct {
	Prefix string        `json:"prefix" yaml:"prefix"`
	TTL    time.Duration `json:"ttl" yaml:"ttl"`
}

// Invocation identifies one call: the function name and its arguments.
type Invocation struct {
	Name string
	Args []any
}

// ResultCache memoizes successful results. Failures are never stored.
type ResultCache struct {
	store   service.KVStore
	caps    service.Capabilities
	opts    Options
	logger  logger.Logger
	metrics service.Metrics
	group   singleflight.Group
}

// New creates a ResultCache over store.
func New(store service.KVStore, opts Options, log logger.Logger, metrics service.Metrics) *ResultCache {
	return &ResultCache{
		store:   store,
		caps:    service.ResolveCapabilities(store),
		opts:    opts,
		logger:  logger.OrNoop(log).WithComponent("cache").WithFields(logger.String("prefix", opts.Prefix)),
		metrics: service.MetricsOrNoop(metrics),
	}
}

// Prefix returns the namespace this cache stores under.
func (c *ResultCache) Prefix() string { return c.opts.Prefix }

// Info returns the cache configuration.
func (c *ResultCache) Info() Info {
	return Info{Prefix: c.opts.Prefix, TTL: c.opts.TTL}
}

// Do returns the cached result of inv, or calls load and caches its result.
// Concurrent misses on the same key share one load. A nil cache always calls
// load.
func Do[T any](ctx context.Context, c *ResultCache, inv Invocation, load func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	key, err := DeriveKey(c.opts.Prefix, inv.Name, inv.Args...)
	if err != nil {
		c.logger.Warn(ctx, "Cannot derive cache key, calling without cache",
			logger.String("function", inv.Name), logger.Err(err))
		c.metrics.RecordCacheAccess(c.opts.Prefix, ResultBypass)
		return load(ctx)
	}

	cached, found, storeOK := lookup[T](ctx, c, key)
	if found {
		c.metrics.RecordCacheAccess(c.opts.Prefix, ResultHit)
		c.logger.Debug(ctx, "Cache hit", logger.String("function", inv.Name), logger.String("key", key))
		return cached, nil
	}
	if storeOK {
		c.metrics.RecordCacheAccess(c.opts.Prefix, ResultMiss)
	} else {
		c.metrics.RecordCacheAccess(c.opts.Prefix, ResultError)
	}
	c.logger.Debug(ctx, "Cache miss", logger.String("function", inv.Name), logger.String("key", key))

	// The shared load outlives any one caller's cancellation; each caller
	// still stops waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if storeOK {
			c.save(loadCtx, key, v)
		}
		return v, nil
	})
	var res interface{}
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			var zero T
			return zero, r.Err
		}
		res = r.Val
	}
	v, ok := res.(T)
	if !ok {
		// Shared flight produced a different type under the same key, or a
		// typed nil; the caller's own load is authoritative.
		return load(ctx)
	}
	return v, nil
}

// Wrap returns fn memoized by c under name. It composes with ratelimit.Wrap
// in either order.
func Wrap[T any](c *ResultCache, name string, fn ratelimit.Func[T]) ratelimit.Func[T] {
	return func(ctx context.Context, args ...any) (T, error) {
		return Do(ctx, c, Invocation{Name: name, Args: args}, func(ctx context.Context) (T, error) {
			return fn(ctx, args...)
		})
	}
}

// lookup reports the decoded value and whether it was found. storeOK is false
// when the store itself failed.
func lookup[T any](ctx context.Context, c *ResultCache, key string) (value T, found bool, storeOK bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "Cache read failed", logger.String("key", key), logger.Err(err))
		return value, false, false
	}
	if !ok {
		return value, false, true
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Warn(ctx, "Discarding undecodable cache entry", logger.String("key", key), logger.Err(err))
		var zero T
		return zero, false, true
	}
	return value, true, true
}

func (c *ResultCache) save(ctx context.Context, key string, v any) {
	if c.opts.TTL <= 0 {
		c.logger.Debug(ctx, "Cache TTL not positive, result not stored", logger.String("key", key))
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn(ctx, "Result is not serialisable, not cached", logger.String("key", key), logger.Err(err))
		return
	}
	if err := c.store.Set(ctx, key, raw, c.opts.TTL); err != nil {
		c.logger.Warn(ctx, "Cache write failed", logger.String("key", key), logger.Err(err))
		return
	}
	c.logger.Debug(ctx, "Cached result", logger.String("key", key), logger.Duration("ttl", c.opts.TTL))
}

// Invalidate removes the cached result of name called with args.
func (c *ResultCache) Invalidate(ctx context.Context, name string, args ...any) error {
	key, err := DeriveKey(c.opts.Prefix, name, args...)
	if err != nil {
		return err
	}
	if err := c.store.Delete(ctx, key); err != nil {
		return err
	}
	c.logger.Info(ctx, "Invalidated cache entry", logger.String("function", name), logger.String("key", key))
	return nil
}

// ClearPrefix deletes every entry stored under prefix, or under this cache's
// own prefix when prefix is empty. ok is false when the store cannot delete
// by pattern.
func (c *ResultCache) ClearPrefix(ctx context.Context, prefix string) (deleted int64, ok bool, err error) {
	if !c.caps.CanDeletePattern() {
		c.logger.Warn(ctx, "Store does not support pattern deletion, prefix not cleared")
		return 0, false, nil
	}
	if prefix == "" {
		prefix = c.opts.Prefix
	}
	n, err := c.caps.PatternDeleter.DeletePattern(ctx, PrefixPattern(prefix))
	if err != nil {
		return 0, true, err
	}
	c.logger.Info(ctx, "Cleared cache prefix", logger.String("cleared_prefix", prefix), logger.Int64("deleted", n))
	return n, true, nil
}

// Stats returns the store statistics. ok is false when the store does not
// report any.
func (c *ResultCache) Stats(ctx context.Context) (stats *service.StoreStats, ok bool, err error) {
	if !c.caps.CanReportStats() {
		return nil, false, nil
	}
	stats, err = c.caps.StatsReporter.Stats(ctx)
	if err != nil {
		return nil, true, err
	}
	return stats, true, nil
}
