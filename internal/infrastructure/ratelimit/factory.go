package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/pkg/constants"
	"github.com/turtacn/marketguard/pkg/errors"
	"github.com/turtacn/marketguard/pkg/logger"
)

const probeValue = "probe"

// ProviderLimit configures one named limiter.
type ProviderLimit struct {
	CallsPerSecond float64
	Window         time.Duration
}

// FactoryConfig selects and parameterises the limiters.
type FactoryConfig struct {
	// Mode "development" always selects the token bucket.
	Mode      string
	Providers map[string]ProviderLimit
}

// Factory builds one limiter per provider with the algorithm chosen at
// construction. Repeated lookups return the same instance.
type Factory struct {
	algorithm string
	store     service.KVStore
	providers map[string]ProviderLimit
	opts      []Option
	logger    logger.Logger

	mu       sync.Mutex
	limiters map[string]Limiter
}

// NewFactory selects the algorithm: token bucket in development mode or when
// store is nil or fails the probe, sliding window otherwise.
func NewFactory(ctx context.Context, cfg FactoryConfig, store service.KVStore, opts ...Option) *Factory {
	o := applyOptions(opts)
	log := o.logger.WithComponent("ratelimit")

	algorithm := constants.AlgorithmTokenBucket
	switch {
	case cfg.Mode == constants.ModeDevelopment:
		log.Info(ctx, "Using in-memory token bucket limiter (development mode)")
	case store == nil:
		log.Info(ctx, "Using in-memory token bucket limiter (no shared store)")
	default:
		if err := Probe(ctx, store); err != nil {
			log.Warn(ctx, "Shared store not available, falling back to in-memory token bucket limiter", logger.Err(err))
		} else {
			algorithm = constants.AlgorithmSlidingWindow
			log.Info(ctx, "Using shared sliding-window limiter")
		}
	}

	providers := make(map[string]ProviderLimit, len(cfg.Providers))
	for name, p := range cfg.Providers {
		providers[name] = p
	}

	f := &Factory{
		algorithm: algorithm,
		store:     store,
		providers: providers,
		opts:      opts,
		logger:    log,
		limiters:  make(map[string]Limiter),
	}

	for _, name := range f.ProviderNames() {
		p := providers[name]
		log.Info(ctx, "Rate limiter configured",
			logger.String("limiter", name),
			logger.String("algorithm", algorithm),
			logger.Float64("calls_per_second", p.CallsPerSecond),
			logger.Duration("window", p.Window),
		)
	}
	return f
}

// Probe writes a short-lived key, reads it back and deletes it.
func Probe(ctx context.Context, store service.KVStore) error {
	if err := store.Set(ctx, constants.RateLimiterProbeKey, []byte(probeValue), time.Second); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}
	got, ok, err := store.Get(ctx, constants.RateLimiterProbeKey)
	if err != nil {
		return fmt.Errorf("probe read: %w", err)
	}
	if !ok || string(got) != probeValue {
		return fmt.Errorf("probe read back %q, want %q", got, probeValue)
	}
	if err := store.Delete(ctx, constants.RateLimiterProbeKey); err != nil {
		return fmt.Errorf("probe delete: %w", err)
	}
	return nil
}

// Algorithm returns the algorithm every limiter from f uses.
func (f *Factory) Algorithm() string { return f.algorithm }

// ProviderNames returns the configured provider names, sorted.
func (f *Factory) ProviderNames() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider returns the limiter configured for name.
func (f *Factory) Provider(name string) (Limiter, error) {
	p, ok := f.providers[name]
	if !ok {
		return nil, errors.ErrNotFound(fmt.Sprintf("no rate limit configured for provider %q", name))
	}
	return f.For(name, p.CallsPerSecond, p.Window), nil
}

// For returns the limiter called name, creating it on first use.
func (f *Factory) For(name string, callsPerSecond float64, window time.Duration) Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.limiters[name]; ok {
		return l
	}

	var l Limiter
	if f.algorithm == constants.AlgorithmSlidingWindow {
		l = NewSlidingWindow(name, callsPerSecond, window, f.store, f.opts...)
	} else {
		l = NewTokenBucket(name, callsPerSecond, f.opts...)
	}
	f.limiters[name] = l
	return l
}
