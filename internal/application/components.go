// Package application assembles the resilience layer from configuration.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/turtacn/marketguard/internal/application/pipeline"
	appservice "github.com/turtacn/marketguard/internal/application/service"
	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/internal/infrastructure/cache"
	"github.com/turtacn/marketguard/internal/infrastructure/marketdata"
	"github.com/turtacn/marketguard/internal/infrastructure/monitoring"
	"github.com/turtacn/marketguard/internal/infrastructure/persistence/memory"
	redisstore "github.com/turtacn/marketguard/internal/infrastructure/persistence/redis"
	"github.com/turtacn/marketguard/internal/infrastructure/ratelimit"
	"github.com/turtacn/marketguard/pkg/constants"
	"github.com/turtacn/marketguard/pkg/logger"
)

// Default cache lifetimes per call-site, used when config omits a prefix.
var defaultTTLs = map[string]time.Duration{
	constants.CachePrefixStockInfo:     5 * time.Minute,
	constants.CachePrefixMarketContext: time.Minute,
	constants.CachePrefixFinnhubNews:   15 * time.Minute,
	constants.CachePrefixVWAP:          2 * time.Minute,
}

const memoryCleanupInterval = time.Minute

// Store is the shared KV store together with the Redis connection behind it,
// if any.
type Store struct {
	service.KVStore
	Conn *redisstore.Connection
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	if s.Conn == nil {
		return nil
	}
	return s.Conn.Close()
}

// OpenStore connects to Redis when enabled. A connection failure falls back
// to the process-local memory store so the service still runs, with the
// limiter factory then selecting the token bucket.
func OpenStore(ctx context.Context, cfg config.RedisConfig, log logger.Logger) *Store {
	log = logger.OrNoop(log).WithComponent("store")
	if !cfg.Enabled {
		log.Info(ctx, "Redis disabled, using in-memory store")
		return &Store{KVStore: memory.NewStore(memoryCleanupInterval)}
	}
	conn, err := redisstore.NewConnection(ctx, cfg, log)
	if err != nil {
		log.Warn(ctx, "Redis unavailable, using in-memory store", logger.Err(err))
		return &Store{KVStore: memory.NewStore(memoryCleanupInterval)}
	}
	return &Store{KVStore: redisstore.NewStore(conn.Client()), Conn: conn}
}

// Components is the assembled resilience layer.
type Components struct {
	Store     service.KVStore
	Limiters  *ratelimit.Factory
	Monitors  *monitoring.Registry
	Caches    []*cache.ResultCache
	Pipelines appservice.Pipelines

	closers []func() error
}

// Deps are the optional collaborators shared by every component.
type Deps struct {
	Logger  logger.Logger
	Metrics service.Metrics
	Tracer  *monitoring.TracingManager
	// Alerts overrides the alert handler built from config.
	Alerts service.AlertHandler
}

// Build wires limiters, monitors, caches and pipelines over store.
func Build(ctx context.Context, cfg *config.Config, store service.KVStore, deps Deps) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("application: nil config")
	}
	log := logger.OrNoop(deps.Logger)
	c := &Components{Store: store}

	providers := make(map[string]ratelimit.ProviderLimit, len(cfg.RateLimit.Providers))
	for name, p := range cfg.RateLimit.Providers {
		providers[name] = ratelimit.ProviderLimit{CallsPerSecond: p.CallsPerSecond, Window: p.Window}
	}
	c.Limiters = ratelimit.NewFactory(ctx, ratelimit.FactoryConfig{Mode: cfg.App.Mode, Providers: providers}, store,
		ratelimit.WithLogger(log), ratelimit.WithMetrics(deps.Metrics))

	alerts := deps.Alerts
	if alerts == nil {
		alerts = c.alertHandler(cfg, log)
	}

	c.Monitors = monitoring.NewRegistry()
	for _, api := range []string{constants.ProviderYFinance, constants.ProviderFinnhub} {
		c.Monitors.Register(monitoring.NewAPICallMonitor(store, monitoring.MonitorOptions{
			APIName:            api,
			RateLimitThreshold: monitoring.ThresholdOf(cfg.Monitor.RateLimitThreshold),
			WindowMinutes:      cfg.Monitor.WindowMinutes,
		}, log, deps.Metrics, alerts))
	}

	caches := make(map[string]*cache.ResultCache, len(defaultTTLs))
	for _, prefix := range []string{
		constants.CachePrefixStockInfo,
		constants.CachePrefixMarketContext,
		constants.CachePrefixFinnhubNews,
		constants.CachePrefixVWAP,
	} {
		rc := cache.New(store, cache.Options{
			TTL:    cfg.Cache.TTL(prefix, defaultTTLs[prefix]),
			Prefix: prefix,
		}, log, deps.Metrics)
		caches[prefix] = rc
		c.Caches = append(c.Caches, rc)
	}

	yfLimiter, err := c.Limiters.Provider(constants.ProviderYFinance)
	if err != nil {
		return nil, fmt.Errorf("yfinance limiter: %w", err)
	}
	fhLimiter, err := c.Limiters.Provider(constants.ProviderFinnhub)
	if err != nil {
		return nil, fmt.Errorf("finnhub limiter: %w", err)
	}
	yfMonitor, _ := c.Monitors.Get(constants.ProviderYFinance)
	fhMonitor, _ := c.Monitors.Get(constants.ProviderFinnhub)

	common := []pipeline.Option{pipeline.WithTracer(deps.Tracer), pipeline.WithLogger(log)}
	build := func(prefix string, l ratelimit.Limiter, m *monitoring.APICallMonitor) *pipeline.Pipeline {
		opts := append([]pipeline.Option{
			pipeline.WithLimiter(l),
			pipeline.WithCache(caches[prefix]),
			pipeline.WithMonitor(m),
		}, common...)
		return pipeline.New(prefix, opts...)
	}
	c.Pipelines = appservice.Pipelines{
		StockInfo:     build(constants.CachePrefixStockInfo, yfLimiter, yfMonitor),
		MarketContext: build(constants.CachePrefixMarketContext, yfLimiter, yfMonitor),
		FinnhubNews:   build(constants.CachePrefixFinnhubNews, fhLimiter, fhMonitor),
	}
	return c, nil
}

func (c *Components) alertHandler(cfg *config.Config, log logger.Logger) service.AlertHandler {
	handlers := monitoring.MultiAlertHandler{monitoring.NewLogAlertHandler(log)}
	if cfg.Alerts.Kafka.Enabled {
		k := monitoring.NewKafkaAlertHandler(cfg.Alerts.Kafka, log)
		c.closers = append(c.closers, k.Close)
		handlers = append(handlers, k)
	}
	return handlers
}

// MarketDataService builds the provider clients and the service over the
// component pipelines.
func (c *Components) MarketDataService(cfg config.ProvidersConfig, log logger.Logger) appservice.MarketDataService {
	quotes := marketdata.NewQuoteClient(cfg.YFinance, nil, log)
	news := marketdata.NewNewsClient(cfg.Finnhub, nil, log)
	return appservice.NewMarketDataService(quotes, news, c.Pipelines, log)
}

// Cache returns the cache configured for prefix.
func (c *Components) Cache(prefix string) (*cache.ResultCache, bool) {
	for _, rc := range c.Caches {
		if rc.Prefix() == prefix {
			return rc, true
		}
	}
	return nil, false
}

// Close releases alert writers.
func (c *Components) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
