package application

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/infrastructure/persistence/memory"
	redisstore "github.com/turtacn/marketguard/internal/infrastructure/persistence/redis"
	"github.com/turtacn/marketguard/pkg/constants"
)

type nopAlerts struct{}

func (nopAlerts) HandleRateLimitAlert(context.Context, models.RateLimitAlert) error { return nil }

func testConfig(mode string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "marketguard", Mode: mode},
		RateLimit: config.RateLimitConfig{Providers: map[string]config.ProviderLimit{
			constants.ProviderYFinance: {CallsPerSecond: 1000, Window: time.Second},
			constants.ProviderFinnhub:  {CallsPerSecond: 1000, Window: time.Second},
		}},
		Cache: config.CacheConfig{TTLs: map[string]time.Duration{
			constants.CachePrefixStockInfo: 30 * time.Second,
		}},
		Monitor: config.MonitorConfig{RateLimitThreshold: 0.1, WindowMinutes: 3},
	}
}

func TestBuild_DevelopmentUsesTokenBucket(t *testing.T) {
	ctx := context.Background()
	c, err := Build(ctx, testConfig(constants.ModeDevelopment), memory.NewStore(time.Minute), Deps{Alerts: nopAlerts{}})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, constants.AlgorithmTokenBucket, c.Limiters.Algorithm())
	assert.Equal(t, []string{constants.ProviderFinnhub, constants.ProviderYFinance}, c.Monitors.Names())

	y, ok := c.Monitors.Get(constants.ProviderYFinance)
	require.True(t, ok)
	assert.Equal(t, 0.1, y.Threshold())
	assert.Equal(t, 3, y.WindowMinutes())

	require.Len(t, c.Caches, 4)
	stock, ok := c.Cache(constants.CachePrefixStockInfo)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, stock.Info().TTL)
	news, ok := c.Cache(constants.CachePrefixFinnhubNews)
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, news.Info().TTL)
	_, ok = c.Cache("unknown")
	assert.False(t, ok)

	assert.Same(t, y, c.Pipelines.StockInfo.Monitor())
	assert.Same(t, y, c.Pipelines.MarketContext.Monitor())
	assert.Equal(t, c.Pipelines.StockInfo.Limiter(), c.Pipelines.MarketContext.Limiter(), "quote call-sites share one limiter")
	assert.NotEqual(t, c.Pipelines.StockInfo.Limiter(), c.Pipelines.FinnhubNews.Limiter())
}

func TestBuild_ProductionUsesSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c, err := Build(context.Background(), testConfig(constants.ModeProduction), redisstore.NewStore(client), Deps{Alerts: nopAlerts{}})
	require.NoError(t, err)
	assert.Equal(t, constants.AlgorithmSlidingWindow, c.Limiters.Algorithm())
	assert.False(t, mr.Exists(constants.RateLimiterProbeKey))
}

func TestBuild_MissingProviderLimit(t *testing.T) {
	cfg := testConfig(constants.ModeDevelopment)
	delete(cfg.RateLimit.Providers, constants.ProviderFinnhub)

	_, err := Build(context.Background(), cfg, memory.NewStore(time.Minute), Deps{})
	assert.Error(t, err)

	_, err = Build(context.Background(), nil, memory.NewStore(time.Minute), Deps{})
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s := OpenStore(ctx, config.RedisConfig{Enabled: false}, nil)
	assert.Nil(t, s.Conn)
	_, isMemory := s.KVStore.(*memory.Store)
	assert.True(t, isMemory)
	assert.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s = OpenStore(ctx, config.RedisConfig{Enabled: true, Mode: "standalone", Addresses: []string{mr.Addr()}}, nil)
	require.NotNil(t, s.Conn)
	_, isRedis := s.KVStore.(*redisstore.Store)
	assert.True(t, isRedis)
	assert.NoError(t, s.Close())
}
