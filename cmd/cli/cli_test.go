package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/internal/infrastructure/cache"
	"github.com/turtacn/marketguard/internal/infrastructure/monitoring"
	redisstore "github.com/turtacn/marketguard/internal/infrastructure/persistence/redis"
	"github.com/turtacn/marketguard/pkg/constants"
)

type harness struct {
	mr     *miniredis.Miniredis
	store  service.KVStore
	cfg    *config.Config
	closed int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &harness{
		mr:    mr,
		store: redisstore.NewStore(client),
		cfg: &config.Config{
			App:   config.AppConfig{Name: "marketguard", Mode: constants.ModeProduction},
			Redis: config.RedisConfig{Enabled: true},
			RateLimit: config.RateLimitConfig{Providers: map[string]config.ProviderLimit{
				constants.ProviderYFinance: {CallsPerSecond: 5, Window: time.Second},
				constants.ProviderFinnhub:  {CallsPerSecond: 1, Window: time.Second},
			}},
		},
	}
}

func (h *harness) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(
		func(string) (*config.Config, error) { return h.cfg, nil },
		func(context.Context, *config.Config) (service.KVStore, func() error, error) {
			return h.store, func() error { h.closed++; return nil }, nil
		},
	)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func (h *harness) record(t *testing.T, api string, calls, rateLimited int) {
	t.Helper()
	m := monitoring.NewAPICallMonitor(h.store, monitoring.MonitorOptions{APIName: api}, nil, nil, nil)
	ctx := context.Background()
	for i := 0; i < calls; i++ {
		if i < rateLimited {
			m.RecordCall(ctx, false, monitoring.WithResponseCode(429))
			continue
		}
		m.RecordCall(ctx, true, monitoring.WithResponseCode(200), monitoring.WithLatencyMs(40))
	}
}

func TestStats_JSONAndYAML(t *testing.T) {
	h := newHarness(t)
	h.record(t, constants.ProviderYFinance, 4, 1)

	out, err := h.exec(t, "stats", "-o", "json")
	require.NoError(t, err)
	var snaps []models.APIStatsSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snaps))
	require.Len(t, snaps, 2)
	assert.Equal(t, constants.ProviderFinnhub, snaps[0].APIName)
	assert.Equal(t, int64(0), snaps[0].TotalCalls)
	assert.Equal(t, int64(4), snaps[1].TotalCalls)
	assert.Equal(t, int64(1), snaps[1].RateLimitedCalls)
	assert.InDelta(t, 0.25, snaps[1].RateLimitedPercentage, 1e-9)

	out, err = h.exec(t, "stats", constants.ProviderYFinance, "--output", "yaml")
	require.NoError(t, err)
	var fromYAML []models.APIStatsSnapshot
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, int64(3), fromYAML[0].SuccessfulCalls)

	assert.Equal(t, 2, h.closed)
}

func TestStats_Table(t *testing.T) {
	h := newHarness(t)
	h.record(t, constants.ProviderFinnhub, 2, 0)

	out, err := h.exec(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "API")
	assert.Contains(t, out, constants.ProviderFinnhub)
	assert.Contains(t, out, "100.0%")
}

func TestStats_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec(t, "stats", "unknown", "-o", "json")
	assert.Error(t, err)

	_, err = h.exec(t, "stats", "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.record(t, constants.ProviderYFinance, 3, 0)
	h.record(t, constants.ProviderFinnhub, 3, 0)

	out, err := h.exec(t, "reset", constants.ProviderYFinance)
	require.NoError(t, err)
	assert.Contains(t, out, "Reset statistics for yfinance")
	assert.False(t, h.mr.Exists("api_monitor:yfinance:calls"))
	assert.True(t, h.mr.Exists("api_monitor:finnhub:calls"))

	_, err = h.exec(t, "reset", "--all")
	require.NoError(t, err)
	assert.False(t, h.mr.Exists("api_monitor:finnhub:calls"))

	_, err = h.exec(t, "reset")
	assert.Error(t, err)
	_, err = h.exec(t, "reset", "--all", constants.ProviderFinnhub)
	assert.Error(t, err)
}

func TestCacheClearAndStats(t *testing.T) {
	h := newHarness(t)
	rc := cache.New(h.store, cache.Options{TTL: time.Minute, Prefix: constants.CachePrefixStockInfo}, nil, nil)
	ctx := context.Background()
	for _, sym := range []string{"AAPL", "MSFT", "NVDA"} {
		_, err := cache.Do(ctx, rc, cache.Invocation{Name: "get_stock_info", Args: []any{sym}}, func(context.Context) (string, error) {
			return sym, nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, h.store.Set(ctx, "unrelated", []byte("x"), 0))

	out, err := h.exec(t, "cache", "stats", "-o", "json")
	require.NoError(t, err)
	var view struct {
		Store  *service.StoreStats `json:"store"`
		Caches []struct {
			Prefix string `json:"prefix"`
			TTL    string `json:"ttl"`
		} `json:"caches"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.NotNil(t, view.Store)
	assert.Equal(t, "redis", view.Store.Backend)
	assert.Equal(t, int64(4), view.Store.Keys)
	assert.Len(t, view.Caches, 4)

	out, err = h.exec(t, "cache", "clear", constants.CachePrefixStockInfo)
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 3 entries")
	assert.True(t, h.mr.Exists("unrelated"))

	_, err = h.exec(t, "cache", "clear", "nope")
	assert.ErrorContains(t, err, "no cache configured")
}

func TestProbe(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "probe")
	require.NoError(t, err)
	assert.Contains(t, out, "store probe: ok")
	assert.Contains(t, out, "algorithm: "+constants.AlgorithmSlidingWindow)
	assert.Contains(t, out, "yfinance: 5.00 calls/s")

	h.cfg.App.Mode = constants.ModeDevelopment
	out, err = h.exec(t, "probe")
	require.NoError(t, err)
	assert.Contains(t, out, "algorithm: "+constants.AlgorithmTokenBucket)
}

func TestConnectErrors(t *testing.T) {
	root := NewRootCommand(
		func(string) (*config.Config, error) { return nil, errors.New("bad yaml") },
		nil,
	)
	root.SetArgs([]string{"stats"})
	root.SetOut(&bytes.Buffer{})
	assert.ErrorContains(t, root.Execute(), "load config")

	_, _, err := OpenRedisStore(context.Background(), &config.Config{})
	assert.ErrorContains(t, err, "redis is disabled")
}
