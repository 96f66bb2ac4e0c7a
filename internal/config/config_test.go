package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Redis.Addresses)

	require.Contains(t, cfg.RateLimit.Providers, "yfinance")
	assert.Equal(t, 5.0, cfg.RateLimit.Providers["yfinance"].CallsPerSecond)
	assert.Equal(t, time.Second, cfg.RateLimit.Providers["yfinance"].Window)
	assert.Equal(t, 1.0, cfg.RateLimit.Providers["finnhub"].CallsPerSecond)

	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL("stock_info", 0))
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL("finnhub_news", 0))
	assert.Equal(t, 42*time.Second, cfg.Cache.TTL("unknown", 42*time.Second))

	assert.Equal(t, 0.05, cfg.Monitor.RateLimitThreshold)
	assert.Equal(t, 5, cfg.Monitor.WindowMinutes)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  mode: development
redis:
  addresses: ["redis-a:6379", "redis-b:6379"]
  mode: cluster
monitor:
  rate_limit_threshold: 0.1
  window_minutes: 10
cache:
  ttls:
    stock_info: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("MARKETGUARD_SERVER_PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, "cluster", cfg.Redis.Mode)
	assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.Redis.Addresses)
	assert.Equal(t, 0.1, cfg.Monitor.RateLimitThreshold)
	assert.Equal(t, 10, cfg.Monitor.WindowMinutes)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL("stock_info", 0))
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
}

func TestLoadConfig_InvalidThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("monitor:\n  rate_limit_threshold: 1.5\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RateLimitThreshold")
}

func TestLoadConfig_ZeroThresholdAllowed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("monitor:\n  rate_limit_threshold: 0\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Monitor.RateLimitThreshold)
}

func TestLoadConfig_RejectsNonPositiveCacheTTL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  ttls:\n    stock_info: 0s\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TTLs")
}

func TestValidate_KafkaRequiresBrokers(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.Alerts.Kafka.Enabled = true
	cfg.Alerts.Kafka.Brokers = nil
	assert.Error(t, cfg.Validate())

	cfg.Alerts.Kafka.Brokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())
}
