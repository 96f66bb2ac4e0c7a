package config

import (
	"errors"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// MARKETGUARD_REDIS_ADDRESSES=host1:6379,host2:6379.
const EnvPrefix = "MARKETGUARD"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "marketguard")
	v.SetDefault("app.mode", "production")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.enable_pprof", false)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("rate_limit.providers", map[string]interface{}{
		"yfinance": map[string]interface{}{"calls_per_second": 5, "window": "1s"},
		"finnhub":  map[string]interface{}{"calls_per_second": 1, "window": "1s"},
	})

	v.SetDefault("cache.ttls", map[string]interface{}{
		"stock_info":     "5m",
		"market_context": "1m",
		"vwap":           "2m",
		"finnhub_news":   "15m",
	})

	v.SetDefault("monitor.rate_limit_threshold", 0.05)
	v.SetDefault("monitor.window_minutes", 5)

	v.SetDefault("providers.yfinance.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("providers.yfinance.timeout", 10*time.Second)
	v.SetDefault("providers.finnhub.base_url", "https://finnhub.io/api/v1")
	v.SetDefault("providers.finnhub.timeout", 10*time.Second)

	v.SetDefault("alerts.kafka.enabled", false)
	v.SetDefault("alerts.kafka.topic", "marketguard.alerts")
	v.SetDefault("alerts.kafka.write_timeout", 5*time.Second)
	v.SetDefault("alerts.kafka.required_acks", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "marketguard")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_rate", 1.0)
}

// NewViper builds a viper instance with defaults, an optional config file and
// environment overrides. An empty path searches ./config.yaml and
// /etc/marketguard/config.yaml; a missing file is not an error.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/marketguard/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Decode unmarshals and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Watch re-decodes the configuration whenever the backing file changes and
// hands the new value to onChange. Decode failures are passed as err and the
// previous configuration stays in effect.
func Watch(v *viper.Viper, onChange func(cfg *Config, err error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Decode(v)
		onChange(cfg, err)
	})
	v.WatchConfig()
}
