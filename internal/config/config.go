package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application's configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type AppConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	// Mode selects the rate-limiter backend: development always uses the
	// in-process token bucket.
	Mode string `mapstructure:"mode" validate:"oneof=development production"`
}

// IsDevelopment reports whether the service runs in development mode.
func (c AppConfig) IsDevelopment() bool {
	return c.Mode == "development"
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnablePprof     bool          `mapstructure:"enable_pprof"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	// Enabled false keeps all state in the process-local memory store.
	Enabled      bool          `mapstructure:"enabled"`
	Mode         string        `mapstructure:"mode" validate:"omitempty,oneof=standalone cluster sentinel"`
	Addresses    []string      `mapstructure:"addresses" validate:"required_if=Enabled true"`
	MasterName   string        `mapstructure:"master_name" validate:"required_if=Mode sentinel"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"min=0"`
	PoolSize     int           `mapstructure:"pool_size" validate:"min=0"`
	MinIdleConns int           `mapstructure:"min_idle_conns" validate:"min=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// ProviderLimit is a per-provider throttle.
type ProviderLimit struct {
	CallsPerSecond float64       `mapstructure:"calls_per_second" validate:"gt=0"`
	Window         time.Duration `mapstructure:"window"`
}

type RateLimitConfig struct {
	Providers map[string]ProviderLimit `mapstructure:"providers" validate:"dive"`
}

// CacheConfig maps a cache prefix to its TTL.
type CacheConfig struct {
	TTLs map[string]time.Duration `mapstructure:"ttls" validate:"dive,gt=0"`
}

// TTL returns the configured TTL for prefix, or fallback.
func (c CacheConfig) TTL(prefix string, fallback time.Duration) time.Duration {
	if ttl, ok := c.TTLs[prefix]; ok && ttl > 0 {
		return ttl
	}
	return fallback
}

type MonitorConfig struct {
	RateLimitThreshold float64 `mapstructure:"rate_limit_threshold" validate:"gte=0,lte=1"`
	WindowMinutes      int     `mapstructure:"window_minutes" validate:"gt=0"`
}

type ProvidersConfig struct {
	YFinance YFinanceConfig `mapstructure:"yfinance"`
	Finnhub  FinnhubConfig  `mapstructure:"finnhub"`
}

type YFinanceConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type FinnhubConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AlertsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic        string        `mapstructure:"topic" validate:"required_if=Enabled true"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint" validate:"required_if=Enabled true"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

var validate = validator.New()

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
