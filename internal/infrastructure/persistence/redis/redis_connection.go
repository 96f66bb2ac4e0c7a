// Package redis provides the shared Redis-backed key-value store used by the
// limiter, cache and monitor when more than one process must coordinate.
// Standalone, cluster and sentinel deployments are all served through
// redis.UniversalClient.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/pkg/logger"
)

// Connection manages the Redis client lifecycle.
type Connection struct {
	cfg    config.RedisConfig
	client redis.UniversalClient
	logger logger.Logger
}

// NewConnection builds a client for cfg and verifies it with a ping.
//
// Parameters:
//   - ctx: bounds the initial ping
//   - cfg: Redis configuration
//   - log: Logger instance
//
// Returns:
//   - *Connection: connected manager
//   - error: option or connectivity error
func NewConnection(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*Connection, error) {
	log = logger.OrNoop(log).WithComponent("redis")

	opts, err := universalOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Error(ctx, "Redis ping failed", err, logger.Strings("addrs", cfg.Addresses))
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info(ctx, "Redis connection established",
		logger.String("mode", cfg.Mode),
		logger.Strings("addrs", cfg.Addresses),
		logger.Int("pool_size", opts.PoolSize),
	)
	return &Connection{cfg: cfg, client: client, logger: log}, nil
}

// NewConnectionFromClient wraps an existing client, e.g. one pointed at miniredis.
func NewConnectionFromClient(client redis.UniversalClient, log logger.Logger) *Connection {
	return &Connection{client: client, logger: logger.OrNoop(log).WithComponent("redis")}
}

func universalOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("redis addresses not configured")
	}

	opts := &redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	}

	switch cfg.Mode {
	case "", "standalone":
		// UniversalClient picks a plain client for one address.
		opts.Addrs = cfg.Addresses[:1]
	case "cluster":
		opts.IsClusterMode = true
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, fmt.Errorf("sentinel master name not configured")
		}
		opts.MasterName = cfg.MasterName
	default:
		return nil, fmt.Errorf("unsupported Redis mode: %s", cfg.Mode)
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	return opts, nil
}

// Client returns the underlying client.
func (c *Connection) Client() redis.UniversalClient {
	return c.client
}

// Ping checks Redis server connectivity.
func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// HealthCheck reports connectivity, latency and pool counters.
func (c *Connection) HealthCheck(ctx context.Context) map[string]interface{} {
	start := time.Now()
	err := c.client.Ping(ctx).Err()

	health := map[string]interface{}{
		"connected":  err == nil,
		"latency_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		health["error"] = err.Error()
	}
	if stats := c.client.PoolStats(); stats != nil {
		health["pool_total_conns"] = stats.TotalConns
		health["pool_idle_conns"] = stats.IdleConns
		health["pool_hits"] = stats.Hits
		health["pool_misses"] = stats.Misses
	}
	return health
}

// Close closes the client.
func (c *Connection) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	c.logger.Info(context.Background(), "Redis connection closed")
	return nil
}
