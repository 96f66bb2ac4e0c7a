package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/marketguard/internal/domain/service"
)

const scanBatch = 500

// Store implements service.KVStore, service.PatternDeleter,
// service.StatsReporter and service.Pinger on top of Redis.
type Store struct {
	client redis.UniversalClient

	// process-local counters, reported alongside server keyspace stats
	hits   atomic.Int64
	misses atomic.Int64
}

var (
	_ service.KVStore        = (*Store)(nil)
	_ service.PatternDeleter = (*Store)(nil)
	_ service.StatsReporter  = (*Store)(nil)
	_ service.Pinger         = (*Store)(nil)
)

// NewStore creates a Store over client.
func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	s.hits.Add(1)
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// DeletePattern SCANs for pattern and deletes matches in batches. On a
// cluster client every master is scanned.
func (s *Store) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	if cc, ok := s.client.(*redis.ClusterClient); ok {
		var total atomic.Int64
		err := cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := scanDelete(ctx, node, pattern)
			total.Add(n)
			return err
		})
		return total.Load(), err
	}
	return scanDelete(ctx, s.client, pattern)
}

func scanDelete(ctx context.Context, c redis.Cmdable, pattern string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := c.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis scan %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis del batch: %w", err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Stats reports the key count and hit/miss counters. Server-side keyspace
// counters are preferred; when INFO is unavailable the store's own counters
// are used.
func (s *Store) Stats(ctx context.Context) (*service.StoreStats, error) {
	keys, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis dbsize: %w", err)
	}

	stats := &service.StoreStats{
		Backend: "redis",
		Keys:    keys,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
	if info, err := s.client.Info(ctx, "stats").Result(); err == nil {
		if h, m, ok := parseKeyspaceStats(info); ok {
			stats.Hits, stats.Misses = h, m
		}
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseKeyspaceStats(info string) (hits, misses int64, ok bool) {
	var foundHits, foundMisses bool
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		k, v, found := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !found {
			continue
		}
		switch k {
		case "keyspace_hits":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				hits, foundHits = n, true
			}
		case "keyspace_misses":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				misses, foundMisses = n, true
			}
		}
	}
	return hits, misses, foundHits && foundMisses
}
