// Package memory provides a process-local KVStore backed by go-cache. It is
// used in development mode and whenever Redis is disabled; state is not
// shared between processes.
package memory

import (
	"context"
	"path"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/turtacn/marketguard/internal/domain/service"
)

// Store is a go-cache backed KVStore that also supports pattern deletion.
// It does not implement service.StatsReporter.
type Store struct {
	c *cache.Cache
}

var (
	_ service.KVStore        = (*Store)(nil)
	_ service.PatternDeleter = (*Store)(nil)
)

// NewStore creates a Store whose expired items are swept every cleanupInterval.
func NewStore(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &Store{c: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.c.Set(key, stored, ttl)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

// DeletePattern matches keys with path.Match glob semantics, which agree with
// Redis for the '*', '?' and '[...]' forms the cache uses.
func (s *Store) DeletePattern(_ context.Context, pattern string) (int64, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}
	var n int64
	for key := range s.c.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			s.c.Delete(key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of held items, including expired ones not yet swept.
func (s *Store) Len() int {
	return s.c.ItemCount()
}
