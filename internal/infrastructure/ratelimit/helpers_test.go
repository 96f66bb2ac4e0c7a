package ratelimit

import (
	"context"
	"sync"
	"time"
)

// fakeClock advances only when sleep is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func (c *fakeClock) options() []Option {
	return []Option{WithClock(c.Now), WithSleeper(c.Sleep)}
}

type recordingMetrics struct {
	mu       sync.Mutex
	waits    []time.Duration
	failOpen int
}

func (m *recordingMetrics) RecordLimiterWait(limiter, algorithm string, wait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waits = append(m.waits, wait)
}

func (m *recordingMetrics) RecordLimiterFailOpen(limiter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen++
}

func (m *recordingMetrics) RecordCacheAccess(prefix, result string) {}
func (m *recordingMetrics) RecordAPICall(api string, success, rateLimited bool, latency time.Duration) {
}
func (m *recordingMetrics) RecordRateLimitAlert(api string) {}

func (m *recordingMetrics) FailOpen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failOpen
}
