package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/pkg/constants"
	"github.com/turtacn/marketguard/pkg/logger"
)

// SlidingWindow limits calls across processes by keeping recent call
// timestamps in a shared store. Concurrent processes may over-admit by one
// call through the read-modify-write race; callers in the same process are
// serialised.
//
// Any store failure skips limiting for that call (fail-open).
type SlidingWindow struct {
	name     string
	key      string
	capacity int
	window   time.Duration
	store    service.KVStore
	opts     options

	mu sync.Mutex
}

var _ Limiter = (*SlidingWindow)(nil)

// NewSlidingWindow creates a shared limiter admitting callsPerSecond×window
// calls per trailing window.
//
// Parameters:
//   - name: limiter name; state is kept under rate_limit:<name>
//   - callsPerSecond: calls admitted per window, truncated; values below 1 become 1
//   - window: trailing window; values <= 0 become one second
//   - store: shared key-value store
//   - opts: clock, sleeper, logger and metrics overrides
func NewSlidingWindow(name string, callsPerSecond float64, window time.Duration, store service.KVStore, opts ...Option) *SlidingWindow {
	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}
	if window <= 0 {
		window = time.Second
	}
	capacity := int(callsPerSecond)
	if capacity < 1 {
		capacity = 1
	}

	o := applyOptions(opts)
	o.logger = o.logger.WithComponent("ratelimit").WithFields(logger.String("limiter", name))

	return &SlidingWindow{
		name:     name,
		key:      Key(name),
		capacity: capacity,
		window:   window,
		store:    store,
		opts:     o,
	}
}

// Key returns the storage key for a sliding-window limiter.
func Key(name string) string {
	return constants.RateLimitKeyPrefix + constants.KeySeparator + name
}

func (sw *SlidingWindow) Name() string      { return sw.name }
func (sw *SlidingWindow) Algorithm() string { return constants.AlgorithmSlidingWindow }

// Capacity returns the number of calls admitted per window.
func (sw *SlidingWindow) Capacity() int { return sw.capacity }

// Wait records the call in the shared window, sleeping first when the window is full.
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.opts.now()
	state, err := sw.load(ctx)
	if err != nil {
		sw.failOpen(ctx, err)
		return nil
	}

	state.Prune(models.UnixSeconds(now), sw.window)

	if len(state.Calls) >= sw.capacity {
		age := models.UnixSeconds(now) - state.Oldest()
		wait := ceilMillisecond(sw.window - time.Duration(age*float64(time.Second)))
		if wait > 0 {
			sw.opts.logger.Debug(ctx, "Rate limit (shared): waiting", logger.Duration("wait", wait))
			if err := sw.opts.sleep(ctx, wait); err != nil {
				return err
			}
			sw.opts.metrics.RecordLimiterWait(sw.name, constants.AlgorithmSlidingWindow, wait)
			now = sw.opts.now()
			// Re-prune rather than clearing so calls from other processes
			// that are still inside the window keep counting.
			state.Prune(models.UnixSeconds(now), sw.window)
		}
	}

	ts := models.UnixSeconds(now)
	state.Calls = append(state.Calls, ts)
	state.LastCheck = ts

	if err := sw.save(ctx, state); err != nil {
		sw.failOpen(ctx, err)
	}
	return nil
}

func (sw *SlidingWindow) load(ctx context.Context) (*models.SlidingWindowState, error) {
	raw, ok, err := sw.store.Get(ctx, sw.key)
	if err != nil {
		return nil, err
	}
	state := &models.SlidingWindowState{Calls: []float64{}}
	if !ok {
		return state, nil
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode window state: %w", err)
	}
	return state, nil
}

func (sw *SlidingWindow) save(ctx context.Context, state *models.SlidingWindowState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode window state: %w", err)
	}
	return sw.store.Set(ctx, sw.key, raw, 2*sw.window)
}

// ceilMillisecond rounds d up so float timestamp error never wakes a caller
// just before the oldest call leaves the window.
func ceilMillisecond(d time.Duration) time.Duration {
	if rem := d % time.Millisecond; rem > 0 {
		return d + time.Millisecond - rem
	}
	return d
}

func (sw *SlidingWindow) failOpen(ctx context.Context, err error) {
	sw.opts.logger.Warn(ctx, "Rate limiter store error, proceeding without rate limiting", logger.Err(err))
	sw.opts.metrics.RecordLimiterFailOpen(sw.name)
}
