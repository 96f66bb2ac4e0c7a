package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/turtacn/marketguard/internal/domain/models"
	apperrors "github.com/turtacn/marketguard/pkg/errors"
)

// Registry indexes the process's monitors by API name.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*APICallMonitor
}

// NewRegistry creates a registry holding monitors.
func NewRegistry(monitors ...*APICallMonitor) *Registry {
	r := &Registry{monitors: make(map[string]*APICallMonitor, len(monitors))}
	for _, m := range monitors {
		r.Register(m)
	}
	return r
}

// Register adds m, replacing any monitor with the same name.
func (r *Registry) Register(m *APICallMonitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitors[m.Name()] = m
}

// Get returns the monitor for name.
func (r *Registry) Get(name string) (*APICallMonitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[name]
	return m, ok
}

// Names returns the registered API names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.monitors))
	for name := range r.monitors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns one API's snapshot, or a not-found error.
func (r *Registry) Stats(ctx context.Context, name string) (models.APIStatsSnapshot, error) {
	m, ok := r.Get(name)
	if !ok {
		return models.APIStatsSnapshot{}, apperrors.ErrNotFound(fmt.Sprintf("no monitor registered for %q", name))
	}
	return m.GetStats(ctx), nil
}

// AllStats returns every registered API's snapshot keyed by name.
func (r *Registry) AllStats(ctx context.Context) map[string]models.APIStatsSnapshot {
	out := make(map[string]models.APIStatsSnapshot)
	for _, name := range r.Names() {
		if m, ok := r.Get(name); ok {
			out[name] = m.GetStats(ctx)
		}
	}
	return out
}

// Reset clears one API's bucket.
func (r *Registry) Reset(ctx context.Context, name string) error {
	m, ok := r.Get(name)
	if !ok {
		return apperrors.ErrNotFound(fmt.Sprintf("no monitor registered for %q", name))
	}
	return m.ResetStats(ctx)
}

// ResetAll clears every registered bucket, continuing past failures.
func (r *Registry) ResetAll(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		if m, ok := r.Get(name); ok {
			if err := m.ResetStats(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
