package models

import "time"

// SlidingWindowState is the shared record of recent call times for one
// limiter. Timestamps are unix seconds with sub-second precision.
type SlidingWindowState struct {
	Calls     []float64 `json:"calls"`
	LastCheck float64   `json:"last_check"`
}

// Prune drops every timestamp that is window or more older than now.
func (s *SlidingWindowState) Prune(now float64, window time.Duration) {
	w := window.Seconds()
	kept := s.Calls[:0]
	for _, t := range s.Calls {
		if now-t < w {
			kept = append(kept, t)
		}
	}
	s.Calls = kept
}

// Oldest returns the earliest timestamp, or 0 when empty.
func (s *SlidingWindowState) Oldest() float64 {
	if len(s.Calls) == 0 {
		return 0
	}
	oldest := s.Calls[0]
	for _, t := range s.Calls[1:] {
		if t < oldest {
			oldest = t
		}
	}
	return oldest
}

// TokenBucketStats is a point-in-time view of a process-local bucket.
type TokenBucketStats struct {
	Name       string    `json:"name"`
	Capacity   float64   `json:"capacity"`
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
}

// UnixSeconds converts t to fractional unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
