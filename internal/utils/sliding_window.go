package utils

import (
	"sync"
	"time"
)

// SlidingWindow counts hits per key over a trailing window.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   map[string][]time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window, hits: make(map[string][]time.Time)}
}

func (w *SlidingWindow) Add(key string, now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	hits := append(w.pruneLocked(key, now), now)
	w.hits[key] = hits
	return len(hits)
}

// Allow records a hit only when fewer than limit hits are already in the window.
func (w *SlidingWindow) Allow(key string, now time.Time, limit int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	hits := w.pruneLocked(key, now)
	if limit > 0 && len(hits) >= limit {
		return false
	}
	w.hits[key] = append(hits, now)
	return true
}

func (w *SlidingWindow) Count(key string, now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pruneLocked(key, now))
}

func (w *SlidingWindow) pruneLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-w.window)
	hits := w.hits[key]
	idx := 0
	for _, hit := range hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	hits = hits[idx:]
	if len(hits) == 0 {
		delete(w.hits, key)
		return nil
	}
	w.hits[key] = hits
	return hits
}
