package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits or rejects an operation for a key. Keys are typically
// tenant IDs so one tenant's burst cannot starve the rest.
type Limiter interface {
	Admit(key string) bool
}

type window struct {
	start time.Time
	count int
}

// FixedWindowLimiter allows up to limit admissions per key per interval.
type FixedWindowLimiter struct {
	mu       sync.Mutex
	limit    int
	interval time.Duration
	windows  map[string]*window
	now      func() time.Time
}

func NewFixedWindowLimiter(limit int, interval time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		limit:    limit,
		interval: interval,
		windows:  map[string]*window{},
		now:      time.Now,
	}
}

func (l *FixedWindowLimiter) Admit(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.interval {
		l.windows[key] = &window{start: now, count: 1}
		l.sweepLocked(now)
		return true
	}

	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// sweepLocked drops expired windows so the map does not grow with dead
// keys. Called opportunistically while the lock is already held.
func (l *FixedWindowLimiter) sweepLocked(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.interval {
			delete(l.windows, key)
		}
	}
}
