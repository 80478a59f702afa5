// Package ratelimit provides per-key sliding-window admission control.
//
// Prevents runaway agent loops from hammering the upstream providers with
// the same request hundreds of times. Each key (one per connected caller)
// gets its own window of call timestamps. Only live upstream fetches should
// be recorded against the budget (cache hits never consume it), so callers
// must check the limiter only after a cache miss.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string][]time.Time
	maxCalls int
	window   time.Duration
	now      func() time.Time
}

// New creates a limiter allowing maxCalls per window for each key.
func New(maxCalls int, window time.Duration) *Limiter {
	return NewWithClock(maxCalls, window, time.Now)
}

// NewWithClock creates a limiter with an injected clock, for tests.
func NewWithClock(maxCalls int, window time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		windows:  make(map[string][]time.Time),
		maxCalls: maxCalls,
		window:   window,
		now:      now,
	}
}

// Allow reports whether a call for key is admitted, recording the call
// when it is. When the budget is exhausted it returns false immediately;
// the caller should fail with a rate-limited error rather than wait.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := l.prune(key)
	if len(active) >= l.maxCalls {
		return false
	}
	l.windows[key] = append(active, l.now())
	return true
}

// RetryAfter returns how long until the next slot opens for key.
// Returns 0 if a slot is already available.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := l.prune(key)
	if len(active) < l.maxCalls {
		return 0
	}
	// Oldest active timestamp; when it leaves the window, a slot opens.
	wait := active[0].Add(l.window).Sub(l.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Remaining returns how many calls remain in the current window for key.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.maxCalls - len(l.prune(key))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MaxCalls returns the configured per-window budget.
func (l *Limiter) MaxCalls() int { return l.maxCalls }

// Window returns the configured window duration.
func (l *Limiter) Window() time.Duration { return l.window }

// Reset clears all windows. Mainly for tests.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.windows = make(map[string][]time.Time)
}

// prune drops timestamps outside the window and stores the survivors.
// Caller must hold l.mu.
func (l *Limiter) prune(key string) []time.Time {
	cutoff := l.now().Add(-l.window)
	timestamps := l.windows[key]
	active := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			active = append(active, ts)
		}
	}
	l.windows[key] = active
	return active
}
