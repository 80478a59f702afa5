package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func newTestLimiter(maxCalls int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	return NewWithClock(maxCalls, window, clock.Now), clock
}

func TestAllowUpToBudget(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("pallets/flask") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if l.Allow("pallets/flask") {
		t.Error("call over budget should be rejected")
	}
}

func TestPerKeyWindows(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if !l.Allow("a/a") {
		t.Fatal("first key should be allowed")
	}
	if !l.Allow("b/b") {
		t.Error("separate key should have its own budget")
	}
	if l.Allow("a/a") {
		t.Error("second call on exhausted key should be rejected")
	}
}

func TestWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Allow("k")
	clock.Advance(30 * time.Second)
	l.Allow("k")

	if l.Allow("k") {
		t.Fatal("budget should be exhausted")
	}

	// First call leaves the window after 60s total.
	clock.Advance(31 * time.Second)
	if !l.Allow("k") {
		t.Error("slot should reopen once the oldest call leaves the window")
	}
}

func TestRetryAfter(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	if got := l.RetryAfter("k"); got != 0 {
		t.Errorf("RetryAfter with open slot = %v, want 0", got)
	}

	l.Allow("k")
	clock.Advance(20 * time.Second)
	got := l.RetryAfter("k")
	if got != 40*time.Second {
		t.Errorf("RetryAfter = %v, want 40s", got)
	}
}

func TestRemaining(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	if got := l.Remaining("k"); got != 3 {
		t.Errorf("Remaining = %d, want 3", got)
	}
	l.Allow("k")
	l.Allow("k")
	if got := l.Remaining("k"); got != 1 {
		t.Errorf("Remaining = %d, want 1", got)
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	l.Allow("k")
	l.Reset()
	if !l.Allow("k") {
		t.Error("Reset should clear all windows")
	}
}

func TestConcurrentAllow(t *testing.T) {
	l := New(50, time.Minute)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("k")
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 50 {
		t.Errorf("admitted %d calls, want exactly 50", count)
	}
}
