package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically.
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

func TestGetPut(t *testing.T) {
	s := New[string](time.Minute)

	if _, ok := s.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}

	s.Put("k", "v")
	got, ok := s.Get("k")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got != "v" {
		t.Errorf("got %q, want %q", got, "v")
	}
}

func TestExpiryTreatedAsAbsent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewWithClock[int](time.Minute, clock.Now)

	s.Put("k", 42)
	clock.Advance(59 * time.Second)
	if _, ok := s.Get("k"); !ok {
		t.Error("entry expired early")
	}

	clock.Advance(2 * time.Second)
	if _, ok := s.Get("k"); ok {
		t.Error("expected expired entry to read as absent")
	}
}

func TestPutTTLOverride(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewWithClock[string](time.Minute, clock.Now)

	s.PutTTL("long", "v", time.Hour)
	clock.Advance(30 * time.Minute)
	if _, ok := s.Get("long"); !ok {
		t.Error("explicit TTL not honored")
	}
}

func TestPutRefreshesEntry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewWithClock[string](time.Minute, clock.Now)

	s.Put("k", "old")
	clock.Advance(50 * time.Second)
	s.Put("k", "new")
	clock.Advance(30 * time.Second)

	got, ok := s.Get("k")
	if !ok {
		t.Fatal("re-Put should reset expiry")
	}
	if got != "new" {
		t.Errorf("got %q, want %q", got, "new")
	}
}

func TestDeleteAndLen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewWithClock[int](time.Minute, clock.Now)

	s.Put("a", 1)
	s.Put("b", 2)
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Error("deleted key still readable")
	}

	clock.Advance(2 * time.Minute)
	if s.Len() != 0 {
		t.Errorf("Len should exclude expired entries, got %d", s.Len())
	}

	s.Purge()
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New[int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Put("shared", n)
				s.Get("shared")
			}
		}(i)
	}
	wg.Wait()

	if _, ok := s.Get("shared"); !ok {
		t.Error("expected value after concurrent writes")
	}
}
