// Package cache provides a generic in-memory TTL key-value store.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind methods
// - Expiry bookkeeping internal; expired entries read as absent
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return !now.Before(e.createdAt.Add(e.ttl))
}

// Store is a concurrency-safe TTL cache. Data is lost when the process
// terminates.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// New creates a store whose entries expire after ttl.
func New[V any](ttl time.Duration) *Store[V] {
	return NewWithClock[V](ttl, time.Now)
}

// NewWithClock creates a store with an injected clock, for tests.
func NewWithClock[V any](ttl time.Duration, now func() time.Time) *Store[V] {
	return &Store[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the value for key. Expired entries are treated as absent,
// not as errors.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key with the store's default TTL.
func (s *Store[V]) Put(key string, value V) {
	s.PutTTL(key, value, s.ttl)
}

// PutTTL stores value under key with an explicit TTL.
func (s *Store[V]) PutTTL(key string, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry[V]{value: value, createdAt: s.now(), ttl: ttl}
}

// Delete removes key from the store.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// Len returns the number of live (unexpired) entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Purge removes all expired entries.
func (s *Store[V]) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
}

// Clear removes all entries.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]entry[V])
}
