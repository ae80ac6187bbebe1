// Package ratelimit implements fixed-window abuse throttles. Each key owns a
// counter that starts at 1 on the first hit of a window and resets once the
// window has fully elapsed.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Counter is the state of one key after an increment.
type Counter struct {
	Count       int64
	WindowStart time.Time
}

// Store increments counters atomically. A counter whose window has elapsed
// (now - start >= window) restarts at 1 with start = now.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error)
	// Sweep drops counters whose window ended at or before now.
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

type memoryEntry struct {
	count       int64
	windowStart time.Time
	windowEnd   time.Time
}

// MemoryStore keeps counters in process memory. Counters are lost on restart
// and not shared between replicas.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.Sub(e.windowStart) >= window {
		e = &memoryEntry{count: 1, windowStart: now, windowEnd: now.Add(window)}
		s.entries[key] = e
		return Counter{Count: 1, WindowStart: now}, nil
	}

	e.count++
	return Counter{Count: e.count, WindowStart: e.windowStart}, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, e := range s.entries {
		if !now.Before(e.windowEnd) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
