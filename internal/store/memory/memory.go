// Package memory implements the in-process memory tier: a TTL-aware LRU
// store with entry-count and byte budgets.
package memory

import (
	"sync"
	"time"

	"github.com/jamstermayne/tiercache-go/internal/entry"
	"github.com/jamstermayne/tiercache-go/internal/eviction"
)

// Store is the authoritative in-process tier. Entry count is bounded by the
// eviction strategy capacity; the byte total is bounded by maxBytes, enforced
// by LRU eviction before and after each insert.
type Store struct {
	mu       sync.Mutex
	strategy eviction.Strategy

	// sizes mirrors the strategy's keyset; it is updated and cleared in
	// lockstep with the primary entries.
	sizes      map[string]int
	totalBytes int64
	maxBytes   int64

	onEvict   func(key string, e *entry.Entry)
	onCleanup func(key string, e *entry.Entry)
}

// New creates a memory store holding at most capacity entries and maxBytes
// bytes of estimated value data. A maxBytes of zero disables the byte budget.
func New(capacity int, maxBytes int64) *Store {
	return &Store{
		strategy: eviction.NewStrategy(eviction.Config{Capacity: capacity}),
		sizes:    make(map[string]int),
		maxBytes: maxBytes,
	}
}

// SetEvictCallback registers a callback invoked for every capacity or
// byte-budget eviction.
func (s *Store) SetEvictCallback(fn func(key string, e *entry.Entry)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

// SetCleanupCallback registers a callback invoked for every expired entry
// removed by Get or Cleanup.
func (s *Store) SetCleanupCallback(fn func(key string, e *entry.Entry)) {
	s.mu.Lock()
	s.onCleanup = fn
	s.mu.Unlock()
}

// Get returns a copy of the entry for key and marks it recently used. An
// entry past its expiration is removed as a side effect and reported as a
// miss. The copy is taken under the store lock, so a concurrent
// SwapCompressed can never tear the value/data pair the caller reads.
func (s *Store) Get(key string) (*entry.Entry, bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.strategy.Get(key)
	if !ok {
		return nil, false
	}
	if e.IsExpiredAt(now) {
		s.removeLocked(key, e)
		if s.onCleanup != nil {
			s.onCleanup(key, e)
		}
		return nil, false
	}
	e.Touch(now)
	snapshot := *e
	return &snapshot, true
}

// Peek returns a copy of the entry for key without updating recency or
// expiring it.
func (s *Store) Peek(key string) (*entry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.strategy.Peek(key)
	if !ok {
		return nil, false
	}
	snapshot := *e
	return &snapshot, true
}

// Set inserts or replaces the entry for key, evicting as needed to honor the
// count and byte budgets.
func (s *Store) Set(key string, e *entry.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.strategy.Peek(key); ok {
		s.totalBytes -= int64(old.SizeBytes)
	}

	evictKey, evicted, wasEvicted := s.strategy.Add(key, e)
	if wasEvicted && evictKey != key {
		s.totalBytes -= int64(evicted.SizeBytes)
		delete(s.sizes, evictKey)
		if s.onEvict != nil {
			s.onEvict(evictKey, evicted)
		}
	}

	s.sizes[key] = e.SizeBytes
	s.totalBytes += int64(e.SizeBytes)

	// Byte budget: shed LRU entries until the new entry fits. The entry just
	// inserted is the most recently used, so it is shed last if oversized.
	if s.maxBytes > 0 {
		for s.totalBytes > s.maxBytes && s.strategy.Len() > 1 {
			if !s.evictOldestLocked() {
				break
			}
		}
	}
}

// Delete removes the entry for key.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.strategy.Peek(key)
	if !ok {
		return false
	}
	s.removeLocked(key, e)
	return true
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strategy.Clear()
	s.sizes = make(map[string]int)
	s.totalBytes = 0
}

// Keys returns all keys, least recently used first.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy.Keys()
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy.Len()
}

// SizeBytes returns the total estimated bytes held.
func (s *Store) SizeBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}

// MaxBytes returns the configured byte budget.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Cleanup removes all expired entries and returns the count removed.
func (s *Store) Cleanup() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range s.strategy.Keys() {
		e, ok := s.strategy.Peek(key)
		if !ok || !e.IsExpiredAt(now) {
			continue
		}
		s.removeLocked(key, e)
		if s.onCleanup != nil {
			s.onCleanup(key, e)
		}
		removed++
	}
	return removed
}

// EvictOldest removes the least recently used entry. It reports whether an
// entry was evicted.
func (s *Store) EvictOldest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictOldestLocked()
}

// EvictUntil sheds LRU entries until the byte total is at or below target.
// It returns the number of entries evicted.
func (s *Store) EvictUntil(target int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for s.totalBytes > target && s.strategy.Len() > 0 {
		if !s.evictOldestLocked() {
			break
		}
		evicted++
	}
	return evicted
}

// PurgeIdle removes every entry that has not been accessed within maxIdle,
// regardless of LRU order. It returns the number of entries removed.
func (s *Store) PurgeIdle(maxIdle time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range s.strategy.Keys() {
		e, ok := s.strategy.Peek(key)
		if !ok || e.IdleFor(now) <= maxIdle {
			continue
		}
		s.removeLocked(key, e)
		if s.onEvict != nil {
			s.onEvict(key, e)
		}
		removed++
	}
	return removed
}

// Range calls fn for each entry, least recently used first, without updating
// recency. fn must not retain or mutate the entry; iteration stops when fn
// returns false.
func (s *Store) Range(fn func(key string, e *entry.Entry) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.strategy.Keys() {
		e, ok := s.strategy.Peek(key)
		if !ok {
			continue
		}
		if !fn(key, e) {
			return
		}
	}
}

// SwapCompressed replaces the stored representation of key with sealed data,
// adjusting the byte accounting. It is a no-op if the entry is gone or was
// compressed concurrently, and reports whether the swap happened.
func (s *Store) SwapCompressed(key string, sealed []byte, newSize int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.strategy.Peek(key)
	if !ok || e.Compressed {
		return false
	}
	s.totalBytes += int64(newSize) - int64(e.SizeBytes)
	s.sizes[key] = newSize
	e.Data = sealed
	e.Value = nil
	e.Compressed = true
	e.SizeBytes = newSize
	return true
}

func (s *Store) evictOldestLocked() bool {
	key, e, ok := s.strategy.RemoveOldest()
	if !ok {
		return false
	}
	s.totalBytes -= int64(e.SizeBytes)
	delete(s.sizes, key)
	if s.onEvict != nil {
		s.onEvict(key, e)
	}
	return true
}

func (s *Store) removeLocked(key string, e *entry.Entry) {
	s.strategy.Remove(key)
	s.totalBytes -= int64(e.SizeBytes)
	delete(s.sizes, key)
}
