package eviction

import (
	"github.com/jamstermayne/tiercache-go/internal/entry"
)

// Strategy defines the interface for eviction strategies
type Strategy interface {
	// Add adds an entry to the eviction strategy tracker
	// Returns the key and entry of an evicted item if capacity is exceeded
	Add(key string, entry *entry.Entry) (evictKey string, evictedEntry *entry.Entry, evicted bool)

	// Get retrieves an entry and updates its position in the eviction order
	Get(key string) (*entry.Entry, bool)

	// Remove removes an entry from the eviction strategy tracker
	Remove(key string) bool

	// RemoveOldest removes and returns the least recently used entry
	RemoveOldest() (key string, evictedEntry *entry.Entry, ok bool)

	// Contains checks if a key exists in the eviction strategy tracker
	Contains(key string) bool

	// Keys returns all keys currently tracked by the strategy, oldest first
	Keys() []string

	// Len returns the number of entries currently tracked
	Len() int

	// Clear removes all entries from the strategy
	Clear()

	// Capacity returns the maximum number of entries this strategy can hold
	Capacity() int

	// Peek retrieves an entry without updating its position in the eviction order
	Peek(key string) (*entry.Entry, bool)
}

// Config holds configuration for eviction strategies
type Config struct {
	Capacity int
}

// NewStrategy creates a new eviction strategy based on the given config.
// LRU is the only policy the memory tier uses.
func NewStrategy(config Config) Strategy {
	return NewLRUStrategy(config.Capacity)
}
