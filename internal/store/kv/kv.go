// Package kv defines the byte-oriented key-value capability backing the
// session and persistent mirrors, with in-memory and Redis implementations.
package kv

import (
	"context"
	"sync"
)

// Store is a minimal key-value capability: get, set, delete, enumerate.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// BatchWriter applies a set of staged writes in one operation. A nil value
// deletes the key.
type BatchWriter interface {
	BatchWrite(ctx context.Context, batch map[string][]byte) error
}

// Memory is a map-backed Store used as the default session mirror and as the
// test double for persistent storage.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

// Set stores val under key.
func (m *Memory) Set(_ context.Context, key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(val))
	copy(stored, val)
	m.data[key] = stored
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns all stored keys.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// BatchWrite applies all staged writes. A nil value deletes the key.
func (m *Memory) BatchWrite(_ context.Context, batch map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range batch {
		if v == nil {
			delete(m.data, k)
			continue
		}
		stored := make([]byte, len(v))
		copy(stored, v)
		m.data[k] = stored
	}
	return nil
}

// Close releases the store.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.data = make(map[string][]byte)
	m.mu.Unlock()
	return nil
}
