// Package singleflight deduplicates concurrent loader calls for the same key
// so a cache miss storm runs the loader exactly once.
package singleflight

import "sync"

type call[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// Group coalesces concurrent calls with the same key.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

// Do executes fn, ensuring only one execution is in flight for key at a time.
// Duplicate callers wait for the original call and receive its result. The
// bool reports whether the result was shared with other callers.
func (g *Group[K, V]) Do(key K, fn func() (V, error)) (V, error, bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*call[V])
	}
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, true
	}

	c := &call[V]{}
	c.wg.Add(1)
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()
	c.wg.Done()

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()

	return c.val, c.err, false
}
