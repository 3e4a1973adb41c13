package tiercache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jamstermayne/tiercache-go/internal/store/kv"
)

func newTestCache(t *testing.T, config *Config) *Cache {
	t.Helper()
	cache, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close(context.Background()) })
	return cache
}

// countingDelegate wraps the in-memory store and counts batch flushes.
type countingDelegate struct {
	*kv.Memory
	batches atomic.Int32
	fail    atomic.Bool
}

func newCountingDelegate() *countingDelegate {
	return &countingDelegate{Memory: kv.NewMemory()}
}

func (d *countingDelegate) BatchWrite(ctx context.Context, batch map[string][]byte) error {
	if d.fail.Load() {
		return errors.New("storage unavailable")
	}
	d.batches.Add(1)
	return d.Memory.BatchWrite(ctx, batch)
}

func TestSetAndGet(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	if err := cache.Set(ctx, "key1", "value1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, found := cache.Get(ctx, "key1")
	if !found || value != "value1" {
		t.Fatalf("Expected value1, got %v (found=%v)", value, found)
	}
}

func TestGetMiss(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	if _, found := cache.Get(ctx, "missing"); found {
		t.Fatal("Expected a miss")
	}

	value, found := cache.Get(ctx, "missing", WithDefault("fallback"))
	if found {
		t.Fatal("WithDefault must still report a miss")
	}
	if value != "fallback" {
		t.Fatalf("Expected fallback, got %v", value)
	}
}

func TestRoundTripWithCompression(t *testing.T) {
	ctx := context.Background()
	config := NewDefaultConfig()
	config.Compression.MinSize = 64
	cache := newTestCache(t, config)

	large := strings.Repeat("abcdefgh", 100)
	if err := cache.Set(ctx, "big", large); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	e, ok := cache.memory.Peek("big")
	if !ok || !e.Compressed {
		t.Fatal("Expected the entry to be stored sealed")
	}

	value, found := cache.Get(ctx, "big")
	if !found || value != large {
		t.Fatal("Compressed round trip lost the value")
	}

	if cache.stats.CompressionSavedBytes() <= 0 {
		t.Fatal("Expected compression savings to be recorded")
	}
}

func TestCompressionOverrides(t *testing.T) {
	ctx := context.Background()
	config := NewDefaultConfig()
	config.Compression.MinSize = 64
	cache := newTestCache(t, config)

	large := strings.Repeat("abcdefgh", 100)
	_ = cache.Set(ctx, "plain", large, WithCompress(false))
	if e, ok := cache.memory.Peek("plain"); !ok || e.Compressed {
		t.Fatal("WithCompress(false) should skip sealing")
	}

	small := strings.Repeat("ab", 30)
	_ = cache.Set(ctx, "forced", small, WithCompress(true))
	if e, ok := cache.memory.Peek("forced"); !ok || !e.Compressed {
		t.Fatal("WithCompress(true) should seal below the threshold")
	}

	value, found := cache.Get(ctx, "forced")
	if !found || value != small {
		t.Fatal("Forced compression round trip lost the value")
	}
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	_ = cache.Set(ctx, "shortlived", "value", WithTTL(TestShortTTL))

	if _, found := cache.Get(ctx, "shortlived"); !found {
		t.Fatal("Expected a hit before expiry")
	}

	time.Sleep(2 * TestShortTTL)

	if _, found := cache.Get(ctx, "shortlived"); found {
		t.Fatal("Expected a miss after expiry")
	}
}

func TestLRUEvictionOrder(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, NewDefaultConfig().WithMaxEntries(3))

	_ = cache.Set(ctx, "a", 1)
	_ = cache.Set(ctx, "b", 2)
	_ = cache.Set(ctx, "c", 3)

	// Touch a so b becomes the LRU victim
	cache.Get(ctx, "a")
	_ = cache.Set(ctx, "d", 4)

	if cache.Has("b") {
		t.Fatal("Expected b to be evicted from the memory tier")
	}
	for _, key := range []string{"a", "c", "d"} {
		if !cache.Has(key) {
			t.Fatalf("Expected %s to survive", key)
		}
	}
	if cache.stats.Evictions() != 1 {
		t.Fatalf("Expected 1 eviction, got %d", cache.stats.Evictions())
	}
}

func TestSessionPromotion(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	_ = cache.Set(ctx, "key", "value", WithTTL(time.Hour))

	// Drop the memory copy; the session mirror still has it
	cache.memory.Delete("key")
	if cache.Has("key") {
		t.Fatal("Expected the memory tier to have lost the key")
	}

	value, found := cache.Get(ctx, "key")
	if !found || value != "value" {
		t.Fatalf("Expected session hit, got %v (found=%v)", value, found)
	}
	if !cache.Has("key") {
		t.Fatal("Expected the hit to be promoted back to memory")
	}

	// The promoted entry keeps its remaining lifetime
	remaining, ok := cache.TTL("key")
	if !ok || remaining <= 0 || remaining > time.Hour {
		t.Fatalf("Unexpected TTL after promotion: %v (ok=%v)", remaining, ok)
	}
}

func TestPersistentTierSurvivesReconstruction(t *testing.T) {
	ctx := context.Background()
	delegate := newCountingDelegate()

	first := newTestCache(t, NewDefaultConfig().
		WithPersistent(&PersistentConfig{Delegate: delegate}))

	_ = first.Set(ctx, "durable", "value", WithTTL(time.Hour))
	if err := first.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := newTestCache(t, NewDefaultConfig().
		WithPersistent(&PersistentConfig{Delegate: delegate}))

	value, found := second.Get(ctx, "durable")
	if !found || value != "value" {
		t.Fatalf("Expected persistent hit after reconstruction, got %v (found=%v)", value, found)
	}
}

func TestBatchedPersistence(t *testing.T) {
	ctx := context.Background()
	delegate := newCountingDelegate()

	cache := newTestCache(t, NewDefaultConfig().
		WithDirtyBatchDelay(TestBatchDelay).
		WithPersistent(&PersistentConfig{Delegate: delegate}))

	for i := 0; i < 10; i++ {
		_ = cache.Set(ctx, fmt.Sprintf("key%d", i), i)
	}

	// All ten writes coalesce into a single batch flush
	time.Sleep(5 * TestBatchDelay)

	if got := delegate.batches.Load(); got != 1 {
		t.Fatalf("Expected 1 batch write, got %d", got)
	}
	if cache.persistent.dirtyLen() != 0 {
		t.Fatalf("Expected no dirty keys after flush, got %d", cache.persistent.dirtyLen())
	}
}

func TestFailedBatchLeavesKeysDirty(t *testing.T) {
	ctx := context.Background()
	delegate := newCountingDelegate()
	delegate.fail.Store(true)

	cache := newTestCache(t, NewDefaultConfig().
		WithDirtyBatchDelay(TestBatchDelay).
		WithPersistent(&PersistentConfig{Delegate: delegate}))

	_ = cache.Set(ctx, "key1", "value1")
	_ = cache.Set(ctx, "key2", "value2")

	time.Sleep(5 * TestBatchDelay)

	if cache.persistent.dirtyLen() != 2 {
		t.Fatalf("Expected 2 dirty keys after failed flush, got %d", cache.persistent.dirtyLen())
	}

	// Recovery: the next explicit flush retries the same items
	delegate.fail.Store(false)
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if cache.persistent.dirtyLen() != 0 {
		t.Fatalf("Expected dirty keys to drain, got %d", cache.persistent.dirtyLen())
	}
	if _, ok, _ := delegate.Get(ctx, "key1"); !ok {
		t.Fatal("Expected key1 to reach the delegate")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	_ = cache.Set(ctx, "key", "value")
	if !cache.Delete(ctx, "key") {
		t.Fatal("Expected Delete to report success")
	}
	if cache.Delete(ctx, "key") {
		t.Fatal("Expected second Delete to report failure")
	}
	if _, found := cache.Get(ctx, "key"); found {
		t.Fatal("Expected a miss after Delete")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	delegate := newCountingDelegate()
	cache := newTestCache(t, NewDefaultConfig().
		WithDirtyBatchDelay(TestBatchDelay).
		WithPersistent(&PersistentConfig{Delegate: delegate}))

	_ = cache.Set(ctx, "a", 1)
	_ = cache.Set(ctx, "b", 2)
	_ = cache.Flush(ctx)

	cache.Clear(ctx)
	if cache.Len() != 0 {
		t.Fatalf("Expected empty cache, got %d entries", cache.Len())
	}
	if _, found := cache.Get(ctx, "a"); found {
		t.Fatal("Expected a miss after Clear, even with a persistent copy")
	}

	cache.Clear(ctx) // second clear is a no-op
	if cache.Len() != 0 {
		t.Fatal("Expected cache to stay empty")
	}
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return "loaded", nil
	}

	value, err := cache.Remember(ctx, "key", time.Hour, loader)
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if value != "loaded" {
		t.Fatalf("Expected loaded, got %v", value)
	}

	// Second call is a cache hit
	if _, err := cache.Remember(ctx, "key", time.Hour, loader); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("Expected loader to run once, ran %d times", calls.Load())
	}
}

func TestRememberLoaderError(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	wantErr := errors.New("upstream down")
	_, err := cache.Remember(ctx, "key", time.Hour, func(context.Context) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected loader error, got %v", err)
	}
	if cache.Has("key") {
		t.Fatal("Nothing must be cached when the loader fails")
	}
}

func TestRememberDeduplicatesConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	var calls atomic.Int32
	release := make(chan struct{})

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := cache.Remember(ctx, "key", time.Hour, func(context.Context) (any, error) {
				calls.Add(1)
				<-release
				return "shared", nil
			})
			if err != nil || value != "shared" {
				t.Errorf("Remember returned %v, %v", value, err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("Expected a single loader run, got %d", calls.Load())
	}
}

func TestGetWithLoader(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	var calls atomic.Int32
	value, found := cache.Get(ctx, "key", WithLoader(func(context.Context) (any, error) {
		calls.Add(1)
		return "loaded", nil
	}))
	if !found || value != "loaded" {
		t.Fatalf("Expected loaded value, got %v (found=%v)", value, found)
	}

	// The loaded value is cached
	if value, found := cache.Get(ctx, "key"); !found || value != "loaded" {
		t.Fatalf("Expected cached value, got %v (found=%v)", value, found)
	}
	if calls.Load() != 1 {
		t.Fatalf("Expected loader to run once, ran %d times", calls.Load())
	}
}

func TestGetWithLoaderFailure(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	value, found := cache.Get(ctx, "key",
		WithLoader(func(context.Context) (any, error) {
			return nil, errors.New("boom")
		}),
		WithDefault("fallback"))
	if found {
		t.Fatal("Loader failure must report a miss")
	}
	if value != "fallback" {
		t.Fatalf("Expected fallback, got %v", value)
	}
}

func TestCorruptSessionEntryPurged(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	// Plant garbage in the session mirror
	cache.session.put(ctx, "bad", []byte("not json"))

	if _, found := cache.Get(ctx, "bad"); found {
		t.Fatal("Expected corrupt entry to be a miss")
	}
	if _, ok := cache.session.get(ctx, "bad"); ok {
		t.Fatal("Expected corrupt entry to be purged")
	}
}

func TestSetAfterCloseFails(t *testing.T) {
	ctx := context.Background()
	cache, err := New(nil)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	if err := cache.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := cache.Close(ctx); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	if err := cache.Set(ctx, "key", "value"); err == nil {
		t.Fatal("Expected Set after Close to fail")
	}
}

func TestStatsSnapshot(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	_ = cache.Set(ctx, "key", "value")
	cache.Get(ctx, "key")
	cache.Get(ctx, "missing")

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("Expected 1 hit / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
	if stats.MemoryEntries != 1 {
		t.Fatalf("Expected 1 entry, got %d", stats.MemoryEntries)
	}
	if stats.HitRate != 0.5 {
		t.Fatalf("Expected 0.5 hit rate, got %v", stats.HitRate)
	}
	if stats.MemoryBytes <= 0 {
		t.Fatal("Expected positive memory usage")
	}
	if stats.Pressure != PressureNormal {
		t.Fatalf("Expected normal pressure, got %v", stats.Pressure)
	}
}

func TestKeysAndLen(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, nil)

	_ = cache.Set(ctx, "a", 1)
	_ = cache.Set(ctx, "b", 2)

	if cache.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", cache.Len())
	}
	if len(cache.Keys()) != 2 {
		t.Fatalf("Expected 2 keys, got %v", cache.Keys())
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, NewDefaultConfig().WithMaxEntries(100))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("key%d", j%20)
				_ = cache.Set(ctx, key, n)
				cache.Get(ctx, key)
				if j%10 == 0 {
					cache.Delete(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()
}
