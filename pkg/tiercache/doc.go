// Package tiercache provides a three-tier adaptive cache: an in-process
// memory tier with TTL and LRU eviction, a session-scoped mirror with
// synchronous writes, and an optional persistent tier with batched
// write-behind.
//
// # Overview
//
// tiercache is designed for hosts with uneven resources: budgets, TTLs, and
// compression thresholds can be derived from device signals at startup, and
// a memory pressure monitor sheds load at runtime. Reads fall through the
// tiers and promote hits upward; mirror tiers are fail-soft, so storage
// errors degrade to cache misses instead of caller errors.
//
// # Key Features
//
//   - Thread-safe memory tier with entry-count and byte budgets
//   - Time-to-live expiration with periodic cleanup
//   - Session mirror (in-memory or Redis) surviving cache reconstruction
//   - Persistent write-behind with coalesced batch flushes
//   - Transparent compression of large values (gzip/deflate envelope)
//   - Pattern-based invalidation cascades between related keys
//   - Device-adaptive configuration profiles
//   - Memory pressure monitoring with staged mitigation
//   - Context-aware hooks and pluggable metrics exporters
//
// # Basic Usage
//
// Create a cache and perform basic operations:
//
//	cache, err := tiercache.New(tiercache.NewDefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close(context.Background())
//
//	err = cache.Set(ctx, "user.123", userData, tiercache.WithTTL(time.Hour))
//
//	value, found := cache.Get(ctx, "user.123")
//	if found {
//	    fmt.Printf("found: %+v\n", value)
//	}
//
//	stats := cache.Stats()
//	fmt.Printf("hit rate: %.2f%%\n", stats.HitRate*100)
//
// Values are stored via JSON serialization, so structs come back as
// map[string]any on reads that miss the memory tier.
//
// # Loaders
//
// Compute values on demand; concurrent misses for one key share a single
// loader run:
//
//	user, err := cache.Remember(ctx, "user.123", time.Hour,
//	    func(ctx context.Context) (any, error) {
//	        return queryDatabase(ctx, 123)
//	    })
//
// # Device-Adaptive Configuration
//
// Size the cache from host signals instead of hand tuning:
//
//	cache, err := tiercache.NewAdaptive(tiercache.DeviceSignals{
//	    MemoryBytes:  2 << 30,
//	    NetworkClass: "3g",
//	})
//
// Low-memory hosts get halved budgets, a lower pressure threshold, and GC
// hints; slow networks get doubled TTLs and earlier compression.
//
// # Invalidation Rules
//
// Writes can cascade to dependent keys. Patterns are dot-separated
// segments with at most one wildcard segment matching the rest of the key:
//
//	cache.AddInvalidationRule("user.*", "profile.*", "feed.*")
//
//	// Writing user.123 now removes every profile.* and feed.* key.
//	cache.Set(ctx, "user.123", updated)
//
// # Persistent Tier
//
// Supply a storage delegate (or a Redis configuration) to keep entries
// across restarts. Writes are staged and flushed in batches; force a flush
// before the process is suspended:
//
//	config := tiercache.NewDefaultConfig().
//	    WithPersistent(&tiercache.PersistentConfig{Delegate: store})
//
//	cache.OnBackground(ctx) // host lifecycle: flush staged writes
package tiercache
