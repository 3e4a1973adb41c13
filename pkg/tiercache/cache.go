package tiercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/jamstermayne/tiercache-go/internal/entry"
	"github.com/jamstermayne/tiercache-go/internal/singleflight"
	"github.com/jamstermayne/tiercache-go/internal/store/kv"
	"github.com/jamstermayne/tiercache-go/internal/store/memory"
	"github.com/jamstermayne/tiercache-go/pkg/compression"
	"github.com/jamstermayne/tiercache-go/pkg/metrics"
)

// Cache is a three-tier cache: an in-process memory tier with LRU and TTL
// eviction, a session-scoped mirror with synchronous writes, and an optional
// persistent tier with batched write-behind. Reads fall through the tiers
// and promote upward; mirror failures degrade to misses, never to caller
// errors.
type Cache struct {
	config     *Config
	logger     *slog.Logger
	memory     *memory.Store
	session    *sessionTier
	persistent *persistentTier // nil when no persistent tier is configured
	rules      *invalidationEngine
	pressure   *pressureMonitor
	compressor compression.Compressor
	hooks      *Hooks
	stats      *Stats
	sched      *scheduler
	sf         singleflight.Group[string, any]

	exporter     metrics.Exporter
	metricLabels metrics.Labels

	gcHint     func()
	mitigating atomic.Bool
	closed     atomic.Bool
}

// New creates a cache from the given configuration. A nil configuration
// uses the defaults. The returned cache owns background cleanup, pressure,
// and metrics tasks; call Close to release them.
func New(config *Config) (*Cache, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	compressor, err := compression.NewCompressor(config.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	hooks := config.Hooks
	if hooks == nil {
		hooks = NewHooks()
	}

	c := &Cache{
		config:     config,
		logger:     logger,
		memory:     memory.New(config.MaxEntries, config.MaxSizeBytes),
		rules:      newInvalidationEngine(),
		compressor: compressor,
		hooks:      hooks,
		stats:      &Stats{},
		sched:      newScheduler(logger),
		gcHint:     config.GCHint,
	}

	c.memory.SetEvictCallback(func(key string, _ *entry.Entry) {
		c.stats.incEvictions()
		reason := EvictReasonCapacity
		if c.mitigating.Load() {
			reason = EvictReasonPressure
		}
		c.hooks.invokeOnEvict(context.Background(), key, reason)
	})
	c.memory.SetCleanupCallback(func(key string, _ *entry.Entry) {
		c.stats.incEvictions()
		c.hooks.invokeOnEvict(context.Background(), key, EvictReasonTTL)
	})

	sessionStore, err := buildSessionStore(config)
	if err != nil {
		return nil, err
	}
	c.session = newSessionTier(sessionStore, logger)

	delegate, err := buildPersistentDelegate(config)
	if err != nil {
		return nil, err
	}
	if delegate != nil {
		c.persistent = newPersistentTier(delegate, config.DirtyBatchDelay, logger)
	}

	c.pressure = newPressureMonitor(config.PressureThreshold, config.PressureDebounce, logger)
	c.pressure.onModerate = c.mitigateModerate
	c.pressure.onCritical = c.mitigateCritical

	if m := config.Metrics; m != nil && m.Enabled && m.Exporter != nil {
		c.exporter = m.Exporter
		c.metricLabels = metrics.Labels{"cache_name": m.CacheName}
		for k, v := range m.Labels {
			c.metricLabels[k] = v
		}
		interval := m.ReportingInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		c.sched.every("metrics", interval, c.reportMetrics)
	}

	c.sched.every("cleanup", config.CleanupInterval, func() {
		c.Cleanup(context.Background())
	})
	c.sched.every("pressure", config.PressureCheckInterval, func() {
		c.checkPressure(context.Background())
	})

	return c, nil
}

func buildSessionStore(config *Config) (kv.Store, error) {
	switch config.SessionStore {
	case SessionStoreRedis:
		store, err := kv.NewRedis(context.Background(), toKVRedisConfig(config.SessionRedis))
		if err != nil {
			return nil, fmt.Errorf("%w: session store: %v", ErrStorageAccess, err)
		}
		return store, nil
	case SessionStoreMemory, "":
		return kv.NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown session store %q", ErrInvalidConfig, config.SessionStore)
	}
}

func buildPersistentDelegate(config *Config) (PersistentDelegate, error) {
	p := config.Persistent
	if p == nil {
		return nil, nil
	}
	if p.Delegate != nil {
		return p.Delegate, nil
	}
	if p.Redis != nil {
		store, err := kv.NewRedis(context.Background(), toKVRedisConfig(p.Redis))
		if err != nil {
			return nil, fmt.Errorf("%w: persistent store: %v", ErrStorageAccess, err)
		}
		return store, nil
	}
	return nil, nil
}

func toKVRedisConfig(config *RedisConfig) *kv.RedisConfig {
	if config == nil {
		return nil
	}
	return &kv.RedisConfig{
		Client:    config.Client,
		Addr:      config.Addr,
		Password:  config.Password,
		DB:        config.DB,
		KeyPrefix: config.KeyPrefix,
	}
}

// Get reads a value, falling through memory, session, and persistent tiers.
// Lower-tier hits are promoted upward with their remaining lifetime intact.
// The boolean reports whether the key was present; with WithDefault the
// default value is returned on a miss and the boolean stays false.
func (c *Cache) Get(ctx context.Context, key string, opts ...GetOption) (any, bool) {
	start := time.Now()
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	if value, ok := c.lookup(ctx, key); ok {
		c.stats.incHits()
		c.stats.recordRead(time.Since(start))
		c.hooks.invokeOnHit(ctx, key, value)
		c.recordOperation(metrics.OperationGet, time.Since(start))
		return value, true
	}

	if o.loader != nil {
		if value, ok := c.load(ctx, key, &o); ok {
			c.stats.recordRead(time.Since(start))
			c.recordOperation(metrics.OperationGet, time.Since(start))
			return value, true
		}
	}

	c.stats.incMisses()
	c.stats.recordRead(time.Since(start))
	c.hooks.invokeOnMiss(ctx, key)
	c.recordOperation(metrics.OperationGet, time.Since(start))

	if o.hasDefault {
		return o.defaultValue, false
	}
	return nil, false
}

// lookup walks the tiers without touching hit/miss accounting.
func (c *Cache) lookup(ctx context.Context, key string) (any, bool) {
	if e, ok := c.memory.Get(key); ok {
		value, err := c.materialize(e)
		if err != nil {
			c.purgeCorrupt(ctx, key, err)
			return nil, false
		}
		return value, true
	}

	if w, ok := c.session.get(ctx, key); ok {
		value, e, err := c.reviveWire(w)
		if err != nil {
			c.purgeCorrupt(ctx, key, err)
			return nil, false
		}
		c.memory.Set(key, e)
		c.syncGauges()
		return value, true
	}

	if c.persistent != nil {
		if w, ok := c.persistent.get(ctx, key); ok {
			value, e, err := c.reviveWire(w)
			if err != nil {
				c.purgeCorrupt(ctx, key, err)
				return nil, false
			}
			c.memory.Set(key, e)
			if data, err := entry.EncodeWire(w); err == nil {
				c.session.put(ctx, key, data)
			}
			c.syncGauges()
			return value, true
		}
	}
	return nil, false
}

// load runs the Get loader under singleflight and fills the cache on
// success. Loader failures are logged and reported as a miss.
func (c *Cache) load(ctx context.Context, key string, o *getOptions) (any, bool) {
	start := time.Now()
	c.stats.loadStarted()
	defer c.stats.loadFinished()

	value, err, _ := c.sf.Do(key, func() (any, error) {
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}
		v, err := o.loader(ctx)
		if err != nil {
			return nil, err
		}
		setOpts := []SetOption{}
		if o.hasLoadTTL {
			setOpts = append(setOpts, WithTTL(o.loadTTL))
		}
		if err := c.Set(ctx, key, v, setOpts...); err != nil {
			c.logger.Warn("caching loaded value failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
		return v, nil
	})
	c.recordOperation(metrics.OperationLoad, time.Since(start))
	if err != nil {
		c.logger.Warn("loader failed",
			slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return value, true
}

// Set writes a value to the memory tier, mirrors it synchronously to the
// session tier, and stages it for the persistent tier unless
// WithPersist(false) is given. When the serialized payload crosses the
// compression threshold it is sealed before storage. Writing a key that is
// the source of an invalidation rule removes every cached key its targets
// match.
func (c *Cache) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	if c.closed.Load() {
		return fmt.Errorf("%w: cache is closed", ErrStorageAccess)
	}
	start := time.Now()
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	ttl := c.config.DefaultTTL
	if o.hasTTL {
		ttl = o.ttl
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serialize %q: %w", key, err)
	}

	stored, sealed, err := c.seal(payload, &o)
	if err != nil {
		c.logger.Warn("compression failed, storing plain",
			slog.String("key", key), slog.String("error", err.Error()))
		stored, sealed = payload, false
	}

	e := entry.New(value, len(stored), ttl)
	if sealed {
		e.Value = nil
		e.Data = stored
		e.Compressed = true
		c.stats.addCompressionSaved(int64(len(payload) - len(stored)))
	}

	c.memory.Set(key, e)

	if data, err := entry.EncodeWire(e.ToWire(stored)); err == nil {
		c.session.put(ctx, key, data)
		if c.persistent != nil && (!o.hasPersist || o.persist) {
			c.persistent.stage(key, data)
		}
	}

	c.applyCascade(ctx, key)
	c.syncGauges()
	c.stats.recordWrite(time.Since(start))
	c.recordOperation(metrics.OperationSet, time.Since(start))
	c.checkPressure(ctx)
	return nil
}

// seal runs the payload through the codec, honoring per-write overrides.
func (c *Cache) seal(payload []byte, o *setOptions) ([]byte, bool, error) {
	if o.hasCompress && !o.compress {
		return payload, false, nil
	}
	minSize := 0
	if !o.hasCompress {
		cfg := c.config.Compression
		if cfg == nil || !cfg.Enabled {
			return payload, false, nil
		}
		minSize = cfg.MinSize
	}
	return compression.Seal(payload, c.compressor, minSize)
}

// applyCascade removes every cached key matched by the invalidation targets
// of source. The freshly written source key itself is spared.
func (c *Cache) applyCascade(ctx context.Context, source string) {
	patterns := c.rules.cascade(source)
	if len(patterns) == 0 {
		return
	}

	seen := make(map[string]struct{})
	for _, key := range c.memory.Keys() {
		seen[key] = struct{}{}
	}
	for _, key := range c.session.keys(ctx) {
		seen[key] = struct{}{}
	}

	for key := range seen {
		if key == source || !matchAny(patterns, key) {
			continue
		}
		c.memory.Delete(key)
		c.session.delete(ctx, key)
		if c.persistent != nil {
			c.persistent.stageDelete(key)
		}
		c.stats.incInvalidations()
		c.hooks.invokeOnInvalidate(ctx, key)
	}
}

func matchAny(patterns []*regexp.Regexp, key string) bool {
	for _, re := range patterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// Delete removes a key from every tier. It reports whether the memory tier
// held the key.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	start := time.Now()
	removed := c.memory.Delete(key)
	c.session.delete(ctx, key)
	if c.persistent != nil {
		c.persistent.stageDelete(key)
	}
	c.syncGauges()
	c.recordOperation(metrics.OperationDelete, time.Since(start))
	return removed
}

// Clear empties every tier. The persistent tier has no enumeration, so
// clearing it advances an epoch: existing entries are treated as absent and
// purged as they are encountered. Clear is idempotent.
func (c *Cache) Clear(ctx context.Context) {
	start := time.Now()
	c.memory.Clear()
	c.session.clear(ctx)
	if c.persistent != nil {
		c.persistent.clear(time.Now())
	}
	c.syncGauges()
	c.recordOperation(metrics.OperationClear, time.Since(start))
}

// Remember returns the cached value for key, computing and caching it with
// the given TTL on a miss. Concurrent callers for one key share a single
// loader run. Nothing is cached when the loader fails, and the error is
// returned to every waiting caller.
func (c *Cache) Remember(ctx context.Context, key string, ttl time.Duration, loader LoaderFunc) (any, error) {
	if value, ok := c.lookup(ctx, key); ok {
		c.stats.incHits()
		c.hooks.invokeOnHit(ctx, key, value)
		return value, nil
	}
	c.stats.incMisses()
	c.hooks.invokeOnMiss(ctx, key)

	start := time.Now()
	c.stats.loadStarted()
	defer c.stats.loadFinished()

	value, err, _ := c.sf.Do(key, func() (any, error) {
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, v, WithTTL(ttl)); err != nil {
			c.logger.Warn("caching loaded value failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
		return v, nil
	})
	c.recordOperation(metrics.OperationLoad, time.Since(start))
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Has reports whether key is live in the memory tier without promoting or
// touching it.
func (c *Cache) Has(key string) bool {
	e, ok := c.memory.Peek(key)
	return ok && !e.IsExpired()
}

// Keys returns the keys currently held by the memory tier.
func (c *Cache) Keys() []string {
	return c.memory.Keys()
}

// Len returns the number of entries in the memory tier.
func (c *Cache) Len() int {
	return c.memory.Len()
}

// TTL returns the remaining lifetime of key in the memory tier. The boolean
// is false when the key is absent; a zero duration with a true boolean means
// the entry does not expire.
func (c *Cache) TTL(key string) (time.Duration, bool) {
	e, ok := c.memory.Peek(key)
	if !ok || e.IsExpired() {
		return 0, false
	}
	return e.TTL(), true
}

// AddInvalidationRule registers a dependency: whenever a key matching source
// is written, every cached key matching any target pattern is removed from
// all tiers. Patterns are dot-separated segments with at most one wildcard
// segment matching the rest of the key, as in "user.*".
func (c *Cache) AddInvalidationRule(source string, targets ...string) error {
	return c.rules.addRule(source, targets...)
}

// InvalidationRules returns the registered rules in registration order.
func (c *Cache) InvalidationRules() []InvalidationRule {
	return c.rules.rulesSnapshot()
}

// Stats returns a point-in-time snapshot of cache statistics.
func (c *Cache) Stats() StatsSnapshot {
	dirty := 0
	if c.persistent != nil {
		dirty = c.persistent.dirtyLen()
	}
	return StatsSnapshot{
		Hits:                  c.stats.Hits(),
		Misses:                c.stats.Misses(),
		Evictions:             c.stats.Evictions(),
		Invalidations:         c.stats.Invalidations(),
		MemoryEntries:         c.memory.Len(),
		MemoryBytes:           c.memory.SizeBytes(),
		MaxMemoryBytes:        c.memory.MaxBytes(),
		DirtyKeys:             dirty,
		CompressionSavedBytes: c.stats.CompressionSavedBytes(),
		GCHints:               c.stats.GCHints(),
		HitRate:               c.stats.HitRate(),
		MemoryUsageRatio:      c.usageRatio(),
		AvgReadLatency:        c.stats.AvgReadLatency(),
		AvgWriteLatency:       c.stats.AvgWriteLatency(),
		Pressure:              c.pressure.current(),
	}
}

// Flush forces any staged persistent writes out immediately.
func (c *Cache) Flush(ctx context.Context) error {
	if c.persistent == nil {
		return nil
	}
	start := time.Now()
	err := c.persistent.flush(ctx)
	c.recordOperation(metrics.OperationFlush, time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}
	return nil
}

// OnBackground is the host lifecycle signal that the process is being
// backgrounded and may be killed. It forces a persistent flush so staged
// writes survive.
func (c *Cache) OnBackground(ctx context.Context) {
	if err := c.Flush(ctx); err != nil {
		c.logger.Warn("background flush failed", slog.String("error", err.Error()))
	}
}

// Close flushes staged persistent writes, stops every background task, and
// releases tier and exporter resources. Close is idempotent. After Close,
// writes fail and mirror reads degrade to misses.
func (c *Cache) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error

	if c.persistent != nil {
		if err := c.persistent.flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush: %w", err))
		}
	}

	c.sched.close()

	if c.persistent != nil {
		c.persistent.close()
	}
	if err := c.session.close(); err != nil {
		errs = append(errs, fmt.Errorf("session store: %w", err))
	}

	if c.exporter != nil {
		c.reportMetrics()
		if err := c.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("metrics exporter: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Cleanup sweeps expired entries out of the memory and session tiers. It
// runs on the cleanup interval and may be called directly.
func (c *Cache) Cleanup(ctx context.Context) int {
	start := time.Now()
	removed := c.memory.Cleanup()
	c.session.cleanup(ctx, time.Now())
	c.syncGauges()
	c.recordOperation(metrics.OperationCleanup, time.Since(start))
	return removed
}

func (c *Cache) usageRatio() float64 {
	maxBytes := c.memory.MaxBytes()
	if maxBytes <= 0 {
		return 0
	}
	return float64(c.memory.SizeBytes()) / float64(maxBytes)
}

// checkPressure samples memory usage and lets the monitor classify it.
// Evaluations are debounced, so calling this on the write path is cheap.
func (c *Cache) checkPressure(ctx context.Context) {
	c.pressure.check(ctx, c.usageRatio(), time.Now())
}

// mitigateModerate compresses large plain entries in place and sweeps
// expired entries.
func (c *Cache) mitigateModerate(_ context.Context) {
	compressed := c.compressLargeEntries()
	removed := c.memory.Cleanup()
	c.syncGauges()
	c.logger.Info("moderate pressure mitigation",
		slog.Int("compressed", compressed),
		slog.Int("expired_removed", removed))
}

// mitigateCritical sheds load until usage is back under the recovery
// ratio: expired sweep, oldest-first eviction, idle purge, then a host GC
// hint on aggressive deployments. Evictions here report the pressure
// reason to hooks.
func (c *Cache) mitigateCritical(_ context.Context) {
	c.mitigating.Store(true)
	defer c.mitigating.Store(false)

	removed := c.memory.Cleanup()

	evicted := 0
	if maxBytes := c.memory.MaxBytes(); maxBytes > 0 {
		target := int64(criticalRecoveryRatio * float64(maxBytes))
		evicted = c.memory.EvictUntil(target)
	}

	purged := c.memory.PurgeIdle(idlePurgeAge, time.Now())

	if c.config.AggressiveGC && c.gcHint != nil {
		c.gcHint()
		c.stats.incGCHints()
	}

	c.syncGauges()
	c.logger.Warn("critical pressure mitigation",
		slog.Int("expired_removed", removed),
		slog.Int("evicted", evicted),
		slog.Int("idle_purged", purged),
		slog.Float64("usage_ratio", c.usageRatio()))
}

// compressLargeEntries seals plain entries above the codec threshold in
// place, releasing the difference. Sealing happens outside the store lock.
func (c *Cache) compressLargeEntries() int {
	cfg := c.config.Compression
	if cfg == nil || !cfg.Enabled {
		return 0
	}

	type candidate struct {
		key   string
		value any
	}
	var candidates []candidate
	c.memory.Range(func(key string, e *entry.Entry) bool {
		if !e.Compressed && e.SizeBytes >= cfg.MinSize {
			candidates = append(candidates, candidate{key: key, value: e.Value})
		}
		return true
	})

	compressed := 0
	for _, cand := range candidates {
		payload, err := json.Marshal(cand.value)
		if err != nil {
			continue
		}
		sealedData, sealed, err := compression.Seal(payload, c.compressor, cfg.MinSize)
		if err != nil || !sealed {
			continue
		}
		if c.memory.SwapCompressed(cand.key, sealedData, len(sealedData)) {
			c.stats.addCompressionSaved(int64(len(payload) - len(sealedData)))
			compressed++
		}
	}
	return compressed
}

// materialize returns the live value of a memory tier entry, opening the
// compression envelope when the entry is sealed.
func (c *Cache) materialize(e *entry.Entry) (any, error) {
	if !e.Compressed {
		return e.Value, nil
	}
	payload, err := compression.Open(e.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return value, nil
}

// reviveWire rebuilds a memory tier entry from its mirror form, preserving
// creation and expiration times, and returns the live value alongside it.
func (c *Cache) reviveWire(w entry.Wire) (any, *entry.Entry, error) {
	now := time.Now()
	e := &entry.Entry{
		SizeBytes:    w.SizeBytes,
		CreatedAt:    time.UnixMilli(w.CreatedAt),
		LastAccessed: now,
		ExpiresAt:    w.ExpiresTime(),
	}

	payload := w.Payload
	if w.Compressed {
		e.Data = w.Payload
		e.Compressed = true
		opened, err := compression.Open(w.Payload)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		}
		payload = opened
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if !w.Compressed {
		e.Value = value
	}
	return value, e, nil
}

// purgeCorrupt drops an undecodable entry from every tier.
func (c *Cache) purgeCorrupt(ctx context.Context, key string, err error) {
	c.logger.Warn("corrupt cache entry purged",
		slog.String("key", key), slog.String("error", err.Error()))
	c.memory.Delete(key)
	c.session.delete(ctx, key)
	if c.persistent != nil {
		c.persistent.stageDelete(key)
	}
}

func (c *Cache) syncGauges() {
	c.stats.setKeyCount(int64(c.memory.Len()))
	c.stats.setMemoryUsage(c.usageRatio())
}

func (c *Cache) recordOperation(op metrics.Operation, d time.Duration) {
	if c.exporter == nil {
		return
	}
	if err := c.exporter.RecordCacheOperation(op, d, c.metricLabels); err != nil {
		c.logger.Warn("metrics export failed", slog.String("error", err.Error()))
	}
}

func (c *Cache) reportMetrics() {
	if c.exporter == nil {
		return
	}
	c.syncGauges()
	if err := c.exporter.ExportStats(c.stats, c.metricLabels); err != nil {
		c.logger.Warn("metrics export failed", slog.String("error", err.Error()))
	}
}
