package tiercache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jamstermayne/tiercache-go/pkg/compression"
	"github.com/jamstermayne/tiercache-go/pkg/metrics"
)

// SessionStoreType selects the backend for the session mirror.
type SessionStoreType string

const (
	// SessionStoreMemory keeps the session mirror in an in-process map
	SessionStoreMemory SessionStoreType = "memory"

	// SessionStoreRedis keeps the session mirror in Redis
	SessionStoreRedis SessionStoreType = "redis"
)

// RedisConfig holds connection parameters for a Redis-backed tier. Client
// takes precedence over Addr when both are set.
type RedisConfig struct {
	Client    *redis.Client
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// PersistentConfig configures the persistent tier. Exactly one of Delegate
// or Redis supplies the storage; when both are nil the persistent tier is
// disabled and the cache runs on L1/L2 only.
type PersistentConfig struct {
	// Delegate is a caller-supplied persistent storage capability.
	Delegate PersistentDelegate

	// Redis configures the shipped Redis-backed delegate.
	Redis *RedisConfig
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	Enabled           bool
	Exporter          metrics.Exporter
	CacheName         string
	Labels            metrics.Labels
	ReportingInterval time.Duration
}

// Config holds the full cache configuration.
type Config struct {
	// MaxEntries bounds the number of entries in the memory tier.
	MaxEntries int

	// MaxSizeBytes bounds the estimated bytes held by the memory tier.
	// Zero disables the byte budget.
	MaxSizeBytes int64

	// DefaultTTL applies to writes that do not specify a TTL. Zero means
	// entries do not expire by default.
	DefaultTTL time.Duration

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration

	// DirtyBatchDelay is how long persistent writes are coalesced before a
	// batch flush. Each new dirty write re-arms the delay.
	DirtyBatchDelay time.Duration

	// PressureCheckInterval is how often memory pressure is sampled.
	PressureCheckInterval time.Duration

	// PressureDebounce is the minimum gap between pressure evaluations.
	PressureDebounce time.Duration

	// PressureThreshold is the usage ratio at which pressure becomes
	// critical. Moderate pressure begins at 0.7.
	PressureThreshold float64

	// AggressiveGC marks low-memory deployments; mitigation asks the host
	// for a GC hint on every critical transition when set.
	AggressiveGC bool

	// Compression configures the value compression codec.
	Compression *compression.Config

	// SessionStore selects the session mirror backend.
	SessionStore SessionStoreType

	// SessionRedis is required when SessionStore is SessionStoreRedis.
	SessionRedis *RedisConfig

	// Persistent configures the persistent tier; nil disables it.
	Persistent *PersistentConfig

	// Hooks receive cache lifecycle events.
	Hooks *Hooks

	// Metrics configures metrics export; nil disables it.
	Metrics *MetricsConfig

	// Logger receives degradation warnings. Nil discards them.
	Logger *slog.Logger

	// GCHint is an optional host capability invoked under critical
	// pressure. Nil is a no-op.
	GCHint func()
}

// NewDefaultConfig returns a configuration sized for a mid-range host:
// 1000 entries, 50MB, 5 minute TTL, compression above 1KB.
func NewDefaultConfig() *Config {
	return &Config{
		MaxEntries:            1000,
		MaxSizeBytes:          50 * 1024 * 1024,
		DefaultTTL:            5 * time.Minute,
		CleanupInterval:       time.Minute,
		DirtyBatchDelay:       500 * time.Millisecond,
		PressureCheckInterval: 15 * time.Second,
		PressureDebounce:      10 * time.Second,
		PressureThreshold:     0.9,
		Compression:           compression.NewDefaultConfig().WithEnabled(true),
		SessionStore:          SessionStoreMemory,
	}
}

// NewSimpleConfig returns a minimal memory-only configuration.
func NewSimpleConfig(maxEntries int, defaultTTL time.Duration) *Config {
	return NewDefaultConfig().
		WithMaxEntries(maxEntries).
		WithDefaultTTL(defaultTTL)
}

// WithMaxEntries sets the memory tier entry budget
func (c *Config) WithMaxEntries(maxEntries int) *Config {
	c.MaxEntries = maxEntries
	return c
}

// WithMaxSizeBytes sets the memory tier byte budget
func (c *Config) WithMaxSizeBytes(maxSizeBytes int64) *Config {
	c.MaxSizeBytes = maxSizeBytes
	return c
}

// WithDefaultTTL sets the default entry TTL
func (c *Config) WithDefaultTTL(ttl time.Duration) *Config {
	c.DefaultTTL = ttl
	return c
}

// WithCleanupInterval sets the expired-entry sweep interval
func (c *Config) WithCleanupInterval(interval time.Duration) *Config {
	c.CleanupInterval = interval
	return c
}

// WithDirtyBatchDelay sets the persistent write coalescing delay
func (c *Config) WithDirtyBatchDelay(delay time.Duration) *Config {
	c.DirtyBatchDelay = delay
	return c
}

// WithPressureThreshold sets the critical pressure ratio
func (c *Config) WithPressureThreshold(threshold float64) *Config {
	c.PressureThreshold = threshold
	return c
}

// WithCompression sets the compression config
func (c *Config) WithCompression(compressionConfig *compression.Config) *Config {
	c.Compression = compressionConfig
	return c
}

// WithSessionRedis backs the session mirror with Redis
func (c *Config) WithSessionRedis(redisConfig *RedisConfig) *Config {
	c.SessionStore = SessionStoreRedis
	c.SessionRedis = redisConfig
	return c
}

// WithPersistent sets the persistent tier config
func (c *Config) WithPersistent(persistent *PersistentConfig) *Config {
	c.Persistent = persistent
	return c
}

// WithHooks sets the cache hooks
func (c *Config) WithHooks(hooks *Hooks) *Config {
	c.Hooks = hooks
	return c
}

// WithMetrics sets the metrics config
func (c *Config) WithMetrics(metricsConfig *MetricsConfig) *Config {
	c.Metrics = metricsConfig
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}

// WithGCHint sets the host GC hint capability
func (c *Config) WithGCHint(hint func()) *Config {
	c.GCHint = hint
	return c
}

// Validate checks the configuration for construction-time errors.
func (c *Config) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("%w: MaxEntries must be positive, got %d", ErrInvalidConfig, c.MaxEntries)
	}
	if c.MaxSizeBytes < 0 {
		return fmt.Errorf("%w: MaxSizeBytes must not be negative, got %d", ErrInvalidConfig, c.MaxSizeBytes)
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("%w: DefaultTTL must not be negative, got %v", ErrInvalidConfig, c.DefaultTTL)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("%w: CleanupInterval must be positive, got %v", ErrInvalidConfig, c.CleanupInterval)
	}
	if c.DirtyBatchDelay <= 0 {
		return fmt.Errorf("%w: DirtyBatchDelay must be positive, got %v", ErrInvalidConfig, c.DirtyBatchDelay)
	}
	if c.PressureThreshold <= pressureModerateRatio || c.PressureThreshold > 1 {
		return fmt.Errorf("%w: PressureThreshold must be in (%.1f, 1.0], got %v",
			ErrInvalidConfig, pressureModerateRatio, c.PressureThreshold)
	}
	if c.SessionStore == SessionStoreRedis && c.SessionRedis == nil {
		return fmt.Errorf("%w: SessionRedis is required for the redis session store", ErrInvalidConfig)
	}
	return nil
}
