// Package metrics defines the cache metrics export surface with no-op,
// multi, Prometheus, and OpenTelemetry exporters.
package metrics

import (
	"time"
)

// Labels is a set of key/value pairs attached to every exported metric.
type Labels map[string]string

// Operation identifies a cache operation for metrics purposes.
type Operation string

const (
	// OperationGet is a cache read
	OperationGet Operation = "get"

	// OperationSet is a cache write
	OperationSet Operation = "set"

	// OperationDelete is a single-key removal
	OperationDelete Operation = "delete"

	// OperationClear is a full cache clear
	OperationClear Operation = "clear"

	// OperationFlush is a persistent-tier batch flush
	OperationFlush Operation = "flush"

	// OperationCleanup is an expired-entry sweep
	OperationCleanup Operation = "cleanup"

	// OperationLoad is a loader invocation on a cache miss
	OperationLoad Operation = "load"
)

// Result classifies the outcome of an operation.
type Result string

const (
	ResultHit   Result = "hit"
	ResultMiss  Result = "miss"
	ResultError Result = "error"
)

// Stats is the read-only statistics view consumed by exporters.
type Stats interface {
	Hits() int64
	Misses() int64
	Evictions() int64
	Invalidations() int64
	KeyCount() int64
	InFlight() int64
	CompressionSavedBytes() int64
	GCHints() int64
	HitRate() float64
	MemoryUsageRatio() float64
}

// Exporter exports cache metrics to a monitoring backend.
type Exporter interface {
	// ExportStats exports a full statistics snapshot
	ExportStats(stats Stats, labels Labels) error

	// RecordCacheOperation records a single operation with its duration
	RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error

	// IncrementCounter increments a named counter
	IncrementCounter(name string, labels Labels) error

	// RecordHistogram records a value in a named histogram
	RecordHistogram(name string, value float64, labels Labels) error

	// SetGauge sets a named gauge
	SetGauge(name string, value float64, labels Labels) error

	// Close releases exporter resources
	Close() error
}

// MetricNames holds the names used for exported metrics.
type MetricNames struct {
	CacheHitsTotal          string
	CacheMissesTotal        string
	CacheEvictionsTotal     string
	CacheInvalidationsTotal string
	CacheOperationsTotal    string
	CacheErrorsTotal        string
	CacheOperationDuration  string
	CacheKeysCount          string
	CacheInFlightLoads      string
	CacheHitRate            string
	CacheMemoryUsageRatio   string
	CacheCompressionSaved   string
	CacheGCHintsTotal       string
}

// DefaultMetricNames returns the default metric names.
func DefaultMetricNames() MetricNames {
	return MetricNames{
		CacheHitsTotal:          "tiercache_hits_total",
		CacheMissesTotal:        "tiercache_misses_total",
		CacheEvictionsTotal:     "tiercache_evictions_total",
		CacheInvalidationsTotal: "tiercache_invalidations_total",
		CacheOperationsTotal:    "tiercache_operations_total",
		CacheErrorsTotal:        "tiercache_errors_total",
		CacheOperationDuration:  "tiercache_operation_duration_seconds",
		CacheKeysCount:          "tiercache_keys_count",
		CacheInFlightLoads:      "tiercache_inflight_loads",
		CacheHitRate:            "tiercache_hit_rate",
		CacheMemoryUsageRatio:   "tiercache_memory_usage_ratio",
		CacheCompressionSaved:   "tiercache_compression_saved_bytes_total",
		CacheGCHintsTotal:       "tiercache_gc_hints_total",
	}
}

// Config holds metrics configuration.
type Config struct {
	// Enabled turns metrics export on
	Enabled bool

	// Namespace prefixes generic counters, histograms, and gauges
	Namespace string

	// Labels are attached to every exported metric
	Labels Labels

	// ReportingInterval is how often a full stats snapshot is exported
	ReportingInterval time.Duration
}

// NewDefaultConfig returns a metrics config with sane defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		Namespace:         "tiercache",
		Labels:            Labels{},
		ReportingInterval: 30 * time.Second,
	}
}

// WithNamespace sets the metric namespace
func (c *Config) WithNamespace(namespace string) *Config {
	c.Namespace = namespace
	return c
}

// WithLabels sets the base labels
func (c *Config) WithLabels(labels Labels) *Config {
	c.Labels = labels
	return c
}

// WithReportingInterval sets how often stats snapshots are exported
func (c *Config) WithReportingInterval(interval time.Duration) *Config {
	c.ReportingInterval = interval
	return c
}
