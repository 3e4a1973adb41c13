package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusConfig holds Prometheus-specific exporter settings.
type PrometheusConfig struct {
	// Registry is the registerer to attach metrics to. Defaults to the
	// global default registerer.
	Registry prometheus.Registerer
}

// PrometheusExporter exports cache metrics to Prometheus. Snapshot counters
// are mirrored as gauges since the cache owns the authoritative totals.
type PrometheusExporter struct {
	registry prometheus.Registerer
	names    MetricNames

	hits             *prometheus.GaugeVec
	misses           *prometheus.GaugeVec
	evictions        *prometheus.GaugeVec
	invalidations    *prometheus.GaugeVec
	keyCount         *prometheus.GaugeVec
	inFlight         *prometheus.GaugeVec
	hitRate          *prometheus.GaugeVec
	memoryUsage      *prometheus.GaugeVec
	compressionSaved *prometheus.GaugeVec
	gcHints          *prometheus.GaugeVec

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec

	mu         sync.Mutex
	namespace  string
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusExporter creates a Prometheus exporter.
func NewPrometheusExporter(config *Config, promConfig *PrometheusConfig) (*PrometheusExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	registry := prometheus.Registerer(prometheus.DefaultRegisterer)
	if promConfig != nil && promConfig.Registry != nil {
		registry = promConfig.Registry
	}

	e := &PrometheusExporter{
		registry:   registry,
		names:      DefaultMetricNames(),
		namespace:  config.Namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	cacheLabel := []string{"cache"}
	newGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, cacheLabel)
	}

	e.hits = newGauge(e.names.CacheHitsTotal, "Total cache hits.")
	e.misses = newGauge(e.names.CacheMissesTotal, "Total cache misses.")
	e.evictions = newGauge(e.names.CacheEvictionsTotal, "Total cache evictions.")
	e.invalidations = newGauge(e.names.CacheInvalidationsTotal, "Total cache invalidations.")
	e.keyCount = newGauge(e.names.CacheKeysCount, "Current number of cached keys.")
	e.inFlight = newGauge(e.names.CacheInFlightLoads, "Loader calls currently in flight.")
	e.hitRate = newGauge(e.names.CacheHitRate, "Cache hit ratio.")
	e.memoryUsage = newGauge(e.names.CacheMemoryUsageRatio, "Memory tier usage relative to budget.")
	e.compressionSaved = newGauge(e.names.CacheCompressionSaved, "Total bytes saved by compression.")
	e.gcHints = newGauge(e.names.CacheGCHintsTotal, "Total GC hints requested under pressure.")

	e.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: e.names.CacheOperationsTotal,
		Help: "Total cache operations by type.",
	}, []string{"cache", "operation"})
	e.durations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    e.names.CacheOperationDuration,
		Help:    "Cache operation duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"cache", "operation"})

	collectors := []prometheus.Collector{
		e.hits, e.misses, e.evictions, e.invalidations, e.keyCount, e.inFlight,
		e.hitRate, e.memoryUsage, e.compressionSaved, e.gcHints,
		e.operations, e.durations,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register prometheus collector: %w", err)
		}
	}

	return e, nil
}

func cacheName(labels Labels) string {
	if name, ok := labels["cache_name"]; ok && name != "" {
		return name
	}
	return "default"
}

// ExportStats mirrors a full statistics snapshot.
func (e *PrometheusExporter) ExportStats(stats Stats, labels Labels) error {
	name := cacheName(labels)
	e.hits.WithLabelValues(name).Set(float64(stats.Hits()))
	e.misses.WithLabelValues(name).Set(float64(stats.Misses()))
	e.evictions.WithLabelValues(name).Set(float64(stats.Evictions()))
	e.invalidations.WithLabelValues(name).Set(float64(stats.Invalidations()))
	e.keyCount.WithLabelValues(name).Set(float64(stats.KeyCount()))
	e.inFlight.WithLabelValues(name).Set(float64(stats.InFlight()))
	e.hitRate.WithLabelValues(name).Set(stats.HitRate())
	e.memoryUsage.WithLabelValues(name).Set(stats.MemoryUsageRatio())
	e.compressionSaved.WithLabelValues(name).Set(float64(stats.CompressionSavedBytes()))
	e.gcHints.WithLabelValues(name).Set(float64(stats.GCHints()))
	return nil
}

// RecordCacheOperation counts an operation and observes its duration.
func (e *PrometheusExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	name := cacheName(labels)
	e.operations.WithLabelValues(name, string(operation)).Inc()
	e.durations.WithLabelValues(name, string(operation)).Observe(duration.Seconds())
	return nil
}

// IncrementCounter increments a namespaced ad hoc counter.
func (e *PrometheusExporter) IncrementCounter(name string, labels Labels) error {
	e.mu.Lock()
	vec, ok := e.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: e.namespace,
			Name:      name,
		}, []string{"cache"})
		if err := e.registry.Register(vec); err != nil {
			e.mu.Unlock()
			return err
		}
		e.counters[name] = vec
	}
	e.mu.Unlock()

	vec.WithLabelValues(cacheName(labels)).Inc()
	return nil
}

// RecordHistogram records a value in a namespaced ad hoc histogram.
func (e *PrometheusExporter) RecordHistogram(name string, value float64, labels Labels) error {
	e.mu.Lock()
	vec, ok := e.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: e.namespace,
			Name:      name,
		}, []string{"cache"})
		if err := e.registry.Register(vec); err != nil {
			e.mu.Unlock()
			return err
		}
		e.histograms[name] = vec
	}
	e.mu.Unlock()

	vec.WithLabelValues(cacheName(labels)).Observe(value)
	return nil
}

// SetGauge sets a namespaced ad hoc gauge.
func (e *PrometheusExporter) SetGauge(name string, value float64, labels Labels) error {
	e.mu.Lock()
	vec, ok := e.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: e.namespace,
			Name:      name,
		}, []string{"cache"})
		if err := e.registry.Register(vec); err != nil {
			e.mu.Unlock()
			return err
		}
		e.gauges[name] = vec
	}
	e.mu.Unlock()

	vec.WithLabelValues(cacheName(labels)).Set(value)
	return nil
}

// Close releases exporter resources.
func (e *PrometheusExporter) Close() error {
	return nil
}
