package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelConfig holds OpenTelemetry-specific exporter settings.
type OTelConfig struct {
	// MeterProvider supplies the meter. Defaults to the global provider.
	MeterProvider metric.MeterProvider
}

// OTelExporter exports cache metrics through the OpenTelemetry metric API.
type OTelExporter struct {
	meter metric.Meter
	names MetricNames

	hits             metric.Int64Gauge
	misses           metric.Int64Gauge
	evictions        metric.Int64Gauge
	invalidations    metric.Int64Gauge
	keyCount         metric.Int64Gauge
	inFlight         metric.Int64Gauge
	hitRate          metric.Float64Gauge
	memoryUsage      metric.Float64Gauge
	compressionSaved metric.Int64Gauge
	gcHints          metric.Int64Gauge

	operations metric.Int64Counter
	durations  metric.Float64Histogram

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
}

// NewOTelExporter creates an OpenTelemetry exporter.
func NewOTelExporter(config *Config, otelConfig *OTelConfig) (*OTelExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	provider := metric.MeterProvider(otel.GetMeterProvider())
	if otelConfig != nil && otelConfig.MeterProvider != nil {
		provider = otelConfig.MeterProvider
	}

	e := &OTelExporter{
		meter:      provider.Meter(config.Namespace),
		names:      DefaultMetricNames(),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Gauge),
	}

	var err error
	intGauge := func(name string) metric.Int64Gauge {
		if err != nil {
			return nil
		}
		var g metric.Int64Gauge
		g, err = e.meter.Int64Gauge(name)
		return g
	}

	e.hits = intGauge(e.names.CacheHitsTotal)
	e.misses = intGauge(e.names.CacheMissesTotal)
	e.evictions = intGauge(e.names.CacheEvictionsTotal)
	e.invalidations = intGauge(e.names.CacheInvalidationsTotal)
	e.keyCount = intGauge(e.names.CacheKeysCount)
	e.inFlight = intGauge(e.names.CacheInFlightLoads)
	e.compressionSaved = intGauge(e.names.CacheCompressionSaved)
	e.gcHints = intGauge(e.names.CacheGCHintsTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to create otel gauge: %w", err)
	}

	if e.hitRate, err = e.meter.Float64Gauge(e.names.CacheHitRate); err != nil {
		return nil, err
	}
	if e.memoryUsage, err = e.meter.Float64Gauge(e.names.CacheMemoryUsageRatio); err != nil {
		return nil, err
	}
	if e.operations, err = e.meter.Int64Counter(e.names.CacheOperationsTotal); err != nil {
		return nil, err
	}
	if e.durations, err = e.meter.Float64Histogram(e.names.CacheOperationDuration); err != nil {
		return nil, err
	}

	return e, nil
}

func otelAttrs(labels Labels) metric.MeasurementOption {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return metric.WithAttributes(attrs...)
}

// ExportStats records a full statistics snapshot.
func (e *OTelExporter) ExportStats(stats Stats, labels Labels) error {
	ctx := context.Background()
	attrs := otelAttrs(labels)
	e.hits.Record(ctx, stats.Hits(), attrs)
	e.misses.Record(ctx, stats.Misses(), attrs)
	e.evictions.Record(ctx, stats.Evictions(), attrs)
	e.invalidations.Record(ctx, stats.Invalidations(), attrs)
	e.keyCount.Record(ctx, stats.KeyCount(), attrs)
	e.inFlight.Record(ctx, stats.InFlight(), attrs)
	e.hitRate.Record(ctx, stats.HitRate(), attrs)
	e.memoryUsage.Record(ctx, stats.MemoryUsageRatio(), attrs)
	e.compressionSaved.Record(ctx, stats.CompressionSavedBytes(), attrs)
	e.gcHints.Record(ctx, stats.GCHints(), attrs)
	return nil
}

// RecordCacheOperation counts an operation and records its duration.
func (e *OTelExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	ctx := context.Background()
	attrs := make([]attribute.KeyValue, 0, len(labels)+1)
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	attrs = append(attrs, attribute.String("operation", string(operation)))
	opt := metric.WithAttributes(attrs...)
	e.operations.Add(ctx, 1, opt)
	e.durations.Record(ctx, duration.Seconds(), opt)
	return nil
}

// IncrementCounter increments a named counter.
func (e *OTelExporter) IncrementCounter(name string, labels Labels) error {
	e.mu.Lock()
	counter, ok := e.counters[name]
	if !ok {
		var err error
		counter, err = e.meter.Int64Counter(name)
		if err != nil {
			e.mu.Unlock()
			return err
		}
		e.counters[name] = counter
	}
	e.mu.Unlock()

	counter.Add(context.Background(), 1, otelAttrs(labels))
	return nil
}

// RecordHistogram records a value in a named histogram.
func (e *OTelExporter) RecordHistogram(name string, value float64, labels Labels) error {
	e.mu.Lock()
	histogram, ok := e.histograms[name]
	if !ok {
		var err error
		histogram, err = e.meter.Float64Histogram(name)
		if err != nil {
			e.mu.Unlock()
			return err
		}
		e.histograms[name] = histogram
	}
	e.mu.Unlock()

	histogram.Record(context.Background(), value, otelAttrs(labels))
	return nil
}

// SetGauge sets a named gauge.
func (e *OTelExporter) SetGauge(name string, value float64, labels Labels) error {
	e.mu.Lock()
	gauge, ok := e.gauges[name]
	if !ok {
		var err error
		gauge, err = e.meter.Float64Gauge(name)
		if err != nil {
			e.mu.Unlock()
			return err
		}
		e.gauges[name] = gauge
	}
	e.mu.Unlock()

	gauge.Record(context.Background(), value, otelAttrs(labels))
	return nil
}

// Close releases exporter resources.
func (e *OTelExporter) Close() error {
	return nil
}
