package metrics

import "time"

// NoOpExporter discards all metrics. It is the default when no exporter is
// configured.
type NoOpExporter struct{}

// NewNoOpExporter creates an exporter that discards everything.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

// ExportStats does nothing.
func (n *NoOpExporter) ExportStats(Stats, Labels) error { return nil }

// RecordCacheOperation does nothing.
func (n *NoOpExporter) RecordCacheOperation(Operation, time.Duration, Labels) error { return nil }

// IncrementCounter does nothing.
func (n *NoOpExporter) IncrementCounter(string, Labels) error { return nil }

// RecordHistogram does nothing.
func (n *NoOpExporter) RecordHistogram(string, float64, Labels) error { return nil }

// SetGauge does nothing.
func (n *NoOpExporter) SetGauge(string, float64, Labels) error { return nil }

// Close does nothing.
func (n *NoOpExporter) Close() error { return nil }
