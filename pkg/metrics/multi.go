package metrics

import "time"

// MultiExporter fans metrics out to several exporters. Every exporter is
// called even if an earlier one fails; the first error is returned.
type MultiExporter struct {
	exporters []Exporter
}

// NewMultiExporter creates an exporter that forwards to all given exporters.
func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{exporters: exporters}
}

// ExportStats forwards to all exporters.
func (m *MultiExporter) ExportStats(stats Stats, labels Labels) error {
	var firstErr error
	for _, e := range m.exporters {
		if err := e.ExportStats(stats, labels); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecordCacheOperation forwards to all exporters.
func (m *MultiExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	var firstErr error
	for _, e := range m.exporters {
		if err := e.RecordCacheOperation(operation, duration, labels); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IncrementCounter forwards to all exporters.
func (m *MultiExporter) IncrementCounter(name string, labels Labels) error {
	var firstErr error
	for _, e := range m.exporters {
		if err := e.IncrementCounter(name, labels); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecordHistogram forwards to all exporters.
func (m *MultiExporter) RecordHistogram(name string, value float64, labels Labels) error {
	var firstErr error
	for _, e := range m.exporters {
		if err := e.RecordHistogram(name, value, labels); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetGauge forwards to all exporters.
func (m *MultiExporter) SetGauge(name string, value float64, labels Labels) error {
	var firstErr error
	for _, e := range m.exporters {
		if err := e.SetGauge(name, value, labels); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all exporters.
func (m *MultiExporter) Close() error {
	var firstErr error
	for _, e := range m.exporters {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
