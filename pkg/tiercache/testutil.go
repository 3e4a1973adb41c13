package tiercache

import "time"

// Test and example constants for consistent usage across the codebase.
const (
	// TestTTL is the standard TTL used in test cases
	TestTTL = time.Hour

	// TestShortTTL is used for tests that need quick expiration
	TestShortTTL = 10 * time.Millisecond

	// TestBatchDelay keeps write-behind flushes fast in tests
	TestBatchDelay = 20 * time.Millisecond

	// TestMetricsReportInterval for fast metrics reporting in tests
	TestMetricsReportInterval = 30 * time.Millisecond

	// ExampleTTL for documentation examples
	ExampleTTL = 30 * time.Minute
)
