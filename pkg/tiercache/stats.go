package tiercache

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// latencyAlpha weights the exponential moving average of operation latency.
const latencyAlpha = 0.2

// Stats tracks cache counters. All fields are updated atomically; the
// exported accessors satisfy the metrics.Stats interface.
type Stats struct {
	hits             atomic.Int64
	misses           atomic.Int64
	evictions        atomic.Int64
	invalidations    atomic.Int64
	keyCount         atomic.Int64
	inFlight         atomic.Int64
	compressionSaved atomic.Int64
	gcHints          atomic.Int64

	memoryUsageBits  atomic.Uint64
	readLatencyBits  atomic.Uint64
	writeLatencyBits atomic.Uint64
}

// Hits returns the total number of cache hits across all tiers.
func (s *Stats) Hits() int64 { return s.hits.Load() }

// Misses returns the total number of cache misses.
func (s *Stats) Misses() int64 { return s.misses.Load() }

// Evictions returns the total entries removed by capacity, byte budget,
// expiry sweeps, or pressure mitigation.
func (s *Stats) Evictions() int64 { return s.evictions.Load() }

// Invalidations returns the total entries removed by invalidation rule
// cascades.
func (s *Stats) Invalidations() int64 { return s.invalidations.Load() }

// KeyCount returns the current number of memory tier entries.
func (s *Stats) KeyCount() int64 { return s.keyCount.Load() }

// InFlight returns the number of loader calls currently running.
func (s *Stats) InFlight() int64 { return s.inFlight.Load() }

// CompressionSavedBytes returns the total bytes saved by compression.
func (s *Stats) CompressionSavedBytes() int64 { return s.compressionSaved.Load() }

// GCHints returns how many GC hints were requested under pressure.
func (s *Stats) GCHints() int64 { return s.gcHints.Load() }

// HitRate returns the hit ratio over all lookups, in [0, 1].
func (s *Stats) HitRate() float64 {
	hits := s.hits.Load()
	total := hits + s.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// MemoryUsageRatio returns memory tier usage relative to the byte budget.
func (s *Stats) MemoryUsageRatio() float64 {
	return math.Float64frombits(s.memoryUsageBits.Load())
}

// AvgReadLatency returns the moving-average Get latency.
func (s *Stats) AvgReadLatency() time.Duration {
	return time.Duration(math.Float64frombits(s.readLatencyBits.Load()))
}

// AvgWriteLatency returns the moving-average Set latency.
func (s *Stats) AvgWriteLatency() time.Duration {
	return time.Duration(math.Float64frombits(s.writeLatencyBits.Load()))
}

func (s *Stats) incHits()          { s.hits.Add(1) }
func (s *Stats) incMisses()        { s.misses.Add(1) }
func (s *Stats) incEvictions()     { s.evictions.Add(1) }
func (s *Stats) incInvalidations() { s.invalidations.Add(1) }
func (s *Stats) incGCHints()       { s.gcHints.Add(1) }

func (s *Stats) addCompressionSaved(bytes int64) {
	if bytes > 0 {
		s.compressionSaved.Add(bytes)
	}
}

func (s *Stats) setKeyCount(count int64)      { s.keyCount.Store(count) }
func (s *Stats) setMemoryUsage(ratio float64) { s.memoryUsageBits.Store(math.Float64bits(ratio)) }

func (s *Stats) loadStarted()  { s.inFlight.Add(1) }
func (s *Stats) loadFinished() { s.inFlight.Add(-1) }

func (s *Stats) recordRead(d time.Duration)  { ema(&s.readLatencyBits, d) }
func (s *Stats) recordWrite(d time.Duration) { ema(&s.writeLatencyBits, d) }

func ema(bits *atomic.Uint64, sample time.Duration) {
	for {
		old := bits.Load()
		prev := math.Float64frombits(old)
		next := float64(sample)
		if prev != 0 {
			next = latencyAlpha*float64(sample) + (1-latencyAlpha)*prev
		}
		if bits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

// StatsSnapshot is a point-in-time view of cache statistics.
type StatsSnapshot struct {
	Hits                  int64
	Misses                int64
	Evictions             int64
	Invalidations         int64
	MemoryEntries         int
	MemoryBytes           int64
	MaxMemoryBytes        int64
	DirtyKeys             int
	CompressionSavedBytes int64
	GCHints               int64
	HitRate               float64
	MemoryUsageRatio      float64
	AvgReadLatency        time.Duration
	AvgWriteLatency       time.Duration
	Pressure              PressureLevel
}

// Recommendations returns advisory tuning suggestions derived from the
// snapshot. They have no behavioral effect.
func (s StatsSnapshot) Recommendations() []string {
	var out []string

	if s.Hits+s.Misses >= 100 && s.HitRate < 0.5 {
		out = append(out, fmt.Sprintf(
			"hit ratio below 50%% (%.0f%%): increase TTLs or the cache budget", s.HitRate*100))
	}
	if s.MemoryUsageRatio > 0.9 && s.MaxMemoryBytes > 0 {
		out = append(out, fmt.Sprintf(
			"memory usage above 90%% of budget (%s of %s): raise MaxSizeBytes or lower TTLs",
			humanize.IBytes(uint64(s.MemoryBytes)), humanize.IBytes(uint64(s.MaxMemoryBytes))))
	}
	if s.Hits+s.Misses >= 100 && s.Evictions > (s.Hits+s.Misses)/2 {
		out = append(out, "evictions outpacing lookups: the entry budget is too small for the working set")
	}
	if s.DirtyKeys > 100 {
		out = append(out, fmt.Sprintf(
			"%d keys waiting on persistence: the persistent store is slow or failing", s.DirtyKeys))
	}

	return out
}
