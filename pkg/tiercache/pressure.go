package tiercache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// pressureModerateRatio is the usage ratio at which pressure leaves
	// the normal range.
	pressureModerateRatio = 0.7

	// criticalRecoveryRatio is the usage ratio aggressive cleanup evicts
	// down to, relative to the byte budget.
	criticalRecoveryRatio = 0.8

	// idlePurgeAge is how long an entry may go untouched before
	// aggressive cleanup drops it.
	idlePurgeAge = 5 * time.Minute
)

// PressureLevel classifies memory tier usage against its budget.
type PressureLevel int

const (
	// PressureNormal means usage is below the moderate ratio
	PressureNormal PressureLevel = iota

	// PressureModerate means usage is between the moderate ratio and the
	// configured critical threshold
	PressureModerate

	// PressureCritical means usage is at or above the critical threshold
	PressureCritical
)

func (l PressureLevel) String() string {
	switch l {
	case PressureModerate:
		return "moderate"
	case PressureCritical:
		return "critical"
	default:
		return "normal"
	}
}

// pressureMonitor watches the memory usage ratio and triggers mitigation
// when the level rises. Evaluations are debounced; between evaluations
// the last classified level holds.
type pressureMonitor struct {
	threshold  float64
	debounce   time.Duration
	logger     *slog.Logger
	onModerate func(context.Context)
	onCritical func(context.Context)

	mu        sync.Mutex
	level     PressureLevel
	lastCheck time.Time
}

func newPressureMonitor(threshold float64, debounce time.Duration, logger *slog.Logger) *pressureMonitor {
	return &pressureMonitor{
		threshold: threshold,
		debounce:  debounce,
		logger:    logger,
	}
}

func (m *pressureMonitor) classify(ratio float64) PressureLevel {
	switch {
	case ratio >= m.threshold:
		return PressureCritical
	case ratio >= pressureModerateRatio:
		return PressureModerate
	default:
		return PressureNormal
	}
}

// check evaluates the usage ratio, updates the level, and runs mitigation
// when the level rose since the previous evaluation. Calls inside the
// debounce window return the held level without evaluating.
func (m *pressureMonitor) check(ctx context.Context, ratio float64, now time.Time) PressureLevel {
	m.mu.Lock()
	if !m.lastCheck.IsZero() && now.Sub(m.lastCheck) < m.debounce {
		held := m.level
		m.mu.Unlock()
		return held
	}
	m.lastCheck = now

	prev := m.level
	next := m.classify(ratio)
	m.level = next
	m.mu.Unlock()

	if next == prev {
		return next
	}

	m.logger.Info("memory pressure level changed",
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
		slog.Float64("usage_ratio", ratio))

	if next > prev {
		switch next {
		case PressureModerate:
			if m.onModerate != nil {
				m.onModerate(ctx)
			}
		case PressureCritical:
			if m.onCritical != nil {
				m.onCritical(ctx)
			}
		}
	}
	return next
}

// current returns the last classified level.
func (m *pressureMonitor) current() PressureLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}
