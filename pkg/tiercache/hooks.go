package tiercache

import (
	"context"
	"sort"
)

// Hook defines a cache event hook with optional priority and condition
type Hook struct {
	// Priority determines execution order (higher values execute first)
	Priority int

	// Condition optionally filters hook execution; nil always executes
	Condition func(ctx context.Context, key string) bool

	// Set exactly one of: OnHit, OnMiss, OnEvict, OnInvalidate
	OnHit        func(ctx context.Context, key string, value any)
	OnMiss       func(ctx context.Context, key string)
	OnEvict      func(ctx context.Context, key string, reason EvictReason)
	OnInvalidate func(ctx context.Context, key string)
}

// Hooks contains all registered cache event hooks
type Hooks struct {
	onHit        []Hook
	onMiss       []Hook
	onEvict      []Hook
	onInvalidate []Hook
}

// NewHooks creates a new Hooks instance
func NewHooks() *Hooks {
	return &Hooks{}
}

// EvictReason indicates why a cache entry was removed
type EvictReason int

const (
	// EvictReasonCapacity indicates the entry was evicted by the entry or
	// byte budget
	EvictReasonCapacity EvictReason = iota

	// EvictReasonTTL indicates the entry expired
	EvictReasonTTL

	// EvictReasonPressure indicates the entry was shed by pressure
	// mitigation
	EvictReasonPressure
)

func (r EvictReason) String() string {
	switch r {
	case EvictReasonCapacity:
		return "Capacity"
	case EvictReasonTTL:
		return "TTL"
	case EvictReasonPressure:
		return "Pressure"
	default:
		return "Unknown"
	}
}

// AddOnHit registers a hook that executes on cache hits
func (h *Hooks) AddOnHit(fn func(ctx context.Context, key string, value any), opts ...HookOption) {
	hook := Hook{OnHit: fn}
	for _, opt := range opts {
		opt(&hook)
	}
	h.onHit = append(h.onHit, hook)
}

// AddOnMiss registers a hook that executes on cache misses
func (h *Hooks) AddOnMiss(fn func(ctx context.Context, key string), opts ...HookOption) {
	hook := Hook{OnMiss: fn}
	for _, opt := range opts {
		opt(&hook)
	}
	h.onMiss = append(h.onMiss, hook)
}

// AddOnEvict registers a hook that executes when entries are evicted
func (h *Hooks) AddOnEvict(fn func(ctx context.Context, key string, reason EvictReason), opts ...HookOption) {
	hook := Hook{OnEvict: fn}
	for _, opt := range opts {
		opt(&hook)
	}
	h.onEvict = append(h.onEvict, hook)
}

// AddOnInvalidate registers a hook that executes when entries are invalidated
func (h *Hooks) AddOnInvalidate(fn func(ctx context.Context, key string), opts ...HookOption) {
	hook := Hook{OnInvalidate: fn}
	for _, opt := range opts {
		opt(&hook)
	}
	h.onInvalidate = append(h.onInvalidate, hook)
}

// HookOption configures a hook
type HookOption func(*Hook)

// WithPriority sets the hook execution priority (higher values execute first)
func WithPriority(priority int) HookOption {
	return func(h *Hook) {
		h.Priority = priority
	}
}

// WithCondition sets a condition that must be true for the hook to execute
func WithCondition(condition func(ctx context.Context, key string) bool) HookOption {
	return func(h *Hook) {
		h.Condition = condition
	}
}

func (h *Hooks) invokeOnHit(ctx context.Context, key string, value any) {
	h.invokeHooks(h.onHit, func(hook Hook) {
		if hook.Condition == nil || hook.Condition(ctx, key) {
			hook.OnHit(ctx, key, value)
		}
	})
}

func (h *Hooks) invokeOnMiss(ctx context.Context, key string) {
	h.invokeHooks(h.onMiss, func(hook Hook) {
		if hook.Condition == nil || hook.Condition(ctx, key) {
			hook.OnMiss(ctx, key)
		}
	})
}

func (h *Hooks) invokeOnEvict(ctx context.Context, key string, reason EvictReason) {
	h.invokeHooks(h.onEvict, func(hook Hook) {
		if hook.Condition == nil || hook.Condition(ctx, key) {
			hook.OnEvict(ctx, key, reason)
		}
	})
}

func (h *Hooks) invokeOnInvalidate(ctx context.Context, key string) {
	h.invokeHooks(h.onInvalidate, func(hook Hook) {
		if hook.Condition == nil || hook.Condition(ctx, key) {
			hook.OnInvalidate(ctx, key)
		}
	})
}

// invokeHooks executes hooks in priority order (highest priority first)
func (h *Hooks) invokeHooks(hooks []Hook, execute func(Hook)) {
	if len(hooks) == 0 {
		return
	}

	if len(hooks) > 1 {
		sorted := make([]Hook, len(hooks))
		copy(sorted, hooks)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Priority > sorted[j].Priority
		})
		hooks = sorted
	}

	for _, hook := range hooks {
		execute(hook)
	}
}
