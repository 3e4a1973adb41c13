package tiercache

import (
	"context"
	"time"
)

// LoaderFunc computes a value on a cache miss. The cache runs it at most
// once per key across concurrent callers.
type LoaderFunc func(ctx context.Context) (any, error)

type getOptions struct {
	loader       LoaderFunc
	loadTTL      time.Duration
	hasLoadTTL   bool
	defaultValue any
	hasDefault   bool
}

// GetOption adjusts a single Get call.
type GetOption func(*getOptions)

// WithLoader computes and caches the value when the key is absent. Get has
// no error return, so a loader failure is logged and degrades to a plain
// miss; callers that need the loader error surfaced use Remember, which
// propagates it to every waiter.
func WithLoader(loader LoaderFunc) GetOption {
	return func(o *getOptions) {
		o.loader = loader
	}
}

// WithLoadTTL sets the TTL applied when WithLoader fills the cache. Without
// it the cache default applies.
func WithLoadTTL(ttl time.Duration) GetOption {
	return func(o *getOptions) {
		o.loadTTL = ttl
		o.hasLoadTTL = true
	}
}

// WithDefault makes Get return the given value, still reporting a miss,
// when the key is absent.
func WithDefault(value any) GetOption {
	return func(o *getOptions) {
		o.defaultValue = value
		o.hasDefault = true
	}
}

type setOptions struct {
	ttl         time.Duration
	hasTTL      bool
	persist     bool
	hasPersist  bool
	compress    bool
	hasCompress bool
}

// SetOption adjusts a single Set call.
type SetOption func(*setOptions)

// WithTTL overrides the default TTL for this write. Zero disables
// expiration for the entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
		o.hasTTL = true
	}
}

// WithPersist controls whether the entry is staged for the persistent
// tier. It has no effect when no persistent tier is configured.
func WithPersist(persist bool) SetOption {
	return func(o *setOptions) {
		o.persist = persist
		o.hasPersist = true
	}
}

// WithCompress overrides the codec decision for this write: true seals the
// payload regardless of the size threshold, false skips sealing.
func WithCompress(compress bool) SetOption {
	return func(o *setOptions) {
		o.compress = compress
		o.hasCompress = true
	}
}
