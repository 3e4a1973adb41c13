package tiercache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jamstermayne/tiercache-go/internal/entry"
	"github.com/jamstermayne/tiercache-go/internal/store/kv"
)

// PersistentDelegate is the storage capability the persistent tier runs on.
// Get reads one entry; BatchWrite applies a set of coalesced writes in one
// operation, where a nil value deletes the key. The delegate does not need
// key enumeration.
type PersistentDelegate interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	BatchWrite(ctx context.Context, batch map[string][]byte) error
}

// sessionTier mirrors entries into a session-scoped key-value store with
// synchronous writes. Every operation is fail-soft: storage errors degrade
// to a miss or a dropped mirror write, with a warning, never a caller error.
type sessionTier struct {
	store  kv.Store
	logger *slog.Logger
}

func newSessionTier(store kv.Store, logger *slog.Logger) *sessionTier {
	return &sessionTier{store: store, logger: logger}
}

// get reads a mirrored entry. Corrupt and expired entries are purged and
// reported as misses.
func (t *sessionTier) get(ctx context.Context, key string) (entry.Wire, bool) {
	data, ok, err := t.store.Get(ctx, key)
	if err != nil {
		t.logger.Warn("session tier read failed",
			slog.String("key", key), slog.String("error", err.Error()))
		return entry.Wire{}, false
	}
	if !ok {
		return entry.Wire{}, false
	}

	w, err := entry.DecodeWire(data)
	if err != nil {
		t.logger.Warn("session tier entry corrupt, purging",
			slog.String("key", key), slog.String("error", err.Error()))
		t.delete(ctx, key)
		return entry.Wire{}, false
	}
	if w.IsExpiredAt(time.Now()) {
		t.delete(ctx, key)
		return entry.Wire{}, false
	}
	return w, true
}

// put mirrors an encoded entry synchronously.
func (t *sessionTier) put(ctx context.Context, key string, data []byte) {
	if err := t.store.Set(ctx, key, data); err != nil {
		t.logger.Warn("session tier write failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (t *sessionTier) delete(ctx context.Context, key string) {
	if err := t.store.Delete(ctx, key); err != nil {
		t.logger.Warn("session tier delete failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
}

// keys enumerates the mirrored keys. A scan failure degrades to an empty
// result.
func (t *sessionTier) keys(ctx context.Context) []string {
	keys, err := t.store.Keys(ctx)
	if err != nil {
		t.logger.Warn("session tier key scan failed", slog.String("error", err.Error()))
		return nil
	}
	return keys
}

func (t *sessionTier) clear(ctx context.Context) {
	for _, key := range t.keys(ctx) {
		t.delete(ctx, key)
	}
}

// cleanup sweeps expired entries out of the mirror.
func (t *sessionTier) cleanup(ctx context.Context, now time.Time) {
	for _, key := range t.keys(ctx) {
		data, ok, err := t.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		w, err := entry.DecodeWire(data)
		if err != nil || w.IsExpiredAt(now) {
			t.delete(ctx, key)
		}
	}
}

func (t *sessionTier) close() error {
	return t.store.Close()
}

// persistentTier reads through a delegate and stages writes on the batcher.
// The delegate has no enumeration, so Clear is an epoch: entries created
// before the epoch are treated as absent and purged on read.
type persistentTier struct {
	delegate PersistentDelegate
	batcher  *dirtyWriteBatcher
	logger   *slog.Logger

	clearEpoch atomic.Int64 // unix milliseconds
}

func newPersistentTier(delegate PersistentDelegate, delay time.Duration, logger *slog.Logger) *persistentTier {
	return &persistentTier{
		delegate: delegate,
		batcher:  newDirtyWriteBatcher(delegate, delay, logger),
		logger:   logger,
	}
}

// get reads an entry from the delegate. Corrupt, expired, and pre-epoch
// entries are staged for deletion and reported as misses. Read errors are
// fail-soft misses.
func (t *persistentTier) get(ctx context.Context, key string) (entry.Wire, bool) {
	data, ok, err := t.delegate.Get(ctx, key)
	if err != nil {
		t.logger.Warn("persistent tier read failed",
			slog.String("key", key), slog.String("error", err.Error()))
		return entry.Wire{}, false
	}
	if !ok {
		return entry.Wire{}, false
	}

	w, err := entry.DecodeWire(data)
	if err != nil {
		t.logger.Warn("persistent tier entry corrupt, purging",
			slog.String("key", key), slog.String("error", err.Error()))
		t.batcher.stage(key, nil)
		return entry.Wire{}, false
	}
	// The epoch comparison is inclusive: with millisecond stamps, an entry
	// written in the same instant as a clear counts as cleared.
	if w.IsExpiredAt(time.Now()) || (t.clearEpoch.Load() != 0 && w.CreatedAt <= t.clearEpoch.Load()) {
		t.batcher.stage(key, nil)
		return entry.Wire{}, false
	}
	return w, true
}

// stage schedules an encoded entry for the next batch flush.
func (t *persistentTier) stage(key string, data []byte) {
	t.batcher.stage(key, data)
}

// stageDelete schedules a deletion for the next batch flush.
func (t *persistentTier) stageDelete(key string) {
	t.batcher.stage(key, nil)
}

// clear advances the epoch so existing entries are treated as absent.
// Entries staged before the call may still flush, but their creation time
// predates the epoch so reads purge them.
func (t *persistentTier) clear(now time.Time) {
	t.clearEpoch.Store(now.UnixMilli())
}

func (t *persistentTier) flush(ctx context.Context) error {
	return t.batcher.flush(ctx)
}

func (t *persistentTier) dirtyLen() int {
	return t.batcher.dirtyLen()
}

func (t *persistentTier) close() {
	t.batcher.close()
}
