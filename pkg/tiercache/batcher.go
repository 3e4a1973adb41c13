package tiercache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// stagedItem is a pending persistent write. A nil data slice marks a
// deletion. gen detects re-stages that race with an in-flight flush.
type stagedItem struct {
	data []byte
	gen  uint64
}

// dirtyWriteBatcher coalesces persistent-tier writes. Each stage arms a
// delay timer; when it fires, all staged items go out in one BatchWrite.
// A failed batch leaves its items staged and re-arms the delay, so the
// retry does not wait for another write.
type dirtyWriteBatcher struct {
	delegate PersistentDelegate
	delay    time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	staged  map[string]stagedItem
	nextGen uint64
	timer   *time.Timer
	closed  bool

	flushMu sync.Mutex
}

func newDirtyWriteBatcher(delegate PersistentDelegate, delay time.Duration, logger *slog.Logger) *dirtyWriteBatcher {
	return &dirtyWriteBatcher{
		delegate: delegate,
		delay:    delay,
		logger:   logger,
		staged:   make(map[string]stagedItem),
	}
}

// stage records a write (or deletion, when data is nil) and arms the
// flush timer if it is not already running.
func (b *dirtyWriteBatcher) stage(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.nextGen++
	b.staged[key] = stagedItem{data: data, gen: b.nextGen}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, func() {
			if err := b.flush(context.Background()); err != nil {
				b.logger.Warn("batched persist failed, items remain staged",
					slog.String("error", err.Error()))
			}
		})
	} else {
		b.timer.Reset(b.delay)
	}
}

// flush writes every staged item in a single batch. Items re-staged
// while the batch is in flight survive for the next flush. Safe to call
// concurrently with stage and with itself.
func (b *dirtyWriteBatcher) flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if len(b.staged) == 0 {
		if b.timer != nil {
			b.timer.Stop()
			b.timer = nil
		}
		b.mu.Unlock()
		return nil
	}
	batch := make(map[string][]byte, len(b.staged))
	gens := make(map[string]uint64, len(b.staged))
	for k, it := range b.staged {
		batch[k] = it.data
		gens[k] = it.gen
	}
	b.mu.Unlock()

	if err := b.delegate.BatchWrite(ctx, batch); err != nil {
		// Items stay staged; re-arm the timer so the retry is scheduled
		// even if no further writes arrive.
		b.mu.Lock()
		if !b.closed && b.timer != nil {
			b.timer.Reset(b.delay)
		}
		b.mu.Unlock()
		return err
	}

	b.mu.Lock()
	for k, gen := range gens {
		if cur, ok := b.staged[k]; ok && cur.gen == gen {
			delete(b.staged, k)
		}
	}
	if len(b.staged) == 0 && b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
	return nil
}

// dirtyLen reports how many items await persistence.
func (b *dirtyWriteBatcher) dirtyLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.staged)
}

func (b *dirtyWriteBatcher) dirtyKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.staged))
	for k := range b.staged {
		keys = append(keys, k)
	}
	return keys
}

// close stops the timer. It does not flush; callers flush first when
// they want staged items persisted.
func (b *dirtyWriteBatcher) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
