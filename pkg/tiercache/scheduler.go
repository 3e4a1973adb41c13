package tiercache

import (
	"log/slog"
	"sync"
	"time"
)

// scheduler owns every periodic task the cache runs. Tasks are registered
// by name and all cancelled together at teardown, so no timer can outlive
// the cache instance.
type scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	stopped bool
}

func newScheduler(logger *slog.Logger) *scheduler {
	return &scheduler{
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// every runs fn on the given interval until the scheduler closes. A
// non-positive interval disables the task.
func (s *scheduler) every(name string, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.run(name, fn)
			case <-s.stop:
				return
			}
		}
	}()
}

// run executes one task iteration, recovering panics so a bad callback
// cannot kill the scheduler goroutine.
func (s *scheduler) run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("periodic task panicked", "task", name, "panic", r)
		}
	}()
	fn()
}

// close cancels all tasks and waits for them to finish.
func (s *scheduler) close() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
}
