// Package sweep implements the two background periodic tasks from
// SPEC_FULL.md §4.8: the TTL sweeper (deletes expired items and their
// index rows) and the stream sweeper (prunes change records older than
// the retention window). Each runs as a single-thread ticker loop with an
// idempotent Start/Stop lifecycle, per the Design Notes' replacement for
// the source's thread-pool-backed scheduled tasks.
package sweep

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// gracePeriod bounds how long Stop waits for an in-flight cycle to finish
// before returning, per SPEC_FULL.md §5's 30-second forced-shutdown grace.
const gracePeriod = 30 * time.Second

// runner is the shared ticker-loop lifecycle both sweepers embed: start a
// goroutine that runs work() every interval until stop is signaled, with
// idempotent Start/Stop.
type runner struct {
	interval time.Duration
	log      *zap.Logger
	name     string
	work     func(ctx context.Context)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Start begins the loop if it is not already running. Safe to call more
// than once; subsequent calls while running are no-ops.
func (r *runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		r.log.Info("sweeper started", zap.String("sweeper", r.name), zap.Duration("interval", r.interval))
		for {
			select {
			case <-r.stopCh:
				r.log.Info("sweeper stopped", zap.String("sweeper", r.name))
				return
			case <-ctx.Done():
				r.log.Info("sweeper stopped", zap.String("sweeper", r.name), zap.Error(ctx.Err()))
				return
			case <-ticker.C:
				r.work(ctx)
			}
		}
	}()
}

// Stop signals the loop to exit and waits up to gracePeriod for it to
// finish the cycle it may be mid-way through. Safe to call more than once
// or before Start; a call while not running is a no-op. If the grace
// period elapses first, Stop returns anyway — the goroutine is abandoned
// to finish (or never finish) on its own, matching the "force-terminate"
// language in SPEC_FULL.md §4.8/§5.
func (r *runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(gracePeriod):
		r.log.Warn("sweeper did not stop within grace period", zap.String("sweeper", r.name), zap.Duration("grace", gracePeriod))
	}
}
