package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pretender/internal/metadata"
	"pretender/internal/streammgr"
)

// DefaultStreamInterval is the interval used when config leaves it unset.
const DefaultStreamInterval = 60 * time.Minute

// streamRetention is how long change records are kept before pruning.
const streamRetention = 24 * time.Hour

// StreamSweeper periodically prunes change records older than the
// retention window, across every table with a stream enabled.
type StreamSweeper struct {
	runner *runner
	mgr    *streammgr.Manager
	store  *metadata.Store
}

// NewStreamSweeper builds a stream sweeper. interval falls back to
// DefaultStreamInterval if zero.
func NewStreamSweeper(mgr *streammgr.Manager, store *metadata.Store, interval time.Duration, log *zap.Logger) *StreamSweeper {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	s := &StreamSweeper{mgr: mgr, store: store}
	s.runner = &runner{interval: interval, log: log, name: "stream", work: s.sweepOnce}
	return s
}

// Start begins the periodic sweep. Idempotent.
func (s *StreamSweeper) Start(ctx context.Context) { s.runner.Start(ctx) }

// Stop ends the periodic sweep. Idempotent.
func (s *StreamSweeper) Stop() { s.runner.Stop() }

// SweepOnce runs a single cycle synchronously, for the `sweep-once
// --kind=stream` CLI command and for tests.
func (s *StreamSweeper) SweepOnce(ctx context.Context) { s.sweepOnce(ctx) }

func (s *StreamSweeper) sweepOnce(ctx context.Context) {
	tables, err := s.store.ListStreamEnabled(ctx)
	if err != nil {
		s.runner.log.Warn("stream sweep: listing stream-enabled tables failed", zap.Error(err))
		return
	}
	cutoff := time.Now().UTC().Add(-streamRetention)
	for _, meta := range tables {
		n, err := s.mgr.PruneOlderThan(ctx, meta.Name, cutoff)
		if err != nil {
			s.runner.log.Warn("stream sweep: table failed", zap.String("table", meta.Name), zap.Error(err))
			continue
		}
		if n > 0 {
			s.runner.log.Info("stream sweep: pruned records", zap.String("table", meta.Name), zap.Int64("count", n))
		}
	}
}
