package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pretender/internal/itemmgr"
	"pretender/internal/metadata"
)

// DefaultTTLInterval is the interval used when config leaves it unset.
const DefaultTTLInterval = 5 * time.Minute

// DefaultTTLBatchSize bounds how many items one table's cycle expires.
const DefaultTTLBatchSize = 100

// TTLSweeper periodically expires items past their TTL attribute, across
// every table with TTL enabled.
type TTLSweeper struct {
	runner *runner
	mgr    *itemmgr.Manager
	store  *metadata.Store
	batch  int
}

// NewTTLSweeper builds a TTL sweeper. interval/batchSize fall back to the
// package defaults if zero.
func NewTTLSweeper(mgr *itemmgr.Manager, store *metadata.Store, interval time.Duration, batchSize int, log *zap.Logger) *TTLSweeper {
	if interval <= 0 {
		interval = DefaultTTLInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultTTLBatchSize
	}
	s := &TTLSweeper{mgr: mgr, store: store, batch: batchSize}
	s.runner = &runner{interval: interval, log: log, name: "ttl", work: s.sweepOnce}
	return s
}

// Start begins the periodic sweep. Idempotent.
func (s *TTLSweeper) Start(ctx context.Context) { s.runner.Start(ctx) }

// Stop ends the periodic sweep. Idempotent.
func (s *TTLSweeper) Stop() { s.runner.Stop() }

// SweepOnce runs a single cycle synchronously, for the `sweep-once
// --kind=ttl` CLI command and for tests.
func (s *TTLSweeper) SweepOnce(ctx context.Context) { s.sweepOnce(ctx) }

func (s *TTLSweeper) sweepOnce(ctx context.Context) {
	tables, err := s.store.ListTTLEnabled(ctx)
	if err != nil {
		s.runner.log.Warn("ttl sweep: listing ttl-enabled tables failed", zap.Error(err))
		return
	}
	for _, meta := range tables {
		n, err := s.mgr.SweepExpiredTTL(ctx, meta.Name, s.batch)
		if err != nil {
			s.runner.log.Warn("ttl sweep: table failed", zap.String("table", meta.Name), zap.Error(err))
			continue
		}
		if n > 0 {
			s.runner.log.Info("ttl sweep: expired items", zap.String("table", meta.Name), zap.Int("count", n))
		}
	}
}
