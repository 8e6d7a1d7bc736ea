package itemmgr

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pretender/internal/apierr"
	"pretender/internal/dao"
	"pretender/internal/itemtable"
)

// SweepExpiredTTL scans table for items past their TTL, up to batchSize,
// and expires each one (delete + index reconciliation + REMOVE stream
// record, the same lazy-expiry path GetItem takes). It is the primitive
// behind the background TTL sweeper from SPEC_FULL.md §4.8; the caller is
// expected to invoke it once per table per sweep cycle and log but
// otherwise ignore a returned error so one table's failure never aborts
// the cycle.
func (m *Manager) SweepExpiredTTL(ctx context.Context, table string, batchSize int) (int, error) {
	m.log.Debug("SweepExpiredTTL", zap.String("table", table), zap.Int("batchSize", batchSize))
	meta, err := m.loadMeta(ctx, table)
	if err != nil {
		return 0, err
	}
	if !meta.TTLEnabled || meta.TTLAttributeName == "" {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(table))
	items, err := itemDAO.ScanAll(ctx, m.h, meta.HasSortKey())
	if err != nil {
		m.log.Error("scanning for expired items failed", zap.String("table", table), zap.Error(err))
		return 0, apierr.Wrap(err, "scanning %q for expired items", table)
	}

	now := time.Now().UTC()
	expired := 0
	for _, it := range items {
		if expired >= batchSize {
			break
		}
		if !isExpired(meta, it.Attributes, now) {
			continue
		}
		if err := m.expireItem(ctx, table, meta, it.HashKeyValue, it.SortKeyValue, it.Attributes); err != nil {
			m.log.Error("expiring item failed", zap.String("table", table), zap.Error(err))
			return expired, apierr.Wrap(err, "expiring item in %q", table)
		}
		expired++
	}
	return expired, nil
}
