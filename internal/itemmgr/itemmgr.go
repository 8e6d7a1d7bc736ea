// Package itemmgr is the top-level item-operation orchestrator from
// SPEC_FULL.md §4.6: put/get/update/delete/query/scan/batchGet/batchWrite/
// transactGet/transactWrite/conditionCheck. Every write operation fetches
// metadata, validates the item, evaluates any condition expression, writes
// the primary row and stream record and reconciles index rows inside one
// SQL transaction; reads apply TTL expiry-on-read and projection.
package itemmgr

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pretender/internal/apierr"
	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/dao"
	"pretender/internal/itemtable"
	"pretender/internal/metadata"
	"pretender/internal/projection"
	"pretender/internal/sqlh"
	"pretender/internal/streamcapture"
)

const maxItemBytes = 400_000

// Manager is safe for concurrent use; it holds no per-request mutable
// state, per SPEC_FULL.md §5.
type Manager struct {
	h    *sqlh.Handle
	meta *metadata.Store
	log  *zap.Logger
}

// New builds a Manager over h and meta. A nil logger falls back to
// zap.NewNop().
func New(h *sqlh.Handle, meta *metadata.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{h: h, meta: meta, log: log}
}

func (m *Manager) loadMeta(ctx context.Context, table string) (*core.TableMetadata, error) {
	meta, err := m.meta.Get(ctx, table)
	if err != nil {
		m.log.Error("loading table metadata failed", zap.String("table", table), zap.Error(err))
		return nil, apierr.Wrap(err, "loading metadata for %q", table)
	}
	if meta == nil {
		return nil, apierr.TableNotFound(table)
	}
	return meta, nil
}

// validateItem enforces SPEC_FULL.md §4.6's input validation rules: hash
// key present and non-empty, sort key present if the schema has one, no
// empty-string key attribute, no zero-length binary attribute, no empty
// string-set element, and the 400,000-byte total size cap.
func validateItem(meta *core.TableMetadata, item attrvalue.Map) error {
	if _, err := attrvalue.ExtractScalarKey(item, meta.HashKeyAttribute); err != nil {
		return apierr.New(apierr.KindInvalidItem, "hash key %q: %v", meta.HashKeyAttribute, err)
	}
	if meta.HasSortKey() {
		if _, err := attrvalue.ExtractScalarKey(item, meta.SortKeyAttribute); err != nil {
			return apierr.New(apierr.KindInvalidItem, "sort key %q: %v", meta.SortKeyAttribute, err)
		}
	}
	for attr, v := range item {
		switch v.Kind {
		case attrvalue.KindB:
			if len(v.B) == 0 {
				return apierr.New(apierr.KindInvalidItem, "attribute %q: binary value must not be zero-length", attr)
			}
		case attrvalue.KindSS:
			for _, s := range v.SS {
				if s == "" {
					return apierr.New(apierr.KindInvalidItem, "attribute %q: string-set element must not be empty", attr)
				}
			}
		case attrvalue.KindBS:
			for _, b := range v.BS {
				if len(b) == 0 {
					return apierr.New(apierr.KindInvalidItem, "attribute %q: binary-set element must not be zero-length", attr)
				}
			}
		}
	}
	size, err := attrvalue.Size(item)
	if err != nil {
		return apierr.New(apierr.KindInvalidItem, "encoding item: %v", err)
	}
	if size > maxItemBytes {
		return apierr.New(apierr.KindItemTooLarge, "item is %d bytes, exceeds the %d byte limit", size, maxItemBytes)
	}
	return nil
}

// isExpired reports whether item is past its TTL, given the table's TTL
// settings and the current time.
func isExpired(meta *core.TableMetadata, item attrvalue.Map, now time.Time) bool {
	if !meta.TTLEnabled || meta.TTLAttributeName == "" {
		return false
	}
	v, ok := item[meta.TTLAttributeName]
	if !ok || v.Kind != attrvalue.KindN {
		return false
	}
	seconds, err := parseEpochSeconds(v.N)
	if err != nil {
		return false
	}
	return seconds < now.Unix()
}

// parseEpochSeconds parses a TTL attribute's N value as whole epoch
// seconds, truncating any fractional part the same way the hosted service
// does when evaluating TTL.
func parseEpochSeconds(n string) (int64, error) {
	whole := n
	if i := strings.IndexByte(n, '.'); i >= 0 {
		whole = n[:i]
	}
	v, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, apierr.New(apierr.KindInvalidItem, "not a valid integer: %q", n)
	}
	return v, nil
}

// keyMap extracts the primary key (hash + optional sort) attributes from a
// full item.
func keyMap(meta *core.TableMetadata, item attrvalue.Map) attrvalue.Map {
	out := attrvalue.Map{meta.HashKeyAttribute: item[meta.HashKeyAttribute].Clone()}
	if meta.HasSortKey() {
		out[meta.SortKeyAttribute] = item[meta.SortKeyAttribute].Clone()
	}
	return out
}

func scalarKeyValue(item attrvalue.Map, attr string) (string, error) {
	return attrvalue.ExtractScalarKey(item, attr)
}

func sortKeyPtr(meta *core.TableMetadata, item attrvalue.Map) (*string, error) {
	if !meta.HasSortKey() {
		return nil, nil
	}
	v, err := scalarKeyValue(item, meta.SortKeyAttribute)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// reconcileIndexes rebuilds every GSI row derived from item, inside ex.
// oldItem (may be nil) supplies the prior image so a stale row can be
// removed when the item no longer qualifies or its index key changed.
func reconcileIndexes(ctx context.Context, ex sqlh.Execer, table string, meta *core.TableMetadata, oldItem, newItem attrvalue.Map) error {
	for i := range meta.GlobalSecondaryIndexes {
		idx := meta.GlobalSecondaryIndexes[i]
		idxDAO := dao.NewIndexDAO(itemtable.IndexRelation(table, idx.IndexName))

		if oldItem != nil {
			if oldHash, oldSort, ok := indexRowKey(meta, &idx, oldItem); ok {
				if newItem == nil {
					if err := idxDAO.Delete(ctx, ex, oldHash, oldSort); err != nil {
						return err
					}
					continue
				}
				if newHash, newSort, ok2 := indexRowKey(meta, &idx, newItem); !ok2 || newHash != oldHash || newSort != oldSort {
					if err := idxDAO.Delete(ctx, ex, oldHash, oldSort); err != nil {
						return err
					}
				}
			}
		}

		if newItem == nil {
			continue
		}
		newHash, newSort, ok := indexRowKey(meta, &idx, newItem)
		if !ok {
			continue
		}
		now := time.Now().UTC()
		row := &core.IndexRow{
			HashKeyValue: newHash,
			SortKeyValue: newSort,
			Attributes:   projection.Apply(meta, &idx, newItem),
			CreateDate:   now,
			UpdateDate:   now,
		}
		if err := idxDAO.Replace(ctx, ex, row); err != nil {
			return err
		}
	}
	return nil
}

// indexRowKey computes a GSI row's storage key: the index hash attribute's
// value, and a composite sort value ("<index_sort>#<primary_hash>[#<primary_sort>]",
// the index sort segment omitted if the index has none) that keeps the
// row unique per source item per SPEC_FULL.md §3's Index row shape. ok is
// false if item lacks the index's hash key attribute (or its sort key
// attribute, if the index declares one) — such an item has no index row.
func indexRowKey(meta *core.TableMetadata, idx *core.GlobalSecondaryIndex, item attrvalue.Map) (hash, sort string, ok bool) {
	hash, err := scalarKeyValue(item, idx.HashKeyAttribute)
	if err != nil {
		return "", "", false
	}
	var parts []string
	if idx.SortKeyAttribute != "" {
		sv, err := scalarKeyValue(item, idx.SortKeyAttribute)
		if err != nil {
			return "", "", false
		}
		parts = append(parts, sv)
	}
	primaryHash, err := scalarKeyValue(item, meta.HashKeyAttribute)
	if err != nil {
		return "", "", false
	}
	parts = append(parts, primaryHash)
	if meta.HasSortKey() {
		primarySort, err := scalarKeyValue(item, meta.SortKeyAttribute)
		if err != nil {
			return "", "", false
		}
		parts = append(parts, primarySort)
	}
	return hash, strings.Join(parts, "#"), true
}

func captureIfEnabled(ctx context.Context, ex sqlh.Execer, table string, meta *core.TableMetadata, eventType core.EventType, hashKey string, sortKey *string, keys, oldImage, newImage attrvalue.Map) error {
	if !meta.StreamEnabled {
		return nil
	}
	cap := streamcapture.New(table)
	return cap.Capture(ctx, ex, meta.StreamViewType, eventType, hashKey, sortKey, keys, oldImage, newImage, time.Now().UTC())
}
