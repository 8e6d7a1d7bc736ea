package itemmgr

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pretender/internal/apierr"
	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/dao"
	"pretender/internal/expr/condition"
	"pretender/internal/expr/update"
	"pretender/internal/itemtable"
	"pretender/internal/sqlh"
)

const maxTransactItems = 25

// TransactGetEntry requests one item within a TransactGetItems call.
type TransactGetEntry struct {
	TableName string
	Key       attrvalue.Map
}

// TransactGetOutput carries one response slot per entry, in order; a slot
// is nil if that key had no matching item.
type TransactGetOutput struct {
	Items []attrvalue.Map
}

// TransactGetItems reads up to 25 items across any number of tables as a
// single consistent snapshot: all reads run inside one SQL transaction, so
// no item in the set can change mid-read.
func (m *Manager) TransactGetItems(ctx context.Context, entries []TransactGetEntry) (*TransactGetOutput, error) {
	m.log.Debug("TransactGetItems", zap.Int("entries", len(entries)))
	if len(entries) == 0 {
		return nil, apierr.New(apierr.KindValidation, "transactGet requires at least one item")
	}
	if len(entries) > maxTransactItems {
		return nil, apierr.New(apierr.KindValidation, "transactGet accepts at most %d items, got %d", maxTransactItems, len(entries))
	}

	out := &TransactGetOutput{Items: make([]attrvalue.Map, len(entries))}
	err := m.h.WithTx(ctx, func(tx *sqlh.Tx) error {
		for i, e := range entries {
			meta, merr := m.loadMeta(ctx, e.TableName)
			if merr != nil {
				return merr
			}
			hashKey, herr := scalarKeyValue(e.Key, meta.HashKeyAttribute)
			if herr != nil {
				return apierr.New(apierr.KindInvalidItem, "hash key: %v", herr)
			}
			sortKey, serr := sortKeyPtr(meta, e.Key)
			if serr != nil {
				return apierr.New(apierr.KindInvalidItem, "sort key: %v", serr)
			}
			itemDAO := dao.NewItemDAO(itemtable.ItemRelation(e.TableName))
			item, gerr := itemDAO.Get(ctx, tx, hashKey, sortKey)
			if gerr == dao.ErrNotFound {
				continue
			}
			if gerr != nil {
				m.log.Error("transactGet reading item failed", zap.String("table", e.TableName), zap.Error(gerr))
				return apierr.Wrap(gerr, "reading item")
			}
			out.Items[i] = item.Attributes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransactWriteOp identifies which action a TransactWriteEntry performs.
type TransactWriteOp string

const (
	TransactPut            TransactWriteOp = "Put"
	TransactUpdate         TransactWriteOp = "Update"
	TransactDelete         TransactWriteOp = "Delete"
	TransactConditionCheck TransactWriteOp = "ConditionCheck"
)

// TransactWriteEntry is one operation within a TransactWriteItems call.
type TransactWriteEntry struct {
	Op                        TransactWriteOp
	TableName                 string
	Item                      attrvalue.Map // Put
	Key                       attrvalue.Map // Update, Delete, ConditionCheck
	UpdateExpression          string        // Update
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues attrvalue.Map
}

// TransactWriteItems applies up to 25 put/update/delete/conditionCheck
// operations as one all-or-nothing SQL transaction, per SPEC_FULL.md §5:
// every enclosed write shares the transaction but skips stream capture and
// index maintenance (those run only on the single-item operations), since
// an in-flight cross-item transaction has no single "old image" per
// relation to diff cleanly. Any operation's condition failing rolls back
// the whole transaction and reports TransactionCancelled with one reason
// per entry.
func (m *Manager) TransactWriteItems(ctx context.Context, entries []TransactWriteEntry) error {
	m.log.Debug("TransactWriteItems", zap.Int("entries", len(entries)))
	if len(entries) == 0 {
		return apierr.New(apierr.KindValidation, "transactWrite requires at least one item")
	}
	if len(entries) > maxTransactItems {
		return apierr.New(apierr.KindValidation, "transactWrite accepts at most %d items, got %d", maxTransactItems, len(entries))
	}
	if err := m.rejectDuplicateTransactKeys(ctx, entries); err != nil {
		return err
	}

	reasons := make([]apierr.CancellationReason, len(entries))
	cancelled := false

	txErr := m.h.WithTx(ctx, func(tx *sqlh.Tx) error {
		for i, e := range entries {
			if err := m.applyTransactEntry(ctx, tx, e); err != nil {
				cancelled = true
				reasons[i] = apierr.CancellationReason{Code: string(apierr.KindOf(err)), Message: err.Error()}
				return err
			}
			reasons[i] = apierr.CancellationReason{Code: "None"}
		}
		return nil
	})
	if txErr == nil {
		return nil
	}
	if cancelled {
		m.log.Debug("transactWrite cancelled", zap.Error(txErr))
		return apierr.Cancelled(reasons)
	}
	m.log.Error("transactWrite failed", zap.Error(txErr))
	return txErr
}

func (m *Manager) applyTransactEntry(ctx context.Context, tx *sqlh.Tx, e TransactWriteEntry) error {
	switch e.Op {
	case TransactConditionCheck:
		return m.conditionCheckTx(ctx, tx, ConditionCheckInput{
			TableName: e.TableName, Key: e.Key, ConditionExpression: e.ConditionExpression,
			ExpressionAttributeNames: e.ExpressionAttributeNames, ExpressionAttributeValues: e.ExpressionAttributeValues,
		})
	case TransactPut:
		return m.transactPut(ctx, tx, e)
	case TransactUpdate:
		return m.transactUpdate(ctx, tx, e)
	case TransactDelete:
		return m.transactDelete(ctx, tx, e)
	default:
		return apierr.New(apierr.KindValidation, "unknown transact write operation %q", e.Op)
	}
}

func (m *Manager) transactPut(ctx context.Context, tx *sqlh.Tx, e TransactWriteEntry) error {
	meta, err := m.loadMeta(ctx, e.TableName)
	if err != nil {
		return err
	}
	if err := validateItem(meta, e.Item); err != nil {
		return err
	}
	hashKey, err := scalarKeyValue(e.Item, meta.HashKeyAttribute)
	if err != nil {
		return apierr.New(apierr.KindInvalidItem, "hash key: %v", err)
	}
	sortKey, err := sortKeyPtr(meta, e.Item)
	if err != nil {
		return apierr.New(apierr.KindInvalidItem, "sort key: %v", err)
	}

	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(e.TableName))
	createDate := time.Now().UTC()
	existing, gerr := itemDAO.Get(ctx, tx, hashKey, sortKey)
	var oldAttrs attrvalue.Map
	switch gerr {
	case nil:
		oldAttrs = existing.Attributes
		createDate = existing.CreateDate
	case dao.ErrNotFound:
	default:
		return apierr.Wrap(gerr, "reading existing item")
	}

	cond, cerr := condition.Parse(e.ConditionExpression, e.ExpressionAttributeNames, e.ExpressionAttributeValues)
	if cerr != nil {
		return cerr
	}
	if !cond.Eval(oldAttrs) {
		return apierr.ConditionalCheckFailed()
	}

	return itemDAO.Put(ctx, tx, &core.Item{
		HashKeyValue: hashKey, SortKeyValue: sortKey, Attributes: e.Item,
		CreateDate: createDate, UpdateDate: time.Now().UTC(),
	})
}

func (m *Manager) transactUpdate(ctx context.Context, tx *sqlh.Tx, e TransactWriteEntry) error {
	meta, err := m.loadMeta(ctx, e.TableName)
	if err != nil {
		return err
	}
	hashKey, err := scalarKeyValue(e.Key, meta.HashKeyAttribute)
	if err != nil {
		return apierr.New(apierr.KindInvalidItem, "hash key: %v", err)
	}
	sortKey, err := sortKeyPtr(meta, e.Key)
	if err != nil {
		return apierr.New(apierr.KindInvalidItem, "sort key: %v", err)
	}

	upd, err := update.Parse(e.UpdateExpression, e.ExpressionAttributeNames, e.ExpressionAttributeValues)
	if err != nil {
		return err
	}

	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(e.TableName))
	base := e.Key.Clone()
	createDate := time.Now().UTC()
	existing, gerr := itemDAO.Get(ctx, tx, hashKey, sortKey)
	var oldAttrs attrvalue.Map
	switch gerr {
	case nil:
		oldAttrs = existing.Attributes
		base = existing.Attributes
		createDate = existing.CreateDate
	case dao.ErrNotFound:
	default:
		return apierr.Wrap(gerr, "reading existing item")
	}

	cond, cerr := condition.Parse(e.ConditionExpression, e.ExpressionAttributeNames, e.ExpressionAttributeValues)
	if cerr != nil {
		return cerr
	}
	if !cond.Eval(oldAttrs) {
		return apierr.ConditionalCheckFailed()
	}

	newAttrs, aerr := upd.Apply(base)
	if aerr != nil {
		return apierr.New(apierr.KindInvalidExpression, "applying update expression: %v", aerr)
	}
	if err := validateItem(meta, newAttrs); err != nil {
		return err
	}

	return itemDAO.Put(ctx, tx, &core.Item{
		HashKeyValue: hashKey, SortKeyValue: sortKey, Attributes: newAttrs,
		CreateDate: createDate, UpdateDate: time.Now().UTC(),
	})
}

func (m *Manager) transactDelete(ctx context.Context, tx *sqlh.Tx, e TransactWriteEntry) error {
	meta, err := m.loadMeta(ctx, e.TableName)
	if err != nil {
		return err
	}
	hashKey, err := scalarKeyValue(e.Key, meta.HashKeyAttribute)
	if err != nil {
		return apierr.New(apierr.KindInvalidItem, "hash key: %v", err)
	}
	sortKey, err := sortKeyPtr(meta, e.Key)
	if err != nil {
		return apierr.New(apierr.KindInvalidItem, "sort key: %v", err)
	}

	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(e.TableName))
	existing, gerr := itemDAO.Get(ctx, tx, hashKey, sortKey)
	var oldAttrs attrvalue.Map
	switch gerr {
	case nil:
		oldAttrs = existing.Attributes
	case dao.ErrNotFound:
	default:
		return apierr.Wrap(gerr, "reading existing item")
	}

	cond, cerr := condition.Parse(e.ConditionExpression, e.ExpressionAttributeNames, e.ExpressionAttributeValues)
	if cerr != nil {
		return cerr
	}
	if !cond.Eval(oldAttrs) {
		return apierr.ConditionalCheckFailed()
	}
	if oldAttrs == nil {
		return nil
	}
	return itemDAO.Delete(ctx, tx, hashKey, sortKey)
}

// rejectDuplicateTransactKeys enforces the hosted service's rule that a
// transaction may not target the same item twice. Put entries carry their
// key inside the full item, so the primary-key attributes are extracted
// from e.Item the same way transactPut does before comparing; hashing the
// full item would let two Puts (or a Put and an Update) on the same key
// with differing non-key attributes slip past as distinct targets.
func (m *Manager) rejectDuplicateTransactKeys(ctx context.Context, entries []TransactWriteEntry) error {
	seen := map[string]bool{}
	for _, e := range entries {
		meta, err := m.loadMeta(ctx, e.TableName)
		if err != nil {
			return err
		}
		source := e.Key
		if e.Op == TransactPut {
			source = e.Item
		}
		hashKey, err := scalarKeyValue(source, meta.HashKeyAttribute)
		if err != nil {
			return apierr.New(apierr.KindInvalidItem, "hash key: %v", err)
		}
		sortKey, err := sortKeyPtr(meta, source)
		if err != nil {
			return apierr.New(apierr.KindInvalidItem, "sort key: %v", err)
		}
		id := e.TableName + "\x00" + hashKey
		if sortKey != nil {
			id += "\x00" + *sortKey
		}
		if seen[id] {
			return apierr.New(apierr.KindValidation, "transactWrite targets the same item more than once")
		}
		seen[id] = true
	}
	return nil
}
