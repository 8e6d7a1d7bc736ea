package itemmgr

import (
	"context"
	"strings"
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

// PutItemInput describes a put request.
type PutItemInput struct {
	TableName                 string
	Item                      attrvalue.Map
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues attrvalue.Map
	ReturnValues              string // "NONE" (default) or "ALL_OLD"
}

// PutItemOutput carries the replaced item's attributes when ReturnValues
// is ALL_OLD.
type PutItemOutput struct {
	Attributes attrvalue.Map
}

// PutItem replaces whatever item occupies in.Item's key, per SPEC_FULL.md
// §4.6's write flow: fetch metadata, validate, read existing row, evaluate
// condition, capture stream event, write primary row, reconcile indexes.
func (m *Manager) PutItem(ctx context.Context, in PutItemInput) (*PutItemOutput, error) {
	m.log.Debug("PutItem", zap.String("table", in.TableName))
	meta, err := m.loadMeta(ctx, in.TableName)
	if err != nil {
		return nil, err
	}
	if err := validateItem(meta, in.Item); err != nil {
		return nil, err
	}
	hashKey, err := scalarKeyValue(in.Item, meta.HashKeyAttribute)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidItem, "hash key: %v", err)
	}
	sortKey, err := sortKeyPtr(meta, in.Item)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidItem, "sort key: %v", err)
	}

	out := &PutItemOutput{}
	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(in.TableName))
	err = m.h.WithTx(ctx, func(tx *sqlh.Tx) error {
		var oldAttrs attrvalue.Map
		createDate := time.Now().UTC()
		existing, gerr := itemDAO.Get(ctx, tx, hashKey, sortKey)
		switch gerr {
		case nil:
			oldAttrs = existing.Attributes
			createDate = existing.CreateDate
		case dao.ErrNotFound:
		default:
			m.log.Error("reading existing item failed", zap.String("table", in.TableName), zap.Error(gerr))
			return apierr.Wrap(gerr, "reading existing item")
		}

		cond, cerr := condition.Parse(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if cerr != nil {
			return cerr
		}
		if !cond.Eval(oldAttrs) {
			return apierr.ConditionalCheckFailed()
		}

		now := time.Now().UTC()
		eventType := core.EventModify
		if oldAttrs == nil {
			eventType = core.EventInsert
		}
		if err := captureIfEnabled(ctx, tx, in.TableName, meta, eventType, hashKey, sortKey,
			keyMap(meta, in.Item), oldAttrs, in.Item); err != nil {
			m.log.Error("capturing stream event failed", zap.String("table", in.TableName), zap.Error(err))
			return apierr.Wrap(err, "capturing stream event")
		}

		if err := itemDAO.Put(ctx, tx, &core.Item{
			HashKeyValue: hashKey, SortKeyValue: sortKey, Attributes: in.Item,
			CreateDate: createDate, UpdateDate: now,
		}); err != nil {
			m.log.Error("writing item failed", zap.String("table", in.TableName), zap.Error(err))
			return apierr.Wrap(err, "writing item")
		}
		if err := reconcileIndexes(ctx, tx, in.TableName, meta, oldAttrs, in.Item); err != nil {
			m.log.Error("reconciling indexes failed", zap.String("table", in.TableName), zap.Error(err))
			return apierr.Wrap(err, "reconciling indexes")
		}

		if strings.EqualFold(in.ReturnValues, "ALL_OLD") {
			out.Attributes = oldAttrs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetItemInput describes a get request.
type GetItemInput struct {
	TableName string
	Key       attrvalue.Map
}

// GetItemOutput carries the found item, if any.
type GetItemOutput struct {
	Item  attrvalue.Map
	Found bool
}

// GetItem reads one item by key, non-transactionally. An item past its TTL
// is treated as absent and lazily deleted.
func (m *Manager) GetItem(ctx context.Context, in GetItemInput) (*GetItemOutput, error) {
	m.log.Debug("GetItem", zap.String("table", in.TableName))
	meta, err := m.loadMeta(ctx, in.TableName)
	if err != nil {
		return nil, err
	}
	hashKey, err := scalarKeyValue(in.Key, meta.HashKeyAttribute)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidItem, "hash key: %v", err)
	}
	sortKey, err := sortKeyPtr(meta, in.Key)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidItem, "sort key: %v", err)
	}

	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(in.TableName))
	item, err := itemDAO.Get(ctx, m.h, hashKey, sortKey)
	if err == dao.ErrNotFound {
		return &GetItemOutput{Found: false}, nil
	}
	if err != nil {
		m.log.Error("reading item failed", zap.String("table", in.TableName), zap.Error(err))
		return nil, apierr.Wrap(err, "reading item")
	}

	if isExpired(meta, item.Attributes, time.Now().UTC()) {
		_ = m.expireItem(ctx, in.TableName, meta, hashKey, sortKey, item.Attributes)
		return &GetItemOutput{Found: false}, nil
	}
	return &GetItemOutput{Item: item.Attributes, Found: true}, nil
}

// expireItem removes an item whose TTL has passed, along with its index
// rows and a REMOVE stream record, inside one transaction. Best-effort: a
// failure here does not fail the read that triggered it.
func (m *Manager) expireItem(ctx context.Context, table string, meta *core.TableMetadata, hashKey string, sortKey *string, oldAttrs attrvalue.Map) error {
	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(table))
	return m.h.WithTx(ctx, func(tx *sqlh.Tx) error {
		if err := captureIfEnabled(ctx, tx, table, meta, core.EventRemove, hashKey, sortKey,
			keyMap(meta, oldAttrs), oldAttrs, nil); err != nil {
			return err
		}
		if err := itemDAO.Delete(ctx, tx, hashKey, sortKey); err != nil {
			return err
		}
		return reconcileIndexes(ctx, tx, table, meta, oldAttrs, nil)
	})
}

// UpdateItemInput describes an update request. Absent items are created
// (upsert), matching the hosted service's UpdateItem semantics.
type UpdateItemInput struct {
	TableName                 string
	Key                       attrvalue.Map
	UpdateExpression          string
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues attrvalue.Map
	ReturnValues              string // NONE, ALL_NEW (default), ALL_OLD
}

// UpdateItemOutput carries the item attributes selected by ReturnValues.
type UpdateItemOutput struct {
	Attributes attrvalue.Map
}

// UpdateItem applies an update expression to the item at in.Key.
func (m *Manager) UpdateItem(ctx context.Context, in UpdateItemInput) (*UpdateItemOutput, error) {
	m.log.Debug("UpdateItem", zap.String("table", in.TableName))
	meta, err := m.loadMeta(ctx, in.TableName)
	if err != nil {
		return nil, err
	}
	hashKey, err := scalarKeyValue(in.Key, meta.HashKeyAttribute)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidItem, "hash key: %v", err)
	}
	sortKey, err := sortKeyPtr(meta, in.Key)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidItem, "sort key: %v", err)
	}

	upd, err := update.Parse(in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	out := &UpdateItemOutput{}
	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(in.TableName))
	err = m.h.WithTx(ctx, func(tx *sqlh.Tx) error {
		var oldAttrs attrvalue.Map
		base := in.Key.Clone()
		createDate := time.Now().UTC()
		existing, gerr := itemDAO.Get(ctx, tx, hashKey, sortKey)
		switch gerr {
		case nil:
			oldAttrs = existing.Attributes
			base = existing.Attributes
			createDate = existing.CreateDate
		case dao.ErrNotFound:
		default:
			m.log.Error("reading existing item failed", zap.String("table", in.TableName), zap.Error(gerr))
			return apierr.Wrap(gerr, "reading existing item")
		}

		cond, cerr := condition.Parse(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
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
		if newHash, herr := scalarKeyValue(newAttrs, meta.HashKeyAttribute); herr != nil || newHash != hashKey {
			return apierr.New(apierr.KindValidation, "update expression must not modify the hash key")
		}
		if meta.HasSortKey() {
			if newSort, serr := scalarKeyValue(newAttrs, meta.SortKeyAttribute); serr != nil || sortKey == nil || newSort != *sortKey {
				return apierr.New(apierr.KindValidation, "update expression must not modify the sort key")
			}
		}
		if err := validateItem(meta, newAttrs); err != nil {
			return err
		}

		now := time.Now().UTC()
		eventType := core.EventModify
		if oldAttrs == nil {
			eventType = core.EventInsert
		}
		if err := captureIfEnabled(ctx, tx, in.TableName, meta, eventType, hashKey, sortKey,
			keyMap(meta, newAttrs), oldAttrs, newAttrs); err != nil {
			m.log.Error("capturing stream event failed", zap.String("table", in.TableName), zap.Error(err))
			return apierr.Wrap(err, "capturing stream event")
		}
		if err := itemDAO.Put(ctx, tx, &core.Item{
			HashKeyValue: hashKey, SortKeyValue: sortKey, Attributes: newAttrs,
			CreateDate: createDate, UpdateDate: now,
		}); err != nil {
			m.log.Error("writing item failed", zap.String("table", in.TableName), zap.Error(err))
			return apierr.Wrap(err, "writing item")
		}
		if err := reconcileIndexes(ctx, tx, in.TableName, meta, oldAttrs, newAttrs); err != nil {
			m.log.Error("reconciling indexes failed", zap.String("table", in.TableName), zap.Error(err))
			return apierr.Wrap(err, "reconciling indexes")
		}

		switch strings.ToUpper(in.ReturnValues) {
		case "ALL_OLD":
			out.Attributes = oldAttrs
		case "NONE":
		default:
			out.Attributes = newAttrs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteItemInput describes a delete request.
type DeleteItemInput struct {
	TableName                 string
	Key                       attrvalue.Map
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues attrvalue.Map
	ReturnValues              string // NONE (default) or ALL_OLD
}

// DeleteItemOutput carries the removed item's attributes when ReturnValues
// is ALL_OLD.
type DeleteItemOutput struct {
	Attributes attrvalue.Map
}

// DeleteItem removes the item at in.Key, if the condition (if any) passes
// against its current image. Deleting an already-absent item is a no-op
// success, matching the hosted service.
func (m *Manager) DeleteItem(ctx context.Context, in DeleteItemInput) (*DeleteItemOutput, error) {
	m.log.Debug("DeleteItem", zap.String("table", in.TableName))
	meta, err := m.loadMeta(ctx, in.TableName)
	if err != nil {
		return nil, err
	}
	hashKey, err := scalarKeyValue(in.Key, meta.HashKeyAttribute)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidItem, "hash key: %v", err)
	}
	sortKey, err := sortKeyPtr(meta, in.Key)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidItem, "sort key: %v", err)
	}

	out := &DeleteItemOutput{}
	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(in.TableName))
	err = m.h.WithTx(ctx, func(tx *sqlh.Tx) error {
		var oldAttrs attrvalue.Map
		existing, gerr := itemDAO.Get(ctx, tx, hashKey, sortKey)
		switch gerr {
		case nil:
			oldAttrs = existing.Attributes
		case dao.ErrNotFound:
		default:
			m.log.Error("reading existing item failed", zap.String("table", in.TableName), zap.Error(gerr))
			return apierr.Wrap(gerr, "reading existing item")
		}

		cond, cerr := condition.Parse(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if cerr != nil {
			return cerr
		}
		if !cond.Eval(oldAttrs) {
			return apierr.ConditionalCheckFailed()
		}
		if oldAttrs == nil {
			return nil
		}

		if err := captureIfEnabled(ctx, tx, in.TableName, meta, core.EventRemove, hashKey, sortKey,
			keyMap(meta, oldAttrs), oldAttrs, nil); err != nil {
			m.log.Error("capturing stream event failed", zap.String("table", in.TableName), zap.Error(err))
			return apierr.Wrap(err, "capturing stream event")
		}
		if err := itemDAO.Delete(ctx, tx, hashKey, sortKey); err != nil {
			m.log.Error("deleting item failed", zap.String("table", in.TableName), zap.Error(err))
			return apierr.Wrap(err, "deleting item")
		}
		if err := reconcileIndexes(ctx, tx, in.TableName, meta, oldAttrs, nil); err != nil {
			m.log.Error("reconciling indexes failed", zap.String("table", in.TableName), zap.Error(err))
			return apierr.Wrap(err, "reconciling indexes")
		}
		if strings.EqualFold(in.ReturnValues, "ALL_OLD") {
			out.Attributes = oldAttrs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConditionCheckInput describes a standalone condition check, used inside
// TransactWriteItems.
type ConditionCheckInput struct {
	TableName                 string
	Key                       attrvalue.Map
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues attrvalue.Map
}

// conditionCheckTx evaluates a condition check against the current image
// inside an in-flight transaction, returning ConditionalCheckFailed if it
// fails. It never writes.
func (m *Manager) conditionCheckTx(ctx context.Context, tx *sqlh.Tx, in ConditionCheckInput) error {
	meta, err := m.loadMeta(ctx, in.TableName)
	if err != nil {
		return err
	}
	hashKey, err := scalarKeyValue(in.Key, meta.HashKeyAttribute)
	if err != nil {
		return apierr.New(apierr.KindInvalidItem, "hash key: %v", err)
	}
	sortKey, err := sortKeyPtr(meta, in.Key)
	if err != nil {
		return apierr.New(apierr.KindInvalidItem, "sort key: %v", err)
	}

	itemDAO := dao.NewItemDAO(itemtable.ItemRelation(in.TableName))
	var attrs attrvalue.Map
	existing, gerr := itemDAO.Get(ctx, tx, hashKey, sortKey)
	switch gerr {
	case nil:
		attrs = existing.Attributes
	case dao.ErrNotFound:
	default:
		return apierr.Wrap(gerr, "reading item")
	}

	cond, cerr := condition.Parse(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if cerr != nil {
		return cerr
	}
	if !cond.Eval(attrs) {
		return apierr.ConditionalCheckFailed()
	}
	return nil
}
