// Package tablemgr is the table lifecycle manager from SPEC_FULL.md §4.6
// (supplemented): createTable/deleteTable/describeTable/updateTable,
// sitting above internal/metadata (the catalog) and internal/itemtable
// (physical relation DDL).
package tablemgr

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pretender/internal/apierr"
	"pretender/internal/core"
	"pretender/internal/itemtable"
	"pretender/internal/metadata"
)

// Manager creates, describes, and deletes logical tables.
type Manager struct {
	store *metadata.Store
	items *itemtable.Manager
	log   *zap.Logger
}

// New builds a Manager over store and items. A nil logger falls back to
// zap.NewNop().
func New(store *metadata.Store, items *itemtable.Manager, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, items: items, log: log}
}

// CreateTableInput describes a new logical table.
type CreateTableInput struct {
	TableName              string
	HashKeyAttribute       string
	SortKeyAttribute       string
	GlobalSecondaryIndexes []core.GlobalSecondaryIndex
}

// CreateTable provisions the primary relation and every GSI's relation,
// then records the table's metadata. Fails with ValidationException if the
// table already exists.
func (m *Manager) CreateTable(ctx context.Context, in CreateTableInput) (*core.TableMetadata, error) {
	m.log.Debug("CreateTable", zap.String("table", in.TableName))
	if in.TableName == "" || in.HashKeyAttribute == "" {
		return nil, apierr.New(apierr.KindValidation, "tableName and hashKeyAttribute are required")
	}
	existing, err := m.store.Get(ctx, in.TableName)
	if err != nil {
		m.log.Error("checking for existing table failed", zap.String("table", in.TableName), zap.Error(err))
		return nil, apierr.Wrap(err, "checking for existing table %q", in.TableName)
	}
	if existing != nil {
		return nil, apierr.New(apierr.KindValidation, "table %q already exists", in.TableName)
	}

	if err := m.items.CreatePrimary(ctx, in.TableName); err != nil {
		m.log.Error("creating primary relation failed", zap.String("table", in.TableName), zap.Error(err))
		return nil, apierr.Wrap(err, "creating primary relation for %q", in.TableName)
	}
	for _, idx := range in.GlobalSecondaryIndexes {
		if err := m.items.CreateIndex(ctx, in.TableName, idx); err != nil {
			m.log.Error("creating index relation failed", zap.String("table", in.TableName), zap.String("index", idx.IndexName), zap.Error(err))
			return nil, apierr.Wrap(err, "creating index relation %q for %q", idx.IndexName, in.TableName)
		}
	}

	meta := &core.TableMetadata{
		Name:                   in.TableName,
		HashKeyAttribute:       in.HashKeyAttribute,
		SortKeyAttribute:       in.SortKeyAttribute,
		GlobalSecondaryIndexes: in.GlobalSecondaryIndexes,
		CreateDate:             time.Now().UTC(),
	}
	if err := m.store.Put(ctx, meta); err != nil {
		m.log.Error("recording table metadata failed", zap.String("table", in.TableName), zap.Error(err))
		return nil, apierr.Wrap(err, "recording metadata for %q", in.TableName)
	}
	return meta, nil
}

// DescribeTable returns a table's metadata, or TableNotFound.
func (m *Manager) DescribeTable(ctx context.Context, table string) (*core.TableMetadata, error) {
	m.log.Debug("DescribeTable", zap.String("table", table))
	meta, err := m.store.Get(ctx, table)
	if err != nil {
		m.log.Error("loading table metadata failed", zap.String("table", table), zap.Error(err))
		return nil, apierr.Wrap(err, "loading metadata for %q", table)
	}
	if meta == nil {
		return nil, apierr.TableNotFound(table)
	}
	return meta, nil
}

// DeleteTable drops every relation owned by table and removes its catalog
// entry.
func (m *Manager) DeleteTable(ctx context.Context, table string) error {
	m.log.Debug("DeleteTable", zap.String("table", table))
	meta, err := m.store.Get(ctx, table)
	if err != nil {
		m.log.Error("loading table metadata failed", zap.String("table", table), zap.Error(err))
		return apierr.Wrap(err, "loading metadata for %q", table)
	}
	if meta == nil {
		return apierr.TableNotFound(table)
	}
	if err := m.items.DropTable(ctx, table); err != nil {
		m.log.Error("dropping table relations failed", zap.String("table", table), zap.Error(err))
		return apierr.Wrap(err, "dropping relations for %q", table)
	}
	if err := m.store.Delete(ctx, table); err != nil {
		m.log.Error("removing table metadata failed", zap.String("table", table), zap.Error(err))
		return apierr.Wrap(err, "removing metadata for %q", table)
	}
	return nil
}

// ListTables returns every logical table name.
func (m *Manager) ListTables(ctx context.Context) ([]string, error) {
	m.log.Debug("ListTables")
	names, err := m.store.List(ctx)
	if err != nil {
		m.log.Error("listing tables failed", zap.Error(err))
		return nil, apierr.Wrap(err, "listing tables")
	}
	return names, nil
}

// UpdateTableInput describes a TTL and/or stream settings change. A nil
// pointer field leaves that setting untouched.
type UpdateTableInput struct {
	TableName        string
	TTLEnabled       *bool
	TTLAttributeName string
	StreamEnabled    *bool
	StreamViewType   core.StreamViewType
}

// UpdateTable applies TTL and/or stream setting changes to an existing
// table. Enabling streams provisions the stream relation if it does not
// already exist.
func (m *Manager) UpdateTable(ctx context.Context, in UpdateTableInput) (*core.TableMetadata, error) {
	m.log.Debug("UpdateTable", zap.String("table", in.TableName))
	meta, err := m.store.Get(ctx, in.TableName)
	if err != nil {
		m.log.Error("loading table metadata failed", zap.String("table", in.TableName), zap.Error(err))
		return nil, apierr.Wrap(err, "loading metadata for %q", in.TableName)
	}
	if meta == nil {
		return nil, apierr.TableNotFound(in.TableName)
	}

	if in.TTLEnabled != nil {
		if err := m.store.UpdateTTL(ctx, in.TableName, *in.TTLEnabled, in.TTLAttributeName); err != nil {
			m.log.Error("updating TTL settings failed", zap.String("table", in.TableName), zap.Error(err))
			return nil, apierr.Wrap(err, "updating TTL settings for %q", in.TableName)
		}
	}

	if in.StreamEnabled != nil {
		if *in.StreamEnabled && !meta.StreamEnabled {
			if err := m.items.CreateStream(ctx, in.TableName); err != nil {
				m.log.Error("creating stream relation failed", zap.String("table", in.TableName), zap.Error(err))
				return nil, apierr.Wrap(err, "creating stream relation for %q", in.TableName)
			}
		}
		arn, label := meta.StreamARN, meta.StreamLabel
		if *in.StreamEnabled && !meta.StreamEnabled {
			label = strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
			arn = fmt.Sprintf("arn:aws:dynamodb:us-east-1:000000000000:table/%s/stream/%s", in.TableName, label)
		}
		if err := m.store.UpdateStream(ctx, in.TableName, *in.StreamEnabled, in.StreamViewType, arn, label); err != nil {
			m.log.Error("updating stream settings failed", zap.String("table", in.TableName), zap.Error(err))
			return nil, apierr.Wrap(err, "updating stream settings for %q", in.TableName)
		}
	}

	return m.store.Get(ctx, in.TableName)
}
