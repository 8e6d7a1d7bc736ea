package tablemgr_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pretender/internal/core"
	"pretender/internal/itemtable"
	_ "pretender/internal/itemtable/sqliteddl"
	"pretender/internal/metadata"
	"pretender/internal/sqlh"
	"pretender/internal/tablemgr"

	_ "github.com/mattn/go-sqlite3"
)

func setup(t *testing.T) (*tablemgr.Manager, *metadata.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h := sqlh.Open(db, sqlh.DialectSQLite)

	store := metadata.New(h)
	require.NoError(t, store.Bootstrap(context.Background()))
	itemTables, err := itemtable.NewManager(h)
	require.NoError(t, err)

	return tablemgr.New(store, itemTables, zap.NewNop()), store
}

func TestCreateDescribeDeleteTable(t *testing.T) {
	mgr, _ := setup(t)
	ctx := context.Background()

	meta, err := mgr.CreateTable(ctx, tablemgr.CreateTableInput{
		TableName: "Orders", HashKeyAttribute: "customerId", SortKeyAttribute: "orderId",
	})
	require.NoError(t, err)
	require.Equal(t, "Orders", meta.Name)

	_, err = mgr.CreateTable(ctx, tablemgr.CreateTableInput{TableName: "Orders", HashKeyAttribute: "customerId"})
	require.Error(t, err)

	desc, err := mgr.DescribeTable(ctx, "Orders")
	require.NoError(t, err)
	require.Equal(t, "orderId", desc.SortKeyAttribute)

	names, err := mgr.ListTables(ctx)
	require.NoError(t, err)
	require.Contains(t, names, "Orders")

	require.NoError(t, mgr.DeleteTable(ctx, "Orders"))
	_, err = mgr.DescribeTable(ctx, "Orders")
	require.Error(t, err)
}

func TestUpdateTableEnablesTTLAndStream(t *testing.T) {
	mgr, _ := setup(t)
	ctx := context.Background()

	_, err := mgr.CreateTable(ctx, tablemgr.CreateTableInput{TableName: "Sessions", HashKeyAttribute: "id"})
	require.NoError(t, err)

	ttlOn := true
	streamOn := true
	updated, err := mgr.UpdateTable(ctx, tablemgr.UpdateTableInput{
		TableName: "Sessions", TTLEnabled: &ttlOn, TTLAttributeName: "expiresAt",
		StreamEnabled: &streamOn, StreamViewType: core.StreamViewNewAndOldImages,
	})
	require.NoError(t, err)
	require.True(t, updated.TTLEnabled)
	require.Equal(t, "expiresAt", updated.TTLAttributeName)
	require.True(t, updated.StreamEnabled)
	require.NotEmpty(t, updated.StreamARN)
	require.Contains(t, updated.StreamARN, "table/Sessions/stream/")
}
