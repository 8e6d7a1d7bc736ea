package itemmgr_test

import (
	"context"
	"database/sql"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pretender/internal/attrvalue"
	"pretender/internal/itemmgr"
	"pretender/internal/itemtable"
	_ "pretender/internal/itemtable/sqliteddl"
	"pretender/internal/metadata"
	"pretender/internal/sqlh"
	"pretender/internal/tablemgr"

	_ "github.com/mattn/go-sqlite3"
)

// setup builds an in-memory sqlite-backed itemmgr.Manager and tablemgr.Manager
// sharing one handle, in the style of internal/dao's test helpers.
func setup(t *testing.T) (*sqlh.Handle, *itemmgr.Manager, *tablemgr.Manager, *metadata.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h := sqlh.Open(db, sqlh.DialectSQLite)

	store := metadata.New(h)
	require.NoError(t, store.Bootstrap(context.Background()))

	itemTables, err := itemtable.NewManager(h)
	require.NoError(t, err)

	return h, itemmgr.New(h, store, zap.NewNop()), tablemgr.New(store, itemTables, zap.NewNop()), store
}

func createWidgets(t *testing.T, tables *tablemgr.Manager) {
	t.Helper()
	_, err := tables.CreateTable(context.Background(), tablemgr.CreateTableInput{
		TableName: "Widgets", HashKeyAttribute: "id", SortKeyAttribute: "year",
	})
	require.NoError(t, err)
}

func TestPutGetUpdateDeleteItem(t *testing.T) {
	_, items, tables, _ := setup(t)
	createWidgets(t, tables)
	ctx := context.Background()

	item := attrvalue.Map{
		"id":    attrvalue.String("widget-1"),
		"year":  attrvalue.Number("2024"),
		"color": attrvalue.String("red"),
	}
	_, err := items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Widgets", Item: item})
	require.NoError(t, err)

	got, err := items.GetItem(ctx, itemmgr.GetItemInput{
		TableName: "Widgets",
		Key:       attrvalue.Map{"id": attrvalue.String("widget-1"), "year": attrvalue.Number("2024")},
	})
	require.NoError(t, err)
	require.True(t, got.Found)
	require.Equal(t, "red", got.Item["color"].S)

	updOut, err := items.UpdateItem(ctx, itemmgr.UpdateItemInput{
		TableName:                 "Widgets",
		Key:                       attrvalue.Map{"id": attrvalue.String("widget-1"), "year": attrvalue.Number("2024")},
		UpdateExpression:          "SET color = :c",
		ExpressionAttributeValues: attrvalue.Map{":c": attrvalue.String("blue")},
		ReturnValues:              "ALL_NEW",
	})
	require.NoError(t, err)
	require.Equal(t, "blue", updOut.Attributes["color"].S)

	_, err = items.DeleteItem(ctx, itemmgr.DeleteItemInput{
		TableName: "Widgets",
		Key:       attrvalue.Map{"id": attrvalue.String("widget-1"), "year": attrvalue.Number("2024")},
	})
	require.NoError(t, err)

	got, err = items.GetItem(ctx, itemmgr.GetItemInput{
		TableName: "Widgets",
		Key:       attrvalue.Map{"id": attrvalue.String("widget-1"), "year": attrvalue.Number("2024")},
	})
	require.NoError(t, err)
	require.False(t, got.Found)
}

func TestPutItemConditionFailure(t *testing.T) {
	_, items, tables, _ := setup(t)
	createWidgets(t, tables)
	ctx := context.Background()

	item := attrvalue.Map{"id": attrvalue.String("w1"), "year": attrvalue.Number("2024")}
	_, err := items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Widgets", Item: item})
	require.NoError(t, err)

	_, err = items.PutItem(ctx, itemmgr.PutItemInput{
		TableName:           "Widgets",
		Item:                item,
		ConditionExpression: "attribute_not_exists(id)",
	})
	require.Error(t, err)
}

func TestTransactWriteItemsRejectsDuplicateKeys(t *testing.T) {
	_, items, tables, _ := setup(t)
	createWidgets(t, tables)
	ctx := context.Background()
	key := attrvalue.Map{"id": attrvalue.String("w1"), "year": attrvalue.Number("2024")}

	err := items.TransactWriteItems(ctx, []itemmgr.TransactWriteEntry{
		{Op: itemmgr.TransactPut, TableName: "Widgets", Item: key},
		{Op: itemmgr.TransactDelete, TableName: "Widgets", Key: key},
	})
	require.Error(t, err)
}

// A Put entry carrying extra non-key attributes must still be recognized
// as targeting the same item as another entry on the same primary key;
// hashing the full item (rather than just its key attributes) would let
// this slip through undetected.
func TestTransactWriteItemsRejectsDuplicateKeysWithDifferingAttributes(t *testing.T) {
	_, items, tables, _ := setup(t)
	createWidgets(t, tables)
	ctx := context.Background()
	key := attrvalue.Map{"id": attrvalue.String("w1"), "year": attrvalue.Number("2024")}

	err := items.TransactWriteItems(ctx, []itemmgr.TransactWriteEntry{
		{Op: itemmgr.TransactPut, TableName: "Widgets", Item: attrvalue.Map{
			"id": attrvalue.String("w1"), "year": attrvalue.Number("2024"), "color": attrvalue.String("red"),
		}},
		{Op: itemmgr.TransactUpdate, TableName: "Widgets", Key: key, UpdateExpression: "SET color = :c",
			ExpressionAttributeValues: attrvalue.Map{":c": attrvalue.String("blue")}},
	})
	require.Error(t, err)
}

func TestTransactWriteAndGetItems(t *testing.T) {
	_, items, tables, _ := setup(t)
	createWidgets(t, tables)
	ctx := context.Background()

	err := items.TransactWriteItems(ctx, []itemmgr.TransactWriteEntry{
		{Op: itemmgr.TransactPut, TableName: "Widgets", Item: attrvalue.Map{
			"id": attrvalue.String("w1"), "year": attrvalue.Number("2024"),
		}},
		{Op: itemmgr.TransactPut, TableName: "Widgets", Item: attrvalue.Map{
			"id": attrvalue.String("w2"), "year": attrvalue.Number("2025"),
		}},
	})
	require.NoError(t, err)

	out, err := items.TransactGetItems(ctx, []itemmgr.TransactGetEntry{
		{TableName: "Widgets", Key: attrvalue.Map{"id": attrvalue.String("w1"), "year": attrvalue.Number("2024")}},
		{TableName: "Widgets", Key: attrvalue.Map{"id": attrvalue.String("missing"), "year": attrvalue.Number("1999")}},
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	require.NotNil(t, out.Items[0])
	require.Nil(t, out.Items[1])
}

func TestSweepExpiredTTL(t *testing.T) {
	_, items, tables, store := setup(t)
	createWidgets(t, tables)
	ctx := context.Background()
	require.NoError(t, store.UpdateTTL(ctx, "Widgets", true, "expiresAt"))

	past := time.Now().Add(-time.Hour).Unix()
	future := time.Now().Add(time.Hour).Unix()
	_, err := items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Widgets", Item: attrvalue.Map{
		"id": attrvalue.String("expired"), "year": attrvalue.Number("2024"),
		"expiresAt": attrvalue.Number(itoa(past)),
	}})
	require.NoError(t, err)
	_, err = items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Widgets", Item: attrvalue.Map{
		"id": attrvalue.String("fresh"), "year": attrvalue.Number("2024"),
		"expiresAt": attrvalue.Number(itoa(future)),
	}})
	require.NoError(t, err)

	n, err := items.SweepExpiredTTL(ctx, "Widgets", 100)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := items.GetItem(ctx, itemmgr.GetItemInput{
		TableName: "Widgets",
		Key:       attrvalue.Map{"id": attrvalue.String("expired"), "year": attrvalue.Number("2024")},
	})
	require.NoError(t, err)
	require.False(t, got.Found)

	got, err = items.GetItem(ctx, itemmgr.GetItemInput{
		TableName: "Widgets",
		Key:       attrvalue.Map{"id": attrvalue.String("fresh"), "year": attrvalue.Number("2024")},
	})
	require.NoError(t, err)
	require.True(t, got.Found)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
