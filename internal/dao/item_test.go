package dao_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/dao"
	"pretender/internal/itemtable"
	_ "pretender/internal/itemtable/sqliteddl"
	"pretender/internal/sqlh"

	_ "github.com/mattn/go-sqlite3"
)

func openTestHandle(t *testing.T) *sqlh.Handle {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlh.Open(db, sqlh.DialectSQLite)
}

func createItemRelation(t *testing.T, h *sqlh.Handle, relation string) {
	t.Helper()
	mgr, err := itemtable.NewManager(h)
	require.NoError(t, err)
	require.NoError(t, mgr.CreatePrimary(context.Background(), relation))
}

func TestItemDAOPutGetDelete(t *testing.T) {
	h := openTestHandle(t)
	const table = "Widgets"
	createItemRelation(t, h, table)
	d := dao.NewItemDAO(itemtable.ItemRelation(table))
	ctx := context.Background()

	sk := "2024"
	item := &core.Item{
		HashKeyValue: "widget-1",
		SortKeyValue: &sk,
		Attributes: attrvalue.Map{
			"id":    attrvalue.String("widget-1"),
			"year":  attrvalue.Number("2024"),
			"color": attrvalue.String("red"),
		},
		CreateDate: time.Unix(1000, 0).UTC(),
		UpdateDate: time.Unix(1000, 0).UTC(),
	}
	require.NoError(t, d.Put(ctx, h, item))

	got, err := d.Get(ctx, h, "widget-1", &sk)
	require.NoError(t, err)
	require.Equal(t, "widget-1", got.HashKeyValue)
	require.NotNil(t, got.SortKeyValue)
	require.Equal(t, "2024", *got.SortKeyValue)
	require.True(t, attrvalue.Equal(item.Attributes["color"], got.Attributes["color"]))

	_, err = d.Get(ctx, h, "widget-2", &sk)
	require.ErrorIs(t, err, dao.ErrNotFound)

	require.NoError(t, d.Delete(ctx, h, "widget-1", &sk))
	_, err = d.Get(ctx, h, "widget-1", &sk)
	require.ErrorIs(t, err, dao.ErrNotFound)
}

func TestItemDAOPutReplacesPriorItem(t *testing.T) {
	h := openTestHandle(t)
	const table = "Widgets"
	createItemRelation(t, h, table)
	d := dao.NewItemDAO(itemtable.ItemRelation(table))
	ctx := context.Background()

	sk := "a"
	first := &core.Item{
		HashKeyValue: "h1", SortKeyValue: &sk,
		Attributes: attrvalue.Map{"v": attrvalue.Number("1")},
		CreateDate: time.Unix(1, 0).UTC(), UpdateDate: time.Unix(1, 0).UTC(),
	}
	second := &core.Item{
		HashKeyValue: "h1", SortKeyValue: &sk,
		Attributes: attrvalue.Map{"v": attrvalue.Number("2")},
		CreateDate: time.Unix(1, 0).UTC(), UpdateDate: time.Unix(2, 0).UTC(),
	}
	require.NoError(t, d.Put(ctx, h, first))
	require.NoError(t, d.Put(ctx, h, second))

	got, err := d.Get(ctx, h, "h1", &sk)
	require.NoError(t, err)
	require.Equal(t, "2", got.Attributes["v"].N)

	all, err := d.QueryHash(ctx, h, "h1", true, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestItemDAOQueryHashOrdering(t *testing.T) {
	h := openTestHandle(t)
	const table = "Events"
	createItemRelation(t, h, table)
	d := dao.NewItemDAO(itemtable.ItemRelation(table))
	ctx := context.Background()

	for _, sk := range []string{"c", "a", "b"} {
		skCopy := sk
		require.NoError(t, d.Put(ctx, h, &core.Item{
			HashKeyValue: "user-1", SortKeyValue: &skCopy,
			Attributes: attrvalue.Map{"sk": attrvalue.String(sk)},
			CreateDate:  time.Unix(1, 0).UTC(), UpdateDate: time.Unix(1, 0).UTC(),
		}))
	}

	asc, err := d.QueryHash(ctx, h, "user-1", true, true)
	require.NoError(t, err)
	require.Len(t, asc, 3)
	require.Equal(t, []string{"a", "b", "c"}, sortKeys(asc))

	desc, err := d.QueryHash(ctx, h, "user-1", true, false)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, sortKeys(desc))
}

func TestItemDAOScanAll(t *testing.T) {
	h := openTestHandle(t)
	const table = "Scanned"
	createItemRelation(t, h, table)
	d := dao.NewItemDAO(itemtable.ItemRelation(table))
	ctx := context.Background()

	for _, hk := range []string{"x", "y"} {
		require.NoError(t, d.Put(ctx, h, &core.Item{
			HashKeyValue: hk,
			Attributes:   attrvalue.Map{"hk": attrvalue.String(hk)},
			CreateDate:   time.Unix(1, 0).UTC(), UpdateDate: time.Unix(1, 0).UTC(),
		}))
	}

	items, err := d.ScanAll(ctx, h, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		require.Nil(t, it.SortKeyValue)
	}
}

func sortKeys(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = *it.SortKeyValue
	}
	return out
}
