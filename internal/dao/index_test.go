package dao_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/dao"
	"pretender/internal/itemtable"
)

func TestIndexDAOReplaceAndQuery(t *testing.T) {
	h := openTestHandle(t)
	const table, index = "Orders", "byStatus"
	mgr, err := itemtable.NewManager(h)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mgr.CreateIndex(ctx, table, core.GlobalSecondaryIndex{
		IndexName: index, HashKeyAttribute: "status", SortKeyAttribute: "orderId",
	}))

	d := dao.NewIndexDAO(itemtable.IndexRelation(table, index))
	row := &core.IndexRow{
		HashKeyValue: "open", SortKeyValue: "order-1",
		Attributes: attrvalue.Map{"status": attrvalue.String("open")},
		CreateDate:  time.Unix(1, 0).UTC(), UpdateDate: time.Unix(1, 0).UTC(),
	}
	require.NoError(t, d.Replace(ctx, h, row))

	rows, err := d.QueryHash(ctx, h, "open", true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "order-1", rows[0].SortKeyValue)

	require.NoError(t, d.Delete(ctx, h, "open", "order-1"))
	rows, err = d.QueryHash(ctx, h, "open", true)
	require.NoError(t, err)
	require.Empty(t, rows)
}
