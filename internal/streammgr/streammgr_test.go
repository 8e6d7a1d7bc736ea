package streammgr_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/itemmgr"
	"pretender/internal/itemtable"
	_ "pretender/internal/itemtable/sqliteddl"
	"pretender/internal/metadata"
	"pretender/internal/sqlh"
	"pretender/internal/streammgr"
	"pretender/internal/tablemgr"

	_ "github.com/mattn/go-sqlite3"
)

func setup(t *testing.T) (*itemmgr.Manager, *tablemgr.Manager, *streammgr.Manager) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h := sqlh.Open(db, sqlh.DialectSQLite)

	store := metadata.New(h)
	require.NoError(t, store.Bootstrap(context.Background()))
	itemTables, err := itemtable.NewManager(h)
	require.NoError(t, err)

	return itemmgr.New(h, store, zap.NewNop()), tablemgr.New(store, itemTables, zap.NewNop()), streammgr.New(h, store)
}

func TestDescribeStreamRequiresEnabled(t *testing.T) {
	_, tables, streams := setup(t)
	ctx := context.Background()
	_, err := tables.CreateTable(ctx, tablemgr.CreateTableInput{TableName: "Events", HashKeyAttribute: "id"})
	require.NoError(t, err)

	_, err = streams.DescribeStream(ctx, "Events")
	require.Error(t, err)

	streamOn := true
	_, err = tables.UpdateTable(ctx, tablemgr.UpdateTableInput{
		TableName: "Events", StreamEnabled: &streamOn, StreamViewType: core.StreamViewNewAndOldImages,
	})
	require.NoError(t, err)

	desc, err := streams.DescribeStream(ctx, "Events")
	require.NoError(t, err)
	require.True(t, desc.StreamEnabled)

	list, err := streams.ListStreams(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Events", list[0].Name)
}

func TestGetShardIteratorAndRecords(t *testing.T) {
	items, tables, streams := setup(t)
	ctx := context.Background()
	_, err := tables.CreateTable(ctx, tablemgr.CreateTableInput{TableName: "Events", HashKeyAttribute: "id"})
	require.NoError(t, err)

	streamOn := true
	_, err = tables.UpdateTable(ctx, tablemgr.UpdateTableInput{
		TableName: "Events", StreamEnabled: &streamOn, StreamViewType: core.StreamViewNewAndOldImages,
	})
	require.NoError(t, err)

	for _, id := range []string{"e1", "e2", "e3"} {
		_, err := items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Events", Item: attrvalue.Map{
			"id": attrvalue.String(id),
		}})
		require.NoError(t, err)
	}

	shard, err := streams.DescribeShard(ctx, "Events")
	require.NoError(t, err)
	require.NotNil(t, shard.EndingSequence)
	require.Equal(t, int64(1), shard.StartingSequence)
	require.Equal(t, int64(3), *shard.EndingSequence)

	iter, err := streams.GetShardIterator(ctx, "Events", streammgr.IteratorTrimHorizon, 0)
	require.NoError(t, err)
	require.NotEmpty(t, iter)

	records, next, err := streams.GetRecords(ctx, iter, 100)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, core.EventInsert, records[0].EventType)
	require.NotEmpty(t, next)

	moreRecords, endToken, err := streams.GetRecords(ctx, next, 100)
	require.NoError(t, err)
	require.Empty(t, moreRecords)
	require.Empty(t, endToken)
}

// A LATEST iterator must skip every record already written and return only
// what is captured afterward, including the very next one.
func TestGetShardIteratorLatestSkipsExistingReturnsFutureRecords(t *testing.T) {
	items, tables, streams := setup(t)
	ctx := context.Background()
	_, err := tables.CreateTable(ctx, tablemgr.CreateTableInput{TableName: "Events", HashKeyAttribute: "id"})
	require.NoError(t, err)

	streamOn := true
	_, err = tables.UpdateTable(ctx, tablemgr.UpdateTableInput{
		TableName: "Events", StreamEnabled: &streamOn, StreamViewType: core.StreamViewNewAndOldImages,
	})
	require.NoError(t, err)

	for _, id := range []string{"e1", "e2"} {
		_, err := items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Events", Item: attrvalue.Map{
			"id": attrvalue.String(id),
		}})
		require.NoError(t, err)
	}

	iter, err := streams.GetShardIterator(ctx, "Events", streammgr.IteratorLatest, 0)
	require.NoError(t, err)

	records, _, err := streams.GetRecords(ctx, iter, 100)
	require.NoError(t, err)
	require.Empty(t, records, "LATEST must not replay records written before the iterator was created")

	_, err = items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Events", Item: attrvalue.Map{
		"id": attrvalue.String("e3"),
	}})
	require.NoError(t, err)

	records, _, err = streams.GetRecords(ctx, iter, 100)
	require.NoError(t, err)
	require.Len(t, records, 1, "LATEST must return the very next record written, not skip it")
	require.Equal(t, "e3", records[0].HashKeyValue)
}
