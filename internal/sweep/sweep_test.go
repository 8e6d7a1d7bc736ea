package sweep_test

import (
	"context"
	"database/sql"
	"strconv"
	"testing"
	"time"

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
	"pretender/internal/sweep"
	"pretender/internal/tablemgr"

	_ "github.com/mattn/go-sqlite3"
)

func setup(t *testing.T) (*itemmgr.Manager, *tablemgr.Manager, *streammgr.Manager, *metadata.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h := sqlh.Open(db, sqlh.DialectSQLite)

	store := metadata.New(h)
	require.NoError(t, store.Bootstrap(context.Background()))
	itemTables, err := itemtable.NewManager(h)
	require.NoError(t, err)

	return itemmgr.New(h, store, zap.NewNop()), tablemgr.New(store, itemTables, zap.NewNop()), streammgr.New(h, store), store
}

func TestTTLSweeperSweepOnce(t *testing.T) {
	items, tables, _, store := setup(t)
	ctx := context.Background()
	_, err := tables.CreateTable(ctx, tablemgr.CreateTableInput{TableName: "Sessions", HashKeyAttribute: "id"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateTTL(ctx, "Sessions", true, "expiresAt"))

	past := time.Now().Add(-time.Minute).Unix()
	_, err = items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Sessions", Item: attrvalue.Map{
		"id": attrvalue.String("s1"), "expiresAt": attrvalue.Number("9999999999"),
	}})
	require.NoError(t, err)
	_, err = items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Sessions", Item: attrvalue.Map{
		"id":        attrvalue.String("s2"),
		"expiresAt": attrvalue.Number(itoa(past)),
	}})
	require.NoError(t, err)

	sweeper := sweep.NewTTLSweeper(items, store, time.Hour, 0, zap.NewNop())
	sweeper.SweepOnce(ctx)

	got, err := items.GetItem(ctx, itemmgr.GetItemInput{TableName: "Sessions", Key: attrvalue.Map{"id": attrvalue.String("s2")}})
	require.NoError(t, err)
	require.False(t, got.Found)

	got, err = items.GetItem(ctx, itemmgr.GetItemInput{TableName: "Sessions", Key: attrvalue.Map{"id": attrvalue.String("s1")}})
	require.NoError(t, err)
	require.True(t, got.Found)
}

func TestStreamSweeperSweepOnce(t *testing.T) {
	items, tables, streams, store := setup(t)
	ctx := context.Background()
	_, err := tables.CreateTable(ctx, tablemgr.CreateTableInput{TableName: "Events", HashKeyAttribute: "id"})
	require.NoError(t, err)
	streamOn := true
	_, err = tables.UpdateTable(ctx, tablemgr.UpdateTableInput{
		TableName: "Events", StreamEnabled: &streamOn, StreamViewType: core.StreamViewNewAndOldImages,
	})
	require.NoError(t, err)
	_, err = items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Events", Item: attrvalue.Map{"id": attrvalue.String("e1")}})
	require.NoError(t, err)

	shard, err := streams.DescribeShard(ctx, "Events")
	require.NoError(t, err)
	require.NotNil(t, shard.EndingSequence)

	sweeper := sweep.NewStreamSweeper(streams, store, time.Hour, zap.NewNop())
	sweeper.SweepOnce(ctx)

	shard, err = streams.DescribeShard(ctx, "Events")
	require.NoError(t, err)
	require.NotNil(t, shard.EndingSequence)
}

func TestTTLSweeperStartStop(t *testing.T) {
	items, tables, _, store := setup(t)
	ctx := context.Background()
	_, err := tables.CreateTable(ctx, tablemgr.CreateTableInput{TableName: "Sessions", HashKeyAttribute: "id"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateTTL(ctx, "Sessions", true, "expiresAt"))

	sweeper := sweep.NewTTLSweeper(items, store, 10*time.Millisecond, 0, zap.NewNop())
	runCtx, cancel := context.WithCancel(ctx)
	sweeper.Start(runCtx)
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
	cancel()
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
