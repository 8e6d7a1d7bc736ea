//go:build integration
// +build integration

package itemmgr_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"pretender/internal/attrvalue"
	"pretender/internal/itemmgr"
	"pretender/internal/itemtable"
	_ "pretender/internal/itemtable/pgddl"
	"pretender/internal/metadata"
	"pretender/internal/sqlh"
	"pretender/internal/tablemgr"
)

// TestItemRoundTripAgainstRealPostgres exercises the item manager against a
// real Postgres container rather than sqlite, to catch jsonb-specific
// behavior (nested maps/lists surviving the ::jsonb cast BindJSON adds for
// this dialect) that an in-memory sqlite TEXT column can't disprove.
func TestItemRoundTripAgainstRealPostgres(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pretender"),
		postgres.WithUsername("pretender"),
		postgres.WithPassword("pretender"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.Eventually(t, func() bool { return db.PingContext(ctx) == nil }, 30*time.Second, time.Second)

	h := sqlh.Open(db, sqlh.DialectPostgres)
	store := metadata.New(h)
	require.NoError(t, store.Bootstrap(ctx))
	itemTables, err := itemtable.NewManager(h)
	require.NoError(t, err)

	tables := tablemgr.New(store, itemTables, zap.NewNop())
	items := itemmgr.New(h, store, zap.NewNop())

	_, err = tables.CreateTable(ctx, tablemgr.CreateTableInput{TableName: "Orders", HashKeyAttribute: "id"})
	require.NoError(t, err)

	nested := attrvalue.Map{
		"id": attrvalue.String("order-1"),
		"lineItems": attrvalue.List(
			attrvalue.MapValue(attrvalue.Map{"sku": attrvalue.String("widget"), "qty": attrvalue.Number("3")}),
			attrvalue.MapValue(attrvalue.Map{"sku": attrvalue.String("gadget"), "qty": attrvalue.Number("1")}),
		),
		"shipping": attrvalue.MapValue(attrvalue.Map{
			"city": attrvalue.String("Springfield"),
			"zip":  attrvalue.String("00000"),
		}),
	}

	_, err = items.PutItem(ctx, itemmgr.PutItemInput{TableName: "Orders", Item: nested})
	require.NoError(t, err)

	out, err := items.GetItem(ctx, itemmgr.GetItemInput{TableName: "Orders", Key: attrvalue.Map{"id": attrvalue.String("order-1")}})
	require.NoError(t, err)
	require.True(t, out.Found)

	lineItems := out.Item["lineItems"]
	require.Equal(t, attrvalue.KindL, lineItems.Kind)
	require.Len(t, lineItems.L, 2)
	require.Equal(t, "widget", lineItems.L[0].M["sku"].S)
	require.Equal(t, "Springfield", out.Item["shipping"].M["city"].S)
}
