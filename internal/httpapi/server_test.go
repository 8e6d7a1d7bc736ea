package httpapi_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pretender/internal/httpapi"
	"pretender/internal/itemmgr"
	"pretender/internal/itemtable"
	_ "pretender/internal/itemtable/sqliteddl"
	"pretender/internal/metadata"
	"pretender/internal/sqlh"
	"pretender/internal/streammgr"
	"pretender/internal/tablemgr"

	_ "github.com/mattn/go-sqlite3"
)

func newTestServer(t *testing.T) *httpapi.Server {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h := sqlh.Open(db, sqlh.DialectSQLite)

	store := metadata.New(h)
	require.NoError(t, store.Bootstrap(context.Background()))
	itemTables, err := itemtable.NewManager(h)
	require.NoError(t, err)

	return &httpapi.Server{
		Items:   itemmgr.New(h, store, zap.NewNop()),
		Tables:  tablemgr.New(store, itemTables, zap.NewNop()),
		Streams: streammgr.New(h, store),
		Logger:  zap.NewNop(),
	}
}

func post(t *testing.T, srv *httpapi.Server, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set(httpapi.TargetHeader, target)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestPutItemAndGetItemRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	createTable(t, srv, "Widgets", "id", "")

	rec := post(t, srv, "PutItem", map[string]any{
		"TableName": "Widgets",
		"Item":      map[string]any{"id": map[string]any{"S": "w1"}, "color": map[string]any{"S": "red"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, srv, "GetItem", map[string]any{
		"TableName": "Widgets",
		"Key":       map[string]any{"id": map[string]any{"S": "w1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	item := out["Item"].(map[string]any)
	color := item["color"].(map[string]any)
	require.Equal(t, "red", color["S"])
}

func TestUnknownTargetReturns400(t *testing.T) {
	srv := newTestServer(t)
	rec := post(t, srv, "NotARealAction", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNonPostMethodReturns405(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(httpapi.TargetHeader, "ListTables")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetItemOnMissingTableReturns404(t *testing.T) {
	srv := newTestServer(t)
	rec := post(t, srv, "GetItem", map[string]any{
		"TableName": "DoesNotExist",
		"Key":       map[string]any{"id": map[string]any{"S": "w1"}},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "TableNotFound", body["__type"])
}

func TestCreateTableDuplicateReturns400(t *testing.T) {
	srv := newTestServer(t)
	createTable(t, srv, "Widgets", "id", "")

	rec := post(t, srv, "CreateTable", map[string]any{
		"TableName": "Widgets",
		"KeySchema": []map[string]any{{"AttributeName": "id", "KeyType": "HASH"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func createTable(t *testing.T, srv *httpapi.Server, name, hashAttr, sortAttr string) {
	t.Helper()
	keySchema := []map[string]any{{"AttributeName": hashAttr, "KeyType": "HASH"}}
	if sortAttr != "" {
		keySchema = append(keySchema, map[string]any{"AttributeName": sortAttr, "KeyType": "RANGE"})
	}
	rec := post(t, srv, "CreateTable", map[string]any{"TableName": name, "KeySchema": keySchema})
	require.Equal(t, http.StatusOK, rec.Code)
}
