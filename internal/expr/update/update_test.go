package update_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pretender/internal/attrvalue"
	"pretender/internal/expr/update"
)

func TestSetLiteral(t *testing.T) {
	e, err := update.Parse("SET color = :c", nil, attrvalue.Map{":c": attrvalue.String("red")})
	require.NoError(t, err)
	out, err := e.Apply(attrvalue.Map{"id": attrvalue.String("1")})
	require.NoError(t, err)
	require.Equal(t, "red", out["color"].S)
	require.Equal(t, "1", out["id"].S)
}

func TestSetArithmetic(t *testing.T) {
	e, err := update.Parse("SET count = count + :n", nil, attrvalue.Map{":n": attrvalue.Number("5")})
	require.NoError(t, err)
	out, err := e.Apply(attrvalue.Map{"count": attrvalue.Number("10")})
	require.NoError(t, err)
	require.Equal(t, "15", out["count"].N)
}

func TestSetIfNotExists(t *testing.T) {
	e, err := update.Parse("SET v = if_not_exists(v, :d)", nil, attrvalue.Map{":d": attrvalue.Number("0")})
	require.NoError(t, err)
	out, err := e.Apply(attrvalue.Map{})
	require.NoError(t, err)
	require.Equal(t, "0", out["v"].N)

	out2, err := e.Apply(attrvalue.Map{"v": attrvalue.Number("7")})
	require.NoError(t, err)
	require.Equal(t, "7", out2["v"].N)
}

func TestSetListAppend(t *testing.T) {
	e, err := update.Parse("SET tags = list_append(tags, :new)", nil,
		attrvalue.Map{":new": attrvalue.List(attrvalue.String("b"))})
	require.NoError(t, err)
	out, err := e.Apply(attrvalue.Map{"tags": attrvalue.List(attrvalue.String("a"))})
	require.NoError(t, err)
	require.Len(t, out["tags"].L, 2)
	require.Equal(t, "a", out["tags"].L[0].S)
	require.Equal(t, "b", out["tags"].L[1].S)
}

func TestRemove(t *testing.T) {
	e, err := update.Parse("REMOVE stale", nil, nil)
	require.NoError(t, err)
	out, err := e.Apply(attrvalue.Map{"stale": attrvalue.String("x"), "keep": attrvalue.String("y")})
	require.NoError(t, err)
	_, ok := out["stale"]
	require.False(t, ok)
	require.Equal(t, "y", out["keep"].S)
}

func TestAddNumberAndSet(t *testing.T) {
	e, err := update.Parse("ADD score :s, tags :t", nil, attrvalue.Map{
		":s": attrvalue.Number("3"),
		":t": attrvalue.StringSet("x"),
	})
	require.NoError(t, err)
	out, err := e.Apply(attrvalue.Map{
		"score": attrvalue.Number("4"),
		"tags":  attrvalue.StringSet("y"),
	})
	require.NoError(t, err)
	require.Equal(t, "7", out["score"].N)
	require.ElementsMatch(t, []string{"x", "y"}, out["tags"].SS)
}

func TestDeleteRemovesSetElementAndDropsWhenEmpty(t *testing.T) {
	e, err := update.Parse("DELETE tags :t", nil, attrvalue.Map{":t": attrvalue.StringSet("only")})
	require.NoError(t, err)
	out, err := e.Apply(attrvalue.Map{"tags": attrvalue.StringSet("only")})
	require.NoError(t, err)
	_, ok := out["tags"]
	require.False(t, ok)
}

func TestCombinedClausesAnyOrder(t *testing.T) {
	e, err := update.Parse("REMOVE old ADD hits :h SET name = :n", nil, attrvalue.Map{
		":h": attrvalue.Number("1"),
		":n": attrvalue.String("widget"),
	})
	require.NoError(t, err)
	out, err := e.Apply(attrvalue.Map{"old": attrvalue.String("x"), "hits": attrvalue.Number("2")})
	require.NoError(t, err)
	require.Equal(t, "widget", out["name"].S)
	require.Equal(t, "3", out["hits"].N)
	_, ok := out["old"]
	require.False(t, ok)
}
