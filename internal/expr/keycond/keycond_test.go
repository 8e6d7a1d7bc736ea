package keycond_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pretender/internal/attrvalue"
	"pretender/internal/expr/keycond"
)

func TestParseHashOnly(t *testing.T) {
	p, err := keycond.Parse("uid = :u", nil, attrvalue.Map{":u": attrvalue.String("u1")})
	require.NoError(t, err)
	require.Equal(t, "uid", p.HashAttr)
	require.Equal(t, ":u", p.HashBind)
	require.Equal(t, "", p.SortAttr)
}

func TestParseBetween(t *testing.T) {
	values := attrvalue.Map{
		":u": attrvalue.String("u"),
		":a": attrvalue.String("2024-01-02"),
		":b": attrvalue.String("2024-01-04"),
	}
	p, err := keycond.Parse("uid = :u AND ts BETWEEN :a AND :b", nil, values)
	require.NoError(t, err)
	require.Equal(t, "ts", p.SortAttr)
	require.Equal(t, keycond.SortOpBetween, p.SortOp)
	require.Equal(t, ":a", p.SortLoBind)
	require.Equal(t, ":b", p.SortHiBind)
}

func TestParseBeginsWith(t *testing.T) {
	values := attrvalue.Map{":u": attrvalue.String("u"), ":pfx": attrvalue.String("2024-")}
	p, err := keycond.Parse("uid = :u AND begins_with(ts, :pfx)", nil, values)
	require.NoError(t, err)
	require.Equal(t, keycond.SortOpBeginsWith, p.SortOp)
	require.Equal(t, ":pfx", p.SortBind)
}

func TestParseNamePlaceholder(t *testing.T) {
	values := attrvalue.Map{":u": attrvalue.String("u1")}
	names := map[string]string{"#id": "userId"}
	p, err := keycond.Parse("#id = :u", names, values)
	require.NoError(t, err)
	require.Equal(t, "userId", p.HashAttr)
}

func TestParseMissingHashCondition(t *testing.T) {
	_, err := keycond.Parse("uid", nil, attrvalue.Map{})
	require.Error(t, err)
}

func TestParseUnresolvedPlaceholder(t *testing.T) {
	_, err := keycond.Parse("#missing = :u", map[string]string{}, attrvalue.Map{":u": attrvalue.String("u")})
	require.Error(t, err)
}

func TestParseNonScalarBind(t *testing.T) {
	_, err := keycond.Parse("uid = :u", nil, attrvalue.Map{":u": attrvalue.StringSet("a", "b")})
	require.Error(t, err)
}
