package condition_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pretender/internal/attrvalue"
	"pretender/internal/expr/condition"
)

func TestNullExpressionIsTrue(t *testing.T) {
	n, err := condition.Parse("", nil, nil)
	require.NoError(t, err)
	require.True(t, n.Eval(nil))
}

func TestAttributeNotExists(t *testing.T) {
	n, err := condition.Parse("attribute_not_exists(userId)", nil, nil)
	require.NoError(t, err)
	require.True(t, n.Eval(attrvalue.Map{}))
	require.False(t, n.Eval(attrvalue.Map{"userId": attrvalue.String("x")}))
}

func TestAndOrNotPrecedence(t *testing.T) {
	values := attrvalue.Map{":a": attrvalue.Number("1"), ":b": attrvalue.Number("2")}
	n, err := condition.Parse("NOT a = :a AND b = :b", nil, values)
	require.NoError(t, err)
	// NOT binds tighter than AND: (NOT a=1) AND b=2
	require.False(t, n.Eval(attrvalue.Map{"a": attrvalue.Number("1"), "b": attrvalue.Number("2")}))
	require.True(t, n.Eval(attrvalue.Map{"a": attrvalue.Number("9"), "b": attrvalue.Number("2")}))
}

func TestMissingAttributeIsFalse(t *testing.T) {
	n, err := condition.Parse("x = :v", nil, attrvalue.Map{":v": attrvalue.String("y")})
	require.NoError(t, err)
	require.False(t, n.Eval(attrvalue.Map{}))
}

func TestBeginsWithAndContains(t *testing.T) {
	values := attrvalue.Map{":p": attrvalue.String("2024-"), ":s": attrvalue.String("red")}
	n, err := condition.Parse("begins_with(ts, :p) AND contains(tags, :s)", nil, values)
	require.NoError(t, err)
	require.True(t, n.Eval(attrvalue.Map{
		"ts":   attrvalue.String("2024-01-01"),
		"tags": attrvalue.StringSet("red", "blue"),
	}))
	require.False(t, n.Eval(attrvalue.Map{
		"ts":   attrvalue.String("2023-01-01"),
		"tags": attrvalue.StringSet("red", "blue"),
	}))
}

func TestBetween(t *testing.T) {
	values := attrvalue.Map{":lo": attrvalue.Number("1"), ":hi": attrvalue.Number("10")}
	n, err := condition.Parse("v BETWEEN :lo AND :hi", nil, values)
	require.NoError(t, err)
	require.True(t, n.Eval(attrvalue.Map{"v": attrvalue.Number("5")}))
	require.False(t, n.Eval(attrvalue.Map{"v": attrvalue.Number("11")}))
}

func TestParenthesesAndOr(t *testing.T) {
	values := attrvalue.Map{":a": attrvalue.Number("1"), ":b": attrvalue.Number("2"), ":c": attrvalue.Number("3")}
	n, err := condition.Parse("a = :a AND (b = :b OR b = :c)", nil, values)
	require.NoError(t, err)
	require.True(t, n.Eval(attrvalue.Map{"a": attrvalue.Number("1"), "b": attrvalue.Number("3")}))
	require.False(t, n.Eval(attrvalue.Map{"a": attrvalue.Number("1"), "b": attrvalue.Number("9")}))
}
