// Package attrvalue implements the attribute-value tagged union used
// throughout the item engine: the scalar/boolean/null/list/map/set variants
// the hosted SDK calls an AttributeValue, a JSON codec matching its wire
// tags, and scalar key extraction. Numbers are carried as strings so
// precision survives the SQL round trip; binary values round-trip as
// base64.
//
// Grounded on btwiuse-func/storage/dynamodb/internal/attr (per-variant
// From*/To* accessors) and the wire-tag shape shown in
// other_examples' dynamodb-adapter model file.
package attrvalue

import (
	"fmt"
	"sort"
)

// Kind identifies which variant of the union a Value holds.
type Kind string

const (
	KindS    Kind = "S"
	KindN    Kind = "N"
	KindB    Kind = "B"
	KindBOOL Kind = "BOOL"
	KindNULL Kind = "NULL"
	KindL    Kind = "L"
	KindM    Kind = "M"
	KindSS   Kind = "SS"
	KindNS   Kind = "NS"
	KindBS   Kind = "BS"
)

// Value is a single attribute value: exactly one of the fields below is
// meaningful, selected by Kind.
type Value struct {
	Kind Kind

	S    string
	N    string   // decimal string
	B    []byte   // raw binary, not base64 text
	Bool bool     // BOOL
	L    []Value  // L
	M    Map      // M
	SS   []string // SS
	NS   []string // NS (each element a decimal string)
	BS   [][]byte // BS
}

// Map is an item or nested map attribute: attribute name to Value.
type Map map[string]Value

// String constructs an S value.
func String(s string) Value { return Value{Kind: KindS, S: s} }

// Number constructs an N value from a decimal string.
func Number(n string) Value { return Value{Kind: KindN, N: n} }

// Binary constructs a B value.
func Binary(b []byte) Value { return Value{Kind: KindB, B: b} }

// Bool constructs a BOOL value.
func Bool(b bool) Value { return Value{Kind: KindBOOL, Bool: b} }

// Null constructs a NULL value.
func Null() Value { return Value{Kind: KindNULL} }

// List constructs an L value.
func List(values ...Value) Value { return Value{Kind: KindL, L: values} }

// MapValue constructs an M value.
func MapValue(m Map) Value { return Value{Kind: KindM, M: m} }

// StringSet constructs an SS value.
func StringSet(ss ...string) Value { return Value{Kind: KindSS, SS: ss} }

// NumberSet constructs an NS value.
func NumberSet(ns ...string) Value { return Value{Kind: KindNS, NS: ns} }

// BinarySet constructs a BS value.
func BinarySet(bs ...[]byte) Value { return Value{Kind: KindBS, BS: bs} }

// IsScalar reports whether the value is S, N, or B.
func (v Value) IsScalar() bool {
	return v.Kind == KindS || v.Kind == KindN || v.Kind == KindB
}

// IsSet reports whether the value is SS, NS, or BS.
func (v Value) IsSet() bool {
	return v.Kind == KindSS || v.Kind == KindNS || v.Kind == KindBS
}

// Empty reports whether a set, list or map value has no elements, or a
// string or binary value has zero length. It is false for every other kind.
func (v Value) Empty() bool {
	switch v.Kind {
	case KindSS:
		return len(v.SS) == 0
	case KindNS:
		return len(v.NS) == 0
	case KindBS:
		return len(v.BS) == 0
	case KindL:
		return len(v.L) == 0
	case KindM:
		return len(v.M) == 0
	case KindS:
		return v.S == ""
	case KindB:
		return len(v.B) == 0
	}
	return false
}

// ExtractScalarKey returns the string form of a scalar key attribute: an S
// value verbatim, an N value verbatim (decimal string), or a B value
// rendered as UTF-8 text. It fails if attr is missing, not scalar, or empty.
func ExtractScalarKey(m Map, attr string) (string, error) {
	v, ok := m[attr]
	if !ok {
		return "", fmt.Errorf("attribute %q is missing", attr)
	}
	if !v.IsScalar() {
		return "", fmt.Errorf("attribute %q is not a scalar key type", attr)
	}
	var s string
	switch v.Kind {
	case KindS:
		s = v.S
	case KindN:
		s = v.N
	case KindB:
		s = string(v.B)
	}
	if s == "" {
		return "", fmt.Errorf("attribute %q is empty", attr)
	}
	return s, nil
}

// Clone deep-copies a Value.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindL:
		out := make([]Value, len(v.L))
		for i, e := range v.L {
			out[i] = e.Clone()
		}
		return Value{Kind: KindL, L: out}
	case KindM:
		return Value{Kind: KindM, M: v.M.Clone()}
	case KindSS:
		out := append([]string(nil), v.SS...)
		return Value{Kind: KindSS, SS: out}
	case KindNS:
		out := append([]string(nil), v.NS...)
		return Value{Kind: KindNS, NS: out}
	case KindBS:
		out := make([][]byte, len(v.BS))
		for i, b := range v.BS {
			out[i] = append([]byte(nil), b...)
		}
		return Value{Kind: KindBS, BS: out}
	case KindB:
		return Value{Kind: KindB, B: append([]byte(nil), v.B...)}
	default:
		return v
	}
}

// Clone deep-copies a Map.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports deep equality between two values, per the comparison rules
// in the condition language: mismatched kinds are never equal.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindS:
		return a.S == b.S
	case KindN:
		return numbersEqual(a.N, b.N)
	case KindB:
		return string(a.B) == string(b.B)
	case KindBOOL:
		return a.Bool == b.Bool
	case KindNULL:
		return true
	case KindL:
		if len(a.L) != len(b.L) {
			return false
		}
		for i := range a.L {
			if !Equal(a.L[i], b.L[i]) {
				return false
			}
		}
		return true
	case KindM:
		if len(a.M) != len(b.M) {
			return false
		}
		for k, v := range a.M {
			ov, ok := b.M[k]
			if !ok || !Equal(v, ov) {
				return false
			}
		}
		return true
	case KindSS:
		return sameStringSet(a.SS, b.SS)
	case KindNS:
		return sameNumberSet(a.NS, b.NS)
	case KindBS:
		return sameBinarySet(a.BS, b.BS)
	}
	return false
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sameNumberSet(a, b []string) bool {
	return sameStringSet(a, b)
}

func sameBinarySet(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	sa := make([]string, len(a))
	sb := make([]string, len(b))
	for i, v := range a {
		sa[i] = string(v)
	}
	for i, v := range b {
		sb[i] = string(v)
	}
	return sameStringSet(sa, sb)
}
