package attrvalue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// wireValue mirrors the hosted SDK's wire shape for a single attribute
// value: exactly one field set, tagged with the variant's letter code.
type wireValue struct {
	S    *string     `json:"S,omitempty"`
	N    *string     `json:"N,omitempty"`
	B    *string     `json:"B,omitempty"` // base64
	BOOL *bool       `json:"BOOL,omitempty"`
	NULL *bool       `json:"NULL,omitempty"`
	L    []wireValue `json:"L,omitempty"`
	M    wireMap     `json:"M,omitempty"`
	SS   []string    `json:"SS,omitempty"`
	NS   []string    `json:"NS,omitempty"`
	BS   []string    `json:"BS,omitempty"` // each base64
}

type wireMap map[string]wireValue

func toWire(v Value) wireValue {
	switch v.Kind {
	case KindS:
		s := v.S
		return wireValue{S: &s}
	case KindN:
		n := v.N
		return wireValue{N: &n}
	case KindB:
		b := base64.StdEncoding.EncodeToString(v.B)
		return wireValue{B: &b}
	case KindBOOL:
		b := v.Bool
		return wireValue{BOOL: &b}
	case KindNULL:
		t := true
		return wireValue{NULL: &t}
	case KindL:
		out := make([]wireValue, len(v.L))
		for i, e := range v.L {
			out[i] = toWire(e)
		}
		return wireValue{L: out}
	case KindM:
		out := make(wireMap, len(v.M))
		for k, e := range v.M {
			out[k] = toWire(e)
		}
		return wireValue{M: out}
	case KindSS:
		return wireValue{SS: v.SS}
	case KindNS:
		return wireValue{NS: v.NS}
	case KindBS:
		out := make([]string, len(v.BS))
		for i, b := range v.BS {
			out[i] = base64.StdEncoding.EncodeToString(b)
		}
		return wireValue{BS: out}
	default:
		return wireValue{}
	}
}

func fromWire(w wireValue) (Value, error) {
	switch {
	case w.S != nil:
		return Value{Kind: KindS, S: *w.S}, nil
	case w.N != nil:
		return Value{Kind: KindN, N: *w.N}, nil
	case w.B != nil:
		b, err := base64.StdEncoding.DecodeString(*w.B)
		if err != nil {
			return Value{}, fmt.Errorf("decoding B value: %w", err)
		}
		return Value{Kind: KindB, B: b}, nil
	case w.BOOL != nil:
		return Value{Kind: KindBOOL, Bool: *w.BOOL}, nil
	case w.NULL != nil:
		return Value{Kind: KindNULL}, nil
	case w.L != nil:
		out := make([]Value, len(w.L))
		for i, e := range w.L {
			v, err := fromWire(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return Value{Kind: KindL, L: out}, nil
	case w.M != nil:
		out := make(Map, len(w.M))
		for k, e := range w.M {
			v, err := fromWire(e)
			if err != nil {
				return Value{}, fmt.Errorf("attribute %q: %w", k, err)
			}
			out[k] = v
		}
		return Value{Kind: KindM, M: out}, nil
	case w.SS != nil:
		return Value{Kind: KindSS, SS: w.SS}, nil
	case w.NS != nil:
		return Value{Kind: KindNS, NS: w.NS}, nil
	case w.BS != nil:
		out := make([][]byte, len(w.BS))
		for i, s := range w.BS {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return Value{}, fmt.Errorf("decoding BS[%d]: %w", i, err)
			}
			out[i] = b
		}
		return Value{Kind: KindBS, BS: out}, nil
	default:
		return Value{}, fmt.Errorf("attribute value has no recognized tag")
	}
}

// MarshalJSON implements json.Marshaler with the hosted SDK's wire tags.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(v))
}

// UnmarshalJSON implements json.Unmarshaler for the hosted SDK's wire tags.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := fromWire(w)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ToJSON serializes an attribute map using the hosted SDK's wire tags.
func ToJSON(m Map) ([]byte, error) {
	out := make(wireMap, len(m))
	for k, v := range m {
		out[k] = toWire(v)
	}
	return json.Marshal(out)
}

// FromJSON parses an attribute map serialized by ToJSON.
func FromJSON(data []byte) (Map, error) {
	if len(data) == 0 {
		return Map{}, nil
	}
	var wire wireMap
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing attribute map: %w", err)
	}
	out := make(Map, len(wire))
	for k, w := range wire {
		v, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Size returns the serialized byte size of an item for the 400KB limit
// check; this is the actual JSON encoding, which is what the SQL relation
// stores, so it is exact rather than approximate.
func Size(m Map) (int, error) {
	data, err := ToJSON(m)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
