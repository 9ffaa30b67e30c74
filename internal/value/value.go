// Package value implements the closed tagged union of leaf values
// storable in a Node: null, bool, signed/unsigned integer, float, or
// string, matching spec.md's Value data model.
package value

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Kind discriminates the Value union.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUint64
	KindFloat64
	KindString
)

// Value is a closed sum type. Exactly the field matching Kind is
// meaningful; callers must switch on Kind rather than inspect fields
// directly, per spec.md §4.9's guidance to pattern-match a closed
// tagged union instead of relying on dynamic dispatch.
type Value struct {
	Kind Kind
	B    bool
	I    int64
	U    uint64
	F    float64
	S    string
}

// Null is the zero Value.
var Null = Value{Kind: KindNull}

func Bool(b bool) Value       { return Value{Kind: KindBool, B: b} }
func Int64(i int64) Value     { return Value{Kind: KindInt64, I: i} }
func Uint64(u uint64) Value   { return Value{Kind: KindUint64, U: u} }
func Float64(f float64) Value { return Value{Kind: KindFloat64, F: f} }
func String(s string) Value   { return Value{Kind: KindString, S: s} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Equal reports exact equality including kind.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.B == o.B
	case KindInt64:
		return v.I == o.I
	case KindUint64:
		return v.U == o.U
	case KindFloat64:
		return v.F == o.F
	case KindString:
		return v.S == o.S
	default:
		return false
	}
}

// Any converts v to a plain Go value suitable for JSON encoding
// (interface{} holding nil/bool/int64/uint64/float64/string).
func (v Value) Any() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.B
	case KindInt64:
		return v.I
	case KindUint64:
		return v.U
	case KindFloat64:
		return v.F
	case KindString:
		return v.S
	default:
		return nil
	}
}

// FromAny builds a Value from a decoded JSON scalar (the result of
// sonic/encoding-json unmarshaling into interface{}). Composite values
// (maps, slices) are not valid leaf values and return an error; callers
// expanding a whole document into a Node tree should not reach here for
// objects/arrays (see node.ExpandFrom).
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int64(int64(t)), nil
	case int64:
		return Int64(t), nil
	case uint64:
		return Uint64(t), nil
	case float64:
		return Float64(t), nil
	case float32:
		return Float64(float64(t)), nil
	default:
		return Null, fmt.Errorf("value: not a leaf scalar: %T", v)
	}
}

// MarshalJSON implements json.Marshaler via sonic's representation
// rules (a plain JSON scalar, no envelope).
func (v Value) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(v.Any())
}

// UnmarshalJSON implements json.Unmarshaler, decoding a plain JSON
// scalar into the appropriate Kind. Whole numbers decode as Int64;
// non-integral numbers decode as Float64.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case nil:
		*v = Null
	case bool:
		*v = Bool(t)
	case string:
		*v = String(t)
	case float64:
		if t == float64(int64(t)) {
			*v = Int64(int64(t))
		} else {
			*v = Float64(t)
		}
	default:
		return fmt.Errorf("value: unsupported JSON leaf %T", raw)
	}
	return nil
}

// ByteSize estimates the in-memory footprint of v for delegation
// sizing purposes (spec.md §4.3).
func (v Value) ByteSize() int {
	const base = 16 // Kind + union padding, approximate
	switch v.Kind {
	case KindString:
		return base + len(v.S)
	default:
		return base
	}
}
