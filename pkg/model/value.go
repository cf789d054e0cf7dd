package model

import (
	"bytes"
	"fmt"
	"math"
)

// ObjectLink references an Object Instance.
type ObjectLink struct {
	ObjectID   ID
	InstanceID ID
}

// String formats the link as "object:instance".
func (l ObjectLink) String() string {
	return fmt.Sprintf("%d:%d", l.ObjectID, l.InstanceID)
}

// Value is one Resource (or Resource Instance) value.
//
// Data holds a Go value whose dynamic type follows Type:
//
//	TypeString, TypeCoreLink       string
//	TypeOpaque                     []byte
//	TypeInteger, TypeTime          int64
//	TypeUnsignedInteger            uint64 (int64 accepted if non-negative)
//	TypeFloat                      float64
//	TypeBoolean                    bool
//	TypeObjectLink                 ObjectLink
//	TypeUndefined                  nil
type Value struct {
	URI  URI
	Type DataType
	Data any

	// Timestamp is only meaningful on values produced by a codec; writes
	// reject non-zero timestamps.
	Timestamp int64
}

// NewUndefined returns an untyped value slot for uri, used to request reads.
func NewUndefined(uri URI) Value {
	return Value{URI: uri, Type: TypeUndefined}
}

// NewString returns a string value.
func NewString(uri URI, s string) Value {
	return Value{URI: uri, Type: TypeString, Data: s}
}

// NewOpaque returns an opaque value.
func NewOpaque(uri URI, b []byte) Value {
	return Value{URI: uri, Type: TypeOpaque, Data: b}
}

// NewInteger returns a signed integer value.
func NewInteger(uri URI, v int64) Value {
	return Value{URI: uri, Type: TypeInteger, Data: v}
}

// NewUnsigned returns an unsigned integer value.
func NewUnsigned(uri URI, v uint64) Value {
	return Value{URI: uri, Type: TypeUnsignedInteger, Data: v}
}

// NewFloat returns a float value.
func NewFloat(uri URI, v float64) Value {
	return Value{URI: uri, Type: TypeFloat, Data: v}
}

// NewBool returns a boolean value.
func NewBool(uri URI, v bool) Value {
	return Value{URI: uri, Type: TypeBoolean, Data: v}
}

// NewTime returns a time value in seconds since the epoch.
func NewTime(uri URI, v int64) Value {
	return Value{URI: uri, Type: TypeTime, Data: v}
}

// NewObjectLink returns an object link value.
func NewObjectLink(uri URI, l ObjectLink) Value {
	return Value{URI: uri, Type: TypeObjectLink, Data: l}
}

// Int64 returns the value as a signed integer.
func (v Value) Int64() (int64, bool) {
	switch n := v.Data.(type) {
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

// Float64 returns the value as a float, converting integers.
func (v Value) Float64() (float64, bool) {
	switch n := v.Data.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

// Bool returns the value as a boolean.
func (v Value) Bool() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok
}

// Text returns the value as a string for string-like types.
func (v Value) Text() (string, bool) {
	s, ok := v.Data.(string)
	return s, ok
}

// Bytes returns the value as a byte slice.
func (v Value) Bytes() ([]byte, bool) {
	b, ok := v.Data.([]byte)
	return b, ok
}

// Equal reports whether v and o carry the same URI, type and data.
func (v Value) Equal(o Value) bool {
	if v.URI != o.URI || v.Type != o.Type || v.Timestamp != o.Timestamp {
		return false
	}
	if a, ok := v.Data.([]byte); ok {
		b, ok := o.Data.([]byte)
		return ok && bytes.Equal(a, b)
	}
	if v.Type.IsNumeric() || v.Type == TypeTime {
		if v.Type == TypeFloat {
			a, okA := v.Float64()
			b, okB := o.Float64()
			return okA && okB && a == b
		}
		a, okA := v.Int64()
		b, okB := o.Int64()
		if okA && okB {
			return a == b
		}
	}
	return v.Data == o.Data
}

// String formats the value for logs and the console.
func (v Value) String() string {
	if v.Type == TypeUndefined && v.Data == nil {
		return v.URI.String() + "=<undefined>"
	}
	if b, ok := v.Data.([]byte); ok {
		return fmt.Sprintf("%s=0x%x", v.URI, b)
	}
	return fmt.Sprintf("%s=%v", v.URI, v.Data)
}

// ValuesOf returns the values in vs whose URI lies under uri.
func ValuesOf(vs []Value, uri URI) []Value {
	var out []Value
	for _, v := range vs {
		if uri.Contains(v.URI) {
			out = append(out, v)
		}
	}
	return out
}
