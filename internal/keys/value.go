// Package keys holds the composite index key model: typed scalar values,
// index keys, field lists, the order-preserving tuple codec and the range
// splitter that turns a key range into single-inequality scan segments.
package keys

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind byte

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	}
	return "invalid"
}

// ParseKind maps a configuration name to a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool":
		return KindBool, nil
	case "int", "int64":
		return KindInt, nil
	case "float", "float64", "number":
		return KindFloat, nil
	case "string", "str":
		return KindString, nil
	}
	return KindInvalid, fmt.Errorf("%w: unknown kind %q", ErrValidation, s)
}

// Value is a comparable scalar. The zero Value is invalid.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

func Int(v int64) Value     { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }
func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

func (v Value) Kind() Kind       { return v.kind }
func (v Value) IsValid() bool    { return v.kind != KindInvalid }
func (v Value) AsInt() int64     { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsString() string { return v.s }
func (v Value) AsBool() bool     { return v.i != 0 }

// Interface returns the Go value held by v
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.AsBool()
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	}
	return nil
}

// Compare orders values of the same kind; different kinds order by kind tag.
// Floats are totally ordered: NaN sorts first and -0 equals +0.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		if v.kind < o.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case KindBool, KindInt:
		switch {
		case v.i < o.i:
			return -1
		case v.i > o.i:
			return 1
		}
		return 0
	case KindFloat:
		return compareFloat(v.f, o.f)
	case KindString:
		return strings.Compare(v.s, o.s)
	}
	return 0
}

// Equal is scalar equality, the same relation Compare reports as 0
func (v Value) Equal(o Value) bool {
	return v.Compare(o) == 0
}

func compareFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// String is Stringer implementation
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	}
	return "<invalid>"
}

// FromInterface converts a plain Go scalar into a Value
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint32:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported value type %T", ErrValidation, x)
}
