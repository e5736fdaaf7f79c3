package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind enumerates the scalar kinds an attribute value can hold.
type Kind int

const (
	KindNil Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindAny
)

// Value is a dynamically-typed attribute value: one of the scalar
// kinds or an opaque handle. The zero Value is the nil value.
//
// Attribute bags in the original system were untyped; here the variant
// is explicit so storage and CSV round-trips stay well defined.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	any  any
}

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating-point value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool returns a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// String returns a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Any wraps an opaque handle. Opaque values survive in memory but are
// skipped by persistence and CSV export.
func Any(v any) Value { return Value{kind: KindAny, any: v} }

// FromAny converts a native Go value into a Value, collapsing the
// common numeric widths. Unknown types become opaque handles.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{}
	case Value:
		return x
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case bool:
		return Bool(x)
	case string:
		return String(x)
	default:
		return Any(v)
	}
}

// Kind returns the value's kind tag.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether the value is unset.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Int returns the integer payload. ok is false for other kinds.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Float returns the numeric payload as float64, accepting both float
// and integer kinds (attribute arithmetic does not care which way a
// number was written).
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Bool returns the boolean payload. ok is false for other kinds.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Str returns the string payload. ok is false for other kinds.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Interface unwraps the value into a plain Go value.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindAny:
		return v.any
	default:
		return nil
	}
}

// Equal compares two values. Numeric values compare across int/float
// kinds; opaque handles compare by interface equality when possible.
func (v Value) Equal(other Value) bool {
	if v.kind == KindInt || v.kind == KindFloat {
		a, aok := v.Float()
		b, bok := other.Float()
		return aok && bok && a == b
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	default:
		return v.any == other.any
	}
}

// String renders the value for logs and CLI output.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "<nil>"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	default:
		return fmt.Sprintf("%v", v.any)
	}
}

// MarshalJSON encodes the payload directly, so attribute maps
// serialize the same way the original CSV columns did. Opaque handles
// marshal as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindAny {
		return []byte("null"), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes numbers into the integer kind when they have
// no fractional part, floats otherwise.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Value{}
	case json.Number:
		if i, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			*v = Int(i)
		} else {
			f, err := x.Float64()
			if err != nil {
				return err
			}
			*v = Float(f)
		}
	case bool:
		*v = Bool(x)
	case string:
		*v = String(x)
	default:
		*v = Any(x)
	}
	return nil
}

// Attrs is an attribute bag: name to value.
type Attrs map[string]Value

// Clone returns a copy of the bag. Values are immutable, so a shallow
// copy suffices.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	c := make(Attrs, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// AttrsFromAny lifts a plain map into an attribute bag.
func AttrsFromAny(m map[string]any) Attrs {
	if m == nil {
		return nil
	}
	a := make(Attrs, len(m))
	for k, v := range m {
		a[k] = FromAny(v)
	}
	return a
}
