// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"time"
)

// Kind identifies the shape of a [Value].
type Kind int

const (
	// NullKind is JSON null. It is also the zero Value.
	NullKind Kind = iota
	// BoolKind is true or false.
	BoolKind
	// NumberKind is a JSON number, held as a float64.
	NumberKind
	// StringKind is a string.
	StringKind
	// ArrayKind is an ordered list of values.
	ArrayKind
	// ObjectKind is an unordered string-keyed map of values.
	ObjectKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case ArrayKind:
		return "array"
	case ObjectKind:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is a JSON value.
//
// The zero Value is null. Values built by the constructors own their
// arrays and maps; use [Value.Clone] before handing one to code that may
// mutate it.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: BoolKind, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: NumberKind, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: StringKind, s: s} }

// Array returns an array value holding elems.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: ArrayKind, arr: elems}
}

// Object returns an object value holding fields. A nil map is an empty object.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: ObjectKind, obj: fields}
}

// EmptyObject returns {}.
func EmptyObject() Value { return Object(nil) }

// Kind returns the shape of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == NullKind }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == BoolKind }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == NumberKind }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == StringKind }

// AsArray returns the elements held by v. The slice is shared with v.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == ArrayKind }

// AsObject returns the fields held by v. The map is shared with v.
func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == ObjectKind }

// Get returns the field key of an object value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != ObjectKind {
		return Value{}, false
	}
	field, ok := v.obj[key]
	return field, ok
}

// Len returns the number of elements or fields of an array or object.
func (v Value) Len() int {
	switch v.kind {
	case ArrayKind:
		return len(v.arr)
	case ObjectKind:
		return len(v.obj)
	default:
		return 0
	}
}

// IsObject reports whether v is an object. Null and arrays are not objects.
func IsObject(v Value) bool {
	return v.kind == ObjectKind
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case NullKind, BoolKind, NumberKind, StringKind:
		return v
	case ArrayKind:
		elems := make([]Value, len(v.arr))
		for i, elem := range v.arr {
			elems[i] = elem.Clone()
		}
		return Value{kind: ArrayKind, arr: elems}
	case ObjectKind:
		fields := make(map[string]Value, len(v.obj))
		for k, field := range v.obj {
			fields[k] = field.Clone()
		}
		return Value{kind: ObjectKind, obj: fields}
	default:
		panic(fmt.Sprintf("inventory: unknown value kind %v", v.kind))
	}
}

// Equal reports whether a and b are structurally equal.
//
// Objects are equal when they have the same keys and equal fields, arrays
// when they have the same length and equal elements. Null is loose: it is
// equal to null, to any object and to any array. Equal is only used to
// suppress writes that change nothing.
func Equal(a, b Value) bool {
	if a.kind == NullKind || b.kind == NullKind {
		return isObjectFamily(a) && isObjectFamily(b)
	}
	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case BoolKind:
		return a.b == b.b
	case NumberKind:
		return a.n == b.n
	case StringKind:
		return a.s == b.s
	case ArrayKind:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case ObjectKind:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, af := range a.obj {
			bf, ok := b.obj[k]
			if !ok {
				return false
			}
			if !Equal(af, bf) {
				return false
			}
		}
		return true
	default:
		panic(fmt.Sprintf("inventory: unknown value kind %v", a.kind))
	}
}

// isObjectFamily is true for the kinds a loosely typed "object" covers.
func isObjectFamily(v Value) bool {
	switch v.kind {
	case NullKind, ArrayKind, ObjectKind:
		return true
	case BoolKind, NumberKind, StringKind:
		return false
	default:
		panic(fmt.Sprintf("inventory: unknown value kind %v", v.kind))
	}
}

// Any converts v to plain Go values: nil, bool, float64, string, []any and
// map[string]any. The result shares nothing with v.
func (v Value) Any() any {
	switch v.kind {
	case NullKind:
		return nil
	case BoolKind:
		return v.b
	case NumberKind:
		return v.n
	case StringKind:
		return v.s
	case ArrayKind:
		elems := make([]any, len(v.arr))
		for i, elem := range v.arr {
			elems[i] = elem.Any()
		}
		return elems
	case ObjectKind:
		fields := make(map[string]any, len(v.obj))
		for k, field := range v.obj {
			fields[k] = field.Any()
		}
		return fields
	default:
		panic(fmt.Sprintf("inventory: unknown value kind %v", v.kind))
	}
}

// FromAny converts a decoded document to a Value.
//
// It accepts what encoding/json, github.com/goccy/go-yaml and
// github.com/BurntSushi/toml unmarshal into: maps with string keys, slices,
// every integer and float width, json.Number, and time values, which become
// RFC 3339 strings. Anything else is an error.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t.Clone(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int8:
		return Number(float64(t)), nil
	case int16:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint8:
		return Number(float64(t)), nil
	case uint16:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("number %q: %w", t, err)
		}
		return Number(f), nil
	case time.Time:
		return String(t.Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		// scalars with a canonical text form
		return String(t.String()), nil
	case []any:
		elems := make([]Value, len(t))
		for i, elem := range t {
			v, err := FromAny(elem)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = v
		}
		return Array(elems...), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, field := range t {
			v, err := FromAny(field)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			fields[k] = v
		}
		return Object(fields), nil
	}
	return fromReflect(reflect.ValueOf(x))
}

// fromReflect handles typed slices and maps, such as the []map[string]any
// TOML produces for arrays of tables.
func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		elems := make([]Value, rv.Len())
		for i := range elems {
			v, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = v
		}
		return Array(elems...), nil
	case reflect.Map:
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key()
			var key string
			switch {
			case k.Kind() == reflect.String:
				key = k.String()
			case k.Kind() == reflect.Interface && k.Elem().Kind() == reflect.String:
				key = k.Elem().String()
			default:
				return Value{}, fmt.Errorf("unsupported map key type %s", k.Type())
			}
			v, err := FromAny(iter.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", key, err)
			}
			fields[key] = v
		}
		return Object(fields), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", rv.Interface())
	}
}

// MustFromAny is like [FromAny] but panics on error. It is meant for literals in tests and examples.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// MarshalJSON encodes v as JSON. Object keys are written in sorted order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case NullKind:
		buf.WriteString("null")
	case BoolKind:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case NumberKind:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return fmt.Errorf("unsupported number %v", v.n)
		}
		b, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		buf.Write(b)
	case StringKind:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case ArrayKind:
		buf.WriteByte('[')
		for i, elem := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := elem.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case ObjectKind:
		buf.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(v.obj)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(b)
			buf.WriteByte(':')
			if err := v.obj[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		panic(fmt.Sprintf("inventory: unknown value kind %v", v.kind))
	}
	return nil
}

// UnmarshalJSON decodes JSON into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	decoded, err := FromAny(x)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// String renders v as compact JSON.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(b)
}
