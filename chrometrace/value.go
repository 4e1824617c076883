package chrometrace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies which member of a Value is populated.
type Kind uint8

// Value kinds. KindNull is the zero value.
const (
	KindNull Kind = iota
	KindString
	KindInt64
	KindUint64
	KindFloat64
	KindBool
	KindObject
)

// Value is a JSON-representable argument value. It is a tagged union over
// strings, integers, floats, booleans and nested objects, so producers never
// hand the encoder an untyped interface{}.
type Value struct {
	kind Kind
	str  string
	num  uint64
	obj  []Field
}

// Field is one key-value pair attached to a span or instant event.
type Field struct {
	Key   string
	Value Value
}

// F builds a Field, converting value with Any.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: Any(value)}
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int64 returns a signed integer value.
func Int64(i int64) Value { return Value{kind: KindInt64, num: uint64(i)} }

// Uint64 returns an unsigned integer value.
func Uint64(u uint64) Value { return Value{kind: KindUint64, num: u} }

// Float64 returns a floating-point value. Non-finite numbers are kept and
// rendered as strings when serialized.
func Float64(f float64) Value { return Value{kind: KindFloat64, num: math.Float64bits(f)} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Object returns a nested object value. Field order is preserved.
func Object(fields ...Field) Value {
	return Value{kind: KindObject, obj: fields}
}

// Any converts a Go value to its closest JSON-representable Value.
//
// Strings, booleans, every integer and float width, nested Values and
// []Field map directly. Errors, durations and fmt.Stringers become strings.
// Anything else falls back to fmt.Sprint.
func Any(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case []Field:
		return Object(val...)
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case int:
		return Int64(int64(val))
	case int8:
		return Int64(int64(val))
	case int16:
		return Int64(int64(val))
	case int32:
		return Int64(int64(val))
	case int64:
		return Int64(val)
	case uint:
		return Uint64(uint64(val))
	case uint8:
		return Uint64(uint64(val))
	case uint16:
		return Uint64(uint64(val))
	case uint32:
		return Uint64(uint64(val))
	case uint64:
		return Uint64(val)
	case float32:
		return Float64(float64(val))
	case float64:
		return Float64(val)
	case time.Duration:
		return String(val.String())
	case error:
		return String(val.Error())
	case fmt.Stringer:
		return String(val.String())
	default:
		return String(fmt.Sprint(val))
	}
}

// Kind reports the populated member.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string member.
func (v Value) Str() string { return v.str }

// Int returns the signed integer member.
func (v Value) Int() int64 { return int64(v.num) }

// Uint returns the unsigned integer member.
func (v Value) Uint() uint64 { return v.num }

// Float returns the float member.
func (v Value) Float() float64 { return math.Float64frombits(v.num) }

// Boolean returns the boolean member.
func (v Value) Boolean() bool { return v.num != 0 }

// Fields returns the members of an object value.
func (v Value) Fields() []Field { return v.obj }

// AsInt64 interprets the value as an integer. Numeric strings are parsed,
// floats are truncated.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt64:
		return v.Int(), true
	case KindUint64:
		if v.num > math.MaxInt64 {
			return 0, false
		}
		return int64(v.num), true
	case KindFloat64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case KindString:
		if i, err := strconv.ParseInt(v.str, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(v.str, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

// AsString renders the value as a plain string, without JSON quoting.
func (v Value) AsString() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return strconv.FormatInt(v.Int(), 10)
	case KindUint64:
		return strconv.FormatUint(v.num, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Boolean())
	case KindObject:
		b, _ := Args(v.obj).MarshalJSON()
		return string(b)
	}
	return ""
}

// MarshalJSON implements json.Marshaler. Non-finite floats cannot be
// represented in JSON and are written as the strings "NaN", "+Inf", "-Inf".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindInt64:
		return strconv.AppendInt(nil, v.Int(), 10), nil
	case KindUint64:
		return strconv.AppendUint(nil, v.num, 10), nil
	case KindFloat64:
		f := v.Float()
		switch {
		case math.IsNaN(f):
			return []byte(`"NaN"`), nil
		case math.IsInf(f, 1):
			return []byte(`"+Inf"`), nil
		case math.IsInf(f, -1):
			return []byte(`"-Inf"`), nil
		}
		return json.Marshal(f)
	case KindBool:
		return strconv.AppendBool(nil, v.Boolean()), nil
	case KindObject:
		return Args(v.obj).MarshalJSON()
	}
	return []byte("null"), nil
}

// Args is an ordered set of fields serialized as a JSON object. Keys are
// written in insertion order.
type Args []Field

// MarshalJSON implements json.Marshaler.
func (a Args) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the first value stored under key.
func (a Args) Get(key string) (Value, bool) {
	for _, f := range a {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}
