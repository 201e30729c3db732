package format

import (
	"encoding/json"
	"strconv"
)

// Value wraps a decoded JSON value and provides get-or-default access.
// Every accessor tolerates absent or mistyped data; none of them panic.
type Value struct {
	v any
}

// Of wraps v. Typed structs are normalized through JSON so callers may pass
// either decoded payloads or domain structs.
func Of(v any) Value {
	switch v.(type) {
	case nil, map[string]any, []any, string, bool, float64, json.Number:
		return Value{v: v}
	case int, int32, int64, float32, uint, uint32, uint64:
		return Value{v: v}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Value{}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Value{}
	}
	return Value{v: decoded}
}

// Present reports whether the value exists and is not JSON null.
func (x Value) Present() bool {
	return x.v != nil
}

// Get returns the named field of an object, or an absent value.
func (x Value) Get(key string) Value {
	m, ok := x.v.(map[string]any)
	if !ok {
		return Value{}
	}
	return Value{v: m[key]}
}

// Path follows nested object fields.
func (x Value) Path(keys ...string) Value {
	for _, k := range keys {
		x = x.Get(k)
	}
	return x
}

// List returns the elements of an array, or nil.
func (x Value) List() []Value {
	items, ok := x.v.([]any)
	if !ok {
		return nil
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = Value{v: item}
	}
	return out
}

// Number returns the value as a float64 when it is numeric.
func (x Value) Number() (float64, bool) {
	switch n := x.v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// NumberOr returns the numeric value or def.
func (x Value) NumberOr(def float64) float64 {
	if f, ok := x.Number(); ok {
		return f
	}
	return def
}

// Text returns the value as a non-empty string.
func (x Value) Text() (string, bool) {
	switch s := x.v.(type) {
	case string:
		return s, s != ""
	case json.Number:
		return s.String(), true
	default:
		if f, ok := x.Number(); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return "", false
	}
}

// TextOr returns the string value or def.
func (x Value) TextOr(def string) string {
	if s, ok := x.Text(); ok {
		return s
	}
	return def
}

// Bool reports whether the value is boolean true.
func (x Value) Bool() bool {
	b, ok := x.v.(bool)
	return ok && b
}
