package preset

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// UsePresetKey is the key that replaces an inline section with a reference to a registered preset.
const UsePresetKey = "UsePreset"

// Document is one decoded description. Nested objects decode as Documents or plain
// map[string]any values depending on the decoder; the accessors accept both.
type Document map[string]any

// AsDocument converts a decoded object value into a Document.
//
// Parameters:
//   - v: a Document, map[string]any or map[any]any value
//
// Returns:
//   - Document: the object
//   - bool: false if v is not an object
func AsDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return Document(m), true
	case map[any]any:
		out := make(Document, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// Has reports whether key is present.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Keys returns the keys of the document, sorted.
func (d Document) Keys() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Name returns the "Name" string of the document, empty if absent.
func (d Document) Name() string {
	s, _ := d.String("Name")
	return s
}

// UsePreset returns the preset name a section refers to.
//
// Returns:
//   - string: the referenced preset name
//   - bool: false if the section is an inline body
func (d Document) UsePreset() (string, bool) {
	s, ok := d.String(UsePresetKey)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// String returns the string at key.
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Bool returns the boolean at key. The strings "true" and "false" are accepted.
func (d Document) Bool(key string) (bool, bool) {
	switch v := d[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

// Float returns the number at key.
func (d Document) Float(key string) (float64, bool) {
	return toFloat(d[key])
}

// Int returns the integral number at key.
func (d Document) Int(key string) (int64, bool) {
	f, ok := toFloat(d[key])
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Uint returns the non-negative integral number at key, truncated to 32 bits.
// Hex strings such as "0xFFFFFFFF" are accepted for masks.
func (d Document) Uint(key string) (uint32, bool) {
	if s, ok := d[key].(string); ok {
		v, err := strconv.ParseUint(s, 0, 32)
		return uint32(v), err == nil
	}
	n, ok := d.Int(key)
	if !ok || n < 0 || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

// Object returns the nested object at key.
func (d Document) Object(key string) (Document, bool) {
	return AsDocument(d[key])
}

// Array returns the array at key.
func (d Document) Array(key string) ([]any, bool) {
	switch v := d[key].(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// Objects returns the objects of the array at key. Non-object elements are skipped.
func (d Document) Objects(key string) ([]Document, bool) {
	arr, ok := d.Array(key)
	if !ok {
		return nil, false
	}
	out := make([]Document, 0, len(arr))
	for _, v := range arr {
		if o, ok := AsDocument(v); ok {
			out = append(out, o)
		}
	}
	return out, true
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(d).(Document)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
