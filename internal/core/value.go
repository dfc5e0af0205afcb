package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Value is one cell value: nil, bool, a number (int64, float64 or any other
// Go numeric type), string, []any, map[string]any or time.Time.
type Value = any

// Record maps a column name to its value.
type Record map[string]Value

// NormalizeRecord returns a copy of r that holds exactly the given columns.
// Missing columns are set to nil and unknown keys are dropped.
func NormalizeRecord(r Record, columns []string) Record {
	out := make(Record, len(columns))
	for _, c := range columns {
		out[c] = CloneValue(r[c])
	}
	return out
}

// NullRecord returns a record with every column set to nil.
func NullRecord(columns []string) Record {
	out := make(Record, len(columns))
	for _, c := range columns {
		out[c] = nil
	}
	return out
}

// Clone deep-copies a record so nested maps and slices are not shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies structured values and returns scalars unchanged.
func CloneValue(v Value) Value {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}

// IsStructured reports whether v is a JSON-like array or object.
func IsStructured(v Value) bool {
	switch v.(type) {
	case map[string]any, Record, []any, []string:
		return true
	default:
		return false
	}
}

// CanonicalJSON serializes v so that equal values produce equal bytes
// regardless of map insertion order. encoding/json sorts map keys, and
// numbers of different Go types but equal value render identically.
func CanonicalJSON(v Value) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalizeForJSON(v)); err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Equal compares two values by canonical serialized form.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return CanonicalJSON(a) == CanonicalJSON(b)
}

func normalizeForJSON(v Value) Value {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case Record:
		return map[string]any(t)
	default:
		return v
	}
}
