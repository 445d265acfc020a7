package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawOrder is one order record as returned by the order-listing endpoint.
// After normalization the same type carries the canonical record.
type RawOrder map[string]any

// Clone returns a deep copy of the record. Nested maps and slices are copied,
// scalars are shared.
func (r RawOrder) Clone() RawOrder {
	if r == nil {
		return nil
	}
	out := make(RawOrder, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// Key returns the canonical string form of the record's order_id.
func (r RawOrder) Key() (string, bool) {
	return IDString(r["order_id"])
}

// OrderID parses the record's order_id regardless of its upstream encoding.
func (r RawOrder) OrderID() (int64, error) {
	v, ok := r["order_id"]
	if !ok || v == nil {
		return 0, fmt.Errorf("order_id missing")
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("order_id missing")
	}
	id, err := AsInt(v)
	if err != nil {
		return 0, fmt.Errorf("order_id %v: %w", v, err)
	}
	return id, nil
}

// CloneValue deep-copies JSON-shaped values.
func CloneValue(v any) any {
	switch t := v.(type) {
	case RawOrder:
		return t.Clone()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Map returns v as a plain map, or nil when v is not map-shaped.
func Map(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case RawOrder:
		return map[string]any(t)
	}
	return nil
}

// List returns v as a slice, or nil when v is not list-shaped.
func List(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}
	return nil
}

// IDString coerces an upstream id (number or string) to its canonical string
// form. Integral floats are printed without exponent or fraction so that
// 1.5e11 and "150000000000" index to the same key.
func IDString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		if f, err := t.Float64(); err == nil {
			return formatFloatID(f), true
		}
		return t.String(), t.String() != ""
	case float64:
		return formatFloatID(t), true
	case float32:
		return formatFloatID(float64(t)), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func formatFloatID(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AsString renders scalars as strings. nil becomes "".
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	if s, ok := IDString(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

// AsFloat accepts numbers and numeric strings. nil and "" are zero.
func AsFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

// AsInt accepts integers, integral floats and numeric strings. nil and "" are zero.
func AsInt(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	}
	f, err := AsFloat(v)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// AsBool accepts booleans, 0/1 numbers and "true"/"false"/"1"/"0" strings.
func AsBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.ToLower(s))
	}
	f, err := AsFloat(v)
	if err != nil {
		return false, fmt.Errorf("not a bool: %T", v)
	}
	return f != 0, nil
}
