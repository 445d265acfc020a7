package convert

import (
	"fmt"

	"ambrosial/internal/model"
)

// ConversionError identifies the order and field whose value could not be
// projected onto a typed entity.
type ConversionError struct {
	OrderID string
	Field   string
	Value   any
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert order %s: field %s (%v): %v", e.OrderID, e.Field, e.Value, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// reader pulls typed fields out of one map and remembers the first failure,
// so a projection reads like a struct literal and checks err once.
type reader struct {
	orderID string
	prefix  string
	m       map[string]any
	err     error
}

func newReader(orderID, prefix string, m map[string]any) *reader {
	return &reader{orderID: orderID, prefix: prefix, m: m}
}

func (r *reader) fail(field string, v any, err error) {
	if r.err == nil {
		r.err = &ConversionError{OrderID: r.orderID, Field: r.prefix + field, Value: v, Err: err}
	}
}

func (r *reader) str(field string) string {
	return model.AsString(r.m[field])
}

func (r *reader) float(field string) float64 {
	v := r.m[field]
	f, err := model.AsFloat(v)
	if err != nil {
		r.fail(field, v, err)
	}
	return f
}

func (r *reader) i64(field string) int64 {
	v := r.m[field]
	i, err := model.AsInt(v)
	if err != nil {
		r.fail(field, v, err)
	}
	return i
}

func (r *reader) i(field string) int { return int(r.i64(field)) }

func (r *reader) flag(field string) bool {
	v := r.m[field]
	b, err := model.AsBool(v)
	if err != nil {
		r.fail(field, v, err)
	}
	return b
}

func (r *reader) id(field string) string {
	s, _ := model.IDString(r.m[field])
	return s
}

// object returns a deep copy so entities never alias the canonical record.
func (r *reader) object(field string) map[string]any {
	v := r.m[field]
	if v == nil {
		return map[string]any{}
	}
	m := model.Map(v)
	if m == nil {
		r.fail(field, v, fmt.Errorf("expected object, got %T", v))
		return map[string]any{}
	}
	return model.CloneValue(m).(map[string]any)
}

func (r *reader) objects(field string) []map[string]any {
	v := r.m[field]
	list := model.List(v)
	if list == nil && v != nil {
		r.fail(field, v, fmt.Errorf("expected list, got %T", v))
	}
	out := make([]map[string]any, 0, len(list))
	for i, e := range list {
		m := model.Map(e)
		if m == nil {
			r.fail(fmt.Sprintf("%s[%d]", field, i), e, fmt.Errorf("expected object, got %T", e))
			continue
		}
		out = append(out, model.CloneValue(m).(map[string]any))
	}
	return out
}

func (r *reader) strs(field string) []string {
	v := r.m[field]
	switch t := v.(type) {
	case nil:
		return []string{}
	case string:
		if t == "" {
			return []string{}
		}
		return []string{t}
	}
	list := model.List(v)
	if list == nil {
		r.fail(field, v, fmt.Errorf("expected list, got %T", v))
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, model.AsString(e))
	}
	return out
}

func (r *reader) floats(field string) map[string]float64 {
	out := map[string]float64{}
	for k, v := range r.object(field) {
		f, err := model.AsFloat(v)
		if err != nil {
			r.fail(field+"."+k, v, err)
			continue
		}
		out[k] = f
	}
	return out
}

func (r *reader) bools(field string) map[string]bool {
	out := map[string]bool{}
	for k, v := range r.object(field) {
		b, err := model.AsBool(v)
		if err != nil {
			r.fail(field+"."+k, v, err)
			continue
		}
		out[k] = b
	}
	return out
}

func (r *reader) texts(field string) map[string]string {
	out := map[string]string{}
	for k, v := range r.object(field) {
		out[k] = model.AsString(v)
	}
	return out
}
