package normalize

import (
	"fmt"

	"ambrosial/internal/model"
)

// MalformedRecordError reports a raw record whose content is corrupt rather
// than merely incomplete.
type MalformedRecordError struct {
	OrderID string
	Field   string
	Err     error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed order %s: field %s: %v", e.OrderID, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// Normalize converts a raw record into its canonical shape. The input is not
// modified.
func Normalize(raw model.RawOrder) (model.RawOrder, error) {
	order := raw.Clone()
	if order == nil {
		order = model.RawOrder{}
	}
	if err := FixPayments(order); err != nil {
		return nil, err
	}
	if err := NormalizeOffers(order); err != nil {
		return nil, err
	}
	DefaultRating(order)
	if err := DefaultFields(order); err != nil {
		return nil, err
	}
	return order, nil
}

// All normalizes every record. The first malformed record aborts the batch.
func All(raws []model.RawOrder) ([]model.RawOrder, error) {
	out := make([]model.RawOrder, 0, len(raws))
	for _, raw := range raws {
		order, err := Normalize(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

// NormalizeOffers turns the "" sentinel into an empty list and parses offers
// that arrive as a literal string.
func NormalizeOffers(order model.RawOrder) error {
	switch v := order["offers_data"].(type) {
	case nil:
		order["offers_data"] = []any{}
	case string:
		if v == "" {
			order["offers_data"] = []any{}
			return nil
		}
		parsed, err := ParseLiteral(v)
		if err != nil {
			return malformed(order, "offers_data", err)
		}
		switch p := parsed.(type) {
		case []any:
			order["offers_data"] = p
		case map[string]any:
			order["offers_data"] = []any{p}
		default:
			return malformed(order, "offers_data", fmt.Errorf("unexpected literal %T", parsed))
		}
	case []any:
	case []map[string]any:
		order["offers_data"] = model.List(v)
	default:
		return malformed(order, "offers_data", fmt.Errorf("unexpected type %T", v))
	}
	return nil
}

// DefaultRating synthesizes a zero rating block when none is present and
// drops the volatile asset_id from an existing one.
func DefaultRating(order model.RawOrder) {
	meta := model.Map(order["rating_meta"])
	if meta == nil {
		meta = map[string]any{}
		order["rating_meta"] = meta
	}
	delete(meta, "asset_id")
	for _, k := range []string{"restaurant_rating", "delivery_rating"} {
		r := model.Map(meta[k])
		if r == nil {
			r = map[string]any{}
			meta[k] = r
		}
		if r["rating"] == nil {
			r["rating"] = 0
		}
	}
}

func malformed(order model.RawOrder, field string, err error) error {
	id, _ := order.Key()
	return &MalformedRecordError{OrderID: id, Field: field, Err: err}
}
