package normalize

import (
	"fmt"

	"ambrosial/internal/model"
)

// FixPayments repairs paymentMeta.extPGResponse values that arrive as a
// serialized object literal instead of a nested object. Non-string and empty
// values are left untouched.
//
// Kept separate from DefaultFields so it can be dropped once upstream stops
// stringifying gateway responses.
func FixPayments(order model.RawOrder) error {
	for i, t := range model.List(order["payment_transactions"]) {
		txn := model.Map(t)
		if txn == nil {
			continue
		}
		meta := model.Map(txn["paymentMeta"])
		if meta == nil {
			continue
		}
		s, ok := meta["extPGResponse"].(string)
		if !ok || s == "" {
			continue
		}
		parsed, err := ParseLiteral(s)
		if err != nil {
			return malformed(order, fmt.Sprintf("payment_transactions[%d].paymentMeta.extPGResponse", i), err)
		}
		meta["extPGResponse"] = parsed
	}
	return nil
}
