// Package index holds the reverse lookup tables over a canonical record list.
// An Index is built once and never patched; a new record list gets a new Index.
package index

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"ambrosial/internal/convert"
	"ambrosial/internal/metrics"
	"ambrosial/internal/model"
)

// ErrNotFound matches every NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError names the requested id and what kind of entity it was
// expected to identify.
type NotFoundError struct {
	Kind model.Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Index maps secondary ids to the owning order ids. Records are shared with
// the caller and must not be mutated after Build.
type Index struct {
	orders          map[string]model.RawOrder
	ids             []int64
	items           map[string][]int64
	restaurants     map[string][]int64
	addresses       map[string][]int64
	addressVersions map[string][]int64
	transactions    map[string]int64
}

// Build indexes records in one pass. Every id is keyed by its canonical
// string form. A repeated order id keeps its first record.
func Build(records []model.RawOrder) (*Index, error) {
	return BuildWith(records, nil)
}

// BuildWith is Build that also records the build time and size on m.
func BuildWith(records []model.RawOrder, m *metrics.Registry) (*Index, error) {
	start := time.Now()
	ix := &Index{
		orders:          make(map[string]model.RawOrder, len(records)),
		ids:             make([]int64, 0, len(records)),
		items:           map[string][]int64{},
		restaurants:     map[string][]int64{},
		addresses:       map[string][]int64{},
		addressVersions: map[string][]int64{},
		transactions:    map[string]int64{},
	}
	for i, rec := range records {
		if err := ix.add(rec); err != nil {
			return nil, fmt.Errorf("index record %d: %w", i, err)
		}
	}
	if m != nil {
		m.IndexOrders.Set(float64(len(ix.ids)))
		m.IndexBuildSec.Observe(time.Since(start).Seconds())
	}
	log.Debug().Int("orders", len(ix.ids)).Int("items", len(ix.items)).
		Dur("took", time.Since(start)).Msg("index built")
	return ix, nil
}

func (ix *Index) add(rec model.RawOrder) error {
	id, err := rec.OrderID()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(id, 10)
	if _, dup := ix.orders[key]; dup {
		log.Warn().Int64("order_id", id).Msg("duplicate order id, keeping first record")
		return nil
	}
	ix.orders[key] = rec
	ix.ids = append(ix.ids, id)

	for _, it := range model.List(rec["order_items"]) {
		if itemID, ok := model.IDString(model.Map(it)["item_id"]); ok {
			ix.items[itemID] = append(ix.items[itemID], id)
		}
	}
	if rid, ok := model.IDString(rec["restaurant_id"]); ok {
		ix.restaurants[rid] = append(ix.restaurants[rid], id)
	}
	if addr := model.Map(rec["delivery_address"]); addr != nil {
		if _, ok := model.IDString(addr["id"]); ok {
			plain := convert.AddressKey(rec, false)
			versioned := convert.AddressKey(rec, true)
			ix.addresses[plain] = append(ix.addresses[plain], id)
			ix.addressVersions[versioned] = append(ix.addressVersions[versioned], id)
		}
	}
	for _, p := range model.List(rec["payment_transactions"]) {
		txn, ok := model.IDString(model.Map(p)["transactionId"])
		if !ok {
			continue
		}
		if owner, dup := ix.transactions[txn]; dup {
			log.Warn().Str("transaction_id", txn).Int64("owner", owner).Int64("order_id", id).
				Msg("duplicate transaction id, keeping first owner")
			continue
		}
		ix.transactions[txn] = id
	}
	return nil
}

// Len is the number of distinct orders.
func (ix *Index) Len() int { return len(ix.ids) }

// IDs returns every order id in first-seen order.
func (ix *Index) IDs() []int64 { return append([]int64(nil), ix.ids...) }

// Records returns every indexed record in first-seen order.
func (ix *Index) Records() []model.RawOrder {
	out := make([]model.RawOrder, 0, len(ix.ids))
	for _, id := range ix.ids {
		out = append(out, ix.orders[strconv.FormatInt(id, 10)])
	}
	return out
}

func (ix *Index) Order(id int64) (model.RawOrder, error) {
	return ix.orderByKey(model.KindOrder, strconv.FormatInt(id, 10))
}

func (ix *Index) orderByKey(kind model.Kind, key string) (model.RawOrder, error) {
	key = canonical(key)
	rec, ok := ix.orders[key]
	if !ok {
		return nil, &NotFoundError{Kind: kind, ID: key}
	}
	return rec, nil
}

// ByItem returns the first order that contains the item.
func (ix *Index) ByItem(itemID string) (model.RawOrder, error) {
	return ix.first(model.KindItem, itemID)
}

// ByRestaurant returns the first order placed at the restaurant.
func (ix *Index) ByRestaurant(restaurantID string) (model.RawOrder, error) {
	return ix.first(model.KindRestaurant, restaurantID)
}

// ByAddress returns the first order delivered to the address id, any version.
func (ix *Index) ByAddress(addressID string) (model.RawOrder, error) {
	return ix.first(model.KindAddress, addressID)
}

// ByAddressVersion returns the first order delivered to that version of the
// address.
func (ix *Index) ByAddressVersion(addressID, version string) (model.RawOrder, error) {
	return ix.first(model.KindAddressVersion, model.AddressKey(canonical(addressID), canonical(version), true))
}

func (ix *Index) ByTransaction(transactionID string) (model.RawOrder, error) {
	return ix.first(model.KindPayment, transactionID)
}

func (ix *Index) first(kind model.Kind, key string) (model.RawOrder, error) {
	ids, err := ix.OrderIDs(kind, key)
	if err != nil {
		return nil, err
	}
	return ix.Order(ids[0])
}

// OrderIDs returns the owning order ids for key in first-seen order, one per
// occurrence. Address-version keys take the "id_version" form.
func (ix *Index) OrderIDs(kind model.Kind, key string) ([]int64, error) {
	key = canonical(key)
	var ids []int64
	switch kind {
	case model.KindOrder, model.KindOffer:
		if _, ok := ix.orders[key]; ok {
			id, _ := strconv.ParseInt(key, 10, 64)
			ids = []int64{id}
		}
	case model.KindItem:
		ids = ix.items[key]
	case model.KindRestaurant:
		ids = ix.restaurants[key]
	case model.KindAddress:
		ids = ix.addresses[key]
	case model.KindAddressVersion:
		ids = ix.addressVersions[key]
	case model.KindPayment:
		if id, ok := ix.transactions[key]; ok {
			ids = []int64{id}
		}
	default:
		return nil, fmt.Errorf("index: unsupported kind %s", kind)
	}
	if len(ids) == 0 {
		return nil, &NotFoundError{Kind: kind, ID: key}
	}
	return append([]int64(nil), ids...), nil
}

// canonical brings a caller's id to the form the index was keyed with.
func canonical(key string) string {
	if k, ok := model.IDString(key); ok {
		return k
	}
	return key
}

// Find resolves key for any entity kind to its first owning record.
func (ix *Index) Find(kind model.Kind, key string) (model.RawOrder, error) {
	switch kind {
	case model.KindOrder, model.KindOffer:
		return ix.orderByKey(kind, key)
	case model.KindItem:
		return ix.ByItem(key)
	case model.KindRestaurant:
		return ix.ByRestaurant(key)
	case model.KindAddress:
		return ix.ByAddress(key)
	case model.KindAddressVersion:
		return ix.first(kind, key)
	case model.KindPayment:
		return ix.ByTransaction(key)
	}
	return nil, fmt.Errorf("index: unsupported kind %s", kind)
}
