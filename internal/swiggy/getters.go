package swiggy

import (
	"strconv"

	"ambrosial/internal/convert"
	"ambrosial/internal/index"
	"ambrosial/internal/model"
)

// Every getter converts from the canonical records on each call; only the
// index is kept between calls. Caller ids are trimmed the same way record ids
// were when the index was built.

func canonicalID(id string) string {
	if k, ok := model.IDString(id); ok {
		return k
	}
	return id
}

func (s *Swiggy) GetOrder(orderID int64) (model.Order, error) {
	ix, err := s.snapshot()
	if err != nil {
		return model.Order{}, err
	}
	rec, err := ix.Order(orderID)
	if err != nil {
		return model.Order{}, err
	}
	return convert.ToOrder(rec, s.ddav)
}

func (s *Swiggy) GetOrders() ([]model.Order, error) {
	ix, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]model.Order, 0, ix.Len())
	for _, rec := range ix.Records() {
		o, err := convert.ToOrder(rec, s.ddav)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// GetItem returns the item as it appears in the first order that contains it.
func (s *Swiggy) GetItem(itemID string) (model.Item, error) {
	ix, err := s.snapshot()
	if err != nil {
		return model.Item{}, err
	}
	itemID = canonicalID(itemID)
	rec, err := ix.ByItem(itemID)
	if err != nil {
		return model.Item{}, err
	}
	items, err := convert.ToItems(rec)
	if err != nil {
		return model.Item{}, err
	}
	for _, it := range items {
		if it.ItemID == itemID {
			return it, nil
		}
	}
	return model.Item{}, &index.NotFoundError{Kind: model.KindItem, ID: itemID}
}

// GetItems returns every line item of every order, repeats included.
func (s *Swiggy) GetItems() ([]model.Item, error) {
	ix, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	var out []model.Item
	for _, rec := range ix.Records() {
		items, err := convert.ToItems(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	if out == nil {
		out = []model.Item{}
	}
	return out, nil
}

func (s *Swiggy) GetRestaurant(restaurantID string) (model.Restaurant, error) {
	ix, err := s.snapshot()
	if err != nil {
		return model.Restaurant{}, err
	}
	rec, err := ix.ByRestaurant(restaurantID)
	if err != nil {
		return model.Restaurant{}, err
	}
	return convert.ToRestaurant(rec, s.ddav)
}

// GetRestaurants returns one restaurant per order.
func (s *Swiggy) GetRestaurants() ([]model.Restaurant, error) {
	ix, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]model.Restaurant, 0, ix.Len())
	for _, rec := range ix.Records() {
		r, err := convert.ToRestaurant(rec, s.ddav)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

type addressQuery struct {
	version    int
	hasVersion bool
}

type AddressOption func(*addressQuery)

// WithVersion selects one version of an address. It is required when DDAV
// is on and rejected when it is off.
func WithVersion(v int) AddressOption {
	return func(q *addressQuery) { q.version, q.hasVersion = v, true }
}

func (s *Swiggy) GetAddress(addressID string, opts ...AddressOption) (model.Address, error) {
	addressID = canonicalID(addressID)
	var q addressQuery
	for _, o := range opts {
		o(&q)
	}
	switch {
	case s.ddav && !q.hasVersion:
		return model.Address{}, &ConfigurationError{Reason: "address " + addressID + ": version is required when ddav is enabled"}
	case !s.ddav && q.hasVersion:
		return model.Address{}, &ConfigurationError{Reason: "address " + addressID + ": version given but ddav is disabled"}
	}

	ix, err := s.snapshot()
	if err != nil {
		return model.Address{}, err
	}
	var rec model.RawOrder
	if s.ddav {
		rec, err = ix.ByAddressVersion(addressID, strconv.Itoa(q.version))
	} else {
		rec, err = ix.ByAddress(addressID)
	}
	if err != nil {
		return model.Address{}, err
	}
	return convert.ToAddress(rec, s.ddav)
}

// GetAddresses returns one address per order.
func (s *Swiggy) GetAddresses() ([]model.Address, error) {
	ix, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]model.Address, 0, ix.Len())
	for _, rec := range ix.Records() {
		a, err := convert.ToAddress(rec, s.ddav)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// GetOffer returns the offers applied to an order, possibly none.
func (s *Swiggy) GetOffer(orderID int64) ([]model.Offer, error) {
	ix, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	rec, err := ix.Order(orderID)
	if err != nil {
		return nil, err
	}
	return convert.ToOffers(rec)
}

func (s *Swiggy) GetOffers() ([]model.Offer, error) {
	ix, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	out := []model.Offer{}
	for _, rec := range ix.Records() {
		offers, err := convert.ToOffers(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, offers...)
	}
	return out, nil
}

func (s *Swiggy) GetPayment(transactionID string) (model.Payment, error) {
	ix, err := s.snapshot()
	if err != nil {
		return model.Payment{}, err
	}
	transactionID = canonicalID(transactionID)
	rec, err := ix.ByTransaction(transactionID)
	if err != nil {
		return model.Payment{}, err
	}
	payments, err := convert.ToPayments(rec)
	if err != nil {
		return model.Payment{}, err
	}
	for _, p := range payments {
		if p.TransactionID == transactionID {
			return p, nil
		}
	}
	return model.Payment{}, &index.NotFoundError{Kind: model.KindPayment, ID: transactionID}
}

func (s *Swiggy) GetPayments() ([]model.Payment, error) {
	ix, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	out := []model.Payment{}
	for _, rec := range ix.Records() {
		payments, err := convert.ToPayments(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, payments...)
	}
	return out, nil
}
