package model

import (
	"fmt"
	"strings"
)

// Kind names the entity a lookup key refers to.
type Kind int

const (
	KindOrder Kind = iota
	KindItem
	KindRestaurant
	KindAddress
	KindAddressVersion
	KindPayment
	KindOffer
)

func (k Kind) String() string {
	switch k {
	case KindOrder:
		return "order"
	case KindItem:
		return "item"
	case KindRestaurant:
		return "restaurant"
	case KindAddress:
		return "address"
	case KindAddressVersion:
		return "address_version"
	case KindPayment:
		return "payment"
	case KindOffer:
		return "offer"
	}
	return "unknown"
}

// ParseKind is the inverse of String. It also accepts plural forms.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := KindOrder; k <= KindOffer; k++ {
		name := k.String()
		if s == name || s == name+"s" {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind %q", s)
}
