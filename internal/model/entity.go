package model

import (
	"strconv"
	"time"
)

// Order is the typed view of one canonical record.
type Order struct {
	OrderID                      int64
	CustomerID                   string
	OrderTime                    time.Time
	OrderStatus                  string
	PostStatus                   string
	OrderType                    string
	OrderPlacementStatus         string
	OrderDeliveryStatus          string
	PaymentMethod                string
	OrderPaymentMethod           string
	PaymentTxnID                 string
	PaymentTxnStatus             string
	IsRefundInitiated            bool
	OrderTotal                   float64
	OrderTotalWithTip            float64
	ItemTotal                    float64
	SwiggyMoney                  float64
	OrderDiscount                float64
	OrderDiscountEffective       float64
	OrderDiscountWithoutFreebie  float64
	CouponDiscount               float64
	TradeDiscount                float64
	CouponDiscountEffective      float64
	TradeDiscountEffective       float64
	FreeDeliveryDiscountHit      int
	FreebieDiscountHit           int
	FreeDelBreakUp               map[string]any
	SuperSpecificDiscount        float64
	IsCouponApplied              bool
	CouponApplied                string
	CouponType                   string
	CouponDescription            string
	Charges                      map[string]float64
	TipDetails                   map[string]any
	DeliveryBoy                  map[string]any
	Rating                       Rating
	SLATime                      int
	ActualSLATime                int
	SLADifference                int
	OnTime                       bool
	OrderedTimeInSeconds         int64
	DeliveredTimeInSeconds       int64
	DeliveryTimeInSeconds        int64
	BillingLat                   float64
	BillingLng                   float64
	CustLatLng                   Coordinates
	IsLongDistance               bool
	IsSuperLongDistance          bool
	RainMode                     string
	CustomerUserAgent            string
	OrderTags                    []string
	Configurations               map[string]bool
	UpdatedAt                    string
	ConservativeLastMileDistance float64
	DeviceID                     string
	SWUID                        string
	SID                          string
	PreviousCancellationFee      int
	CancellationTime             int64 // zero unless the order was cancelled

	Address    Address
	Restaurant Restaurant
	Items      []Item
	Payments   []Payment
	Offers     []Offer
}

// Equal compares orders by order id.
func (o Order) Equal(other Order) bool { return o.OrderID == other.OrderID }

// Rating holds the restaurant and delivery scores given by the customer.
type Rating struct {
	Restaurant int
	Delivery   int
}

type Coordinates struct {
	Lat float64
	Lng float64
}

// Item is a line item. The same ItemID recurs across repeat purchases.
type Item struct {
	ItemID             string
	OrderID            int64
	RestaurantID       string
	ItemKey            string
	ExternalItemID     string
	Name               string
	RewardType         string
	IsVeg              bool
	HasVariantV2       bool
	SingleVariant      bool
	Variants           []map[string]any
	Addons             []map[string]any
	ImageID            string
	Image              string
	Quantity           int
	FreeItemQuantity   int
	Total              float64
	Subtotal           float64
	FinalPrice         float64
	BasePrice          float64
	EffectiveItemPrice float64
	PackingCharges     float64
	ItemTotalDiscount  float64
	CategoryDetails    map[string]string
	ItemCharges        map[string]float64
}

// Equal compares items by id only, ignoring the owning order.
func (i Item) Equal(other Item) bool { return i.ItemID == other.ItemID }

type Restaurant struct {
	ID               string
	Name             string
	Address          string
	Locality         string
	Type             string
	CityCode         int
	CityName         string
	AreaCode         int
	AreaName         string
	Cuisine          []string
	Coordinates      Coordinates
	CustomerDistance CustomerDistance
	CoverImage       string
	TaxationType     string
	GSTCategory      string
}

// CustomerDistance relates a restaurant to the address it delivered to.
type CustomerDistance struct {
	AddressKey string
	Distance   float64
}

func (r Restaurant) Equal(other Restaurant) bool { return r.ID == other.ID }

// Address is a delivery address. Its identity depends on DDAV.
type Address struct {
	DDAV            bool
	ID              string
	Version         int
	Name            string
	Address         string
	Landmark        string
	Area            string
	Mobile          string
	Annotation      string
	Instructions    string
	Email           string
	City            string
	Lat             float64
	Lng             float64
	AddressLine1    string
	AddressLine2    string
	AlternateMobile string
	FlatNo          string
}

// Key is the identity used by equality and by the address index.
func (a Address) Key() string {
	return AddressKey(a.ID, strconv.Itoa(a.Version), a.DDAV)
}

func (a Address) Equal(other Address) bool { return a.Key() == other.Key() }

// AddressKey is "{id}" without ddav and "{id}_{version}" with it.
func AddressKey(id, version string, ddav bool) string {
	if !ddav {
		return id
	}
	return id + "_" + version
}

// Offer is one discount component applied to an order.
type Offer struct {
	OrderID            int64
	ID                 string
	CouponApplied      string
	SuperType          string
	TotalOfferDiscount float64
	DiscountShare      map[string]float64
	DiscountType       string
	Description        string
}

// Equal compares offers by owning order.
func (o Offer) Equal(other Offer) bool { return o.OrderID == other.OrderID }

type Payment struct {
	OrderID                  int64
	TransactionID            string
	PaymentMethod            string
	PaymentMethodDisplayName string
	Amount                   float64
	PaymentMeta              map[string]any
	TransactionStatus        string
	SwiggyTransactionID      string
	PGTransactionID          string
	CouponApplied            string
	PaymentGateway           string
	PGResponseTime           string
}

func (p Payment) Equal(other Payment) bool { return p.TransactionID == other.TransactionID }
