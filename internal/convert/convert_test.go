package convert

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambrosial/internal/fixture"
	"ambrosial/internal/model"
	"ambrosial/internal/normalize"
)

func canonical(t *testing.T, s fixture.Spec) model.RawOrder {
	t.Helper()
	order, err := normalize.Normalize(fixture.Order(s))
	require.NoError(t, err)
	return order
}

func TestToOrder_OnTimeFollowsSLADifference(t *testing.T) {
	late := canonical(t, fixture.Spec{OrderID: 101, SLADifference: -30})
	require.Equal(t, true, late["on_time"])

	o, err := ToOrder(late, false)
	require.NoError(t, err)
	assert.Equal(t, -30, o.SLADifference)
	assert.False(t, o.OnTime)

	exact := canonical(t, fixture.Spec{OrderID: 102, SLADifference: 0})
	o, err = ToOrder(exact, false)
	require.NoError(t, err)
	assert.True(t, o.OnTime)
}

func TestToOrder_ProjectsNestedEntities(t *testing.T) {
	order := canonical(t, fixture.Spec{
		OrderID:    101,
		ItemIDs:    []string{"I1", "I2"},
		WithOffer:  true,
		WithRating: true,
	})
	o, err := ToOrder(order, false)
	require.NoError(t, err)

	assert.Equal(t, int64(101), o.OrderID)
	assert.Equal(t, 250.0, o.OrderTotal)
	assert.Equal(t, 15.0, o.Charges["Delivery Charges"])
	assert.Equal(t, model.Coordinates{Lat: 12.9716, Lng: 77.5946}, o.CustLatLng)
	assert.Equal(t, model.Rating{Restaurant: 4, Delivery: 5}, o.Rating)
	assert.Equal(t, 2023, o.OrderTime.Year())
	_, offset := o.OrderTime.Zone()
	assert.Equal(t, 5*3600+1800, offset)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "I1", o.Items[0].ItemID)
	assert.Equal(t, int64(101), o.Items[0].OrderID)
	assert.Equal(t, "R1", o.Items[0].RestaurantID)

	require.Len(t, o.Payments, 1)
	assert.Equal(t, "TXN101", o.Payments[0].TransactionID)
	assert.Equal(t, "captured", model.Map(o.Payments[0].PaymentMeta["extPGResponse"])["status"])

	require.Len(t, o.Offers, 1)
	assert.Equal(t, "TRYNEW", o.Offers[0].CouponApplied)
	assert.Equal(t, 40.0, o.Offers[0].TotalOfferDiscount)
	assert.Equal(t, map[string]float64{"swiggy_discount": 20, "store_discount": 20}, o.Offers[0].DiscountShare)

	assert.Equal(t, "5", o.Address.ID)
	assert.Equal(t, "R1", o.Restaurant.ID)
}

func TestToOrder_MissingRatingDefaultsToZero(t *testing.T) {
	o, err := ToOrder(canonical(t, fixture.Spec{OrderID: 7}), false)
	require.NoError(t, err)
	assert.Equal(t, model.Rating{}, o.Rating)
}

func TestToItems_PlaceholderImage(t *testing.T) {
	items, err := ToItems(canonical(t, fixture.Spec{OrderID: 101, ItemIDs: []string{"I1", "I2"}}))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, ImageBaseURL+"img/I1", items[0].Image)
	assert.Equal(t, PlaceholderImageID, items[1].ImageID)
	assert.Equal(t, "https://res.cloudinary.com/swiggy/image/upload/swiggy_pay/SwiggyLogo", items[1].Image)
	assert.Equal(t, "Mains", items[0].CategoryDetails["category"])
	assert.Equal(t, 4.76, items[0].ItemCharges["GST"])
}

func TestToRestaurant_Coordinates(t *testing.T) {
	order := canonical(t, fixture.Spec{OrderID: 101, RestaurantID: "R9"})
	rest, err := ToRestaurant(order, false)
	require.NoError(t, err)
	assert.Equal(t, model.Coordinates{Lat: 12.9784, Lng: 77.6408}, rest.Coordinates)
	assert.Equal(t, ImageBaseURL+"cover/R9", rest.CoverImage)
	assert.Equal(t, []string{"North Indian", "Chinese"}, rest.Cuisine)
	assert.Equal(t, 1, rest.CityCode)
	assert.Equal(t, model.CustomerDistance{AddressKey: "5", Distance: 3.2}, rest.CustomerDistance)

	order["restaurant_lat_lng"] = "12.9784"
	_, err = ToRestaurant(order, false)
	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "restaurant_lat_lng", ce.Field)
}

func TestAddressKey_DDAV(t *testing.T) {
	order := canonical(t, fixture.Spec{OrderID: 101, AddressID: "5", AddressVersion: 2})
	assert.Equal(t, "5", AddressKey(order, false))
	assert.Equal(t, "5_2", AddressKey(order, true))

	addr, err := ToAddress(order, true)
	require.NoError(t, err)
	assert.Equal(t, "5_2", addr.Key())
	assert.Equal(t, 2, addr.Version)

	rest, err := ToRestaurant(order, true)
	require.NoError(t, err)
	assert.Equal(t, "5_2", rest.CustomerDistance.AddressKey)
}

func TestConversionError_NamesOrderAndField(t *testing.T) {
	order := canonical(t, fixture.Spec{OrderID: 101})
	order["restaurant_customer_distance"] = "abc"

	_, err := ToOrder(order, false)
	require.Error(t, err)
	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "101", ce.OrderID)
	assert.Equal(t, "restaurant_customer_distance", ce.Field)
	assert.Equal(t, "abc", ce.Value)
}

func TestConversionError_NestedField(t *testing.T) {
	order := canonical(t, fixture.Spec{OrderID: 3, ItemIDs: []string{"I1"}})
	item := model.Map(model.List(order["order_items"])[0])
	item["quantity"] = "two"

	_, err := ToItems(order)
	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "order_items[0].quantity", ce.Field)
}

func TestToOffers_Empty(t *testing.T) {
	offers, err := ToOffers(canonical(t, fixture.Spec{OrderID: 101}))
	require.NoError(t, err)
	assert.Empty(t, offers)
	assert.NotNil(t, offers)

	offers, err = ToOffers(model.RawOrder{"order_id": 101, "offers_data": ""})
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestToOrder_MissingOrderID(t *testing.T) {
	_, err := ToOrder(model.RawOrder{"customer_id": "C1"}, false)
	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "order_id", ce.Field)
}

func TestToOrder_BadOrderTime(t *testing.T) {
	order := canonical(t, fixture.Spec{OrderID: 9, OrderTime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)})
	o, err := ToOrder(order, false)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 09:00:00", o.OrderTime.Format(orderTimeLayout))

	order["order_time"] = "yesterday"
	_, err = ToOrder(order, false)
	assert.Error(t, err)
}

func TestToOrder_CancellationAndDiscountFields(t *testing.T) {
	order := canonical(t, fixture.Spec{OrderID: 11})
	o, err := ToOrder(order, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), o.CancellationTime)
	assert.Equal(t, 1, o.FreeDeliveryDiscountHit)
	assert.Equal(t, "d-11", o.DeviceID)
	assert.Equal(t, map[string]any{"thresholdFee": 1, "distanceFee": 0, "rainFee": false}, o.FreeDelBreakUp)

	order["mCancellationTime"] = "1672670400"
	order["previous_cancellation_fee"] = json.Number("25")
	order["coupon_discount_effective"] = "12.5"
	order["trade_discount_effective"] = 7.5
	order["order_discount_without_freebie"] = json.Number("20")
	order["freebie_discount_hit"] = 1
	order["swuid"] = "sw-1"
	order["sid"] = "s-1"
	o, err = ToOrder(order, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1672670400), o.CancellationTime)
	assert.Equal(t, 25, o.PreviousCancellationFee)
	assert.Equal(t, 12.5, o.CouponDiscountEffective)
	assert.Equal(t, 7.5, o.TradeDiscountEffective)
	assert.Equal(t, 20.0, o.OrderDiscountWithoutFreebie)
	assert.Equal(t, 1, o.FreebieDiscountHit)
	assert.Equal(t, "sw-1", o.SWUID)
	assert.Equal(t, "s-1", o.SID)
}

func TestToOrder_CancellationFieldsDefaultWhenAbsent(t *testing.T) {
	raw := fixture.Order(fixture.Spec{OrderID: 12})
	delete(raw, "mCancellationTime")
	delete(raw, "free_del_break_up")
	order, err := normalize.Normalize(raw)
	require.NoError(t, err)
	assert.Contains(t, order, "mCancellationTime")
	assert.Nil(t, order["mCancellationTime"])

	o, err := ToOrder(order, false)
	require.NoError(t, err)
	assert.Zero(t, o.CancellationTime)
	assert.Empty(t, o.FreeDelBreakUp)
}
