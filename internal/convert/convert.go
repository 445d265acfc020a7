package convert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ambrosial/internal/model"
)

const (
	// ImageBaseURL prefixes every image identifier.
	ImageBaseURL = "https://res.cloudinary.com/swiggy/image/upload/"
	// PlaceholderImageID stands in for items that carry no image.
	PlaceholderImageID = "swiggy_pay/SwiggyLogo"

	orderTimeLayout = "2006-01-02 15:04:05"
)

// Order times are local to India.
var ist = time.FixedZone("IST", 5*60*60+30*60)

// ImageURL builds the CDN URL for an image id, substituting the placeholder
// for an empty one.
func ImageURL(imageID string) string {
	if strings.TrimSpace(imageID) == "" {
		imageID = PlaceholderImageID
	}
	return ImageBaseURL + imageID
}

// AddressKey is the address identity shared with the index.
func AddressKey(order model.RawOrder, ddav bool) string {
	addr := model.Map(order["delivery_address"])
	id, _ := model.IDString(addr["id"])
	// Same rendering as Address.Key: a missing version is 0.
	ver, _ := model.IDString(addr["version"])
	if n, err := model.AsInt(addr["version"]); err == nil {
		ver = strconv.FormatInt(n, 10)
	}
	return model.AddressKey(id, ver, ddav)
}

func orderKey(order model.RawOrder) (string, int64, error) {
	key, _ := order.Key()
	id, err := order.OrderID()
	if err != nil {
		return key, 0, &ConversionError{OrderID: key, Field: "order_id", Value: order["order_id"], Err: err}
	}
	return key, id, nil
}

// ToOrder projects the full typed order, including its nested entities.
func ToOrder(order model.RawOrder, ddav bool) (model.Order, error) {
	key, id, err := orderKey(order)
	if err != nil {
		return model.Order{}, err
	}
	r := newReader(key, "", order)
	o := model.Order{
		OrderID:                      id,
		CustomerID:                   r.str("customer_id"),
		OrderStatus:                  r.str("order_status"),
		PostStatus:                   r.str("post_status"),
		OrderType:                    r.str("order_type"),
		OrderPlacementStatus:         r.str("order_placement_status"),
		OrderDeliveryStatus:          r.str("order_delivery_status"),
		PaymentMethod:                r.str("payment_method"),
		OrderPaymentMethod:           r.str("order_payment_method"),
		PaymentTxnID:                 r.str("payment_txn_id"),
		PaymentTxnStatus:             r.str("payment_txn_status"),
		IsRefundInitiated:            r.flag("is_refund_initiated"),
		OrderTotal:                   r.float("order_total"),
		OrderTotalWithTip:            r.float("order_total_with_tip"),
		ItemTotal:                    r.float("item_total"),
		SwiggyMoney:                  r.float("swiggy_money"),
		OrderDiscount:                r.float("order_discount"),
		OrderDiscountEffective:       r.float("order_discount_effective"),
		OrderDiscountWithoutFreebie:  r.float("order_discount_without_freebie"),
		CouponDiscount:               r.float("coupon_discount"),
		TradeDiscount:                r.float("trade_discount"),
		CouponDiscountEffective:      r.float("coupon_discount_effective"),
		TradeDiscountEffective:       r.float("trade_discount_effective"),
		FreeDeliveryDiscountHit:      r.i("free_delivery_discount_hit"),
		FreebieDiscountHit:           r.i("freebie_discount_hit"),
		FreeDelBreakUp:               r.object("free_del_break_up"),
		SuperSpecificDiscount:        r.float("super_specific_discount"),
		IsCouponApplied:              r.flag("is_coupon_applied"),
		CouponApplied:                r.str("coupon_applied"),
		CouponType:                   r.str("coupon_type"),
		CouponDescription:            r.str("coupon_description"),
		Charges:                      r.floats("charges"),
		TipDetails:                   r.object("tipDetails"),
		DeliveryBoy:                  r.object("delivery_boy"),
		SLATime:                      r.i("sla_time"),
		ActualSLATime:                r.i("actual_sla_time"),
		SLADifference:                r.i("sla_difference"),
		OrderedTimeInSeconds:         r.i64("ordered_time_in_seconds"),
		DeliveredTimeInSeconds:       r.i64("delivered_time_in_seconds"),
		DeliveryTimeInSeconds:        r.i64("delivery_time_in_seconds"),
		BillingLat:                   r.float("billing_lat"),
		BillingLng:                   r.float("billing_lng"),
		IsLongDistance:               r.flag("is_long_distance"),
		IsSuperLongDistance:          r.flag("is_super_long_distance"),
		RainMode:                     r.str("rain_mode"),
		CustomerUserAgent:            r.str("customer_user_agent"),
		OrderTags:                    r.strs("order_tags"),
		Configurations:               r.bools("configurations"),
		UpdatedAt:                    r.str("updated_at"),
		ConservativeLastMileDistance: r.float("conservative_last_mile_distance"),
		DeviceID:                     r.str("device_id"),
		SWUID:                        r.str("swuid"),
		SID:                          r.str("sid"),
		PreviousCancellationFee:      r.i("previous_cancellation_fee"),
		CancellationTime:             r.i64("mCancellationTime"),
	}
	// The upstream on_time flag has disagreed with sla_difference; only the
	// difference is authoritative.
	o.OnTime = o.SLADifference >= 0

	cust := newReader(key, "cust_lat_lng.", r.object("cust_lat_lng"))
	o.CustLatLng = model.Coordinates{Lat: cust.float("lat"), Lng: cust.float("lng")}

	rating := newReader(key, "rating_meta.", r.object("rating_meta"))
	o.Rating = model.Rating{
		Restaurant: ratingValue(rating, "restaurant_rating"),
		Delivery:   ratingValue(rating, "delivery_rating"),
	}

	if s := r.str("order_time"); s != "" {
		t, err := time.ParseInLocation(orderTimeLayout, s, ist)
		if err != nil {
			r.fail("order_time", s, err)
		}
		o.OrderTime = t
	}
	for _, sub := range []*reader{cust, rating} {
		if sub.err != nil && r.err == nil {
			r.err = sub.err
		}
	}
	if r.err != nil {
		return model.Order{}, r.err
	}

	if o.Address, err = ToAddress(order, ddav); err != nil {
		return model.Order{}, err
	}
	if o.Restaurant, err = ToRestaurant(order, ddav); err != nil {
		return model.Order{}, err
	}
	if o.Items, err = ToItems(order); err != nil {
		return model.Order{}, err
	}
	if o.Payments, err = ToPayments(order); err != nil {
		return model.Order{}, err
	}
	if o.Offers, err = ToOffers(order); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func ratingValue(r *reader, field string) int {
	inner := newReader(r.orderID, r.prefix+field+".", r.object(field))
	v := inner.i("rating")
	if inner.err != nil && r.err == nil {
		r.err = inner.err
	}
	return v
}

// ToItems projects every line item of the order.
func ToItems(order model.RawOrder) ([]model.Item, error) {
	key, id, err := orderKey(order)
	if err != nil {
		return nil, err
	}
	restaurantID, _ := model.IDString(order["restaurant_id"])
	r := newReader(key, "", order)
	raws := r.objects("order_items")
	if r.err != nil {
		return nil, r.err
	}
	items := make([]model.Item, 0, len(raws))
	for i, raw := range raws {
		ir := newReader(key, fmt.Sprintf("order_items[%d].", i), raw)
		imageID := ir.str("image_id")
		if strings.TrimSpace(imageID) == "" {
			imageID = PlaceholderImageID
		}
		item := model.Item{
			ItemID:             ir.id("item_id"),
			OrderID:            id,
			RestaurantID:       restaurantID,
			ItemKey:            ir.str("item_key"),
			ExternalItemID:     ir.str("external_item_id"),
			Name:               ir.str("name"),
			RewardType:         ir.str("rewardType"),
			IsVeg:              ir.flag("is_veg"),
			HasVariantV2:       ir.flag("has_variantv2"),
			SingleVariant:      ir.flag("single_variant"),
			Variants:           ir.objects("variants"),
			Addons:             ir.objects("addons"),
			ImageID:            imageID,
			Image:              ImageURL(imageID),
			Quantity:           ir.i("quantity"),
			FreeItemQuantity:   ir.i("free_item_quantity"),
			Total:              ir.float("total"),
			Subtotal:           ir.float("subtotal"),
			FinalPrice:         ir.float("final_price"),
			BasePrice:          ir.float("base_price"),
			EffectiveItemPrice: ir.float("effective_item_price"),
			PackingCharges:     ir.float("packing_charges"),
			ItemTotalDiscount:  ir.float("item_total_discount"),
			CategoryDetails:    ir.texts("category_details"),
			ItemCharges:        ir.floats("item_charges"),
		}
		if ir.err != nil {
			return nil, ir.err
		}
		items = append(items, item)
	}
	return items, nil
}

// ToRestaurant projects the restaurant fields, which the payload flattens
// into the order with a restaurant_ prefix.
func ToRestaurant(order model.RawOrder, ddav bool) (model.Restaurant, error) {
	key, _, err := orderKey(order)
	if err != nil {
		return model.Restaurant{}, err
	}
	r := newReader(key, "", order)
	rest := model.Restaurant{
		ID:           r.id("restaurant_id"),
		Name:         r.str("restaurant_name"),
		Address:      r.str("restaurant_address"),
		Locality:     r.str("restaurant_locality"),
		Type:         r.str("restaurant_type"),
		CityCode:     r.i("restaurant_city_code"),
		CityName:     r.str("restaurant_city_name"),
		AreaCode:     r.i("restaurant_area_code"),
		AreaName:     r.str("restaurant_area_name"),
		Cuisine:      r.strs("restaurant_cuisine"),
		TaxationType: r.str("restaurant_taxation_type"),
		GSTCategory:  r.str("restaurant_gst_category"),
		CustomerDistance: model.CustomerDistance{
			AddressKey: AddressKey(order, ddav),
			Distance:   r.float("restaurant_customer_distance"),
		},
	}
	if cover := r.str("restaurant_cover_image"); cover != "" {
		rest.CoverImage = ImageBaseURL + cover
	}
	if ll := r.str("restaurant_lat_lng"); ll != "" {
		c, err := parseLatLng(ll)
		if err != nil {
			r.fail("restaurant_lat_lng", ll, err)
		}
		rest.Coordinates = c
	}
	if r.err != nil {
		return model.Restaurant{}, r.err
	}
	return rest, nil
}

func parseLatLng(s string) (model.Coordinates, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.Coordinates{}, fmt.Errorf("want \"lat,lng\", got %d parts", len(parts))
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("lng: %w", err)
	}
	return model.Coordinates{Lat: lat, Lng: lng}, nil
}

// ToAddress projects the delivery address used by the order.
func ToAddress(order model.RawOrder, ddav bool) (model.Address, error) {
	key, _, err := orderKey(order)
	if err != nil {
		return model.Address{}, err
	}
	outer := newReader(key, "", order)
	r := newReader(key, "delivery_address.", outer.object("delivery_address"))
	if outer.err != nil {
		return model.Address{}, outer.err
	}
	addr := model.Address{
		DDAV:            ddav,
		ID:              r.id("id"),
		Version:         r.i("version"),
		Name:            r.str("name"),
		Address:         r.str("address"),
		Landmark:        r.str("landmark"),
		Area:            r.str("area"),
		Mobile:          r.str("mobile"),
		Annotation:      r.str("annotation"),
		Instructions:    r.str("instructions"),
		Email:           r.str("email"),
		City:            r.str("city"),
		Lat:             r.float("lat"),
		Lng:             r.float("lng"),
		AddressLine1:    r.str("address_line1"),
		AddressLine2:    r.str("address_line2"),
		AlternateMobile: r.str("alternate_mobile"),
		FlatNo:          r.str("flat_no"),
	}
	if r.err != nil {
		return model.Address{}, r.err
	}
	return addr, nil
}

// ToOffers projects the discount components of the order. An order that used
// no offer yields an empty slice.
func ToOffers(order model.RawOrder) ([]model.Offer, error) {
	key, id, err := orderKey(order)
	if err != nil {
		return nil, err
	}
	r := newReader(key, "", order)
	if s, ok := order["offers_data"].(string); ok && s == "" {
		return []model.Offer{}, nil
	}
	raws := r.objects("offers_data")
	if r.err != nil {
		return nil, r.err
	}
	coupon := r.str("coupon_applied")
	offers := make([]model.Offer, 0, len(raws))
	for i, raw := range raws {
		ofr := newReader(key, fmt.Sprintf("offers_data[%d].", i), raw)
		offer := model.Offer{
			OrderID:            id,
			ID:                 ofr.id("id"),
			CouponApplied:      coupon,
			SuperType:          ofr.str("super_type"),
			TotalOfferDiscount: ofr.float("total_offer_discount"),
			DiscountShare:      ofr.floats("discount_share"),
			DiscountType:       ofr.str("discount_type"),
			Description:        ofr.str("description"),
		}
		if ofr.err != nil {
			return nil, ofr.err
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// ToPayments projects the payment transactions of the order.
func ToPayments(order model.RawOrder) ([]model.Payment, error) {
	key, id, err := orderKey(order)
	if err != nil {
		return nil, err
	}
	r := newReader(key, "", order)
	raws := r.objects("payment_transactions")
	if r.err != nil {
		return nil, r.err
	}
	payments := make([]model.Payment, 0, len(raws))
	for i, raw := range raws {
		pr := newReader(key, fmt.Sprintf("payment_transactions[%d].", i), raw)
		p := model.Payment{
			OrderID:                  id,
			TransactionID:            pr.id("transactionId"),
			PaymentMethod:            pr.str("paymentMethod"),
			PaymentMethodDisplayName: pr.str("paymentMethodDisplayName"),
			Amount:                   pr.float("amount"),
			PaymentMeta:              pr.object("paymentMeta"),
			TransactionStatus:        pr.str("transactionStatus"),
			SwiggyTransactionID:      pr.str("swiggyTransactionId"),
			PGTransactionID:          pr.str("pgTransactionId"),
			CouponApplied:            pr.str("couponApplied"),
			PaymentGateway:           pr.str("paymentGateway"),
			PGResponseTime:           pr.str("pgResponseTime"),
		}
		if pr.err != nil {
			return nil, pr.err
		}
		payments = append(payments, p)
	}
	return payments, nil
}
