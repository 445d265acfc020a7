package normalize

import (
	"fmt"

	"ambrosial/internal/model"
)

// Scalar fields read by the converters. Missing ones default to nil.
var (
	orderFields = []string{
		"order_id", "customer_id", "order_time", "order_status", "post_status", "order_type",
		"order_placement_status", "order_delivery_status", "payment_method", "order_payment_method",
		"payment_txn_id", "payment_txn_status", "is_refund_initiated", "order_total",
		"order_total_with_tip", "item_total", "swiggy_money", "order_discount",
		"order_discount_effective", "coupon_discount", "trade_discount", "super_specific_discount",
		"is_coupon_applied", "coupon_applied", "coupon_type", "coupon_description", "sla_time",
		"actual_sla_time", "sla_difference", "on_time", "ordered_time_in_seconds",
		"delivered_time_in_seconds", "delivery_time_in_seconds", "billing_lat", "billing_lng",
		"is_long_distance", "is_super_long_distance", "rain_mode", "customer_user_agent",
		"updated_at", "conservative_last_mile_distance", "order_discount_without_freebie",
		"coupon_discount_effective", "trade_discount_effective", "free_delivery_discount_hit",
		"freebie_discount_hit", "device_id", "swuid", "sid", "previous_cancellation_fee",
		"mCancellationTime",
		"restaurant_id", "restaurant_name", "restaurant_address", "restaurant_locality",
		"restaurant_type", "restaurant_city_code", "restaurant_city_name", "restaurant_area_code",
		"restaurant_area_name", "restaurant_lat_lng", "restaurant_customer_distance",
		"restaurant_cover_image", "restaurant_taxation_type", "restaurant_gst_category",
	}
	itemFields = []string{
		"item_id", "item_key", "external_item_id", "name", "rewardType", "is_veg",
		"has_variantv2", "single_variant", "image_id", "quantity", "free_item_quantity", "total",
		"subtotal", "final_price", "base_price", "effective_item_price", "packing_charges",
		"item_total_discount",
	}
	offerFields = []string{
		"id", "super_type", "total_offer_discount", "discount_type", "description",
	}
	paymentFields = []string{
		"transactionId", "paymentMethod", "paymentMethodDisplayName", "amount",
		"transactionStatus", "swiggyTransactionId", "pgTransactionId", "couponApplied",
		"paymentGateway", "pgResponseTime",
	}
	addressFields = []string{
		"id", "version", "name", "address", "landmark", "area", "mobile", "annotation",
		"instructions", "email", "city", "lat", "lng", "address_line1", "address_line2",
		"alternate_mobile", "flat_no",
	}
)

// DefaultFields runs one explicit defaulting pass per record shape (order,
// address, item, offer, payment). Absent scalars become nil, absent
// collections become empty. Only list entries that are not objects at all are
// reported as malformed.
func DefaultFields(order model.RawOrder) error {
	setDefaults(order, orderFields)
	ensureMap(order, "charges")
	ensureMap(order, "tipDetails")
	ensureMap(order, "delivery_boy")
	ensureMap(order, "cust_lat_lng")
	ensureMap(order, "configurations")
	ensureMap(order, "free_del_break_up")
	ensureList(order, "order_tags")
	ensureList(order, "restaurant_cuisine")

	setDefaults(ensureMap(order, "delivery_address"), addressFields)

	items, err := objects(order, "order_items")
	if err != nil {
		return err
	}
	for _, item := range items {
		setDefaults(item, itemFields)
		ensureList(item, "variants")
		ensureList(item, "addons")
		ensureMap(item, "category_details")
		ensureMap(item, "item_charges")
	}

	offers, err := objects(order, "offers_data")
	if err != nil {
		return err
	}
	for _, offer := range offers {
		setDefaults(offer, offerFields)
		ensureMap(offer, "discount_share")
	}

	payments, err := objects(order, "payment_transactions")
	if err != nil {
		return err
	}
	for _, txn := range payments {
		setDefaults(txn, paymentFields)
		ensureMap(txn, "paymentMeta")
	}
	return nil
}

func setDefaults(m map[string]any, fields []string) {
	if m == nil {
		return
	}
	for _, f := range fields {
		if _, ok := m[f]; !ok {
			m[f] = nil
		}
	}
}

// ensureMap fills an absent or null key with an empty object. A present value
// of another shape is left for the converters to reject.
func ensureMap(m map[string]any, key string) map[string]any {
	if v := model.Map(m[key]); v != nil {
		return v
	}
	if m[key] != nil {
		return nil
	}
	v := map[string]any{}
	m[key] = v
	return v
}

func ensureList(m map[string]any, key string) {
	if m[key] == nil {
		m[key] = []any{}
	}
}

// objects guarantees m[key] is a list of objects and returns them.
func objects(order model.RawOrder, key string) ([]map[string]any, error) {
	ensureList(order, key)
	list := model.List(order[key])
	if list == nil {
		return nil, malformed(order, key, fmt.Errorf("expected list, got %T", order[key]))
	}
	out := make([]map[string]any, 0, len(list))
	for i, e := range list {
		obj := model.Map(e)
		if obj == nil {
			return nil, malformed(order, fmt.Sprintf("%s[%d]", key, i), fmt.Errorf("expected object, got %T", e))
		}
		out = append(out, obj)
	}
	order[key] = list
	return out, nil
}
