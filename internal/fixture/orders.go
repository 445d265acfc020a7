// Package fixture builds raw order payloads shaped like the order-listing
// endpoint's, including its legacy quirks: a stringified gateway response,
// "" for no offers and a missing rating block.
package fixture

import (
	"fmt"
	"strconv"
	"time"

	"ambrosial/internal/model"
)

type Spec struct {
	OrderID        int64
	RestaurantID   string
	AddressID      string
	AddressVersion int
	ItemIDs        []string
	TransactionID  string
	SLADifference  int
	OrderTime      time.Time
	Total          float64
	WithOffer      bool
	WithRating     bool
}

// Order returns a raw record for s. Empty fields get deterministic defaults
// derived from the order id.
func Order(s Spec) model.RawOrder {
	if s.RestaurantID == "" {
		s.RestaurantID = "R1"
	}
	if s.AddressID == "" {
		s.AddressID = "5"
	}
	if s.AddressVersion == 0 {
		s.AddressVersion = 1
	}
	if s.TransactionID == "" {
		s.TransactionID = fmt.Sprintf("TXN%d", s.OrderID)
	}
	if s.OrderTime.IsZero() {
		s.OrderTime = time.Date(2023, 1, 2, 20, 15, 0, 0, time.UTC).Add(time.Duration(s.OrderID) * time.Hour)
	}
	if s.Total == 0 {
		s.Total = 250
	}

	items := make([]any, 0, len(s.ItemIDs))
	for i, id := range s.ItemIDs {
		item := map[string]any{
			"item_id":              id,
			"item_key":             "key-" + id,
			"external_item_id":     "",
			"name":                 "Item " + id,
			"rewardType":           "",
			"is_veg":               "1",
			"has_variantv2":        false,
			"variants":             []any{},
			"addons":               []any{},
			"quantity":             "1",
			"free_item_quantity":   "0",
			"total":                strconv.FormatFloat(s.Total/float64(len(s.ItemIDs)), 'f', 2, 64),
			"subtotal":             "100.00",
			"final_price":          "100.00",
			"base_price":           "100.00",
			"effective_item_price": "100.00",
			"packing_charges":      "5.00",
			"category_details":     map[string]any{"category": "Mains", "sub_category": ""},
			"item_charges":         map[string]any{"GST": "4.76", "Vat": "0"},
			"item_total_discount":  0,
			"single_variant":       false,
		}
		if i%2 == 0 {
			item["image_id"] = "img/" + id
		} else {
			item["image_id"] = ""
		}
		items = append(items, item)
	}

	order := model.RawOrder{
		"order_id":                  s.OrderID,
		"customer_id":               "C42",
		"order_time":                s.OrderTime.Format("2006-01-02 15:04:05"),
		"order_status":              "Delivered",
		"post_status":               "completed",
		"order_type":                "regular",
		"payment_method":            "UPI",
		"order_total":               s.Total,
		"order_total_with_tip":      s.Total,
		"item_total":                s.Total - 20,
		"order_discount":            0,
		"coupon_discount":           0,
		"trade_discount":            0,
		"is_coupon_applied":         s.WithOffer,
		"coupon_applied":            "",
		"charges":                   map[string]any{"Delivery Charges": "15.0", "GST": "5.0"},
		"tipDetails":                map[string]any{"amount": 0, "optIn": false, "type": ""},
		"delivery_boy":              map[string]any{"id": 9, "name": "Ravi", "trackable": true},
		"sla_time":                  "30",
		"actual_sla_time":           strconv.Itoa(30 - s.SLADifference),
		"sla_difference":            strconv.Itoa(s.SLADifference),
		"on_time":                   true,
		"ordered_time_in_seconds":   s.OrderTime.Unix(),
		"delivered_time_in_seconds": strconv.FormatInt(s.OrderTime.Unix()+1800, 10),
		"delivery_time_in_seconds":  "1800",
		"billing_lat":               "12.9716",
		"billing_lng":               "77.5946",
		"cust_lat_lng":              map[string]any{"lat": "12.9716", "lng": "77.5946"},
		"is_long_distance":          false,
		"rain_mode":                 "0",
		"order_tags":                []any{},
		"configurations":            map[string]any{"cancel_not_allowed": false, "self_delivery": false},
		"updated_at":                "1672670100",

		"coupon_discount_effective":  0,
		"free_delivery_discount_hit": 1,
		"free_del_break_up":          map[string]any{"thresholdFee": 1, "distanceFee": 0, "rainFee": false},
		"device_id":                  "d-" + strconv.FormatInt(s.OrderID, 10),
		"mCancellationTime":          0,

		"restaurant_id":                s.RestaurantID,
		"restaurant_name":              "Restaurant " + s.RestaurantID,
		"restaurant_address":           "1 MG Road",
		"restaurant_locality":          "Indiranagar",
		"restaurant_type":              "F",
		"restaurant_city_code":         "1",
		"restaurant_city_name":         "Bangalore",
		"restaurant_area_code":         "7",
		"restaurant_area_name":         "Indiranagar",
		"restaurant_cuisine":           []any{"North Indian", "Chinese"},
		"restaurant_lat_lng":           "12.9784,77.6408",
		"restaurant_customer_distance": "3.2",
		"restaurant_cover_image":       "cover/" + s.RestaurantID,
		"restaurant_taxation_type":     "GST",
		"restaurant_gst_category":      "RESTAURANT",

		"delivery_address": map[string]any{
			"id":               s.AddressID,
			"version":          s.AddressVersion,
			"name":             "Home",
			"address":          "42 Residency Road",
			"landmark":         "Near park",
			"area":             "Richmond Town",
			"mobile":           "9999999999",
			"annotation":       "HOME",
			"email":            "",
			"city":             "Bangalore",
			"lat":              "12.9650",
			"lng":              "77.6010",
			"flat_no":          "4B",
			"address_line1":    "",
			"address_line2":    "",
			"alternate_mobile": "",
		},
		"order_items": items,
		"payment_transactions": []any{
			map[string]any{
				"paymentMethod":            "UPI",
				"paymentMethodDisplayName": "UPI",
				"transactionId":            s.TransactionID,
				"amount":                   strconv.FormatFloat(s.Total, 'f', 2, 64),
				"paymentMeta": map[string]any{
					"extPGResponse": "{'status': 'captured', 'is_emi': false, 'retry': true}",
				},
				"transactionStatus":   "success",
				"swiggyTransactionId": "S" + s.TransactionID,
				"pgTransactionId":     "PG" + s.TransactionID,
				"couponApplied":       "",
				"paymentGateway":      "razorpay",
				"pgResponseTime":      s.OrderTime.Format(time.RFC3339),
			},
		},
		"offers_data": "",
	}
	if s.WithOffer {
		order["coupon_applied"] = "TRYNEW"
		order["offers_data"] = []any{
			map[string]any{
				"id":                   fmt.Sprintf("OFF%d", s.OrderID),
				"super_type":           "",
				"total_offer_discount": 40.0,
				"discount_share":       map[string]any{"swiggy_discount": 20.0, "store_discount": "20"},
				"discount_type":        "Discount",
				"description":          "40 off",
			},
		}
	}
	if s.WithRating {
		order["rating_meta"] = map[string]any{
			"asset_id":          "a1",
			"restaurant_rating": map[string]any{"rating": 4},
			"delivery_rating":   map[string]any{"rating": 5},
		}
	}
	return order
}

// Orders builds n orders with descending ids starting at firstID, the order
// the endpoint pages them in.
func Orders(firstID int64, n int) []model.RawOrder {
	out := make([]model.RawOrder, 0, n)
	for i := 0; i < n; i++ {
		id := firstID - int64(i)
		out = append(out, Order(Spec{OrderID: id, ItemIDs: []string{fmt.Sprintf("I%d", id)}}))
	}
	return out
}
