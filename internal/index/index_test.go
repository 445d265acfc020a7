package index

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambrosial/internal/fixture"
	"ambrosial/internal/metrics"
	"ambrosial/internal/model"
	"ambrosial/internal/normalize"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	os.Exit(m.Run())
}

func build(t *testing.T, specs ...fixture.Spec) *Index {
	t.Helper()
	raws := make([]model.RawOrder, 0, len(specs))
	for _, s := range specs {
		raws = append(raws, fixture.Order(s))
	}
	canon, err := normalize.All(raws)
	require.NoError(t, err)
	ix, err := Build(canon)
	require.NoError(t, err)
	return ix
}

func TestByItem_RepeatPurchaseKeepsFirstSeenOrder(t *testing.T) {
	ix := build(t,
		fixture.Spec{OrderID: 101, ItemIDs: []string{"I1"}},
		fixture.Spec{OrderID: 102, ItemIDs: []string{"I1"}},
	)
	ids, err := ix.OrderIDs(model.KindItem, "I1")
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, ids)

	first, err := ix.ByItem("I1")
	require.NoError(t, err)
	id, _ := first.OrderID()
	assert.Equal(t, int64(101), id)
}

func TestIndex_Completeness(t *testing.T) {
	ix := build(t,
		fixture.Spec{OrderID: 1, RestaurantID: "R1", AddressID: "5", AddressVersion: 1, ItemIDs: []string{"A", "B"}},
		fixture.Spec{OrderID: 2, RestaurantID: "R2", AddressID: "5", AddressVersion: 2, ItemIDs: []string{"A"}},
		fixture.Spec{OrderID: 3, RestaurantID: "R1", AddressID: "6", AddressVersion: 1, ItemIDs: []string{"C", "A"}},
	)
	assert.Equal(t, 3, ix.Len())

	cases := []struct {
		kind model.Kind
		key  string
		want []int64
	}{
		{model.KindItem, "A", []int64{1, 2, 3}},
		{model.KindItem, "B", []int64{1}},
		{model.KindItem, "C", []int64{3}},
		{model.KindRestaurant, "R1", []int64{1, 3}},
		{model.KindRestaurant, "R2", []int64{2}},
		{model.KindAddress, "5", []int64{1, 2}},
		{model.KindAddressVersion, "5_1", []int64{1}},
		{model.KindAddressVersion, "5_2", []int64{2}},
		{model.KindAddressVersion, "6_1", []int64{3}},
		{model.KindPayment, "TXN2", []int64{2}},
		{model.KindOrder, "3", []int64{3}},
		{model.KindOffer, "1", []int64{1}},
	}
	for _, c := range cases {
		got, err := ix.OrderIDs(c.kind, c.key)
		require.NoError(t, err, "%s %s", c.kind, c.key)
		assert.Equal(t, c.want, got, "%s %s", c.kind, c.key)
	}

	for _, kind := range []model.Kind{model.KindItem, model.KindRestaurant, model.KindAddress,
		model.KindAddressVersion, model.KindPayment, model.KindOrder} {
		_, err := ix.OrderIDs(kind, "missing")
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf), "kind %s", kind)
		assert.Equal(t, kind, nf.Kind)
		assert.Equal(t, "missing", nf.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestIndex_NumericAndStringIDsMeet(t *testing.T) {
	a := fixture.Order(fixture.Spec{OrderID: 1, ItemIDs: []string{"X"}})
	a["restaurant_id"] = json.Number("777")
	model.Map(model.List(a["order_items"])[0])["item_id"] = 42.0
	b := fixture.Order(fixture.Spec{OrderID: 2, ItemIDs: []string{"X"}})
	b["order_id"] = "2"
	b["restaurant_id"] = "777"
	model.Map(model.List(b["order_items"])[0])["item_id"] = "42"

	ix, err := Build([]model.RawOrder{a, b})
	require.NoError(t, err)

	ids, err := ix.OrderIDs(model.KindRestaurant, "777")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	ids, err = ix.OrderIDs(model.KindItem, "42")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	_, err = ix.Order(2)
	assert.NoError(t, err)
}

func TestBuild_DuplicateOrderFirstWins(t *testing.T) {
	first := fixture.Order(fixture.Spec{OrderID: 9, RestaurantID: "R1"})
	second := fixture.Order(fixture.Spec{OrderID: 9, RestaurantID: "R2"})
	ix, err := Build([]model.RawOrder{first, second})
	require.NoError(t, err)

	assert.Equal(t, []int64{9}, ix.IDs())
	rec, err := ix.Order(9)
	require.NoError(t, err)
	assert.Equal(t, "R1", rec["restaurant_id"])
	_, err = ix.ByRestaurant("R2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuild_DuplicateTransactionFirstOwner(t *testing.T) {
	ix := build(t,
		fixture.Spec{OrderID: 1, TransactionID: "T"},
		fixture.Spec{OrderID: 2, TransactionID: "T"},
	)
	rec, err := ix.ByTransaction("T")
	require.NoError(t, err)
	id, _ := rec.OrderID()
	assert.Equal(t, int64(1), id)
}

func TestBuild_RejectsRecordWithoutOrderID(t *testing.T) {
	_, err := Build([]model.RawOrder{{"customer_id": "x"}})
	assert.Error(t, err)

	blank := fixture.Order(fixture.Spec{OrderID: 1, ItemIDs: []string{"X"}})
	blank["order_id"] = ""
	_, err = Build([]model.RawOrder{blank})
	assert.Error(t, err)
}

func TestFind_Dispatch(t *testing.T) {
	ix := build(t, fixture.Spec{OrderID: 5, ItemIDs: []string{"I9"}, AddressID: "8", AddressVersion: 3})

	for _, c := range []struct {
		kind model.Kind
		key  string
	}{
		{model.KindOrder, "5"},
		{model.KindOffer, "5"},
		{model.KindItem, "I9"},
		{model.KindRestaurant, "R1"},
		{model.KindAddress, "8"},
		{model.KindAddressVersion, "8_3"},
		{model.KindPayment, "TXN5"},
	} {
		rec, err := ix.Find(c.kind, c.key)
		require.NoError(t, err, c.kind.String())
		id, _ := rec.OrderID()
		assert.Equal(t, int64(5), id)
	}

	_, err := ix.ByAddressVersion("8", "3")
	assert.NoError(t, err)
	_, err = ix.Find(model.Kind(99), "5")
	assert.Error(t, err)
}

func TestBuildWith_RecordsMetrics(t *testing.T) {
	m := metrics.NewRegistry()
	_, err := BuildWith(fixture.Orders(10, 4), m)
	require.NoError(t, err)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.IndexOrders))
}
