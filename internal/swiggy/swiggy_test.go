package swiggy

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambrosial/internal/changelog"
	"ambrosial/internal/fetch"
	"ambrosial/internal/fixture"
	"ambrosial/internal/index"
	"ambrosial/internal/manifest"
	"ambrosial/internal/metrics"
	"ambrosial/internal/model"
	"ambrosial/internal/normalize"
	"ambrosial/internal/store"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	os.Exit(m.Run())
}

// fakeFetcher hands out one prepared batch per FetchAll call.
type fakeFetcher struct {
	batches      [][]model.RawOrder
	err          error
	accountCalls int
}

func (f *fakeFetcher) FetchAll(ctx context.Context, s fetch.Session, opts ...fetch.Option) ([]model.RawOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeFetcher) FetchAccountInfo(ctx context.Context, s fetch.Session) (fetch.AccountInfo, error) {
	f.accountCalls++
	return fetch.AccountInfo{CustomerID: "C42", Name: "Asha"}, nil
}

func loaded(t *testing.T, ddav bool, batch ...model.RawOrder) *Swiggy {
	t.Helper()
	s := New(Options{DDAV: ddav, Fetcher: &fakeFetcher{batches: [][]model.RawOrder{batch}}})
	n, err := s.Fetch(context.Background(), fetch.Session{})
	require.NoError(t, err)
	require.Equal(t, len(batch), n)
	return s
}

func TestEndToEnd_ItemFromFirstOwner(t *testing.T) {
	s := loaded(t, false,
		fixture.Order(fixture.Spec{OrderID: 101, ItemIDs: []string{"I1", "I2"}}),
		fixture.Order(fixture.Spec{OrderID: 102, ItemIDs: []string{"I1"}}),
	)

	item, err := s.GetItem("I1")
	require.NoError(t, err)
	assert.Equal(t, int64(101), item.OrderID)
	assert.Equal(t, "Item I1", item.Name)

	items, err := s.GetItems()
	require.NoError(t, err)
	assert.Len(t, items, 3)

	orders, err := s.GetOrders()
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(101), orders[0].OrderID)
	assert.Equal(t, int64(102), orders[1].OrderID)
}

func TestGetAddress_DDAV(t *testing.T) {
	batch := []model.RawOrder{
		fixture.Order(fixture.Spec{OrderID: 1, AddressID: "5", AddressVersion: 1}),
		fixture.Order(fixture.Spec{OrderID: 2, AddressID: "5", AddressVersion: 2}),
	}
	s := loaded(t, true, batch...)

	v1, err := s.GetAddress("5", WithVersion(1))
	require.NoError(t, err)
	v2, err := s.GetAddress("5", WithVersion(2))
	require.NoError(t, err)
	assert.False(t, v1.Equal(v2))
	assert.Equal(t, "5_1", v1.Key())
	assert.Equal(t, "5_2", v2.Key())

	_, err = s.GetAddress("5")
	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce))

	_, err = s.GetAddress("5", WithVersion(3))
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestGetAddress_NoDDAV(t *testing.T) {
	s := loaded(t, false,
		fixture.Order(fixture.Spec{OrderID: 1, AddressID: "5", AddressVersion: 1}),
		fixture.Order(fixture.Spec{OrderID: 2, AddressID: "5", AddressVersion: 2}),
	)

	a, err := s.GetAddress("5")
	require.NoError(t, err)
	assert.Equal(t, "5", a.Key())

	all, err := s.GetAddresses()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Equal(all[1]))
	assert.True(t, a.Equal(all[1]))

	_, err = s.GetAddress("5", WithVersion(1))
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Error(), "ddav is disabled")
}

func TestGetters_NotFound(t *testing.T) {
	s := loaded(t, false, fixture.Orders(10, 2)...)

	_, err := s.GetOrder(999)
	assert.ErrorIs(t, err, index.ErrNotFound)
	_, err = s.GetItem("nope")
	assert.ErrorIs(t, err, index.ErrNotFound)
	_, err = s.GetRestaurant("nope")
	assert.ErrorIs(t, err, index.ErrNotFound)
	_, err = s.GetAddress("nope")
	assert.ErrorIs(t, err, index.ErrNotFound)
	_, err = s.GetOffer(999)
	assert.ErrorIs(t, err, index.ErrNotFound)

	_, err = s.GetPayment("nope")
	var nf *index.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, model.KindPayment, nf.Kind)
	assert.Equal(t, "nope", nf.ID)
}

func TestGetters_NotLoaded(t *testing.T) {
	s := New(Options{Fetcher: &fakeFetcher{}})

	_, err := s.GetOrder(1)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = s.GetItems()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = s.Records()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = s.Save(context.Background(), store.NewJSONStore(filepath.Join(t.TempDir(), "orders.json")))
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Equal(t, 0, s.Len())
}

func TestGetOrder_OnTimeAndPayments(t *testing.T) {
	s := loaded(t, false,
		fixture.Order(fixture.Spec{OrderID: 7, ItemIDs: []string{"I1"}, SLADifference: -30}),
		fixture.Order(fixture.Spec{OrderID: 6, ItemIDs: []string{"I1"}}),
	)

	late, err := s.GetOrder(7)
	require.NoError(t, err)
	assert.False(t, late.OnTime)
	onTime, err := s.GetOrder(6)
	require.NoError(t, err)
	assert.True(t, onTime.OnTime)

	p, err := s.GetPayment("TXN6")
	require.NoError(t, err)
	assert.Equal(t, int64(6), p.OrderID)
	assert.Equal(t, "captured", model.Map(p.PaymentMeta["extPGResponse"])["status"])

	payments, err := s.GetPayments()
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	r, err := s.GetRestaurant("R1")
	require.NoError(t, err)
	assert.Equal(t, "Restaurant R1", r.Name)
	rs, err := s.GetRestaurants()
	require.NoError(t, err)
	assert.Len(t, rs, 2)
}

func TestOffers_EmptySentinel(t *testing.T) {
	s := loaded(t, false,
		fixture.Order(fixture.Spec{OrderID: 2, WithOffer: true}),
		fixture.Order(fixture.Spec{OrderID: 1}),
	)

	none, err := s.GetOffer(1)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	offers, err := s.GetOffers()
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "OFF2", offers[0].ID)
	assert.Equal(t, "TRYNEW", offers[0].CouponApplied)
}

func TestFetch_FailureKeepsPreviousRecords(t *testing.T) {
	ff := &fakeFetcher{batches: [][]model.RawOrder{fixture.Orders(5, 3)}}
	s := New(Options{Fetcher: ff})
	_, err := s.Fetch(context.Background(), fetch.Session{})
	require.NoError(t, err)

	ff.err = &fetch.TransportError{URL: "http://x", Page: 2, StatusCode: 502}
	_, err = s.Fetch(context.Background(), fetch.Session{})
	var te *fetch.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 3, s.Len())
}

func TestFetch_MalformedRecordAbortsBatch(t *testing.T) {
	bad := fixture.Order(fixture.Spec{OrderID: 9})
	meta := model.Map(model.Map(model.List(bad["payment_transactions"])[0])["paymentMeta"])
	meta["extPGResponse"] = "{'status': captured"

	s := New(Options{Fetcher: &fakeFetcher{batches: [][]model.RawOrder{{fixture.Order(fixture.Spec{OrderID: 10}), bad}}}})
	_, err := s.Fetch(context.Background(), fetch.Session{})
	var mre *normalize.MalformedRecordError
	require.True(t, errors.As(err, &mre))
	assert.Equal(t, "9", mre.OrderID)
	assert.Equal(t, 0, s.Len())
}

func TestRaw_ReturnsCopies(t *testing.T) {
	s := loaded(t, false, fixture.Orders(3, 1)...)
	raw := s.Raw()
	raw[0]["restaurant_id"] = "mutated"

	r, err := s.GetRestaurant("R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", r.ID)
	assert.Equal(t, "R1", s.Raw()[0]["restaurant_id"])

	recs, err := s.Records()
	require.NoError(t, err)
	assert.Equal(t, []any{}, recs[0]["offers_data"])
}

func TestAccountInfo_Cached(t *testing.T) {
	ff := &fakeFetcher{}
	s := New(Options{Fetcher: ff})
	for i := 0; i < 3; i++ {
		info, err := s.AccountInfo(context.Background(), fetch.Session{})
		require.NoError(t, err)
		assert.Equal(t, "Asha", info.Name)
	}
	assert.Equal(t, 1, ff.accountCalls)
}

func readChangelog(t *testing.T, path string) []changelog.Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []changelog.Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for sc.Scan() {
		var e changelog.Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestSave_ChangelogManifestAndReload(t *testing.T) {
	dir := t.TempDir()
	cl, err := changelog.NewFileWriter(dir, changelog.DefaultFile)
	require.NoError(t, err)
	mf := manifest.NewFilesystemManifest(dir)
	reg := metrics.NewRegistry()
	ff := &fakeFetcher{batches: [][]model.RawOrder{
		fixture.Orders(103, 3),
		append(fixture.Orders(104, 2), fixture.Orders(102, 1)...),
	}}
	s := New(Options{
		Fetcher:   ff,
		Changelog: cl,
		Manifest:  mf,
		Metrics:   reg,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	})
	st := store.NewBinaryStore(filepath.Join(dir, "orders.pb.zst"))
	ctx := context.Background()

	_, err = s.Fetch(ctx, fetch.Session{})
	require.NoError(t, err)
	res, err := s.Save(ctx, st)
	require.NoError(t, err)
	assert.Len(t, res.Added, 3)

	_, err = s.Fetch(ctx, fetch.Session{})
	require.NoError(t, err)
	res, err = s.Save(ctx, st)
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, 4, res.Total)

	entries := readChangelog(t, cl.Path())
	require.Len(t, entries, 4)
	assert.Equal(t, "104", entries[3].OrderID)
	assert.Equal(t, int64(4), entries[3].Seq)
	assert.Equal(t, int64(1700000000), entries[3].TS)

	m, err := mf.ReadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.Location(), m.Location)
	assert.Equal(t, "binary", m.Format)
	assert.Equal(t, 4, m.OrderCount)
	assert.Equal(t, 1, m.Added)
	assert.Equal(t, int64(4), m.LastSeq)

	assert.Equal(t, 4.0, testutil.ToFloat64(reg.StoreAdded))
	assert.Equal(t, 4.0, testutil.ToFloat64(reg.StoreOrders))
	assert.Equal(t, 4.0, testutil.ToFloat64(reg.ChangelogAppended))

	fresh := New(Options{Fetcher: &fakeFetcher{}})
	reopened, err := fresh.LoadLatest(ctx, mf)
	require.NoError(t, err)
	assert.Equal(t, st.Location(), reopened.Location())
	assert.Equal(t, 4, fresh.Len())
	o, err := fresh.GetOrder(104)
	require.NoError(t, err)
	assert.Equal(t, int64(104), o.OrderID)
}

func TestSave_UnchangedStoreWritesNoChangelog(t *testing.T) {
	dir := t.TempDir()
	cl, err := changelog.NewFileWriter(dir, changelog.DefaultFile)
	require.NoError(t, err)
	s := loaded(t, false, fixture.Orders(3, 2)...)
	s.changelog = cl
	st := store.NewJSONStore(filepath.Join(dir, "orders.json"))

	for i := 0; i < 2; i++ {
		_, err := s.Save(context.Background(), st)
		require.NoError(t, err)
	}
	assert.Len(t, readChangelog(t, cl.Path()), 2)
}

func TestSave_StoreErrorNamesLocationOnce(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	st := store.NewJSONStore(filepath.Join(blocker, "orders.json"))

	s := loaded(t, false, fixture.Orders(3, 1)...)
	_, err := s.Save(context.Background(), st)
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "save "), err.Error())
	assert.Equal(t, 1, strings.Count(err.Error(), st.Location()), err.Error())
}

func TestFetch_BlankOrderIDRejected(t *testing.T) {
	blank := fixture.Order(fixture.Spec{OrderID: 1, ItemIDs: []string{"I1"}})
	blank["order_id"] = ""
	ff := &fakeFetcher{batches: [][]model.RawOrder{{fixture.Order(fixture.Spec{OrderID: 2, ItemIDs: []string{"I2"}}), blank}}}
	s := New(Options{Fetcher: ff})

	_, err := s.Fetch(context.Background(), fetch.Session{})
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
	_, err = s.GetOrder(0)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestGetters_TrimCallerIDs(t *testing.T) {
	s := loaded(t, false, fixture.Orders(3, 1)...)

	item, err := s.GetItem(" I3 ")
	require.NoError(t, err)
	assert.Equal(t, "I3", item.ItemID)

	p, err := s.GetPayment("TXN3\t")
	require.NoError(t, err)
	assert.Equal(t, "TXN3", p.TransactionID)

	r, err := s.GetRestaurant(" R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", r.ID)

	a, err := s.GetAddress("5 ")
	require.NoError(t, err)
	assert.Equal(t, "5", a.ID)

	_, err = s.GetItem("   ")
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestLoad_MissingStore(t *testing.T) {
	s := New(Options{Fetcher: &fakeFetcher{}})
	err := s.Load(store.NewJSONStore(filepath.Join(t.TempDir(), "orders.json")))
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestConcurrentReadsDuringFetch(t *testing.T) {
	const rounds = 50
	batches := make([][]model.RawOrder, 0, rounds+1)
	for i := 0; i <= rounds; i++ {
		batches = append(batches, fixture.Orders(100, 2+i%2))
	}
	ff := &fakeFetcher{batches: batches}
	s := New(Options{Fetcher: ff})
	_, err := s.Fetch(context.Background(), fetch.Session{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := s.Fetch(context.Background(), fetch.Session{}); err != nil {
				t.Errorf("fetch: %v", err)
				return
			}
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				orders, err := s.GetOrders()
				if err != nil {
					t.Errorf("get orders: %v", err)
					return
				}
				if n := len(orders); n != 2 && n != 3 {
					t.Errorf("saw %d orders", n)
					return
				}
				if _, err := s.GetOrder(100); err != nil {
					t.Errorf("get order: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
