// Package swiggy is the entry point for callers: it fetches, loads and saves
// raw order history and serves typed entities from the rebuilt index.
package swiggy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ambrosial/internal/changelog"
	"ambrosial/internal/fetch"
	"ambrosial/internal/index"
	"ambrosial/internal/manifest"
	"ambrosial/internal/metrics"
	"ambrosial/internal/model"
	"ambrosial/internal/normalize"
	"ambrosial/internal/store"
)

// Fetcher is the part of fetch.Client the facade drives.
type Fetcher interface {
	FetchAll(ctx context.Context, s fetch.Session, opts ...fetch.Option) ([]model.RawOrder, error)
	FetchAccountInfo(ctx context.Context, s fetch.Session) (fetch.AccountInfo, error)
}

// Options configures a Swiggy. Only DDAV is required; a nil Fetcher means
// fetch.NewClient() with defaults, and nil sinks are skipped on Save.
type Options struct {
	DDAV      bool
	Fetcher   Fetcher
	Changelog changelog.Writer
	Manifest  manifest.Publisher
	Metrics   *metrics.Registry
	Now       func() time.Time
}

// Swiggy holds one raw record list and the index built over its canonical
// form. Both are replaced together on every Fetch or Load.
type Swiggy struct {
	ddav      bool
	fetcher   Fetcher
	changelog changelog.Writer
	manifest  manifest.Publisher
	metrics   *metrics.Registry
	now       func() time.Time

	mu      sync.RWMutex
	raw     []model.RawOrder
	index   *index.Index
	account *fetch.AccountInfo
}

func New(opts Options) *Swiggy {
	s := &Swiggy{
		ddav:      opts.DDAV,
		fetcher:   opts.Fetcher,
		changelog: opts.Changelog,
		manifest:  opts.Manifest,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
	if s.fetcher == nil {
		s.fetcher = fetch.NewClient(fetch.WithMetrics(opts.Metrics))
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// DDAV reports whether address versions are told apart.
func (s *Swiggy) DDAV() bool { return s.ddav }

// Fetch pulls the complete order history and replaces the loaded records.
// On any error the previously loaded records stay in place.
func (s *Swiggy) Fetch(ctx context.Context, session fetch.Session, opts ...fetch.Option) (int, error) {
	raw, err := s.fetcher.FetchAll(ctx, session, opts...)
	if err != nil {
		return 0, fmt.Errorf("fetch orders: %w", err)
	}
	if err := s.replace(raw); err != nil {
		return 0, err
	}
	return len(raw), nil
}

// Load replaces the loaded records with the contents of st.
func (s *Swiggy) Load(st store.Store) error {
	raw, err := st.Load()
	if err != nil {
		return err
	}
	if err := s.replace(raw); err != nil {
		return fmt.Errorf("load %s: %w", st.Location(), err)
	}
	log.Info().Str("path", st.Location()).Str("format", string(st.Format())).
		Int("orders", len(raw)).Msg("orders loaded")
	return nil
}

// LoadLatest loads the store named by the latest published manifest.
func (s *Swiggy) LoadLatest(ctx context.Context, r manifest.Reader) (store.Store, error) {
	m, err := r.ReadLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	format, err := store.ParseFormat(m.Format)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(format, m.Location)
	if err != nil {
		return nil, err
	}
	if err := s.Load(st); err != nil {
		return nil, err
	}
	return st, nil
}

// replace normalizes raw and rebuilds the index. Nothing is swapped in
// unless the whole batch is valid.
func (s *Swiggy) replace(raw []model.RawOrder) error {
	canonical, err := normalize.All(raw)
	if err != nil {
		return err
	}
	ix, err := index.BuildWith(canonical, s.metrics)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = raw
	s.index = ix
	s.mu.Unlock()
	return nil
}

// Save merges the loaded raw records into st. Newly persisted orders are
// appended to the changelog and a manifest pointing at st is published.
func (s *Swiggy) Save(ctx context.Context, st store.Store) (store.SaveResult, error) {
	s.mu.RLock()
	raw := s.raw
	s.mu.RUnlock()
	if raw == nil {
		return store.SaveResult{}, ErrNotLoaded
	}

	res, err := st.Save(raw)
	if err != nil {
		return store.SaveResult{}, err
	}
	if s.metrics != nil {
		s.metrics.StoreAdded.Add(float64(len(res.Added)))
		s.metrics.StoreOrders.Set(float64(res.Total))
	}
	log.Info().Str("path", st.Location()).Str("format", string(st.Format())).
		Int("added", len(res.Added)).Int("total", res.Total).Msg("orders saved")

	if s.changelog != nil && len(res.Added) > 0 {
		firstSeq := int64(res.Total-len(res.Added)) + 1
		entries := changelog.Entries(res.Added, firstSeq, s.now())
		if err := s.changelog.Append(ctx, entries...); err != nil {
			return res, fmt.Errorf("append changelog: %w", err)
		}
		if s.metrics != nil {
			s.metrics.ChangelogAppended.Add(float64(len(entries)))
		}
	}
	if s.manifest != nil {
		m := manifest.Manifest{
			Location:   st.Location(),
			Format:     string(st.Format()),
			OrderCount: res.Total,
			Added:      len(res.Added),
			LastSeq:    int64(res.Total),
		}
		if err := s.manifest.PublishLatest(ctx, m); err != nil {
			return res, fmt.Errorf("publish manifest: %w", err)
		}
	}
	return res, nil
}

// AccountInfo returns the profile of the session owner. The first successful
// answer is cached for the life of s.
func (s *Swiggy) AccountInfo(ctx context.Context, session fetch.Session) (fetch.AccountInfo, error) {
	s.mu.RLock()
	cached := s.account
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}
	info, err := s.fetcher.FetchAccountInfo(ctx, session)
	if err != nil {
		return fetch.AccountInfo{}, err
	}
	s.mu.Lock()
	s.account = &info
	s.mu.Unlock()
	return info, nil
}

// Len is the number of distinct loaded orders.
func (s *Swiggy) Len() int {
	ix, err := s.snapshot()
	if err != nil {
		return 0
	}
	return ix.Len()
}

// Raw returns a deep copy of the loaded records as fetched or loaded.
func (s *Swiggy) Raw() []model.RawOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.raw)
}

// Records returns a deep copy of the canonical records, one per order id.
func (s *Swiggy) Records() ([]model.RawOrder, error) {
	ix, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return cloneAll(ix.Records()), nil
}

func (s *Swiggy) snapshot() (*index.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, ErrNotLoaded
	}
	return s.index, nil
}

func cloneAll(records []model.RawOrder) []model.RawOrder {
	if records == nil {
		return nil
	}
	out := make([]model.RawOrder, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
