package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/pebble"

	"ambrosial/internal/model"
)

// PebbleStore keeps one record per key in a Pebble directory. The database
// is opened for the duration of each call.
type PebbleStore struct {
	dir string
}

func NewPebbleStore(dir string) *PebbleStore { return &PebbleStore{dir: filepath.Clean(dir)} }

func (p *PebbleStore) Format() Format   { return FormatPebble }
func (p *PebbleStore) Location() string { return p.dir }

func pebbleOptions() *pebble.Options {
	return &pebble.Options{
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
		WALBytesPerSync:       1 << 20,
	}
}

func (p *PebbleStore) open(create bool) (*pebble.DB, error) {
	opts := pebbleOptions()
	if !create {
		if err := requireDir(p.dir); err != nil {
			return nil, err
		}
		opts.ErrorIfNotExists = true
	}
	db, err := pebble.Open(p.dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return db, nil
}

func (p *PebbleStore) Save(records []model.RawOrder) (SaveResult, error) {
	db, err := p.open(true)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", p.dir, err)
	}
	defer db.Close()

	last, err := pebbleSeq(db)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", p.dir, err)
	}
	writes, added, err := planWrites(records, last, func(id string) (bool, error) {
		_, closer, err := db.Get(orderKey(id))
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		_ = closer.Close()
		return true, nil
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", p.dir, err)
	}
	if len(writes) > 0 {
		b := db.NewBatch()
		for _, w := range writes {
			_ = b.Set(seqKey(w.seq), w.record, nil)
			_ = b.Set(orderKey(w.id), []byte(strconv.FormatInt(w.seq, 10)), nil)
		}
		_ = b.Set(seqCounter, []byte(strconv.FormatInt(last+int64(len(writes)), 10)), nil)
		if err := b.Commit(pebble.Sync); err != nil {
			_ = b.Close()
			return SaveResult{}, fmt.Errorf("save %s: commit: %w", p.dir, err)
		}
		_ = b.Close()
	}
	return SaveResult{Added: added, Total: int(last) + len(writes)}, nil
}

func pebbleSeq(db *pebble.DB) (int64, error) {
	v, closer, err := db.Get(seqCounter)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	return parseSeq(v)
}

func (p *PebbleStore) Load() ([]model.RawOrder, error) {
	db, err := p.open(false)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p.dir, err)
	}
	defer db.Close()

	it, err := db.NewIter(&pebble.IterOptions{LowerBound: seqPrefix, UpperBound: prefixEnd(seqPrefix)})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p.dir, err)
	}
	defer it.Close()
	out := []model.RawOrder{}
	for it.First(); it.Valid(); it.Next() {
		r, err := decodeRecord(it.Value())
		if err != nil {
			return nil, fmt.Errorf("load %s: key %s: %w", p.dir, it.Key(), err)
		}
		out = append(out, r)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("load %s: %w", p.dir, err)
	}
	return out, nil
}
