package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"

	"ambrosial/internal/model"
)

const badgerManifest = "MANIFEST"

// BadgerStore is the Badger twin of PebbleStore, same key layout.
type BadgerStore struct {
	dir string
}

func NewBadgerStore(dir string) *BadgerStore { return &BadgerStore{dir: filepath.Clean(dir)} }

func (b *BadgerStore) Format() Format   { return FormatBadger }
func (b *BadgerStore) Location() string { return b.dir }

func (b *BadgerStore) open(create bool) (*badger.DB, error) {
	if !create {
		if err := requireDir(b.dir); err != nil {
			return nil, err
		}
		if _, err := os.Stat(filepath.Join(b.dir, badgerManifest)); err != nil {
			return nil, fmt.Errorf("no badger database: %w", err)
		}
	}
	opts := badger.DefaultOptions(b.dir).
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return db, nil
}

func (b *BadgerStore) Save(records []model.RawOrder) (SaveResult, error) {
	db, err := b.open(true)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", b.dir, err)
	}
	defer db.Close()

	var (
		last   int64
		writes []kvWrite
		added  []model.RawOrder
	)
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seqCounter)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if last, err = parseSeq(v); err != nil {
				return err
			}
		}
		writes, added, err = planWrites(records, last, func(id string) (bool, error) {
			_, err := txn.Get(orderKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return false, nil
			}
			return err == nil, err
		})
		return err
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", b.dir, err)
	}
	if len(writes) > 0 {
		wb := db.NewWriteBatch()
		defer wb.Cancel()
		for _, w := range writes {
			if err := wb.Set(seqKey(w.seq), w.record); err != nil {
				return SaveResult{}, fmt.Errorf("save %s: %w", b.dir, err)
			}
			if err := wb.Set(orderKey(w.id), []byte(strconv.FormatInt(w.seq, 10))); err != nil {
				return SaveResult{}, fmt.Errorf("save %s: %w", b.dir, err)
			}
		}
		if err := wb.Set(seqCounter, []byte(strconv.FormatInt(last+int64(len(writes)), 10))); err != nil {
			return SaveResult{}, fmt.Errorf("save %s: %w", b.dir, err)
		}
		if err := wb.Flush(); err != nil {
			return SaveResult{}, fmt.Errorf("save %s: flush: %w", b.dir, err)
		}
	}
	return SaveResult{Added: added, Total: int(last) + len(writes)}, nil
}

func (b *BadgerStore) Load() ([]model.RawOrder, error) {
	db, err := b.open(false)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", b.dir, err)
	}
	defer db.Close()

	out := []model.RawOrder{}
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = seqPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(seqPrefix); it.ValidForPrefix(seqPrefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("key %s: %w", it.Item().Key(), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", b.dir, err)
	}
	return out, nil
}
