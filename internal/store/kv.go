package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"ambrosial/internal/model"
)

// Key layout shared by the KV backends:
//
//	o/<order id>  -> sequence number, marks the id as stored
//	s/<seq %020d> -> record JSON, iterated in save order
//	m/seq         -> last sequence number issued
var (
	orderPrefix = []byte("o/")
	seqPrefix   = []byte("s/")
	seqCounter  = []byte("m/seq")
)

func orderKey(id string) []byte { return append(append([]byte(nil), orderPrefix...), id...) }

func seqKey(seq int64) []byte {
	return append(append([]byte(nil), seqPrefix...), fmt.Sprintf("%020d", seq)...)
}

// prefixEnd is the first key after every key carrying prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

func encodeRecord(r model.RawOrder) ([]byte, error) { return json.Marshal(r) }

func decodeRecord(val []byte) (model.RawOrder, error) {
	dec := json.NewDecoder(bytes.NewReader(val))
	dec.UseNumber()
	var r model.RawOrder
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	return r, nil
}

func parseSeq(val []byte) (int64, error) { return strconv.ParseInt(string(val), 10, 64) }

// kvWrite is one pending record of a save.
type kvWrite struct {
	id     string
	seq    int64
	record []byte
}

// planWrites picks the records of incoming whose ids fail exists, numbering
// them after last.
func planWrites(incoming []model.RawOrder, last int64, exists func(id string) (bool, error)) ([]kvWrite, []model.RawOrder, error) {
	var (
		writes []kvWrite
		added  []model.RawOrder
		batch  = map[string]struct{}{}
	)
	for i, r := range incoming {
		id, ok := r.Key()
		if !ok {
			return nil, nil, fmt.Errorf("record %d has no order_id", i)
		}
		if _, dup := batch[id]; dup {
			continue
		}
		batch[id] = struct{}{}
		found, err := exists(id)
		if err != nil {
			return nil, nil, err
		}
		if found {
			continue
		}
		val, err := encodeRecord(r)
		if err != nil {
			return nil, nil, fmt.Errorf("encode order %s: %w", id, err)
		}
		last++
		writes = append(writes, kvWrite{id: id, seq: last, record: val})
		added = append(added, r)
	}
	return writes, added, nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
