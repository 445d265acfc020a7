package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"ambrosial/internal/model"
)

type jsonCodec struct{}

func (jsonCodec) encode(records []model.RawOrder) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (jsonCodec) decode(data []byte) ([]model.RawOrder, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []model.RawOrder
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	if records == nil {
		return nil, fmt.Errorf("not a list of orders")
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after order list")
	}
	return records, nil
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if zstdErr != nil {
			return
		}
		// 0 uses GOMAXPROCS.
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdEnc, zstdDec, zstdErr
}

// binaryCodec writes the records as one google.protobuf.ListValue of Structs,
// zstd-compressed. Numbers come back as float64, which holds every order id
// the endpoint issues exactly.
type binaryCodec struct{}

func (binaryCodec) encode(records []model.RawOrder) ([]byte, error) {
	enc, _, err := zstdCoders()
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, len(records))
	for _, r := range records {
		items = append(items, plain(r))
	}
	list, err := structpb.NewList(items)
	if err != nil {
		return nil, err
	}
	raw, err := proto.Marshal(list)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

func (binaryCodec) decode(data []byte) ([]model.RawOrder, error) {
	_, dec, err := zstdCoders()
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	var list structpb.ListValue
	if err := proto.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("protobuf: %w", err)
	}
	out := make([]model.RawOrder, 0, len(list.GetValues()))
	for i, v := range list.AsSlice() {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d is %T, not an order", i, v)
		}
		out = append(out, model.RawOrder(m))
	}
	return out, nil
}

// plain rewrites named container types into the shapes structpb accepts.
func plain(v any) any {
	switch t := v.(type) {
	case model.RawOrder:
		return plain(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return plainInt(i)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int64:
		return plainInt(t)
	case int:
		return plainInt(int64(t))
	}
	return v
}

// structpb numbers are float64. Integers past 2^53 would round, so they are
// kept as decimal strings, which model.AsInt and model.IDString still read.
func plainInt(i int64) any {
	if i > maxExactInt || i < -maxExactInt {
		return strconv.FormatInt(i, 10)
	}
	return float64(i)
}

const maxExactInt = 1 << 53
