// Package store persists raw order records. Every backend merges by order id:
// a save appends only records whose id is not stored yet.
package store

import (
	"fmt"
	"strings"

	"ambrosial/internal/model"
)

type Format string

const (
	FormatJSON   Format = "json"
	FormatBinary Format = "binary"
	FormatPebble Format = "pebble"
	FormatBadger Format = "badger"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatBinary, FormatPebble, FormatBadger:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown store format %q", s)
}

// DefaultName is the file or directory name used when only a data directory
// is configured.
func (f Format) DefaultName() string {
	switch f {
	case FormatBinary:
		return "orders.pb.zst"
	case FormatPebble:
		return "orders.pebble"
	case FormatBadger:
		return "orders.badger"
	}
	return "orders.json"
}

type SaveResult struct {
	// Added holds the records this save appended, in input order.
	Added []model.RawOrder
	// Total is the number of records persisted after the save.
	Total int
}

type Store interface {
	Save(records []model.RawOrder) (SaveResult, error)
	Load() ([]model.RawOrder, error)
	Format() Format
	Location() string
}

func Open(format Format, path string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store: empty path")
	}
	switch format {
	case FormatJSON:
		return NewJSONStore(path), nil
	case FormatBinary:
		return NewBinaryStore(path), nil
	case FormatPebble:
		return NewPebbleStore(path), nil
	case FormatBadger:
		return NewBadgerStore(path), nil
	}
	return nil, fmt.Errorf("store: unknown format %q", format)
}

// merge appends to existing every incoming record whose order id is new,
// including ids repeated inside incoming.
func merge(existing, incoming []model.RawOrder) (merged, added []model.RawOrder, err error) {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, r := range existing {
		if k, ok := r.Key(); ok {
			seen[k] = struct{}{}
		}
	}
	merged = existing
	for i, r := range incoming {
		k, ok := r.Key()
		if !ok {
			return nil, nil, fmt.Errorf("record %d has no order_id", i)
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, r)
		added = append(added, r)
	}
	return merged, added, nil
}
