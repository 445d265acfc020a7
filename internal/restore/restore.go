// Package restore rebuilds a raw order store from the changelog.
package restore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ambrosial/internal/changelog"
	"ambrosial/internal/manifest"
	"ambrosial/internal/metrics"
	"ambrosial/internal/model"
	"ambrosial/internal/store"
)

const maxLine = 16 << 20

// Result is the outcome of one replay. Records holds each order id once, in
// log order.
type Result struct {
	Records []model.RawOrder
	Applied int
	Skipped int
	Bytes   int64
	LastSeq int64
	// LastOffset is the partition offset of the last consumed message, -1
	// for file replays.
	LastOffset int64
}

type replay struct {
	res  Result
	seen map[string]struct{}
}

func newReplay() *replay {
	return &replay{res: Result{LastOffset: -1}, seen: map[string]struct{}{}}
}

// apply decodes one log entry. Entries at or below fromSeq are ignored without
// counting; a repeated order id counts as skipped.
func (r *replay) apply(raw []byte, fromSeq int64, where string) error {
	r.res.Bytes += int64(len(raw))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var e changelog.Entry
	if err := dec.Decode(&e); err != nil {
		return fmt.Errorf("unmarshal %s: %w", where, err)
	}
	if e.Record == nil {
		return fmt.Errorf("%s: entry for order %s has no record", where, e.OrderID)
	}
	id, ok := e.Record.Key()
	if !ok {
		return fmt.Errorf("%s: record has no order_id", where)
	}
	if e.Seq > r.res.LastSeq {
		r.res.LastSeq = e.Seq
	}
	if e.Seq <= fromSeq {
		return nil
	}
	if _, dup := r.seen[id]; dup {
		r.res.Skipped++
		return nil
	}
	r.seen[id] = struct{}{}
	r.res.Records = append(r.res.Records, e.Record)
	r.res.Applied++
	return nil
}

// ReplayFile reads a JSONL changelog. A malformed line aborts the replay.
func ReplayFile(path string, fromSeq int64) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open changelog: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLine)
	r := newReplay()
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if err := r.apply(scanner.Bytes(), fromSeq, fmt.Sprintf("line %d", lineNum)); err != nil {
			return r.res, err
		}
	}
	if err := scanner.Err(); err != nil {
		return r.res, fmt.Errorf("scan changelog: %w", err)
	}
	return r.res, nil
}

// MessageReader is the part of kafka.Reader a replay needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NewKafkaReader reads partition 0 of topic from the start.
func NewKafkaReader(brokers []string, topic string) MessageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
}

// ReplayKafka consumes entries until io.EOF or until ctx is done; the topic
// has no end marker, so callers bound the replay with a deadline.
func ReplayKafka(ctx context.Context, rd MessageReader, fromSeq int64) (Result, error) {
	defer rd.Close()
	r := newReplay()
	for idx := 1; ; idx++ {
		m, err := rd.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				break
			}
			return r.res, fmt.Errorf("read kafka: %w", err)
		}
		if err := r.apply(m.Value, fromSeq, fmt.Sprintf("message %d", idx)); err != nil {
			return r.res, err
		}
		r.res.LastOffset = m.Offset
	}
	return r.res, nil
}

// HeadOffset returns the offset of the newest message in partition 0 of
// topic, or -1 when the topic is empty.
func HeadOffset(ctx context.Context, broker, topic string) (int64, error) {
	conn, err := kafka.DialLeader(ctx, "tcp", broker, topic, 0)
	if err != nil {
		return -1, fmt.Errorf("dial leader: %w", err)
	}
	defer conn.Close()
	off, err := conn.ReadLastOffset()
	if err != nil {
		return -1, fmt.Errorf("read last offset: %w", err)
	}
	return off - 1, nil
}

// Restorer merges a replay into the store the latest manifest points at.
type Restorer struct {
	manifests manifest.Reader
	metrics   *metrics.Registry
}

func NewRestorer(mr manifest.Reader, m *metrics.Registry) *Restorer {
	return &Restorer{manifests: mr, metrics: m}
}

// Target opens the store named by the latest manifest.
func (r *Restorer) Target(ctx context.Context) (store.Store, manifest.Manifest, error) {
	m, err := r.manifests.ReadLatest(ctx)
	if err != nil {
		return nil, manifest.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	format, err := store.ParseFormat(m.Format)
	if err != nil {
		return nil, m, err
	}
	st, err := store.Open(format, m.Location)
	if err != nil {
		return nil, m, err
	}
	return st, m, nil
}

// Apply saves the replayed records into st. Orders already stored are left
// alone, so applying the same replay twice changes nothing.
func (r *Restorer) Apply(st store.Store, res Result) (store.SaveResult, error) {
	start := time.Now()
	saved, err := st.Save(res.Records)
	if err != nil {
		return store.SaveResult{}, fmt.Errorf("restore into %s: %w", st.Location(), err)
	}
	if r.metrics != nil {
		r.metrics.ReplayApplied.Add(float64(len(saved.Added)))
		r.metrics.ReplaySkipped.Add(float64(res.Skipped + len(res.Records) - len(saved.Added)))
		r.metrics.ReplayBytes.Add(float64(res.Bytes))
		r.metrics.TTRSec.Set(time.Since(start).Seconds())
	}
	log.Info().Str("path", st.Location()).Int("replayed", len(res.Records)).
		Int("added", len(saved.Added)).Int("total", saved.Total).Msg("restore complete")
	return saved, nil
}
