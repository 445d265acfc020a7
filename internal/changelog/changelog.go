// Package changelog records every order a save newly persisted, so a lost
// store can be rebuilt by replaying the log.
package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"

	"ambrosial/internal/model"
)

// DefaultFile is the JSONL log name inside the data directory.
const DefaultFile = "orders.changelog.jsonl"

type Entry struct {
	OrderID string         `json:"orderId"`
	Seq     int64          `json:"seq"`
	TS      int64          `json:"ts"`
	Record  model.RawOrder `json:"record"`
}

// Entries numbers added records from firstSeq on. Records without an order id
// are skipped; stores never report those as added.
func Entries(added []model.RawOrder, firstSeq int64, now time.Time) []Entry {
	out := make([]Entry, 0, len(added))
	seq := firstSeq
	for _, r := range added {
		id, ok := r.Key()
		if !ok {
			continue
		}
		out = append(out, Entry{OrderID: id, Seq: seq, TS: now.Unix(), Record: r})
		seq++
	}
	return out
}

type Writer interface {
	Append(ctx context.Context, entries ...Entry) error
}

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(ctx context.Context, entries ...Entry) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Append(ctx, entries...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every underlying writer that holds a connection.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

type FileWriter struct {
	path string
}

func NewFileWriter(dir string, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, filename)}, nil
}

func (w *FileWriter) Path() string { return w.path }

func (w *FileWriter) Append(_ context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			f.Close()
			return fmt.Errorf("encode order %s: %w", entries[i].OrderID, err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync: %w", err)
	}
	return f.Close()
}

// KafkaWriter publishes entries keyed by order id, so a compacted topic keeps
// one record per order.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewKafkaWriter(brokers []string, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}

func (k *KafkaWriter) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(entries))
	for i := range entries {
		b, err := json.Marshal(&entries[i])
		if err != nil {
			return fmt.Errorf("marshal order %s: %w", entries[i].OrderID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(entries[i].OrderID), Value: b})
	}
	return k.writer.WriteMessages(ctx, msgs...)
}

func (k *KafkaWriter) Close() error {
	if c, ok := k.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
