package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"ambrosial/internal/model"
)

type codec interface {
	encode(records []model.RawOrder) ([]byte, error)
	decode(data []byte) ([]model.RawOrder, error)
}

// FileStore keeps the whole record list in one file.
type FileStore struct {
	path   string
	format Format
	codec  codec
}

// NewJSONStore stores records as an indented JSON array.
func NewJSONStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path), format: FormatJSON, codec: jsonCodec{}}
}

// NewBinaryStore stores records as a zstd-compressed protobuf ListValue.
func NewBinaryStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path), format: FormatBinary, codec: binaryCodec{}}
}

func (s *FileStore) Format() Format   { return s.format }
func (s *FileStore) Location() string { return s.path }

// Save treats a missing or unreadable file as empty and writes it fresh.
func (s *FileStore) Save(records []model.RawOrder) (SaveResult, error) {
	existing, err := s.read()
	fresh := err != nil
	if fresh {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Str("format", string(s.format)).
				Msg("stored orders unreadable, writing fresh")
		}
		existing = nil
	}
	merged, added, err := merge(existing, records)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", s.path, err)
	}
	if !fresh && len(added) == 0 {
		return SaveResult{Total: len(merged)}, nil
	}
	if merged == nil {
		merged = []model.RawOrder{}
	}
	data, err := s.codec.encode(merged)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %s: encode: %w", s.path, err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", s.path, err)
	}
	log.Debug().Str("path", s.path).Int("added", len(added)).Int("total", len(merged)).Msg("orders saved")
	return SaveResult{Added: added, Total: len(merged)}, nil
}

func (s *FileStore) Load() ([]model.RawOrder, error) {
	records, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStore) read() ([]model.RawOrder, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	records, err := s.codec.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.format, err)
	}
	return records, nil
}

// writeFileAtomic replaces path only once the new content is fully on disk.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
