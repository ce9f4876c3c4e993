package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CSVStore keeps the table in a local delimited file
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore creates a store backed by path. The file is created on the
// first write.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Read implements Store. A missing file is an empty store.
func (s *CSVStore) Read(ctx context.Context) ([][]string, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *CSVStore) read() ([][]string, []string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csv store: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	headers, rows, err := readCSV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("csv store: read %s: %w", s.path, err)
	}
	return rows, headers, nil
}

// WriteHeaders implements Store. Existing data rows are kept below the
// new header row.
func (s *CSVStore) WriteHeaders(ctx context.Context, headers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, _, err := s.read()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csv store: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".store-*.csv")
	if err != nil {
		return fmt.Errorf("csv store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	w := csv.NewWriter(tmp)
	if err := w.Write(headers); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv store: write headers: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv store: write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv store: close: %w", err)
	}
	return os.Rename(tmpName, s.path)
}

// Append implements Store
func (s *CSVStore) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("csv store: create dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("csv store: open: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv store: append: %w", err)
	}
	return f.Close()
}

// Close implements Store
func (s *CSVStore) Close() error { return nil }
