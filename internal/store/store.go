// Package store holds the tabular backends records are synchronized into.
// Every backend exposes the same row model: an optional header row followed
// by data rows of string cells. Rows are only ever appended.
package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/rightsprobe/internal/model"
)

// Store is a persistent table of rows
type Store interface {
	// Read returns every data row and the header row. A store with no
	// header row returns nil headers.
	Read(ctx context.Context) (rows [][]string, headers []string, err error)
	// WriteHeaders writes the header row of an empty store
	WriteHeaders(ctx context.Context, headers []string) error
	// Append adds rows after the existing ones, preserving their order
	Append(ctx context.Context, rows [][]string) error
	Close() error
}

// Backend names accepted by New
const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
	BackendCSV    = "csv"
	BackendMemory = "memory"
)

// New opens the backend selected by cfg.Backend
func New(ctx context.Context, cfg model.SyncConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendSheets, "":
		return NewSheetsStore(ctx, cfg.Sheets)
	case BackendSQLite:
		return OpenSQLiteStore(cfg.SQLitePath)
	case BackendCSV:
		return NewCSVStore(cfg.CSVPath), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// LoadCSVRecords reads an earlier CSV export back as row sources. The first
// line is the header; cells missing from short lines are empty.
func LoadCSVRecords(path string) ([]model.MapRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()

	headers, rows, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", path, err)
	}
	if headers == nil {
		return nil, fmt.Errorf("read export %s: no header row", path)
	}

	records := make([]model.MapRecord, 0, len(rows))
	for _, row := range rows {
		data := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				data[h] = row[i]
			} else {
				data[h] = ""
			}
		}
		records = append(records, model.MapRecord{Fields: headers, Data: data})
	}
	return records, nil
}

// readCSV splits a delimited file into its header and data rows
func readCSV(r io.Reader) (headers []string, rows [][]string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if headers == nil {
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			}
			headers = rec
			continue
		}
		rows = append(rows, rec)
	}
	return headers, rows, nil
}
