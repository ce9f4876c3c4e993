// Package sheetsync appends records to a Store, skipping rows whose
// identity key is already present.
package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/rightsprobe/internal/model"
	"github.com/ppiankov/rightsprobe/internal/store"
)

// ErrStoreAccess wraps any failure to read or write the store
var ErrStoreAccess = errors.New("store access failed")

// keySeparator joins the key field values of a row
const keySeparator = "|"

// DefaultKeyFields identifies a row by term and creation time
var DefaultKeyFields = []string{"term", "created_at"}

// Config configures a Syncer
type Config struct {
	KeyFields       []string
	CheckDuplicates bool
	Logger          *slog.Logger
}

// Result is the outcome of one Sync call
type Result struct {
	NewRows    [][]string
	Duplicates int
	Summary    model.SyncSummary
}

// Syncer reconciles records against a store
type Syncer struct {
	store     store.Store
	keyFields []string
	checkDups bool
	now       func() time.Time
	logger    *slog.Logger
}

// NewSyncer creates a Syncer writing into st
func NewSyncer(st store.Store, cfg Config) *Syncer {
	keys := cfg.KeyFields
	if len(keys) == 0 {
		keys = DefaultKeyFields
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:     st,
		keyFields: append([]string(nil), keys...),
		checkDups: cfg.CheckDuplicates,
		now:       time.Now,
		logger:    logger,
	}
}

// KeyFields returns the fields forming a row's identity
func (s *Syncer) KeyFields() []string {
	return append([]string(nil), s.keyFields...)
}

// SyncRecords is Sync for any slice of row sources
func SyncRecords[T model.RowSource](ctx context.Context, s *Syncer, records []T) (Result, error) {
	sources := make([]model.RowSource, len(records))
	for i, r := range records {
		sources[i] = r
	}
	return s.Sync(ctx, sources)
}

// Sync appends the records not yet present in the store. The store is read
// once and appended once; existing rows are never modified. On a store
// failure the summary carries zero counts and the error, and the returned
// error wraps ErrStoreAccess.
func (s *Syncer) Sync(ctx context.Context, records []model.RowSource) (Result, error) {
	res := Result{Summary: model.SyncSummary{
		TotalProcessed: len(records),
		Timestamp:      s.now().Format(model.TimestampLayout),
	}}

	if len(records) == 0 {
		res.Summary.Success = true
		return res, nil
	}

	rows, headers, err := s.store.Read(ctx)
	if err != nil {
		return s.fail(res, "read", err)
	}

	writeHeaders := len(headers) == 0
	if writeHeaders {
		headers = records[0].FieldNames()
		s.logger.Info("sync: empty store, bootstrapping headers", "columns", len(headers))
	}

	existing := make(map[string]struct{}, len(rows))
	if s.checkDups {
		positions := keyPositions(headers, s.keyFields)
		for _, row := range rows {
			existing[rowKey(row, positions)] = struct{}{}
		}
	}

	newRows, dups := Partition(records, headers, s.keyFields, existing, s.checkDups)
	s.logger.Info("sync: partitioned", "total", len(records), "new", len(newRows), "duplicates", dups)

	if writeHeaders {
		if err := s.store.WriteHeaders(ctx, headers); err != nil {
			return s.fail(res, "write headers", err)
		}
	}
	if len(newRows) > 0 {
		if err := s.store.Append(ctx, newRows); err != nil {
			return s.fail(res, "append", err)
		}
	}

	res.NewRows = newRows
	res.Duplicates = dups
	res.Summary.NewRecords = len(newRows)
	res.Summary.DuplicateRecords = dups
	res.Summary.Success = true
	return res, nil
}

func (s *Syncer) fail(res Result, op string, err error) (Result, error) {
	err = fmt.Errorf("%w: %s: %w", ErrStoreAccess, op, err)
	s.logger.Error("sync: store failure", "op", op, "error", err)
	res.Summary.NewRecords = 0
	res.Summary.DuplicateRecords = 0
	res.Summary.Success = false
	res.Summary.Error = err.Error()
	return res, err
}

// Partition splits records into rows to append and a duplicate count.
// A record is a duplicate iff its key is in existing, the keys already stored.
func Partition(records []model.RowSource, headers, keyFields []string, existing map[string]struct{}, checkDuplicates bool) ([][]string, int) {
	rows := make([][]string, 0, len(records))
	dups := 0
	for _, r := range records {
		if checkDuplicates {
			k := RecordKey(r, keyFields)
			if _, seen := existing[k]; seen {
				dups++
				continue
			}
		}
		rows = append(rows, model.Flatten(r, headers))
	}
	return rows, dups
}

// RecordKey builds a record's identity key from its string-coerced fields
func RecordKey(r model.RowSource, keyFields []string) string {
	values := r.Values()
	parts := make([]string, len(keyFields))
	for i, f := range keyFields {
		parts[i] = model.Stringify(values[f])
	}
	return strings.Join(parts, keySeparator)
}

// keyPositions maps key fields to header columns; -1 marks an unknown field
func keyPositions(headers, keyFields []string) []int {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	pos := make([]int, len(keyFields))
	for i, f := range keyFields {
		if p, ok := index[f]; ok {
			pos[i] = p
		} else {
			pos[i] = -1
		}
	}
	return pos
}

// rowKey builds a stored row's key. Short rows and unknown fields contribute
// empty values.
func rowKey(row []string, positions []int) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		if p >= 0 && p < len(row) {
			parts[i] = row[p]
		}
	}
	return strings.Join(parts, keySeparator)
}

// KeyUsesCreationTime reports whether the key includes created_at, which
// makes every fresh run look new
func KeyUsesCreationTime(keyFields []string) bool {
	for _, f := range keyFields {
		if f == "created_at" {
			return true
		}
	}
	return false
}
