// Package export writes records to CSV and JSON files and renders them on
// the console.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/rightsprobe/internal/model"
)

// FileTimestampLayout is the timestamp embedded in generated file names
const FileTimestampLayout = "20060102_150405"

// WriteCSV writes records to path, one row per record in RecordFields order
func WriteCSV(path string, records []model.Record) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(model.RecordFields); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write(model.Flatten(r, model.RecordFields)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteBatchJSON writes the batch document for records produced at the given time
func WriteBatchJSON(path string, records []model.Record, at time.Time) error {
	return writeJSON(path, model.NewBatchReport(records, at))
}

// WriteTermJSON writes the single-term result document
func WriteTermJSON(path string, rec model.Record) error {
	return writeJSON(path, model.NewTermReport(rec))
}

// WriteSyncJSON writes a sync summary next to the exports
func WriteSyncJSON(path string, summary model.SyncSummary) error {
	return writeJSON(path, summary)
}

func writeJSON(path string, v any) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// writeAtomic writes through a temp file in the target directory and
// renames it into place, so an interrupted run never leaves a partial file
func writeAtomic(path string, fn func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := fn(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Slug turns a term into a file-name-safe token
func Slug(term string) string {
	s := strings.ToLower(strings.TrimSpace(term))
	s = strings.ReplaceAll(s, "&", "and")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case strings.ContainsRune(`/\:*?"<>|`, r), r < 0x20:
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if runes := []rune(out); len(runes) > 100 {
		out = string(runes[:100])
	}
	if out == "" {
		out = "term"
	}
	return out
}

// TermResultFile names the JSON document of a single-term search
func TermResultFile(dir, term string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_results_%s.json", Slug(term), at.Format(FileTimestampLayout)))
}

// BatchBaseName is the default base name of batch exports
func BatchBaseName(terms int) string {
	return fmt.Sprintf("rightsprobe_batch_%d_terms", terms)
}

// BatchFiles returns the CSV and JSON paths for a batch base name. A base
// name carrying a directory is used as is.
func BatchFiles(dir, base string) (csvPath, jsonPath string) {
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".csv"), ".json")
	if !filepath.IsAbs(base) && filepath.Dir(base) == "." {
		base = filepath.Join(dir, base)
	}
	return base + ".csv", base + ".json"
}

// SyncResultFile names the JSON summary of a sync run
func SyncResultFile(dir string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("sync_results_%s.json", at.Format(FileTimestampLayout)))
}
