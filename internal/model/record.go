package model

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// TimestampLayout is the textual form of Record.CreatedAt in stores and exports
const TimestampLayout = "2006-01-02T15:04:05"

// maxErrorMessage bounds the message kept in an Error status
const maxErrorMessage = 100

// Status is the outcome of processing one term
type Status string

const (
	StatusFound    Status = "Found"
	StatusNotFound Status = "Not Found"
)

// ErrorStatus builds an Error status carrying a truncated message
func ErrorStatus(msg string) Status {
	return Status("Error: " + truncate(msg, maxErrorMessage))
}

// IsError reports whether the status records a processing failure
func (s Status) IsError() bool {
	return strings.HasPrefix(string(s), "Error")
}

// Record is the normalized result of querying every category for one term
type Record struct {
	Term                  string
	CreatedAt             time.Time
	Counts                map[CategoryCode]int
	Results               map[CategoryCode][]string
	TotalCount            int
	CategoriesWithResults int
	Status                Status
	FailedCategories      []CategoryCode
	ResultsHash           string
}

// RecordFields is the flattened column order used by stores and CSV exports
var RecordFields = []string{
	"term", "created_at", "total_count", "categories_with_results",
	"UA_count", "PUA_count", "UP_count", "USRO_count",
	"UA_results", "PUA_results", "UP_results", "USRO_results",
	"status", "failed_categories", "results_hash",
}

// NewErrorRecord builds the placeholder recorded when a term could not be processed
func NewErrorRecord(term string, err error, now time.Time) Record {
	r := Record{
		Term:      term,
		CreatedAt: now,
		Counts:    make(map[CategoryCode]int),
		Results:   make(map[CategoryCode][]string),
		Status:    ErrorStatus(err.Error()),
	}
	for _, c := range categories {
		r.Counts[c.Code] = 0
		r.Results[c.Code] = []string{}
	}
	return r
}

// Text returns the category's entries joined with "; "
func (r Record) Text(code CategoryCode) string {
	return strings.Join(r.Results[code], "; ")
}

// Found reports whether any category returned entries
func (r Record) Found() bool {
	return r.Status == StatusFound
}

// FieldNames implements RowSource
func (r Record) FieldNames() []string {
	out := make([]string, len(RecordFields))
	copy(out, RecordFields)
	return out
}

// Values implements RowSource. List-valued fields are returned as slices
// and joined by Stringify.
func (r Record) Values() map[string]any {
	failed := make([]string, 0, len(r.FailedCategories))
	for _, c := range r.FailedCategories {
		failed = append(failed, string(c))
	}

	v := map[string]any{
		"term":                    r.Term,
		"created_at":              r.CreatedAt.Format(TimestampLayout),
		"total_count":             r.TotalCount,
		"categories_with_results": r.CategoriesWithResults,
		"status":                  string(r.Status),
		"failed_categories":       failed,
		"results_hash":            r.ResultsHash,
	}
	for _, c := range categories {
		v[string(c.Code)+"_count"] = r.Counts[c.Code]
		items := r.Results[c.Code]
		if items == nil {
			items = []string{}
		}
		v[string(c.Code)+"_results"] = items
	}
	return v
}

// MarshalJSON renders the record in its flattened column order
func (r Record) MarshalJSON() ([]byte, error) {
	values := r.Values()
	var buf strings.Builder
	buf.WriteByte('{')
	for i, name := range RecordFields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val := values[name]
		if _, isList := val.([]string); isList {
			// Exports carry the "; "-joined text, matching the CSV columns
			val = Stringify(val)
		}
		enc, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(enc)
	}
	buf.WriteByte('}')
	return []byte(buf.String()), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
