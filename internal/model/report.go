package model

import "time"

// BatchReport is the structured document written after a batch run
type BatchReport struct {
	Metadata BatchMetadata `json:"metadata"`
	Results  []Record      `json:"results"`
}

// BatchMetadata summarizes a batch run
type BatchMetadata struct {
	TotalTerms int    `json:"total_terms"`
	Timestamp  string `json:"timestamp"`
	Found      int    `json:"total_results_found"`
	NotFound   int    `json:"total_results_not_found"`
	Errors     int    `json:"total_errors"`
}

// NewBatchReport builds the report for records produced at the given time
func NewBatchReport(records []Record, at time.Time) BatchReport {
	meta := BatchMetadata{
		TotalTerms: len(records),
		Timestamp:  at.Format(TimestampLayout),
	}
	for _, r := range records {
		switch {
		case r.Status.IsError():
			meta.Errors++
			meta.NotFound++
		case r.TotalCount > 0:
			meta.Found++
		default:
			meta.NotFound++
		}
	}
	if records == nil {
		records = []Record{}
	}
	return BatchReport{Metadata: meta, Results: records}
}

// TermReport is the document written by a single-term search
type TermReport struct {
	Term         string                        `json:"term"`
	Timestamp    string                        `json:"timestamp"`
	TotalResults int                           `json:"total_results"`
	Categories   map[CategoryCode]CategoryItems `json:"categories"`
}

// CategoryItems is one category's section of a TermReport
type CategoryItems struct {
	Name    string   `json:"name"`
	Results []string `json:"results"`
	Failed  bool     `json:"failed,omitempty"`
}

// NewTermReport builds a TermReport from a record
func NewTermReport(r Record) TermReport {
	failed := make(map[CategoryCode]bool, len(r.FailedCategories))
	for _, c := range r.FailedCategories {
		failed[c] = true
	}

	cats := make(map[CategoryCode]CategoryItems, len(categories))
	for _, c := range categories {
		items := r.Results[c.Code]
		if items == nil {
			items = []string{}
		}
		cats[c.Code] = CategoryItems{Name: c.Name, Results: items, Failed: failed[c.Code]}
	}
	return TermReport{
		Term:         r.Term,
		Timestamp:    r.CreatedAt.Format(TimestampLayout),
		TotalResults: r.TotalCount,
		Categories:   cats,
	}
}

// SyncSummary reports the outcome of synchronizing records into a store
type SyncSummary struct {
	TotalProcessed   int    `json:"total_processed"`
	NewRecords       int    `json:"new_records"`
	DuplicateRecords int    `json:"duplicate_records"`
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
	Timestamp        string `json:"timestamp"`
}
