package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ppiankov/rightsprobe/internal/model"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// RenderTerm prints every category of one record with its entries
func RenderTerm(w io.Writer, rec model.Record) {
	failed := make(map[model.CategoryCode]bool, len(rec.FailedCategories))
	for _, c := range rec.FailedCategories {
		failed[c] = true
	}

	t := newTable(w)
	t.SetTitle("Results for %s", strings.ToUpper(rec.Term))
	t.AppendHeader(table.Row{"Code", "Category", "#", "Entries"})
	for _, c := range model.Categories() {
		items := rec.Results[c.Code]
		entries := strings.Join(items, "\n")
		switch {
		case failed[c.Code]:
			entries = "query failed"
		case len(items) == 0:
			entries = "no results"
		}
		t.AppendRow(table.Row{c.Code, c.Name, len(items), entries})
		t.AppendSeparator()
	}
	t.AppendFooter(table.Row{"", "Total", rec.TotalCount, fmt.Sprintf("%d/4 categories", rec.CategoriesWithResults)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, WidthMax: 70},
	})
	t.Render()
}

// RenderBatch prints one line per record
func RenderBatch(w io.Writer, records []model.Record) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Term", "UA", "PUA", "UP", "USRO", "Total", "Status"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.Term,
			r.Counts[model.CategoryUA],
			r.Counts[model.CategoryPUA],
			r.Counts[model.CategoryUP],
			r.Counts[model.CategoryUSRO],
			r.TotalCount,
			string(r.Status),
		})
	}

	meta := model.NewBatchReport(records, time.Time{}).Metadata
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d terms", meta.TotalTerms), "", "", "", "",
		fmt.Sprintf("%d found", meta.Found),
		fmt.Sprintf("%d errors", meta.Errors),
	})
	t.Render()
}

// RenderSync prints a sync summary
func RenderSync(w io.Writer, s model.SyncSummary) {
	t := newTable(w)
	t.SetTitle("Sync summary")
	t.AppendRows([]table.Row{
		{"Processed", s.TotalProcessed},
		{"New", s.NewRecords},
		{"Duplicates", s.DuplicateRecords},
		{"Success", s.Success},
	})
	if s.Error != "" {
		t.AppendRow(table.Row{"Error", s.Error})
	}
	t.Render()
}
