package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/rightsprobe/internal/model"
)

// Build normalizes per-category results into a Record. It is pure: the
// creation time is supplied by the caller.
func Build(term string, results []model.CategoryResult, now time.Time) model.Record {
	r := model.Record{
		Term:      term,
		CreatedAt: now,
		Counts:    make(map[model.CategoryCode]int),
		Results:   make(map[model.CategoryCode][]string),
	}

	byCode := make(map[model.CategoryCode]model.CategoryResult, len(results))
	for _, res := range results {
		byCode[res.Category] = res
	}

	h := sha256.New()
	for _, c := range model.Categories() {
		res := byCode[c.Code]
		items := res.Items
		if items == nil {
			items = []string{}
		}

		r.Results[c.Code] = items
		r.Counts[c.Code] = len(items)
		r.TotalCount += len(items)
		if len(items) > 0 {
			r.CategoriesWithResults++
		}
		if res.Outcome == model.OutcomeFailed {
			r.FailedCategories = append(r.FailedCategories, c.Code)
		}

		h.Write([]byte(c.Code))
		h.Write([]byte{'='})
		h.Write([]byte(r.Text(c.Code)))
		h.Write([]byte{'\n'})
	}
	r.ResultsHash = hex.EncodeToString(h.Sum(nil))

	if r.TotalCount > 0 {
		r.Status = model.StatusFound
	} else {
		r.Status = model.StatusNotFound
	}

	return r
}
