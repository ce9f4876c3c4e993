package pipeline

import (
	"context"
	"log/slog"

	"github.com/ppiankov/rightsprobe/internal/model"
	"github.com/ppiankov/rightsprobe/internal/worker"
)

// Searcher queries one category for one term
type Searcher interface {
	Search(ctx context.Context, term string, code model.CategoryCode) model.CategoryResult
}

// Aggregator runs a Searcher across the fixed category set
type Aggregator struct {
	categories []model.Category
	pacer      *worker.Pacer
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator pausing between categories with pacer
func NewAggregator(pacer *worker.Pacer, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		categories: model.Categories(),
		pacer:      pacer,
		logger:     logger,
	}
}

// Aggregate queries every category for term, in fixed order, pausing
// between categories. A failed category never stops the others; only
// context cancellation ends the loop early.
func (a *Aggregator) Aggregate(ctx context.Context, s Searcher, term string) ([]model.CategoryResult, error) {
	results := make([]model.CategoryResult, 0, len(a.categories))

	for i, c := range a.categories {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		a.logger.Debug("aggregate: searching", "term", term, "category", c.Code, "name", c.Name)
		r := s.Search(ctx, term, c.Code)
		r.Category = c.Code
		if r.Items == nil {
			r.Items = []string{}
		}
		results = append(results, r)

		if err := ctx.Err(); err != nil {
			return results, err
		}

		if i < len(a.categories)-1 {
			if err := a.pacer.Pause(ctx); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

// AllFailed reports whether every result is a failure, which usually means
// the challenge token has expired
func AllFailed(results []model.CategoryResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Outcome != model.OutcomeFailed {
			return false
		}
	}
	return true
}
