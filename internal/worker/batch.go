package worker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/rightsprobe/internal/model"
)

// Scanner turns one term into a Record. Prepare runs once per batch,
// before the first term.
type Scanner interface {
	Prepare(ctx context.Context) error
	ScanTerm(ctx context.Context, term string) (model.Record, error)
}

// ProgressFunc is called after each term with its 1-based position
type ProgressFunc func(index, total int, rec model.Record)

// BatchProcessor drives a Scanner over an ordered list of terms, one at a
// time, pausing between terms. A failing term becomes an Error record and
// the batch continues.
type BatchProcessor struct {
	scanner  Scanner
	pacer    *Pacer
	now      func() time.Time
	logger   *slog.Logger
	progress ProgressFunc
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(scanner Scanner, pacer *Pacer, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		scanner: scanner,
		pacer:   pacer,
		now:     time.Now,
		logger:  logger,
	}
}

// OnProgress registers a callback invoked after every term
func (b *BatchProcessor) OnProgress(fn ProgressFunc) {
	b.progress = fn
}

// ProcessTerms returns one Record per non-blank term, in input order.
// Prepare failures abort the batch before any term is processed. On
// cancellation the records finished so far are returned with ctx.Err().
func (b *BatchProcessor) ProcessTerms(ctx context.Context, terms []string) ([]model.Record, error) {
	terms = CleanTerms(terms)
	if len(terms) == 0 {
		return []model.Record{}, nil
	}

	if err := b.scanner.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("prepare session: %w", err)
	}

	total := len(terms)
	records := make([]model.Record, 0, total)
	b.logger.Info("batch: processing terms", "total", total)

	for i, term := range terms {
		b.logger.Info("batch: processing", "index", i+1, "total", total, "term", term)

		rec, err := b.scanOne(ctx, term)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return records, ctxErr
			}
			b.logger.Error("batch: term failed", "term", term, "error", err)
			rec = model.NewErrorRecord(term, err, b.now())
		} else if rec.TotalCount > 0 {
			b.logger.Info("batch: found", "term", term, "results", rec.TotalCount, "categories", rec.CategoriesWithResults)
		} else {
			b.logger.Info("batch: no results", "term", term)
		}

		records = append(records, rec)
		if b.progress != nil {
			b.progress(i+1, total, rec)
		}

		if i < total-1 {
			if err := b.pacer.Pause(ctx); err != nil {
				return records, err
			}
		}
	}

	return records, nil
}

// ProcessFile reads terms from a file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]model.Record, error) {
	terms, err := ReadTermsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read terms: %w", err)
	}
	return b.ProcessTerms(ctx, terms)
}

// scanOne isolates a single term, turning a panic into an error
func (b *BatchProcessor) scanOne(ctx context.Context, term string) (rec model.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.scanner.ScanTerm(ctx, term)
}

// CleanTerms trims every term and drops blanks, keeping order
func CleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SplitTerms parses an inline comma-separated list
func SplitTerms(list string) []string {
	return CleanTerms(strings.Split(list, ","))
}

// ReadTermsFromFile reads terms from a file (one per line)
func ReadTermsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var terms []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			terms = append(terms, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return terms, nil
}
