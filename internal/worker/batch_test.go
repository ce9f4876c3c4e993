package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/rightsprobe/internal/model"
)

// MockScanner implements Scanner
type MockScanner struct {
	PrepareErr error
	FailTerms  map[string]error
	PanicTerms map[string]bool
	Prepared   int
	Scanned    []string
	cancel     context.CancelFunc
	cancelAt   string
}

func (m *MockScanner) Prepare(ctx context.Context) error {
	m.Prepared++
	return m.PrepareErr
}

func (m *MockScanner) ScanTerm(ctx context.Context, term string) (model.Record, error) {
	m.Scanned = append(m.Scanned, term)
	if m.cancel != nil && term == m.cancelAt {
		m.cancel()
		return model.Record{}, ctx.Err()
	}
	if m.PanicTerms[term] {
		panic("selector exploded")
	}
	if err := m.FailTerms[term]; err != nil {
		return model.Record{}, err
	}
	total := len(term) % 3
	status := model.StatusNotFound
	if total > 0 {
		status = model.StatusFound
	}
	return model.Record{Term: term, TotalCount: total, Status: status}, nil
}

func withFastSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var pauses []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = orig })
	return &pauses
}

func TestBatchProcessor_ProcessTerms(t *testing.T) {
	pauses := withFastSleep(t)
	scanner := &MockScanner{}
	processor := NewBatchProcessor(scanner, NewPacer(2*time.Second), nil)

	terms := []string{"artistA", "  ", "artistB", "artist C"}
	records, err := processor.ProcessTerms(context.Background(), terms)
	if err != nil {
		t.Fatalf("ProcessTerms failed: %v", err)
	}

	expected := []string{"artistA", "artistB", "artist C"}
	if len(records) != len(expected) {
		t.Fatalf("expected %d records, got %d", len(expected), len(records))
	}
	for i, rec := range records {
		if rec.Term != expected[i] {
			t.Errorf("record %d: expected term %q, got %q", i, expected[i], rec.Term)
		}
	}

	if scanner.Prepared != 1 {
		t.Errorf("expected one session setup for the batch, got %d", scanner.Prepared)
	}

	// Paced between terms, not after the last one
	if len(*pauses) != 2 {
		t.Errorf("expected 2 pauses, got %d", len(*pauses))
	}
	for _, d := range *pauses {
		if d != 2*time.Second {
			t.Errorf("expected 2s pause, got %v", d)
		}
	}
}

func TestBatchProcessor_FailureIsolation(t *testing.T) {
	withFastSleep(t)
	longErr := errors.New(strings.Repeat("x", 250))
	scanner := &MockScanner{
		FailTerms:  map[string]error{"bad": longErr},
		PanicTerms: map[string]bool{"boom": true},
	}
	processor := NewBatchProcessor(scanner, NewPacer(0), nil)

	records, err := processor.ProcessTerms(context.Background(), []string{"good", "bad", "boom", "last"})
	if err != nil {
		t.Fatalf("ProcessTerms failed: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}

	bad := records[1]
	if bad.Term != "bad" || !bad.Status.IsError() {
		t.Errorf("expected error record for 'bad', got %+v", bad)
	}
	if got := len(bad.Status) - len("Error: "); got != 100 {
		t.Errorf("expected error message truncated to 100 chars, got %d", got)
	}
	if bad.TotalCount != 0 {
		t.Errorf("expected zero count on error record, got %d", bad.TotalCount)
	}

	boom := records[2]
	if !boom.Status.IsError() || !strings.Contains(string(boom.Status), "panic") {
		t.Errorf("expected panic converted to error record, got %q", boom.Status)
	}

	if records[3].Term != "last" || records[3].Status.IsError() {
		t.Errorf("expected batch to continue after failures, got %+v", records[3])
	}
}

func TestBatchProcessor_PrepareFailureAborts(t *testing.T) {
	withFastSleep(t)
	prepErr := errors.New("challenge token unavailable")
	scanner := &MockScanner{PrepareErr: prepErr}
	processor := NewBatchProcessor(scanner, NewPacer(0), nil)

	records, err := processor.ProcessTerms(context.Background(), []string{"a", "b"})
	if !errors.Is(err, prepErr) {
		t.Fatalf("expected prepare error, got %v", err)
	}
	if records != nil {
		t.Errorf("expected no records, got %d", len(records))
	}
	if len(scanner.Scanned) != 0 {
		t.Errorf("expected no term to be scanned, got %v", scanner.Scanned)
	}
}

func TestBatchProcessor_Cancellation(t *testing.T) {
	withFastSleep(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner := &MockScanner{cancel: cancel, cancelAt: "b"}
	processor := NewBatchProcessor(scanner, NewPacer(0), nil)

	records, err := processor.ProcessTerms(ctx, []string{"a", "b", "c"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(records) != 1 || records[0].Term != "a" {
		t.Errorf("expected only the finished record, got %+v", records)
	}
	for _, rec := range records {
		if rec.Status.IsError() {
			t.Error("cancellation must not be recorded as an item failure")
		}
	}
}

func TestBatchProcessor_Progress(t *testing.T) {
	withFastSleep(t)
	processor := NewBatchProcessor(&MockScanner{}, NewPacer(0), nil)

	var seen []int
	processor.OnProgress(func(index, total int, rec model.Record) {
		if total != 2 {
			t.Errorf("expected total 2, got %d", total)
		}
		seen = append(seen, index)
	})

	if _, err := processor.ProcessTerms(context.Background(), []string{"x", "y"}); err != nil {
		t.Fatalf("ProcessTerms failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("unexpected progress calls: %v", seen)
	}
}

func TestBatchProcessor_ProcessTerms_Empty(t *testing.T) {
	scanner := &MockScanner{}
	processor := NewBatchProcessor(scanner, NewPacer(0), nil)

	records, err := processor.ProcessTerms(context.Background(), []string{"", "   "})
	if err != nil {
		t.Fatalf("ProcessTerms failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected 0 records, got %d", len(records))
	}
	if scanner.Prepared != 0 {
		t.Error("expected no session setup for an empty batch")
	}
}

func TestSplitTerms(t *testing.T) {
	got := SplitTerms(" nicki nicole, emilia ,,drake,")
	expected := []string{"nicki nicole", "emilia", "drake"}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("index %d: expected %q, got %q", i, expected[i], got[i])
		}
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "terms")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestReadTermsFromFile(t *testing.T) {
	path := writeTemp(t, "nicki nicole\n# comment\nemilia\n   \ndrake   \nemilia\n")

	terms, err := ReadTermsFromFile(path)
	if err != nil {
		t.Fatalf("ReadTermsFromFile failed: %v", err)
	}

	expected := []string{"nicki nicole", "emilia", "drake"}
	if len(terms) != len(expected) {
		t.Fatalf("expected %d terms, got %d", len(expected), len(terms))
	}
	for i, term := range terms {
		if term != expected[i] {
			t.Errorf("expected term %s at index %d, got %s", expected[i], i, term)
		}
	}
}

func TestReadTermsFromFile_NonExistent(t *testing.T) {
	_, err := ReadTermsFromFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	withFastSleep(t)
	path := writeTemp(t, "airbag\n# comment\n\ndrake\n")

	processor := NewBatchProcessor(&MockScanner{}, NewPacer(0), nil)
	records, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockScanner{}, NewPacer(0), nil)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
