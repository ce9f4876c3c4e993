package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/rightsprobe/internal/cache"
	"github.com/ppiankov/rightsprobe/internal/challenge"
	"github.com/ppiankov/rightsprobe/internal/model"
	"github.com/ppiankov/rightsprobe/internal/util"
	"github.com/ppiankov/rightsprobe/internal/worker"
)

type staticTokens struct {
	tok         model.Token
	err         error
	calls       int
	invalidated int
}

func (s *staticTokens) Acquire(ctx context.Context) (model.Token, error) {
	s.calls++
	return s.tok, s.err
}

func (s *staticTokens) Invalidate() error {
	s.invalidated++
	return nil
}

func localToken() model.Token {
	return model.Token{Name: "__cf_bm", Value: "tok-123", Domain: "127.0.0.1"}
}

// fakeEndpoint mimics the search endpoint. Entries are keyed by term then
// category code.
type fakeEndpoint struct {
	mu       sync.Mutex
	entries  map[string]map[string][]string
	failCode string
	status   int
	requests []formRequest
	cookies  []string
}

type formRequest struct {
	term, code, action string
	ulType             []string
	header             http.Header
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/robots.txt" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, formRequest{
		term:   r.PostForm.Get("ul_search"),
		code:   r.PostForm.Get("ul_cate"),
		action: r.PostForm.Get("action"),
		ulType: r.PostForm["ul_type"],
		header: r.Header.Clone(),
	})
	if c, err := r.Cookie("__cf_bm"); err == nil {
		f.cookies = append(f.cookies, c.Value)
	}
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	code := r.PostForm.Get("ul_cate")
	if code == f.failCode {
		_, _ = w.Write([]byte("<html>Just a moment...</html>"))
		return
	}

	var b strings.Builder
	for _, item := range f.entries[r.PostForm.Get("ul_search")][code] {
		fmt.Fprintf(&b, `<div class="uli-search-item">%s</div>`, item)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"html": b.String()})
}

func testConfig(serverURL string) *model.Config {
	cfg := model.DefaultConfig()
	cfg.Target.Endpoint = serverURL + "/wp-admin/admin-ajax.php"
	cfg.Target.SearchPage = serverURL + "/search/"
	cfg.Target.Origin = serverURL
	cfg.Pacing.Delay = 0
	cfg.RateLimiting.RequestsPerSecond = 0
	cfg.HTTP.RespectRobots = false
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.Cache.Enabled = false
	return cfg
}

func TestPipeline_ScanTerm(t *testing.T) {
	endpoint := &fakeEndpoint{entries: map[string]map[string][]string{
		"artistA": {"UA": {"Song 1", "Song 2"}, "UP": {"Song 3"}},
	}}
	server := httptest.NewServer(endpoint)
	defer server.Close()

	p := NewPipeline(testConfig(server.URL), &staticTokens{tok: localToken()}, nil)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return created }

	if err := p.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	rec, err := p.ScanTerm(context.Background(), "artistA")
	if err != nil {
		t.Fatalf("ScanTerm failed: %v", err)
	}
	if rec.TotalCount != 3 || rec.CategoriesWithResults != 2 {
		t.Errorf("expected total 3 in 2 categories, got %d in %d", rec.TotalCount, rec.CategoriesWithResults)
	}
	if rec.Status != model.StatusFound {
		t.Errorf("expected Found, got %q", rec.Status)
	}
	if rec.Text(model.CategoryUA) != "Song 1; Song 2" {
		t.Errorf("unexpected UA text %q", rec.Text(model.CategoryUA))
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("expected injected creation time, got %v", rec.CreatedAt)
	}

	rec, err = p.ScanTerm(context.Background(), "artistB")
	if err != nil {
		t.Fatalf("ScanTerm failed: %v", err)
	}
	if rec.TotalCount != 0 || rec.Status != model.StatusNotFound {
		t.Errorf("expected Not Found with zero count, got %d %q", rec.TotalCount, rec.Status)
	}

	if len(endpoint.requests) != 8 {
		t.Fatalf("expected 8 requests, got %d", len(endpoint.requests))
	}
	order := []string{"UA", "PUA", "UP", "USRO"}
	for i, req := range endpoint.requests[:4] {
		if req.code != order[i] {
			t.Errorf("request %d: expected category %s, got %s", i, order[i], req.code)
		}
		if req.action != "ulists_get_query" {
			t.Errorf("request %d: unexpected action %q", i, req.action)
		}
	}
	for i, c := range endpoint.cookies {
		if c != "tok-123" {
			t.Errorf("request %d: expected challenge cookie, got %q", i, c)
		}
	}
	if len(endpoint.cookies) != 8 {
		t.Errorf("expected the cookie on every request, got %d", len(endpoint.cookies))
	}

	wantHeaders := map[string]string{
		"Origin":           server.URL,
		"Referer":          server.URL + "/search/",
		"X-Requested-With": "XMLHttpRequest",
		"User-Agent":       model.DefaultUserAgent,
		"Accept-Language":  "es-419,es;q=0.7",
	}
	for i, req := range endpoint.requests {
		for name, want := range wantHeaders {
			if got := req.header.Get(name); got != want {
				t.Errorf("request %d: header %s = %q, want %q", i, name, got, want)
			}
		}
		if ct := req.header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
			t.Errorf("request %d: unexpected content type %q", i, ct)
		}
		if len(req.ulType) != 1 || req.ulType[0] != "" {
			t.Errorf("request %d: expected an empty ul_type field, got %q", i, req.ulType)
		}
	}
}

func TestPipeline_BatchScenario(t *testing.T) {
	endpoint := &fakeEndpoint{entries: map[string]map[string][]string{
		"artistA": {"UA": {"Match 1", "Match 2"}},
	}}
	server := httptest.NewServer(endpoint)
	defer server.Close()

	p := NewPipeline(testConfig(server.URL), &staticTokens{tok: localToken()}, nil)
	processor := worker.NewBatchProcessor(p, worker.NewPacer(0), nil)

	records, err := processor.ProcessTerms(context.Background(), []string{"artistA", "artistB"})
	if err != nil {
		t.Fatalf("ProcessTerms failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	a, b := records[0], records[1]
	if a.Term != "artistA" || a.TotalCount != 2 || a.Status != model.StatusFound {
		t.Errorf("artistA: got term %q total %d status %q", a.Term, a.TotalCount, a.Status)
	}
	if a.Counts[model.CategoryUA] != 2 || a.CategoriesWithResults != 1 {
		t.Errorf("artistA: expected 2 in UA only, got %v", a.Counts)
	}
	if b.Term != "artistB" || b.TotalCount != 0 || b.Status != model.StatusNotFound {
		t.Errorf("artistB: got term %q total %d status %q", b.Term, b.TotalCount, b.Status)
	}
	if len(endpoint.requests) != 8 {
		t.Errorf("expected 4 requests per term, got %d", len(endpoint.requests))
	}
}

func TestPipeline_CategoryFailureIsolated(t *testing.T) {
	endpoint := &fakeEndpoint{
		failCode: "PUA",
		entries:  map[string]map[string][]string{"artistA": {"UA": {"Song 1"}, "USRO": {"Song 9"}}},
	}
	server := httptest.NewServer(endpoint)
	defer server.Close()

	p := NewPipeline(testConfig(server.URL), &staticTokens{tok: localToken()}, nil)
	if err := p.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	results, err := p.Results(context.Background(), "artistA")
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected all 4 categories queried, got %d", len(results))
	}
	if results[1].Outcome != model.OutcomeFailed || !errors.Is(results[1].Err, ErrDecode) {
		t.Errorf("expected PUA decode failure, got %v (%v)", results[1].Outcome, results[1].Err)
	}
	if results[2].Outcome != model.OutcomeEmpty {
		t.Errorf("expected UP empty, got %v", results[2].Outcome)
	}

	rec := Build("artistA", results, time.Now())
	if rec.TotalCount != 2 || rec.Status != model.StatusFound {
		t.Errorf("expected 2 results and Found, got %d %q", rec.TotalCount, rec.Status)
	}
	if len(rec.FailedCategories) != 1 || rec.FailedCategories[0] != model.CategoryPUA {
		t.Errorf("expected PUA flagged as failed, got %v", rec.FailedCategories)
	}
}

func TestPipeline_AllFailedInvalidatesToken(t *testing.T) {
	endpoint := &fakeEndpoint{status: http.StatusForbidden}
	server := httptest.NewServer(endpoint)
	defer server.Close()

	tokens := &staticTokens{tok: localToken()}
	p := NewPipeline(testConfig(server.URL), tokens, nil)
	if err := p.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	results, err := p.Results(context.Background(), "artistA")
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	for _, r := range results {
		if !errors.Is(r.Err, ErrTransport) {
			t.Errorf("%s: expected ErrTransport, got %v", r.Category, r.Err)
		}
	}
	if tokens.invalidated != 1 {
		t.Errorf("expected cached token invalidated once, got %d", tokens.invalidated)
	}
}

func TestPipeline_TokenUnavailable(t *testing.T) {
	endpoint := &fakeEndpoint{}
	server := httptest.NewServer(endpoint)
	defer server.Close()

	tokens := &staticTokens{err: fmt.Errorf("__cf_bm after 15s: %w", challenge.ErrTokenUnavailable)}
	p := NewPipeline(testConfig(server.URL), tokens, nil)

	err := p.Prepare(context.Background())
	if !errors.Is(err, challenge.ErrTokenUnavailable) {
		t.Fatalf("expected ErrTokenUnavailable, got %v", err)
	}
	if len(endpoint.requests) != 0 {
		t.Errorf("expected no search request, got %d", len(endpoint.requests))
	}
	if _, err := p.ScanTerm(context.Background(), "artistA"); err == nil {
		t.Error("expected ScanTerm to fail without a session")
	}
}

func TestPipeline_PrepareOnce(t *testing.T) {
	server := httptest.NewServer(&fakeEndpoint{})
	defer server.Close()

	tokens := &staticTokens{tok: localToken()}
	p := NewPipeline(testConfig(server.URL), tokens, nil)
	for i := 0; i < 3; i++ {
		if err := p.Prepare(context.Background()); err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
	}
	if tokens.calls != 1 {
		t.Errorf("expected a single token acquisition, got %d", tokens.calls)
	}
}

func TestPipeline_RobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /wp-admin/\n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.HTTP.RespectRobots = true
	tokens := &staticTokens{tok: localToken()}
	p := NewPipeline(cfg, tokens, nil)

	err := p.Prepare(context.Background())
	if !errors.Is(err, util.ErrDisallowed) {
		t.Fatalf("expected ErrDisallowed, got %v", err)
	}
	if tokens.calls != 0 {
		t.Error("expected no token acquisition after a robots refusal")
	}
}

func TestPipeline_SearchCache(t *testing.T) {
	endpoint := &fakeEndpoint{entries: map[string]map[string][]string{"artistA": {"UA": {"Song 1"}}}}
	server := httptest.NewServer(endpoint)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Cache.Enabled = true
	p := NewPipeline(cfg, &staticTokens{tok: localToken()}, nil)
	if err := p.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		rec, err := p.ScanTerm(context.Background(), "artistA")
		if err != nil {
			t.Fatalf("ScanTerm failed: %v", err)
		}
		if rec.TotalCount != 1 {
			t.Errorf("pass %d: expected 1 result, got %d", i, rec.TotalCount)
		}
	}
	if len(endpoint.requests) != 4 {
		t.Errorf("expected second scan served from cache, got %d requests", len(endpoint.requests))
	}
}

func TestSession_CacheKeepsTermCase(t *testing.T) {
	endpoint := &fakeEndpoint{entries: map[string]map[string][]string{"Drake": {"UA": {"Entry 1"}}}}
	server := httptest.NewServer(endpoint)
	defer server.Close()

	cfg := SessionConfigFromModel(testConfig(server.URL))
	cfg.Cache = cache.NewMemoryCache(time.Minute, time.Minute)
	s, err := NewQuerySession(cfg, localToken())
	if err != nil {
		t.Fatalf("NewQuerySession failed: %v", err)
	}

	lower := s.Search(context.Background(), "drake", model.CategoryUA)
	upper := s.Search(context.Background(), "Drake", model.CategoryUA)
	if lower.Outcome != model.OutcomeEmpty {
		t.Errorf("drake: expected empty, got %v %q", lower.Outcome, lower.Items)
	}
	if upper.Outcome != model.OutcomeOK || len(upper.Items) != 1 {
		t.Errorf("Drake: expected its own entry, got %v %q", upper.Outcome, upper.Items)
	}
	if len(endpoint.requests) != 2 {
		t.Errorf("expected one request per term, got %d", len(endpoint.requests))
	}

	s.Search(context.Background(), "Drake", model.CategoryUA)
	if len(endpoint.requests) != 2 {
		t.Errorf("expected repeated term served from cache, got %d requests", len(endpoint.requests))
	}
}

func TestSession_BodyLimit(t *testing.T) {
	items := make([]string, 200)
	for i := range items {
		items[i] = fmt.Sprintf("Entry number %d", i)
	}
	endpoint := &fakeEndpoint{entries: map[string]map[string][]string{
		"big":   {"UA": items},
		"small": {"UA": {"Entry 1"}},
	}}
	server := httptest.NewServer(endpoint)
	defer server.Close()

	cfg := SessionConfigFromModel(testConfig(server.URL))
	cfg.MaxBodyBytes = 512
	s, err := NewQuerySession(cfg, localToken())
	if err != nil {
		t.Fatalf("NewQuerySession failed: %v", err)
	}

	r := s.Search(context.Background(), "big", model.CategoryUA)
	if r.Outcome != model.OutcomeFailed || !errors.Is(r.Err, ErrDecode) {
		t.Errorf("expected oversized body to fail with ErrDecode, got %v (%v)", r.Outcome, r.Err)
	}

	r = s.Search(context.Background(), "small", model.CategoryUA)
	if r.Outcome != model.OutcomeOK || len(r.Items) != 1 {
		t.Errorf("expected small body within the limit to parse, got %v (%v)", r.Outcome, r.Err)
	}
}

func TestLimitedBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr bool
	}{
		{"under", "abc", 5, false},
		{"exact", "abcde", 5, false},
		{"over", "abcdef", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &limitedBody{rc: io.NopCloser(strings.NewReader(tt.body)), remaining: tt.limit}
			data, err := io.ReadAll(b)
			if tt.wantErr {
				if !errors.Is(err, errBodyTooLarge) {
					t.Errorf("expected errBodyTooLarge, got %v", err)
				}
				return
			}
			if err != nil || string(data) != tt.body {
				t.Errorf("got %q, %v", data, err)
			}
		})
	}
}

func TestNewQuerySession_TokenDomainMismatch(t *testing.T) {
	cfg := SessionConfig{Endpoint: "http://127.0.0.1:9/ajax"}
	_, err := NewQuerySession(cfg, model.Token{Name: "__cf_bm", Value: "x", Domain: "other.example"})
	if err == nil {
		t.Fatal("expected error for a token scoped to another domain")
	}

	_, err = NewQuerySession(cfg, model.Token{Name: "__cf_bm"})
	if err == nil {
		t.Fatal("expected error for an empty token")
	}
}

func TestSession_CanceledContext(t *testing.T) {
	server := httptest.NewServer(&fakeEndpoint{})
	defer server.Close()

	cfg := SessionConfigFromModel(testConfig(server.URL))
	s, err := NewQuerySession(cfg, localToken())
	if err != nil {
		t.Fatalf("NewQuerySession failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := s.Search(ctx, "artistA", model.CategoryUA)
	if r.Outcome != model.OutcomeFailed {
		t.Errorf("expected failed outcome on canceled context, got %v", r.Outcome)
	}
}
