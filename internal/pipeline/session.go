package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"github.com/ppiankov/rightsprobe/internal/cache"
	"github.com/ppiankov/rightsprobe/internal/model"
	"github.com/ppiankov/rightsprobe/internal/util"
	"github.com/ppiankov/rightsprobe/internal/worker"
)

var (
	// ErrTransport covers network failures, timeouts and non-200 responses
	ErrTransport = errors.New("transport failure")

	// ErrDecode covers bodies that are not a JSON envelope under either encoding
	ErrDecode = errors.New("decode failure")

	errBodyTooLarge = errors.New("response body exceeds limit")
)

// SessionConfig configures a QuerySession
type SessionConfig struct {
	Endpoint   string
	SearchPage string
	Origin     string
	Action     string
	Selector   string

	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration

	// MaxBodyBytes caps how much of a response is read. Larger bodies fail
	// the query with ErrDecode. Zero means no limit.
	MaxBodyBytes int64

	HTTPProxy           string
	HTTPSProxy          string
	CloudflareTransport bool

	// Limiter caps the request rate against the endpoint host. Optional.
	Limiter *worker.Limiter

	// Cache memoizes successful queries per (term, category). Optional.
	Cache    cache.Cache
	CacheTTL time.Duration

	Logger *slog.Logger
}

// SessionConfigFromModel builds a SessionConfig from the runtime configuration
func SessionConfigFromModel(cfg *model.Config) SessionConfig {
	return SessionConfig{
		Endpoint:            cfg.Target.Endpoint,
		SearchPage:          cfg.Target.SearchPage,
		Origin:              cfg.Target.Origin,
		Action:              cfg.Target.Action,
		Selector:            cfg.Target.Selector,
		UserAgent:           cfg.HTTP.UserAgent,
		AcceptLanguage:      cfg.HTTP.AcceptLanguage,
		Timeout:             cfg.HTTP.Timeout,
		MaxBodyBytes:        cfg.HTTP.MaxBodyBytes,
		HTTPProxy:           cfg.HTTP.HTTPProxy,
		HTTPSProxy:          cfg.HTTP.HTTPSProxy,
		CloudflareTransport: cfg.HTTP.CloudflareTransport,
		CacheTTL:            cfg.Cache.SearchTTL,
	}
}

// QuerySession is an HTTP client carrying the fixed headers and the
// challenge token. It is built once per batch and never shared across
// goroutines.
type QuerySession struct {
	client *resty.Client
	cfg    SessionConfig
}

// NewQuerySession builds a session around tok
func NewQuerySession(cfg SessionConfig, tok model.Token) (*QuerySession, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !tok.Valid() {
		return nil, fmt.Errorf("session: invalid token %q", tok.Name)
	}

	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("session: parse endpoint: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("session: cookie jar: %w", err)
	}
	jar.SetCookies(endpoint, []*http.Cookie{{
		Name:   tok.Name,
		Value:  tok.Value,
		Domain: tok.Domain,
		Path:   "/",
	}})
	if len(jar.Cookies(endpoint)) == 0 {
		return nil, fmt.Errorf("session: token domain %q does not cover %s", tok.Domain, endpoint.Host)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy)
	var rt http.RoundTripper = transport
	if cfg.CloudflareTransport {
		rt = cloudflarebp.AddCloudFlareByPass(rt)
	}
	if cfg.MaxBodyBytes > 0 {
		rt = &bodyLimitTransport{next: rt, limit: cfg.MaxBodyBytes}
	}

	client := resty.New().
		SetTransport(rt).
		SetCookieJar(jar).
		SetTimeout(cfg.Timeout).
		SetHeaders(map[string]string{
			"accept":           "application/json, text/javascript, */*; q=0.01",
			"accept-language":  cfg.AcceptLanguage,
			"content-type":     "application/x-www-form-urlencoded; charset=UTF-8",
			"origin":           cfg.Origin,
			"referer":          cfg.SearchPage,
			"x-requested-with": "XMLHttpRequest",
			"user-agent":       cfg.UserAgent,
		})

	return &QuerySession{client: client, cfg: cfg}, nil
}

// Search queries one category for term. It never returns an error: failures
// are reported as an OutcomeFailed result so the caller can tell them apart
// from an empty list.
func (s *QuerySession) Search(ctx context.Context, term string, code model.CategoryCode) model.CategoryResult {
	log := s.cfg.Logger.With("term", term, "category", code)

	key := cache.SearchKey(term, string(code))
	if s.cfg.Cache != nil {
		var items []string
		if cache.GetJSON(s.cfg.Cache, key, &items) {
			log.Debug("search: cache hit", "items", len(items))
			return model.NewCategoryResult(code, items)
		}
	}

	if s.cfg.Limiter != nil {
		if err := s.cfg.Limiter.Wait(ctx, s.cfg.Endpoint); err != nil {
			return model.FailedCategoryResult(code, err)
		}
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"action":    s.cfg.Action,
			"ul_cate":   string(code),
			"ul_search": term,
			"ul_type":   "",
		}).
		Post(s.cfg.Endpoint)
	if errors.Is(err, errBodyTooLarge) {
		log.Error("search: response too large", "limit", s.cfg.MaxBodyBytes)
		return model.FailedCategoryResult(code, fmt.Errorf("%w: %w", ErrDecode, err))
	}
	if err != nil {
		log.Error("search: request failed", "error", err)
		return model.FailedCategoryResult(code, fmt.Errorf("%w: %w", ErrTransport, err))
	}

	log.Info("search: response", "status", resp.StatusCode())
	if resp.StatusCode() != http.StatusOK {
		return model.FailedCategoryResult(code, fmt.Errorf("%w: HTTP %d", ErrTransport, resp.StatusCode()))
	}

	items, err := ParseResults(resp.Body(), s.cfg.Selector)
	if err != nil {
		log.Error("search: decode failed", "error", err)
		return model.FailedCategoryResult(code, err)
	}

	if s.cfg.Cache != nil {
		if err := cache.SetJSON(s.cfg.Cache, key, items, s.cfg.CacheTTL); err != nil {
			log.Debug("search: cache store failed", "error", err)
		}
	}

	return model.NewCategoryResult(code, items)
}

// bodyLimitTransport fails responses whose body is larger than limit while
// it is read, so an oversized body is never buffered whole
type bodyLimitTransport struct {
	next  http.RoundTripper
	limit int64
}

func (t *bodyLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > t.limit {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %d bytes declared", errBodyTooLarge, resp.ContentLength)
	}
	resp.Body = &limitedBody{rc: resp.Body, remaining: t.limit}
	return resp, nil
}

type limitedBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		// a body of exactly limit bytes ends here with EOF
		var extra [1]byte
		n, err := b.rc.Read(extra[:])
		if n > 0 {
			return 0, errBodyTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	return n, err
}

func (b *limitedBody) Close() error {
	return b.rc.Close()
}
