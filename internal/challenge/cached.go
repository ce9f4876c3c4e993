package challenge

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/ppiankov/rightsprobe/internal/cache"
	"github.com/ppiankov/rightsprobe/internal/model"
)

// CachedSource reuses a previously harvested token while it is younger than ttl
type CachedSource struct {
	source TokenSource
	cache  cache.Cache
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSource wraps source with a token cache keyed by the search page host
func NewCachedSource(source TokenSource, c cache.Cache, searchPage string, ttl time.Duration, logger *slog.Logger) *CachedSource {
	host := searchPage
	if u, err := url.Parse(searchPage); err == nil && u.Host != "" {
		host = u.Host
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{
		source: source,
		cache:  c,
		key:    cache.TokenKey(host),
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire implements TokenSource
func (s *CachedSource) Acquire(ctx context.Context) (model.Token, error) {
	var tok model.Token
	if cache.GetJSON(s.cache, s.key, &tok) && tok.Valid() {
		s.logger.Info("challenge: reusing cached token", "cookie", tok.Name, "domain", tok.Domain)
		return tok, nil
	}

	tok, err := s.source.Acquire(ctx)
	if err != nil {
		return model.Token{}, err
	}

	if err := cache.SetJSON(s.cache, s.key, tok, s.ttl); err != nil {
		s.logger.Warn("challenge: cache token failed", "error", err)
	}
	return tok, nil
}

// Invalidate drops the cached token so the next Acquire renders the page again
func (s *CachedSource) Invalidate() error {
	return s.cache.Delete(s.key)
}
