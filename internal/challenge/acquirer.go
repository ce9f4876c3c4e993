// Package challenge solves the registry's cookie-based anti-bot challenge by
// rendering the search page in a disposable browser and harvesting the
// challenge cookie.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/rightsprobe/internal/model"
)

// ErrTokenUnavailable is returned when the challenge cookie never appears
var ErrTokenUnavailable = errors.New("challenge token unavailable")

// Session is one rendered page in a disposable browser
type Session interface {
	// Cookies returns the cookies currently visible to the page
	Cookies(ctx context.Context) ([]model.Token, error)

	// Close tears down the page and the browser behind it
	Close() error
}

// Renderer launches a disposable browser and navigates it to pageURL
type Renderer interface {
	Render(ctx context.Context, pageURL string) (Session, error)
}

// TokenSource produces a challenge token
type TokenSource interface {
	Acquire(ctx context.Context) (model.Token, error)
}

// Config configures an Acquirer
type Config struct {
	SearchPage   string
	CookieName   string
	Timeout      time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Acquirer renders the search page and polls for the challenge cookie
type Acquirer struct {
	cfg      Config
	renderer Renderer
}

// NewAcquirer creates an Acquirer
func NewAcquirer(cfg Config, renderer Renderer) *Acquirer {
	cfg.defaults()
	return &Acquirer{cfg: cfg, renderer: renderer}
}

// Acquire returns the challenge cookie once it appears. The browser is
// torn down on every return path.
func (a *Acquirer) Acquire(ctx context.Context) (tok model.Token, err error) {
	log := a.cfg.Logger
	log.Info("challenge: rendering search page", "url", a.cfg.SearchPage)

	sess, err := a.renderer.Render(ctx, a.cfg.SearchPage)
	if err != nil {
		return model.Token{}, fmt.Errorf("challenge: render: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("challenge: browser teardown failed", "error", cerr)
		}
	}()

	deadline := time.NewTimer(a.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		cookies, err := sess.Cookies(ctx)
		if err != nil {
			log.Debug("challenge: read cookies failed", "error", err)
		}
		for _, c := range cookies {
			if c.Name == a.cfg.CookieName && c.Value != "" {
				log.Info("challenge: token obtained", "cookie", c.Name, "domain", c.Domain, "elapsed", time.Since(start))
				return c, nil
			}
		}

		select {
		case <-ctx.Done():
			return model.Token{}, ctx.Err()
		case <-deadline.C:
			log.Warn("challenge: cookie not found", "cookie", a.cfg.CookieName, "timeout", a.cfg.Timeout)
			return model.Token{}, fmt.Errorf("%s after %v: %w", a.cfg.CookieName, a.cfg.Timeout, ErrTokenUnavailable)
		case <-ticker.C:
		}
	}
}
