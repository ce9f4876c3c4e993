package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/ppiankov/rightsprobe/internal/model"
)

// RodConfig configures the Chrome instance used to solve the challenge
type RodConfig struct {
	Headless  bool
	Width     int
	Height    int
	UserAgent string

	// Proxy is a host:port the browser should route through. Empty = direct.
	Proxy string

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Bin overrides the Chrome binary. Empty = launcher default.
	Bin string

	NavigateTimeout time.Duration
	Logger          *slog.Logger
}

// RodRenderer renders pages with a fresh headless Chrome per call
type RodRenderer struct {
	cfg RodConfig
}

// NewRodRenderer creates a RodRenderer
func NewRodRenderer(cfg RodConfig) *RodRenderer {
	if cfg.Width <= 0 {
		cfg.Width = 1920
	}
	if cfg.Height <= 0 {
		cfg.Height = 1080
	}
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RodRenderer{cfg: cfg}
}

// Render implements Renderer
func (r *RodRenderer) Render(ctx context.Context, pageURL string) (Session, error) {
	log := r.cfg.Logger
	s := &rodSession{pageURL: pageURL}

	controlURL := r.cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(r.cfg.Headless).
			Set("window-size", fmt.Sprintf("%d,%d", r.cfg.Width, r.cfg.Height)).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage").
			Set("disable-gpu").
			Set("no-sandbox")
		if r.cfg.UserAgent != "" {
			l = l.Set("user-agent", r.cfg.UserAgent)
		}
		if r.cfg.Proxy != "" {
			l = l.Proxy(r.cfg.Proxy)
		}
		if r.cfg.Bin != "" {
			l = l.Bin(r.cfg.Bin)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch: %w", err)
		}
		s.launcher = l
		controlURL = u
		log.Debug("challenge: launched local chrome", "url", u, "headless", r.cfg.Headless)
	}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.browser = nil
		_ = s.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	page, err := stealth.Page(s.browser)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	s.page = page

	if r.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}); err != nil {
			log.Warn("challenge: set user agent failed", "error", err)
		}
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.Width,
		Height:            r.cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		log.Warn("challenge: set viewport failed", "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}

	return s, nil
}

type rodSession struct {
	pageURL  string
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// Cookies implements Session
func (s *rodSession) Cookies(ctx context.Context) ([]model.Token, error) {
	cookies, err := s.page.Context(ctx).Cookies([]string{s.pageURL})
	if err != nil {
		return nil, err
	}
	out := make([]model.Token, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, model.Token{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return out, nil
}

// Close implements Session
func (s *rodSession) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	return err
}
