// Diagnostic program for the anti-bot challenge: solves it once with a
// visible browser, then queries every category for one term and prints
// whether each query succeeded, came back empty or failed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/rightsprobe/internal/challenge"
	"github.com/ppiankov/rightsprobe/internal/model"
	"github.com/ppiankov/rightsprobe/internal/pipeline"
)

func main() {
	term := "Nicki Nicole"
	if len(os.Args) > 1 {
		term = strings.Join(os.Args[1:], " ")
	}

	fmt.Println("=== Challenge Probe ===")
	fmt.Println()

	cfg := model.DefaultConfig()
	cfg.Browser.Headless = os.Getenv("PROBE_HEADLESS") == "1"
	cfg.Cache.Enabled = false
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	acq := challenge.NewAcquirer(challenge.Config{
		SearchPage:   cfg.Target.SearchPage,
		CookieName:   cfg.Browser.CookieName,
		Timeout:      cfg.Browser.ChallengeTimeout,
		PollInterval: cfg.Browser.PollInterval,
		Logger:       logger,
	}, challenge.NewRodRenderer(challenge.RodConfig{
		Headless:  cfg.Browser.Headless,
		Width:     cfg.Browser.Width,
		Height:    cfg.Browser.Height,
		UserAgent: cfg.HTTP.UserAgent,
		Logger:    logger,
	}))

	fmt.Printf("Page:   %s\n", cfg.Target.SearchPage)
	fmt.Printf("Cookie: %s\n", cfg.Browser.CookieName)
	fmt.Println(strings.Repeat("-", 60))

	started := time.Now()
	tok, err := acq.Acquire(ctx)
	if err != nil {
		fmt.Printf("  ✗ Token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  ✓ Token %s=%s... for %s (%s)\n", tok.Name, mask(tok.Value), tok.Domain, time.Since(started).Round(time.Millisecond))

	p := pipeline.NewPipeline(cfg, fixedToken(tok), logger)
	if err := p.Prepare(ctx); err != nil {
		fmt.Printf("  ✗ Session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nTerm: %q\n", term)
	fmt.Println(strings.Repeat("-", 60))
	results, err := p.Results(ctx, term)
	if err != nil {
		fmt.Printf("  ✗ Search: %v\n", err)
		os.Exit(1)
	}

	for _, r := range results {
		switch r.Outcome {
		case model.OutcomeOK:
			fmt.Printf("  ✓ %-5s %-8s %d entries, first: %s\n", r.Category, r.Outcome, len(r.Items), r.Items[0])
		case model.OutcomeEmpty:
			fmt.Printf("  · %-5s %-8s\n", r.Category, r.Outcome)
		default:
			fmt.Printf("  ✗ %-5s %-8s %v\n", r.Category, r.Outcome, r.Err)
		}
	}

	fmt.Println()
	if pipeline.AllFailed(results) {
		fmt.Println("Every category failed: the token was likely rejected.")
		os.Exit(1)
	}
	fmt.Println("=== Probe Complete ===")
}

// fixedToken hands the already solved token to the pipeline
type fixedToken model.Token

func (f fixedToken) Acquire(context.Context) (model.Token, error) {
	return model.Token(f), nil
}

func mask(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}
