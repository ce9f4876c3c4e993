package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/rightsprobe/internal/cache"
	"github.com/ppiankov/rightsprobe/internal/challenge"
	"github.com/ppiankov/rightsprobe/internal/model"
	"github.com/ppiankov/rightsprobe/internal/util"
	"github.com/ppiankov/rightsprobe/internal/worker"
)

// Pipeline turns a term into a Record: it owns the single token and query
// session of a run and reuses them for every term
type Pipeline struct {
	config     *model.Config
	tokens     challenge.TokenSource
	robots     *util.RobotsChecker
	aggregator *Aggregator
	limiter    *worker.Limiter
	search     cache.Cache
	session    Searcher
	now        func() time.Time
	logger     *slog.Logger
}

// NewPipeline creates a new pipeline. The query session is built by Prepare.
func NewPipeline(cfg *model.Config, tokens challenge.TokenSource, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		config:     cfg,
		tokens:     tokens,
		aggregator: NewAggregator(worker.NewPacer(cfg.Pacing.Delay), logger),
		limiter:    worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		now:        time.Now,
		logger:     logger,
	}
	if cfg.Cache.Enabled {
		p.search = cache.NewMemoryCache(cfg.Cache.SearchTTL, 10*time.Minute)
	}
	if cfg.HTTP.RespectRobots {
		p.robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout,
			util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy))
	}
	return p
}

// Prepare checks the robots policy, acquires the challenge token and
// builds the query session. It runs once; later calls are no-ops.
func (p *Pipeline) Prepare(ctx context.Context) error {
	if p.session != nil {
		return nil
	}

	if p.robots != nil {
		if err := p.robots.Check(ctx, p.config.Target.Endpoint); err != nil {
			return fmt.Errorf("robots: %w", err)
		}
	}

	tok, err := p.tokens.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	scfg := SessionConfigFromModel(p.config)
	scfg.Limiter = p.limiter
	scfg.Cache = p.search
	scfg.Logger = p.logger

	session, err := NewQuerySession(scfg, tok)
	if err != nil {
		return err
	}
	p.session = session
	p.logger.Info("pipeline: session ready", "endpoint", p.config.Target.Endpoint)
	return nil
}

// Results queries every category for term without building a Record
func (p *Pipeline) Results(ctx context.Context, term string) ([]model.CategoryResult, error) {
	if p.session == nil {
		return nil, fmt.Errorf("pipeline: session not prepared")
	}

	results, err := p.aggregator.Aggregate(ctx, p.session, term)
	if err != nil {
		return results, err
	}

	if AllFailed(results) {
		p.logger.Warn("pipeline: every category failed, the challenge token may have expired", "term", term)
		if inv, ok := p.tokens.(interface{ Invalidate() error }); ok {
			if err := inv.Invalidate(); err != nil {
				p.logger.Debug("pipeline: invalidate cached token failed", "error", err)
			}
		}
	}
	return results, nil
}

// ScanTerm queries every category for term and builds its Record
func (p *Pipeline) ScanTerm(ctx context.Context, term string) (model.Record, error) {
	results, err := p.Results(ctx, term)
	if err != nil {
		return model.Record{}, err
	}
	return Build(term, results, p.now()), nil
}
