package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/rightsprobe/internal/cache"
	"github.com/ppiankov/rightsprobe/internal/challenge"
	"github.com/ppiankov/rightsprobe/internal/export"
	"github.com/ppiankov/rightsprobe/internal/model"
	"github.com/ppiankov/rightsprobe/internal/pipeline"
	"github.com/ppiankov/rightsprobe/internal/sheetsync"
	"github.com/ppiankov/rightsprobe/internal/store"
	"github.com/ppiankov/rightsprobe/internal/util"
	"github.com/ppiankov/rightsprobe/internal/worker"
)

// runtimeEnv is what every command needs once configuration is loaded
type runtimeEnv struct {
	cfg    *model.Config
	logger *slog.Logger
	close  func()
}

func newRuntime() (*runtimeEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, closer, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &runtimeEnv{cfg: cfg, logger: logger, close: closer}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// buildTokenSource wires the browser, the cookie poller and, when caching is
// enabled, the layered token cache
func buildTokenSource(cfg *model.Config, logger *slog.Logger) challenge.TokenSource {
	renderer := challenge.NewRodRenderer(challenge.RodConfig{
		Headless:  cfg.Browser.Headless,
		Width:     cfg.Browser.Width,
		Height:    cfg.Browser.Height,
		UserAgent: cfg.HTTP.UserAgent,
		Proxy:     util.ProxyHostFor(cfg.Target.SearchPage, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy),
		RemoteURL: cfg.Browser.RemoteURL,
		Bin:       cfg.Browser.Bin,
		Logger:    logger,
	})

	acq := challenge.NewAcquirer(challenge.Config{
		SearchPage:   cfg.Target.SearchPage,
		CookieName:   cfg.Browser.CookieName,
		Timeout:      cfg.Browser.ChallengeTimeout,
		PollInterval: cfg.Browser.PollInterval,
		Logger:       logger,
	}, renderer)

	if !cfg.Cache.Enabled {
		return acq
	}
	c := cache.NewLayeredCache(cfg.Cache.TokenTTL, cfg.Cache.Dir, cfg.Cache.TokenTTL)
	return challenge.NewCachedSource(acq, c, cfg.Target.SearchPage, cfg.Cache.TokenTTL, logger)
}

// buildProcessor wires the pipeline behind a batch processor
func buildProcessor(cfg *model.Config, logger *slog.Logger) *worker.BatchProcessor {
	p := pipeline.NewPipeline(cfg, buildTokenSource(cfg, logger), logger)
	return worker.NewBatchProcessor(p, worker.NewPacer(cfg.Pacing.Delay), logger)
}

// syncRecords appends rows to the configured store and prints the summary
func syncRecords[T model.RowSource](ctx context.Context, cfg *model.Config, logger *slog.Logger, records []T) (model.SyncSummary, error) {
	keys := cfg.Sync.KeyFields
	if sheetsync.KeyUsesCreationTime(keys) {
		logger.Warn("sync: duplicate key includes created_at, so re-running the same terms always adds rows; consider sync.key_fields: [term, results_hash]",
			"key_fields", keys)
	}

	st, err := store.New(ctx, cfg.Sync)
	if err != nil {
		summary := model.SyncSummary{
			TotalProcessed: len(records),
			Error:          err.Error(),
			Timestamp:      time.Now().Format(model.TimestampLayout),
		}
		return summary, fmt.Errorf("%w: %w", sheetsync.ErrStoreAccess, err)
	}
	defer func() { _ = st.Close() }()

	syncer := sheetsync.NewSyncer(st, sheetsync.Config{
		KeyFields:       keys,
		CheckDuplicates: cfg.Sync.CheckDuplicates,
		Logger:          logger,
	})
	res, err := sheetsync.SyncRecords(ctx, syncer, records)
	export.RenderSync(os.Stdout, res.Summary)

	path := export.SyncResultFile(cfg.Output.Dir, time.Now())
	if werr := export.WriteSyncJSON(path, res.Summary); werr != nil {
		logger.Warn("sync: could not write summary", "path", path, "error", werr)
	} else {
		logger.Debug("sync summary written", "path", path)
	}
	return res.Summary, err
}
