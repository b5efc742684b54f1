package cmd

import (
	"context"
	"fmt"
	"time"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/designscore/designscore/internal/analysis"
	"github.com/designscore/designscore/internal/api"
	"github.com/designscore/designscore/internal/capture"
	"github.com/designscore/designscore/internal/clock/system"
	"github.com/designscore/designscore/internal/config"
	"github.com/designscore/designscore/internal/fetcher"
	"github.com/designscore/designscore/internal/history"
	"github.com/designscore/designscore/internal/id/uuid"
	"github.com/designscore/designscore/internal/logging"
	"github.com/designscore/designscore/internal/metrics"
	"github.com/designscore/designscore/internal/orchestrator"
	pubsubpub "github.com/designscore/designscore/internal/publisher/pubsub"
	"github.com/designscore/designscore/internal/rules"
	"github.com/designscore/designscore/internal/score"
	"github.com/designscore/designscore/internal/sheets"
	"github.com/designscore/designscore/internal/storage/gcs"
	"github.com/designscore/designscore/internal/storage/local"
	"github.com/designscore/designscore/internal/storage/memory"
	"github.com/designscore/designscore/internal/vision"
)

// App holds the wired service graph shared by the serve and analyze commands.
type App struct {
	Cfg    config.Config
	Logger *zap.Logger
	Orch   *orchestrator.Orchestrator
	Checks map[string]api.HealthCheck

	closers []func()
}

// newApp builds every collaborator from configuration. Optional sinks that
// are not configured are left nil and reported as not_configured by /health.
func newApp(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	if drift := cfg.WeightSumDrift(); drift > 0.01 {
		logger.Warn("scoring weights do not sum to 1.0",
			zap.Float64("drift", drift))
	}

	metrics.Init()

	app := &App{Cfg: cfg, Logger: logger, Checks: map[string]api.HealthCheck{}}
	app.closers = append(app.closers, func() { _ = logger.Sync() })

	clk := system.New()
	ids := uuid.New()

	chrome, err := capture.NewChromedp(capture.Config{
		MaxParallel: cfg.Capture.MaxParallel,
		UserAgent:   cfg.Capture.UserAgent,
		NavTimeout:  cfg.NavTimeout(),
		OutputDir:   cfg.Capture.OutputDir,
		DomainQPS:   cfg.Capture.DomainQPS,
	}, clk, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("start screenshot capture: %w", err)
	}
	app.closers = append(app.closers, chrome.Close)

	var capturer analysis.Capturer = chrome
	if cfg.Capture.CacheEnabled {
		ttl := time.Duration(cfg.Capture.CacheTTLHours) * time.Hour
		capturer = capture.NewCache(chrome, cfg.Capture.OutputDir, ttl, clk, logger)
	}

	pageFetcher := fetcher.New(fetcher.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxRedirects: cfg.Fetch.MaxRedirects,
	})

	aggregator, err := score.NewAggregator(
		cfg.Scoring.WeightsByCategory(),
		cfg.Scoring.Thresholds,
	)
	if err != nil {
		app.Close()
		return nil, err
	}

	visionClient := vision.NewClient(cfg.Vision.BaseURL, cfg.Vision.Model, cfg.VisionTimeout(), logger)
	app.Checks["vision"] = visionClient.Health

	deps := orchestrator.Deps{
		Capturer:   capturer,
		Fetcher:    pageFetcher,
		Rules:      rules.NewAnalyzer(logger),
		Aggregator: aggregator,
		Vision:     visionClient,
		Clock:      clk,
		IDs:        ids,
		Logger:     logger,
	}

	if deps.Blobs, err = app.buildBlobStore(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}

	if cfg.Sheets.SpreadsheetID != "" {
		appender, sheetsErr := sheets.New(ctx, sheets.Config{
			CredentialsPath: cfg.Sheets.CredentialsPath,
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			WorksheetName:   cfg.Sheets.WorksheetName,
		}, clk, logger)
		if sheetsErr != nil {
			app.Close()
			return nil, fmt.Errorf("connect sheets: %w", sheetsErr)
		}
		if err = appender.EnsureWorksheet(ctx); err != nil {
			logger.Warn("ensure worksheet failed", zap.Error(err))
		}
		deps.Sheets = appender
		app.Checks["sheets"] = func(context.Context) error { return nil }
	} else {
		app.Checks["sheets"] = nil
	}

	if cfg.DB.DSN != "" {
		store, dbErr := history.New(ctx, history.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
		})
		if dbErr != nil {
			app.Close()
			return nil, fmt.Errorf("connect history database: %w", dbErr)
		}
		app.closers = append(app.closers, store.Close)
		deps.History = store
		app.Checks["history"] = store.Ping
	} else {
		app.Checks["history"] = nil
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		pub, pubErr := pubsubpub.New(ctx, pubsubpub.Config{
			ProjectID: cfg.PubSub.ProjectID,
			TopicID:   cfg.PubSub.TopicName,
		})
		if pubErr != nil {
			app.Close()
			return nil, fmt.Errorf("connect pubsub: %w", pubErr)
		}
		app.closers = append(app.closers, func() { _ = pub.Close() })
		deps.Publisher = pub
		app.Checks["pubsub"] = func(context.Context) error { return nil }
	} else {
		app.Checks["pubsub"] = nil
	}

	orch, err := orchestrator.New(deps, orchestrator.Config{
		StoragePrefix: cfg.Storage.Prefix,
		ContentType:   cfg.Storage.ContentType,
		Topic:         cfg.PubSub.TopicName,
		RulesVersion:  cfg.Scoring.Version,
		Weights:       cfg.Scoring.WeightsByCategory(),
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Orch = orch

	return app, nil
}

func (a *App) buildBlobStore(ctx context.Context, cfg config.Config) (analysis.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, err
		}
		a.Checks["storage"] = func(context.Context) error { return nil }
		return store, nil
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("create local blob store: %w", err)
		}
		a.Checks["storage"] = func(context.Context) error { return nil }
		return store, nil
	case "memory":
		a.Checks["storage"] = func(context.Context) error { return nil }
		return memory.NewBlobStore(), nil
	case "", "none":
		a.Checks["storage"] = nil
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

// Close shuts down collaborators in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
