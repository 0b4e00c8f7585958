package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"NewsWeaver/internal/cluster"
	"NewsWeaver/internal/config"
	"NewsWeaver/internal/infrastructure/feed"
	"NewsWeaver/internal/infrastructure/fetch"
	"NewsWeaver/internal/infrastructure/llm"
	"NewsWeaver/internal/infrastructure/scheduler"
	"NewsWeaver/internal/infrastructure/scorer"
	"NewsWeaver/internal/infrastructure/storage"
	"NewsWeaver/internal/lifecycle"
	"NewsWeaver/internal/logging"
	"NewsWeaver/internal/synthesis"
	"NewsWeaver/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	db        *sql.DB
	store     *storage.PostgresStore
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	logger    *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := storage.NewPostgresStore(db)

	engine := cluster.NewEngine(cluster.Thresholds{
		TitleSimilarity:     cfg.Matching.TitleSimilarity,
		SharedTerms:         cfg.Matching.SharedTerms,
		TimeProximityWindow: cfg.Matching.ProximityDuration(),
	}, baseLogger.With("component", "cluster"))

	manager := lifecycle.NewManager(lifecycle.Policy{
		PublishThreshold:    cfg.Lifecycle.PublishThreshold,
		ClosingWindow:       cfg.Lifecycle.ClosingDuration(),
		MaxSynthesisRetries: cfg.Lifecycle.MaxSynthesisRetries,
	}, baseLogger.With("component", "lifecycle"))

	orchestrator := synthesis.NewOrchestrator(synthesis.Deps{
		Synthesizer: llm.NewOpenAISynthesizer(cfg.Synthesis),
		Downloader:  fetch.NewExtractor(nil),
		Items:       store,
		Clusters:    store,
		Articles:    store,
		Logger:      baseLogger.With("component", "synthesis"),
	}, synthesis.Options{
		BundleSize:  cfg.Synthesis.BundleSize,
		CallTimeout: cfg.Synthesis.TimeoutDuration(),
		Workers:     cfg.Synthesis.Workers,
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:       feed.NewRSSSource(cfg.Feeds, baseLogger.With("component", "feed")),
		Scorer:       scorer.NewClient(cfg.Scoring.URL, cfg.Scoring.APIKey),
		Items:        store,
		Clusters:     store,
		Articles:     store,
		Engine:       engine,
		Lifecycle:    manager,
		Orchestrator: orchestrator,
		ScoreWorkers: cfg.Scoring.Workers,
		Logger:       baseLogger.With("component", "pipeline"),
	})

	ticker := scheduler.NewCycleTicker(cfg.Cycle.IntervalDuration())

	return &Application{
		cfg:       cfg,
		db:        db,
		store:     store,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(ticker, pipeline, baseLogger.With("component", "scheduler")),
		logger:    baseLogger,
	}, nil
}

// Run ensures the schema, starts the cycle scheduler, and blocks until the
// context ends.
func (a *Application) Run(ctx context.Context) error {
	if err := a.store.EnsureSchema(ctx); err != nil {
		return err
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("newsweaver started", "cycle_interval", a.cfg.Cycle.IntervalDuration())

	<-ctx.Done()

	if err := a.scheduler.Stop(context.Background()); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return a.db.Close()
}

// RunOnce executes a single processing cycle and exits.
func (a *Application) RunOnce(ctx context.Context) error {
	defer a.db.Close()

	if err := a.store.EnsureSchema(ctx); err != nil {
		return err
	}
	return a.scheduler.RunNow(ctx)
}

// Resynthesize forces a new article version for one active cluster.
func (a *Application) Resynthesize(ctx context.Context, clusterID string) error {
	defer a.db.Close()

	if err := a.store.EnsureSchema(ctx); err != nil {
		return err
	}
	return a.pipeline.RequestSynthesis(ctx, clusterID)
}
