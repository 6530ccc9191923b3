package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"assetforge/internal/adapter/repo"
	"assetforge/internal/analyzer"
	"assetforge/internal/competition"
	"assetforge/internal/domain"
	"assetforge/internal/events"
	httpapi "assetforge/internal/http"
	"assetforge/internal/http/handlers"
	"assetforge/internal/infra"
	"assetforge/internal/pipeline"
	"assetforge/internal/providers/model"
	"assetforge/internal/providers/render"
	"assetforge/internal/review"
	"assetforge/internal/scoring"
	"assetforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres is an optional write-behind archive; the in-memory store
	// stays authoritative either way.
	var (
		archive         domain.AssetArchive
		jobLog          domain.JobLog
		decisions       domain.DecisionRepository
		decisionArchive handlers.DecisionArchive
		jobArchive      handlers.JobArchive
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		archive = repo.NewAssetArchive(pool)
		jobs := repo.NewJobLog(pool)
		reviews := repo.NewDecisionRepository(pool)
		jobLog = jobs
		jobArchive = jobs
		decisions = reviews
		decisionArchive = reviews
	}

	artifacts, err := storage.NewFileStore(cfg.StorageDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open artifact storage")
	}

	learner := review.NewLearner()
	scorer, err := scoring.NewScorer(cfg.ScoringWeights(), learner)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring weights")
	}

	backends := []competition.Backend{model.NewStaticBackend()}
	if cfg.GeminiAPIKey != "" {
		gemini, err := model.NewGeminiBackend(model.GeminiOptions{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			BaseURL:     cfg.GeminiBaseURL,
			CostPerCall: cfg.PromptCost,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure gemini backend")
		}
		backends = append(backends, gemini)
	}
	if cfg.OpenAIAPIKey != "" {
		openai, err := model.NewOpenAIBackend(model.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			CostPerCall:  cfg.PromptCost,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure openai backend")
		}
		backends = append(backends, openai)
	}

	var renderer pipeline.RenderBackend
	switch cfg.RenderProvider {
	case "gemini":
		renderer, err = render.NewGeminiRenderer(render.GeminiOptions{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.RenderModel,
			BaseURL:     cfg.GeminiBaseURL,
			CostPerCall: cfg.RenderCost,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure gemini renderer")
		}
	default:
		renderer = render.NewSyntheticRenderer(cfg.RenderCost)
	}

	bc := events.NewBroadcaster(cfg.EventBuffer, logger)
	store := pipeline.NewStore()

	pipe := pipeline.New(pipeline.Options{
		Store:         store,
		Budget:        pipeline.NewLedger(cfg.BudgetCeiling),
		Limiter:       pipeline.NewLimiter(cfg.RenderPerMinute, cfg.RenderBurst),
		Retry:         pipeline.RetryPolicy{MaxAttempts: cfg.MaxAttempts, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
		Analyzer:      analyzer.New(),
		Orchestrator:  competition.NewOrchestrator(scorer, cfg.CompetitionTimeout, pipeline.NewLimiter(cfg.PromptPerMinute, cfg.PromptBurst), logger),
		ModelBackends: backends,
		Renderer:      renderer,
		Scorer:        scorer,
		Artifacts:     artifacts,
		Events:        bc,
		Archive:       archive,
		JobLog:        jobLog,
		Config: pipeline.Config{
			Workers:                 cfg.Workers,
			AcceptanceFloor:         cfg.AcceptanceFloor,
			RenderTimeout:           cfg.RenderTimeout,
			ChargeRetryableFailures: cfg.ChargeRetryableFailures,
		},
		Logger: logger,
	})

	workflow := review.NewWorkflow(store, pipe, artifacts, learner, decisions, bc, logger)

	app := &handlers.App{
		Scheduler: pipe,
		Assets:    store,
		Review:    workflow,
		Events:    bc,
		Artifacts: artifacts,
		Decisions: decisionArchive,
		Jobs:      jobArchive,
		Logger:    logger,
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, cfg))

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("pipeline stopped with error")
		}
	}()

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("pipeline did not drain before deadline")
	}
	bc.Close()
	logger.Info().Msg("server stopped")
}
