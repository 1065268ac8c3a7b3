package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"prediction-backend/internal/credits"
	"prediction-backend/internal/llm"
	openai "prediction-backend/internal/llm/openai"
	"prediction-backend/internal/markets"
	"prediction-backend/internal/predictions"
	"prediction-backend/internal/research"
	"prediction-backend/internal/research/websearch"
	"prediction-backend/internal/sessions"
	"prediction-backend/internal/shared/config"
	"prediction-backend/internal/shared/storage/db"
)

// App holds shared dependencies for the worker process.
type App struct {
	Config          config.Config
	DB              *sql.DB
	SessionsRepo    sessions.Repo
	MarketsRepo     markets.Repo
	PredictionsRepo predictions.Repo
	ResearchCache   research.Cache
	Credits         *credits.Service
	Worker          *sessions.Worker
}

// Build prepares shared dependencies. Without DATABASE_URL everything runs
// on in-memory stores, which is only useful for local development.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	var sqlDB *sql.DB
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		opts := db.OptionsFromEnv(db.DefaultWorkerOptions())
		conn, err := db.Connect(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		sqlDB = conn
	} else {
		log.Printf("DATABASE_URL not set; using in-memory stores")
	}

	app := &App{Config: cfg, DB: sqlDB}

	if sqlDB != nil {
		app.SessionsRepo = &sessions.PGRepo{DB: sqlDB}
		app.MarketsRepo = &markets.PGRepo{DB: sqlDB}
		app.PredictionsRepo = &predictions.PGRepo{DB: sqlDB}
		app.ResearchCache = &research.PGCache{DB: sqlDB}
		app.Credits = credits.NewPostgresService(credits.NewPGStore(sqlDB))
	} else {
		app.SessionsRepo = sessions.NewMemoryRepo()
		app.MarketsRepo = markets.NewMemoryRepo()
		app.PredictionsRepo = predictions.NewMemoryRepo()
		app.ResearchCache = research.NewMemoryCache()
		app.Credits = credits.NewService()
	}

	modelClient, err := buildModelClient(cfg)
	if err != nil {
		return nil, err
	}

	researchProvider, err := buildResearchProvider(cfg)
	if err != nil {
		return nil, err
	}

	app.Worker = &sessions.Worker{
		Sessions: app.SessionsRepo,
		Markets:  app.MarketsRepo,
		Research: &research.Orchestrator{
			Cache:    app.ResearchCache,
			Provider: researchProvider,
			MaxAge:   cfg.ResearchMaxAge,
		},
		Predictions: &predictions.Service{
			Repo: app.PredictionsRepo,
			LLM:  modelClient,
		},
		Credits:     app.Credits,
		Concurrency: cfg.ModelConcurrency,
	}

	return app, nil
}

func buildModelClient(cfg config.Config) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "", "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Printf("OPENAI_API_KEY not set; model provider is a placeholder")
			return llm.PlaceholderClient{}, nil
		}
		return openai.NewClient(cfg.OpenAIAPIKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

func buildResearchProvider(cfg config.Config) (research.Provider, error) {
	if cfg.ResearchAPIKey == "" {
		log.Printf("RESEARCH_API_KEY not set; research sources will be skipped")
		return unavailableProvider{}, nil
	}
	return websearch.NewClient(cfg.ResearchAPIKey, cfg.ResearchBaseURL)
}

type unavailableProvider struct{}

func (unavailableProvider) Research(ctx context.Context, source string, query research.Query) (research.Response, error) {
	_ = ctx
	_ = query
	return research.Response{}, research.ProviderError{Source: source, Err: fmt.Errorf("research provider not configured")}
}
