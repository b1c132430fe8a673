package bootstrap

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/analyses"
	"feedback-backend/internal/analyzer"
	"feedback-backend/internal/analyzer/openai"
	"feedback-backend/internal/scenarios"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/server"
	"feedback-backend/internal/shared/storage/db"
	"feedback-backend/internal/shared/telemetry"
)

// App holds the wired dependency graph for the API process.
type App struct {
	Config config.Config
	Router *gin.Engine

	Handle   *db.Handle
	Executor *db.Executor

	ScenarioRepo scenarios.Repo
	AnalysisRepo analyses.Repo

	ScenarioService *scenarios.Service
	AnalysisService *analyses.Service
	Analyzer        analyzer.Client

	ScenarioHandler *scenarios.Handler
	AnalysisHandler *analyses.Handler
}

// Build wires repositories, services, handlers and the router. Without a
// database URL it falls back to in-memory repositories, which keeps local
// development and tests independent of Postgres.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	if cfg.DatabaseURL != "" {
		handle, err := db.NewHandle(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx, handle.DB()); err != nil {
			handle.Close()
			return nil, err
		}
		app.Handle = handle
		app.Executor = db.NewExecutor(handle)
		app.ScenarioRepo = &scenarios.PGRepo{Exec: app.Executor}
		app.AnalysisRepo = &analyses.PGRepo{Exec: app.Executor}
	} else {
		telemetry.Info("bootstrap.memory_store", map[string]any{
			"reason": "DATABASE_URL not set",
		})
		app.ScenarioRepo = scenarios.NewMemoryRepo()
		app.AnalysisRepo = analyses.NewMemoryRepo()
	}

	app.Analyzer = buildAnalyzer(cfg)
	app.ScenarioService = scenarios.NewService(app.ScenarioRepo)
	app.AnalysisService = analyses.NewService(app.AnalysisRepo, app.ScenarioService, app.Analyzer, cfg.AnalysisTTL)

	app.ScenarioHandler = scenarios.NewHandler(app.ScenarioService, app.AnalysisService)
	app.AnalysisHandler = analyses.NewHandler(app.AnalysisService)

	app.Router = server.NewRouter(cfg, server.RouterDeps{
		Scenarios: app.ScenarioHandler,
		Analyses:  app.AnalysisHandler,
	})
	return app, nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a.Handle != nil {
		return a.Handle.Close()
	}
	return nil
}

func buildAnalyzer(cfg config.Config) analyzer.Client {
	client, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.AnalyzerModel)
	if err != nil {
		telemetry.Error("bootstrap.analyzer_unconfigured", map[string]any{
			"error": err.Error(),
		})
		if cfg.Env == "dev" {
			return analyzer.PlaceholderClient{}
		}
		return nil
	}
	return client
}
