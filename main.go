package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/config"
	"github.com/hapdco/catalog-engine/pkg/database"
	"github.com/hapdco/catalog-engine/pkg/handlers"
	"github.com/hapdco/catalog-engine/pkg/llm"
	"github.com/hapdco/catalog-engine/pkg/logging"
	"github.com/hapdco/catalog-engine/pkg/middleware"
	"github.com/hapdco/catalog-engine/pkg/repositories"
	"github.com/hapdco/catalog-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis",
			zap.String("error", logging.SanitizeError(err)))
	}
	if redisClient == nil {
		logger.Warn("Redis not configured, show-more results will not persist")
	}

	var embedder llm.Embedder
	if cfg.AI.OpenAIKey != "" {
		e, err := llm.NewOpenAIEmbedder(&llm.EmbedderConfig{
			APIKey: cfg.AI.OpenAIKey,
			Model:  cfg.AI.EmbeddingModel,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create embedder", zap.Error(err))
		}
		embedder = e
	} else {
		logger.Warn("OPENAI_API_KEY not set, search runs lexical-only")
	}

	var judge llm.RelevanceJudge
	if cfg.AI.AnthropicKey != "" {
		j, err := llm.NewAnthropicJudge(&llm.JudgeConfig{
			APIKey: cfg.AI.AnthropicKey,
			Model:  cfg.AI.JudgeModel,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create relevance judge", zap.Error(err))
		}
		judge = j
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, relevance judging disabled")
	}

	productRepo := repositories.NewProductRepository(db)
	supplierRepo := repositories.NewSupplierRepository(db)

	cache := services.NewSessionCache(redisClient, cfg.Search.SessionTTL, logger)
	searchService := services.NewSearchService(
		productRepo, supplierRepo, embedder, judge, cache,
		cfg.Search, cfg.AI, cfg.Sync.DefaultCountryCode, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewSearchHandler(searchService, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting catalog-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runMigrations opens a short-lived database/sql connection for the migration
// runner; the pgx pool is not usable there.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}
