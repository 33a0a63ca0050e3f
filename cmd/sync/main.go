// Command sync runs one catalog synchronization pass: refresh the supplier
// master, then reconcile today's product files. It is meant to be invoked by
// a scheduler and configured entirely through environment variables.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/config"
	"github.com/hapdco/catalog-engine/pkg/database"
	"github.com/hapdco/catalog-engine/pkg/llm"
	"github.com/hapdco/catalog-engine/pkg/logging"
	"github.com/hapdco/catalog-engine/pkg/repositories"
	"github.com/hapdco/catalog-engine/pkg/services"
	"github.com/hapdco/catalog-engine/pkg/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.LoadFromEnv(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
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

	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection",
			zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}
	_ = sqlDB.Close()

	store, err := storage.NewS3Store(ctx, &cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to create object store",
			zap.String("error", logging.SanitizeError(err)))
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
		logger.Warn("OPENAI_API_KEY not set, products will be stored without vectors")
	}

	syncService := services.NewSyncService(
		db,
		repositories.NewSupplierRepository(db),
		repositories.NewProductRepository(db),
		repositories.NewIngestedFileRepository(db),
		store,
		embedder,
		cfg.Sync,
		cfg.Storage.SupplierMaster,
		cfg.AI.EmbedTimeout,
		logger,
	)

	stats, err := syncService.Run(ctx)
	if err != nil {
		logger.Error("Sync run aborted", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Sync run complete",
		zap.Int("suppliers_upserted", stats.SuppliersUpserted),
		zap.Int("files_processed", stats.FilesProcessed),
		zap.Int("files_skipped", stats.FilesSkipped),
		zap.Int("files_failed", stats.FilesFailed))
	if stats.FilesFailed > 0 {
		os.Exit(1)
	}
}
