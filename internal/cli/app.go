package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"sociofi/internal/config"
	"sociofi/internal/logging"
	"sociofi/internal/retrieval"
	"sociofi/internal/storage"
)

// app holds what every subcommand needs: configuration, the logger and the
// embedding database.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB
	driver string
	docs   *storage.DocumentStore
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log, cfg.BasicConfig.Production)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	driver := storage.Normalize(cfg.BasicConfig.DatabaseDriver)
	db, err := storage.Open(ctx, driver, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(ctx, db, driver); err != nil {
		_ = db.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", zap.String("driver", driver))
	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		driver: driver,
		docs:   storage.NewDocumentStore(db, driver),
	}, nil
}

func (a *app) embedder(ctx context.Context) (embedding.Embedder, error) {
	return retrieval.NewEmbedder(ctx, a.cfg.Embedding)
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
