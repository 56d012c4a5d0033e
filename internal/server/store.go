package server

import (
	"context"
	"fmt"

	"invoiceflow/internal/config"
	"invoiceflow/internal/database"
	"invoiceflow/internal/export"
	"invoiceflow/internal/store"

	"github.com/rs/zerolog"
)

// Migrator is implemented by stores that manage a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// OpenStore connects the catalog store selected by cfg. The returned
// function releases its connections.
func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.CatalogStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory catalog store, data is lost on exit")
		return store.NewMemory(logger), func() {}, nil

	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return store.NewPostgres(pool, logger), pool.Close, nil

	case config.DriverRedis:
		client, err := database.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		return store.NewRedis(client, cfg.Redis.Prefix, logger), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// Migrate applies the schema when the store has one.
func Migrate(ctx context.Context, s store.CatalogStore, logger zerolog.Logger) error {
	m, ok := s.(Migrator)
	if !ok {
		logger.Info().Msg("store has no schema to migrate")
		return nil
	}
	return m.Migrate(ctx)
}

// NewSink builds the export sink: S3 with a local fallback when S3 is
// enabled, the local directory otherwise.
func NewSink(ctx context.Context, cfg config.ExportConfig, logger zerolog.Logger) export.Sink {
	fileSink := export.NewFileSink(cfg.LocalDir, logger)
	if !cfg.S3.Enabled {
		logger.Info().Str("dir", cfg.LocalDir).Msg("using local file system for exports (S3 disabled)")
		return fileSink
	}

	s3Sink, err := export.NewS3Sink(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 sink, falling back to local file system only")
		return fileSink
	}
	return export.NewFallbackSink(s3Sink, fileSink, true, logger)
}
