// Package bootstrap opens the storage backends shared by the API and the expiry sweeper.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/repository"
	"github.com/noah-isme/serene-scheduler/pkg/cache"
	"github.com/noah-isme/serene-scheduler/pkg/config"
	"github.com/noah-isme/serene-scheduler/pkg/database"
	"github.com/noah-isme/serene-scheduler/pkg/storage"
)

const generationCachePrefix = "serene:cache"

// Backends holds the opened connections and the dataset store selected by DATASET_DRIVER.
type Backends struct {
	Datasets repository.DatasetStore
	Probes   map[string]func(ctx context.Context) error

	// Cache is nil unless the generation cache is enabled.
	Cache *repository.RedisRepository

	db    *sqlx.DB
	redis *redis.Client
}

// Open connects what cfg asks for. Redis is dialled once and shared when it backs both the
// datasets and the cache.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backends, error) {
	b := &Backends{Probes: make(map[string]func(ctx context.Context) error)}

	needRedis := cfg.Datasets.Driver == config.DatasetDriverRedis || cfg.Scheduler.CacheEnabled
	if needRedis {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		b.redis = client
		b.Probes["redis"] = cache.Probe(client)
	}

	switch cfg.Datasets.Driver {
	case config.DatasetDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.db = db
		repo := repository.NewDatasetRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("ensure dataset schema: %w", err)
		}
		b.Datasets = repo
		b.Probes["postgres"] = database.Probe(db)
	case config.DatasetDriverRedis:
		b.Datasets = repository.NewRedisRepository(b.redis, cfg.Datasets.RedisPrefix, logger)
	case config.DatasetDriverFile, "":
		local, err := storage.NewLocalStorage(cfg.Datasets.Dir)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Datasets = repository.NewFileRepository(local)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown dataset driver %q", cfg.Datasets.Driver)
	}

	if cfg.Scheduler.CacheEnabled {
		b.Cache = repository.NewRedisRepository(b.redis, generationCachePrefix, logger)
	}

	logger.Info("storage backends ready",
		zap.String("dataset_driver", cfg.Datasets.Driver),
		zap.Bool("generation_cache", b.Cache != nil))
	return b, nil
}

// Close releases every open connection.
func (b *Backends) Close() {
	if b.db != nil {
		_ = b.db.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}
