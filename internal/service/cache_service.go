package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/models"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

const generationCachePrefix = "timetable:generate:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GenerationCache memoises generation results by input. Generation is deterministic, so a hit
// is indistinguishable from a fresh run.
type GenerationCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewGenerationCache constructs the cache. A nil repo disables it.
func NewGenerationCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *GenerationCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (c *GenerationCache) Enabled() bool {
	return c != nil && c.enabled && c.repo != nil
}

// Key hashes the canonical JSON of the input. Map keys are emitted sorted, so equal inputs
// produce equal keys.
func (c *GenerationCache) Key(input models.TimetableInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return generationCachePrefix + strconv.FormatUint(xxhash.Sum64(payload), 16), nil
}

// Lookup returns the cached result for input. Errors other than a miss are logged and treated
// as a miss.
func (c *GenerationCache) Lookup(ctx context.Context, input models.TimetableInput) (*models.GenerationResult, bool) {
	if !c.Enabled() {
		return nil, false
	}
	key, err := c.Key(input)
	if err != nil {
		return nil, false
	}
	var result models.GenerationResult
	if err := c.repo.Get(ctx, key, &result); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("generation cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		c.metrics.RecordCacheLookup(false)
		return nil, false
	}
	c.metrics.RecordCacheLookup(true)
	return &result, true
}

// Store caches result for input.
func (c *GenerationCache) Store(ctx context.Context, input models.TimetableInput, result *models.GenerationResult) {
	if !c.Enabled() || result == nil {
		return
	}
	key, err := c.Key(input)
	if err != nil {
		return
	}
	if err := c.repo.Set(ctx, key, result, c.ttl); err != nil {
		c.logger.Warn("generation cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached generation.
func (c *GenerationCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.repo.DeleteByPattern(ctx, generationCachePrefix+"*"); err != nil {
		c.logger.Warn("generation cache invalidate failed", zap.Error(err))
		return err
	}
	return nil
}
