package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modelforge-ai/platform/pkg/common/config"
	"github.com/modelforge-ai/platform/pkg/common/database"
	"github.com/modelforge-ai/platform/pkg/common/logger"
	"github.com/modelforge-ai/platform/pkg/common/models"
)

const resultKeyPrefix = "finetune:result:"

// Tier boundaries on processing time. Results that took longer to produce
// are worth keeping longer.
const (
	mediumTierMinDuration = 30 * time.Second
	longTierMinDuration   = 5 * time.Minute
)

// ResultCache keeps completed fine-tuning results in Redis, tiered by how
// expensive they were to produce.
type ResultCache struct {
	client    *redis.Client
	ttlShort  time.Duration
	ttlMedium time.Duration
	ttlLong   time.Duration
}

func NewResultCache() *ResultCache {
	cfg := config.Load()
	return &ResultCache{
		client:    database.GetRedis(),
		ttlShort:  cfg.CacheTTLShort,
		ttlMedium: cfg.CacheTTLMedium,
		ttlLong:   cfg.CacheTTLLong,
	}
}

func (c *ResultCache) Get(ctx context.Context, key string) (*models.FineTuningResult, bool, error) {
	raw, err := c.client.Get(ctx, resultKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result models.FineTuningResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %q: %w", key, err)
	}
	return &result, true, nil
}

func (c *ResultCache) Set(ctx context.Context, key string, result *models.FineTuningResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	ttl := c.tierTTL(result.Metadata.ProcessingTime)
	if err := c.client.Set(ctx, resultKeyPrefix+key, payload, ttl).Err(); err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"cache_key": key,
		"ttl":       ttl.String(),
	}).Debug("Cached fine-tuning result")
	return nil
}

func (c *ResultCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, resultKeyPrefix+key).Err()
}

// ListKeys returns every cached fingerprint, without the storage prefix.
func (c *ResultCache) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.client.Scan(ctx, cursor, resultKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range batch {
			keys = append(keys, strings.TrimPrefix(key, resultKeyPrefix))
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (c *ResultCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		batch, next, err := c.client.Scan(ctx, cursor, resultKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *ResultCache) tierTTL(processing time.Duration) time.Duration {
	switch {
	case processing >= longTierMinDuration:
		return c.ttlLong
	case processing >= mediumTierMinDuration:
		return c.ttlMedium
	default:
		return c.ttlShort
	}
}
