package settle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "settle:result:"

// Cache keeps the latest settlement result per period in Redis so the API can
// serve reads without touching the archive.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// StoreResult caches the result under its period, replacing any prior run.
func (c *Cache) StoreResult(ctx context.Context, result Result) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("settle cache: marshal: %w", err)
	}
	return c.client.Set(ctx, cacheKeyPrefix+result.Period, data, c.ttl).Err()
}

// Result loads the cached result for a period; ok is false on a miss.
func (c *Cache) Result(ctx context.Context, period string) (Result, bool, error) {
	if c == nil || c.client == nil {
		return Result{}, false, nil
	}
	data, err := c.client.Get(ctx, cacheKeyPrefix+period).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, false, fmt.Errorf("settle cache: unmarshal: %w", err)
	}
	return result, true, nil
}

// Invalidate drops the cached result for a period.
func (c *Cache) Invalidate(ctx context.Context, period string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKeyPrefix+period).Err()
}
