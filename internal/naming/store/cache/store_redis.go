package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/millisami/flow-name-service/pkg/domain"
)

// Redis key prefix for cached record snapshots
const recordKeyPrefix = "ns:record:"

// RedisCache is a Redis-backed RecordCache for deployments where multiple
// instances share the read cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, nameHash string) (*domain.RecordInfo, error) {
	payload, err := c.client.Get(ctx, recordKeyPrefix+nameHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info domain.RecordInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		// A corrupt entry is a miss; the caller refreshes it.
		return nil, nil
	}
	return &info, nil
}

func (c *RedisCache) Set(ctx context.Context, nameHash string, info domain.RecordInfo, ttl time.Duration) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, recordKeyPrefix+nameHash, payload, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, nameHash string) error {
	return c.client.Del(ctx, recordKeyPrefix+nameHash).Err()
}
