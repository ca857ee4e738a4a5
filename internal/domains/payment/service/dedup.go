package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// =====================================================
// WEBHOOK DEDUP CACHE
// =====================================================

// DedupCache marks payload digests on first sight. Advisory only: the
// conditional status update is what actually makes replays safe, the
// marker just surfaces duplicate deliveries in the logs.
type DedupCache interface {
	// MarkOnce returns true when key was not seen within the TTL
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisDedupCache struct {
	client *redis.Client
}

func NewRedisDedupCache(client *redis.Client) DedupCache {
	return &redisDedupCache{client: client}
}

func (c *redisDedupCache) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, "payment:webhook:seen:"+key, 1, ttl).Result()
}
