package permissions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache stores computed per-user permission lists. Implementations are
// injected at construction so the staleness profile is a deployment choice:
// the in-memory backend is private to one process and goes stale across
// instances for up to the TTL after a role change, while the redis backend is
// shared and evicted everywhere at once.
type Cache interface {
	Get(ctx context.Context, userID string) ([]string, bool)
	Set(ctx context.Context, userID string, perms []string)
	Delete(ctx context.Context, userID string)
	Purge(ctx context.Context)
}

// MemoryCache is an expiring LRU suitable for a single-instance deployment.
type MemoryCache struct {
	lru *expirable.LRU[string, []string]
}

// NewMemoryCache builds a MemoryCache holding up to size users for ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 4096
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []string](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, userID string) ([]string, bool) {
	return c.lru.Get(userID)
}

func (c *MemoryCache) Set(_ context.Context, userID string, perms []string) {
	c.lru.Add(userID, perms)
}

func (c *MemoryCache) Delete(_ context.Context, userID string) {
	c.lru.Remove(userID)
}

func (c *MemoryCache) Purge(_ context.Context) {
	c.lru.Purge()
}

// RedisCache shares computed permissions across instances. Failures are
// treated as cache misses; eviction is best-effort by contract.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a RedisCache with the given ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(userID string) string {
	return "perm:user:" + userID
}

func (c *RedisCache) Get(ctx context.Context, userID string) ([]string, bool) {
	payload, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(payload, &perms); err != nil {
		return nil, false
	}
	return perms, true
}

func (c *RedisCache) Set(ctx context.Context, userID string, perms []string) {
	payload, err := json.Marshal(perms)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(userID), payload, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, userID string) {
	_ = c.client.Del(ctx, c.key(userID)).Err()
}

func (c *RedisCache) Purge(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, "perm:user:*", 0).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}
