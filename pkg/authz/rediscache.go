package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "atlvs:authz:perm:"

// RedisCache is a Cache backed by Redis, for deployments running several
// engine replicas: an invalidation issued on one replica is visible to all of
// them immediately instead of after the TTL. Redis errors degrade to cache
// misses; the resolver then falls through to the membership store.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client. Used by tests.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the underlying client.
func (c *RedisCache) Close() error { return c.client.Close() }

func redisKey(userID, orgID string) string {
	return redisKeyPrefix + userID + ":" + orgID
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, userID, orgID string) (CacheEntry, bool) {
	raw, err := c.client.Get(ctx, redisKey(userID, orgID)).Result()
	if err != nil {
		return CacheEntry{}, false
	}
	var entry CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return CacheEntry{}, false
	}
	return entry, true
}

// Put implements Cache. Marshal failures and write failures are treated as a
// cache that simply did not retain the entry.
func (c *RedisCache) Put(ctx context.Context, userID, orgID string, entry CacheEntry, ttl time.Duration) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	c.client.Set(ctx, redisKey(userID, orgID), data, ttl)
}

// Invalidate implements Cache.
func (c *RedisCache) Invalidate(ctx context.Context, userID, orgID string) {
	c.client.Del(ctx, redisKey(userID, orgID))
}

// InvalidateUser implements Cache.
func (c *RedisCache) InvalidateUser(ctx context.Context, userID string) {
	c.deletePattern(ctx, redisKeyPrefix+userID+":*")
}

// Flush implements Cache.
func (c *RedisCache) Flush(ctx context.Context) {
	c.deletePattern(ctx, redisKeyPrefix+"*")
}

func (c *RedisCache) deletePattern(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			c.client.Del(ctx, keys...)
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
