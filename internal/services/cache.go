package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// DefaultProfileCacheTTL bounds how stale a cached profile can get
	// when an invalidation is lost.
	DefaultProfileCacheTTL = 10 * time.Minute
)

// ProfileCache holds public profiles keyed by email. Misses return (nil, nil).
type ProfileCache interface {
	Get(ctx context.Context, email string) (*models.Profile, error)
	Set(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, email string) error
}

// RedisProfileCache stores profiles as JSON in Redis.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = DefaultProfileCacheTTL
	}
	return &RedisProfileCache{client: client, ttl: ttl}
}

func (c *RedisProfileCache) Get(ctx context.Context, email string) (*models.Profile, error) {
	val, err := c.client.Get(ctx, profileCacheKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, profile *models.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileCacheKey(profile.Email), data, c.ttl).Err()
}

func (c *RedisProfileCache) Delete(ctx context.Context, email string) error {
	return c.client.Del(ctx, profileCacheKey(email)).Err()
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s%s:%s", CacheKeyPrefix, resource, identifier)
}

func profileCacheKey(email string) string {
	return CacheKey("profile", strings.ToLower(strings.TrimSpace(email)))
}
