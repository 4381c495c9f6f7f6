package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bruinswipes/bruinswipes-backend/pkg/utils"
)

// Deletes the key only while it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockNotHeld is returned by Unlock when the lock expired or another
// holder took it over.
var ErrLockNotHeld = errors.New("lock not held")

// LockClient is the part of a Redis client the locker needs.
type LockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker is a SETNX lock holding a random token per acquisition. The TTL
// frees it if the holder dies; Unlock never deletes a lock someone else holds.
type RedisLocker struct {
	client LockClient
	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLocker(client LockClient) *RedisLocker {
	return &RedisLocker{client: client, tokens: make(map[string]string)}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token, err := utils.GenerateToken(16)
	if err != nil {
		return false, err
	}
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return ErrLockNotHeld
	}

	n, err := releaseLockScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
