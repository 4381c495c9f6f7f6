package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLockRedis keeps string keys in a map and runs the release script's
// compare-and-delete when it is evaluated.
type fakeLockRedis struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeLockRedis() *fakeLockRedis {
	return &fakeLockRedis{keys: make(map[string]string)}
}

func (f *fakeLockRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

// takeOver simulates the TTL running out and another holder taking the key.
func (f *fakeLockRedis) takeOver(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = value
}

func (f *fakeLockRedis) compareAndDelete(keys []string, args []interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeLockRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeLockRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeLockRedis) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeLockRedis) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeLockRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeLockRedis) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestRedisLockerExclusive(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeLockRedis()
	a, b := NewRedisLocker(rdb), NewRedisLocker(rdb)

	ok, err := a.TryLock(ctx, digestLockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx, digestLockKey, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, b.Unlock(ctx, digestLockKey), ErrLockNotHeld, "b never acquired it")
	assert.Contains(t, rdb.keys, digestLockKey)

	require.NoError(t, a.Unlock(ctx, digestLockKey))
	assert.NotContains(t, rdb.keys, digestLockKey)

	ok, err = b.TryLock(ctx, digestLockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerKeepsLockTakenOverAfterExpiry(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeLockRedis()
	a := NewRedisLocker(rdb)

	ok, err := a.TryLock(ctx, digestLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	rdb.takeOver(digestLockKey, "other-instance")

	assert.ErrorIs(t, a.Unlock(ctx, digestLockKey), ErrLockNotHeld)
	assert.Equal(t, "other-instance", rdb.keys[digestLockKey], "the new holder's lock survives")
}
