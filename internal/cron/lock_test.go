package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements redisStore against an in-memory map.
type fakeRedis struct {
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var deleted int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			deleted++
		}
	}
	return redis.NewIntResult(deleted, nil)
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	store := newFakeRedis()
	lock, err := NewRedisLock(store, "worker:lock:test", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, store.values, "worker:lock:test")

	require.NoError(t, lock.Release(context.Background()))
	assert.NotContains(t, store.values, "worker:lock:test")
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newFakeRedis()
	first, err := NewRedisLock(store, "worker:lock:test", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "worker:lock:test", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLockReleaseOnlyOwnValue(t *testing.T) {
	store := newFakeRedis()
	lock, err := NewRedisLock(store, "worker:lock:test", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate TTL expiry plus takeover by another instance
	store.values["worker:lock:test"] = "other-owner"

	require.NoError(t, lock.Release(context.Background()))
	assert.Equal(t, "other-owner", store.values["worker:lock:test"])
}

func TestRedisLockReleaseWithoutAcquireIsNoop(t *testing.T) {
	store := newFakeRedis()
	lock, err := NewRedisLock(store, "worker:lock:test", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, lock.Release(context.Background()))
}

func TestNewRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(newFakeRedis(), "", time.Minute)
	assert.Error(t, err)
}
