package otp

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requires Redis on localhost:6379; skipped otherwise
const testRedisAddr = "localhost:6379"

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	prefix := "otp-test:" + t.Name() + ":"
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})
	return NewRedisStore(client, prefix)
}

func TestRedisStore_Key(t *testing.T) {
	s := NewRedisStore(nil, "otp:")
	assert.Equal(t, "otp:a@x.io", s.key("a@x.io"))
}

func TestRedisStore_PutGetDelete(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()

	exp := time.Now().Add(time.Minute)
	require.NoError(t, s.Put(ctx, "a@x.io", Entry{Code: "123456", ExpiresAt: exp}))

	e, ok, err := s.Get(ctx, "a@x.io")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "123456", e.Code)
	assert.WithinDuration(t, exp, e.ExpiresAt, 2*time.Second)

	require.NoError(t, s.Delete(ctx, "a@x.io"))
	_, ok, err = s.Get(ctx, "a@x.io")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_CompareAndDelete(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a@x.io", Entry{Code: "111111", ExpiresAt: time.Now().Add(time.Minute)}))

	ok, err := s.CompareAndDelete(ctx, "a@x.io", "222222")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CompareAndDelete(ctx, "a@x.io", "111111")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompareAndDelete(ctx, "a@x.io", "111111")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_PastExpiryIsNotStored(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a@x.io", Entry{Code: "123456", ExpiresAt: time.Now().Add(-time.Second)}))
	_, ok, err := s.Get(ctx, "a@x.io")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Purge(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
