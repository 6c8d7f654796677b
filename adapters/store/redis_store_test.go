package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisStore connects to REDIS_URL and skips the test when it is unset
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	return NewRedisStore(client)
}

func TestRedisStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)
	key := "test-" + uuid.NewString()

	_, found, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, key, []byte(`[1,2]`), time.Minute))

	val, found, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte(`[1,2]`), val)
}

func TestRedisStore_Invalidation(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)
	jti := uuid.NewString()

	invalidated, err := s.IsTokenInvalidated(ctx, jti)
	require.NoError(t, err)
	assert.False(t, invalidated)

	require.NoError(t, s.InvalidateToken(ctx, jti, time.Minute))

	invalidated, err = s.IsTokenInvalidated(ctx, jti)
	require.NoError(t, err)
	assert.True(t, invalidated)
}
