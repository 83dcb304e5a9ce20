package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verification-service/internal/client"
	"verification-service/internal/config"
	"verification-service/internal/util"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := &config.Config{
		Environment: "development",
		Redis: config.RedisConfig{
			URL:      "redis://" + mr.Addr(),
			PoolSize: 10,
		},
	}

	redisClient, err := client.NewRedisClient(cfg, util.Get())
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	return NewRedisStore(redisClient, testPolicy())
}

func TestRedisStoreAllowsUpToMaxAttempts(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		decision, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "attempt %d should be allowed", i+1)
	}

	decision, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RemainingCooldown, time.Duration(0))
}

func TestRedisStoreRemainingCooldown(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		decision, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(time.Duration(5*i)*time.Second))
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	decision, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(15*time.Second))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 5*time.Minute-5*time.Second, decision.RemainingCooldown)
}

func TestRedisStoreWindowElapsedResets(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := store.CheckAndRecord(ctx, "a@b.com:login", base)
		require.NoError(t, err)
	}

	blocked, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(time.Second))
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	decision, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(5*time.Minute+time.Second))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestRedisStoreKeysIndependent(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := store.CheckAndRecord(ctx, "a@b.com:login", base)
		require.NoError(t, err)
	}

	blocked, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(time.Second))
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	other, err := store.CheckAndRecord(ctx, "a@b.com:signup", base.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}
