package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verification-service/internal/client"
	"verification-service/internal/config"
	"verification-service/internal/models"
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

	return NewRedisStore(redisClient)
}

func testEntry(recipient string, purpose Purpose) *models.OTPEntry {
	now := time.Now().UTC()
	return &models.OTPEntry{
		ID:            uuid.New().String(),
		Recipient:     recipient,
		Purpose:       string(purpose),
		CodeHash:      "aGFzaA",
		CodeSalt:      "c2FsdA",
		HashAlgorithm: "argon2id-v1",
		PepperVersion: 1,
		CreatedAt:     now,
		ExpiresAt:     now.Add(10 * time.Minute),
	}
}

func TestRedisStoreSaveGetRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	entry := testEntry("a@b.com", PurposeLogin)
	require.NoError(t, store.Save(ctx, entry, 10*time.Minute))

	got, err := store.Get(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.CodeHash, got.CodeHash)
	assert.False(t, got.Consumed)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store := newTestRedisStore(t)

	got, err := store.Get(context.Background(), "nobody@b.com", PurposeLogin)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreConsumeExactlyOnce(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	entry := testEntry("a@b.com", PurposeLogin)
	require.NoError(t, store.Save(ctx, entry, 10*time.Minute))

	consumed, err := store.Consume(ctx, "a@b.com", PurposeLogin, entry.ID)
	require.NoError(t, err)
	assert.True(t, consumed)

	consumed, err = store.Consume(ctx, "a@b.com", PurposeLogin, entry.ID)
	require.NoError(t, err)
	assert.False(t, consumed)

	got, err := store.Get(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Consumed)
}

func TestRedisStoreConsumeWrongID(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	entry := testEntry("a@b.com", PurposeLogin)
	require.NoError(t, store.Save(ctx, entry, 10*time.Minute))

	consumed, err := store.Consume(ctx, "a@b.com", PurposeLogin, uuid.New().String())
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestRedisStoreSaveSupersedes(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	first := testEntry("a@b.com", PurposeLogin)
	require.NoError(t, store.Save(ctx, first, 10*time.Minute))

	second := testEntry("a@b.com", PurposeLogin)
	require.NoError(t, store.Save(ctx, second, 10*time.Minute))

	// The stale entry's ID can no longer consume the slot.
	consumed, err := store.Consume(ctx, "a@b.com", PurposeLogin, first.ID)
	require.NoError(t, err)
	assert.False(t, consumed)

	consumed, err = store.Consume(ctx, "a@b.com", PurposeLogin, second.ID)
	require.NoError(t, err)
	assert.True(t, consumed)
}

func TestRedisStoreRemoveOnlyMatchingID(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	entry := testEntry("a@b.com", PurposeLogin)
	require.NoError(t, store.Save(ctx, entry, 10*time.Minute))

	// A stale ID must not delete the current entry.
	require.NoError(t, store.Remove(ctx, "a@b.com", PurposeLogin, uuid.New().String()))
	got, err := store.Get(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, store.Remove(ctx, "a@b.com", PurposeLogin, entry.ID))
	got, err = store.Get(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)
	assert.Nil(t, got)
}
