package otp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"verification-service/internal/bucketing"
	"verification-service/internal/config"
	"verification-service/internal/hashing"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "development",
		Hashing: config.HashingConfig{
			Argon2MemoryCost:   8192,
			Argon2TimeCost:     1,
			Argon2Parallelism:  1,
			PepperRotationDays: 30,
		},
		Bucketing: config.BucketingConfig{EventBuckets: 16, ShardCount: 8},
		OTP: config.OTPConfig{
			TTL:        10 * time.Minute,
			CodeLength: 6,
		},
	}
}

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()

	cfg := testConfig()
	buckets := bucketing.NewBucketingManager(cfg)
	store := NewMemoryStore(buckets)
	t.Cleanup(store.Close)

	svc := NewService(store, hashing.NewHasher(cfg), cfg.OTP, zap.NewNop())
	return svc, store
}

func TestGenerateAndVerify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, expiresAt, err := svc.Generate(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)
	require.Len(t, code, 6)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	result, err := svc.Verify(ctx, "a@b.com", PurposeLogin, code)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Reason)
}

func TestVerifyConsumesExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, _, err := svc.Generate(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)

	first, err := svc.Verify(ctx, "a@b.com", PurposeLogin, code)
	require.NoError(t, err)
	require.True(t, first.Valid)

	second, err := svc.Verify(ctx, "a@b.com", PurposeLogin, code)
	require.NoError(t, err)
	assert.False(t, second.Valid)
	assert.Equal(t, ReasonAlreadyUsed, second.Reason)
}

func TestVerifyMismatchDoesNotConsume(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, _, err := svc.Generate(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	result, err := svc.Verify(ctx, "a@b.com", PurposeLogin, wrong)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonMismatch, result.Reason)

	// The entry survives a mismatch; the right code still works.
	result, err = svc.Verify(ctx, "a@b.com", PurposeLogin, code)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestVerifyNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Verify(context.Background(), "nobody@b.com", PurposeLogin, "123456")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)
}

func TestVerifyExpiredEntryIsDiscarded(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	code, expiresAt, err := svc.Generate(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, base.Add(10*time.Minute), expiresAt)

	svc.now = func() time.Time { return base.Add(10*time.Minute + time.Second) }

	result, err := svc.Verify(ctx, "a@b.com", PurposeLogin, code)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonExpired, result.Reason)

	// The expired entry is gone; a retry reports not-found rather than
	// expired.
	entry, err := store.Get(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRegenerateSupersedesPriorCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.Generate(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)

	second, _, err := svc.Generate(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)

	if first != second {
		result, err := svc.Verify(ctx, "a@b.com", PurposeLogin, first)
		require.NoError(t, err)
		assert.False(t, result.Valid, "superseded code must not verify")
	}

	result, err := svc.Verify(ctx, "a@b.com", PurposeLogin, second)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestPurposesAreIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	loginCode, _, err := svc.Generate(ctx, "a@b.com", PurposeLogin)
	require.NoError(t, err)

	result, err := svc.Verify(ctx, "a@b.com", PurposeSignup, loginCode)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)

	result, err = svc.Verify(ctx, "a@b.com", PurposeLogin, loginCode)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
