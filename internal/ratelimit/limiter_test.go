package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"verification-service/internal/bucketing"
	"verification-service/internal/config"
)

func testPolicy() Policy {
	return Policy{
		Window:      60 * time.Second,
		MaxAttempts: 3,
		Cooldown:    5 * time.Minute,
	}
}

func testBuckets() *bucketing.BucketingManager {
	cfg := &config.Config{
		Bucketing: config.BucketingConfig{EventBuckets: 16, ShardCount: 8},
	}
	return bucketing.NewBucketingManager(cfg)
}

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore(testPolicy(), testBuckets())
	t.Cleanup(store.Close)
	return store
}

func TestMemoryStoreAllowsUpToMaxAttempts(t *testing.T) {
	store := newTestMemoryStore(t)
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

func TestMemoryStoreRemainingCooldown(t *testing.T) {
	store := newTestMemoryStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Three requests within ten seconds saturate the window.
	for i := 0; i < 3; i++ {
		decision, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(time.Duration(5*i)*time.Second))
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	// A fourth request five seconds after the last accepted one is
	// rejected with five minutes minus five seconds remaining.
	decision, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(15*time.Second))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 5*time.Minute-5*time.Second, decision.RemainingCooldown)
}

func TestMemoryStoreDenialDoesNotExtendCooldown(t *testing.T) {
	store := newTestMemoryStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := store.CheckAndRecord(ctx, "a@b.com:login", base)
		require.NoError(t, err)
	}

	first, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(10*time.Second))
	require.NoError(t, err)
	require.False(t, first.Allowed)

	// A later denied retry sees a shorter remaining cooldown, not a
	// restarted one.
	second, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(30*time.Second))
	require.NoError(t, err)
	require.False(t, second.Allowed)
	assert.Less(t, second.RemainingCooldown, first.RemainingCooldown)
	assert.Equal(t, 5*time.Minute-30*time.Second, second.RemainingCooldown)
}

func TestMemoryStoreWindowElapsedResets(t *testing.T) {
	store := newTestMemoryStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, err := store.CheckAndRecord(ctx, "a@b.com:login", base)
		require.NoError(t, err)
	}

	// Past the window the record resets; the key gets a fresh budget.
	later := base.Add(61 * time.Second)
	for i := 0; i < 3; i++ {
		decision, err := store.CheckAndRecord(ctx, "a@b.com:login", later.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "attempt %d after reset should be allowed", i+1)
	}

	decision, err := store.CheckAndRecord(ctx, "a@b.com:login", later.Add(5*time.Second))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestMemoryStoreCooldownElapsedAllows(t *testing.T) {
	store := newTestMemoryStore(t)
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

func TestMemoryStoreKeysIndependent(t *testing.T) {
	store := newTestMemoryStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := store.CheckAndRecord(ctx, "a@b.com:login", base)
		require.NoError(t, err)
	}

	blocked, err := store.CheckAndRecord(ctx, "a@b.com:login", base.Add(time.Second))
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	// Same recipient, different purpose: separate key, separate budget.
	other, err := store.CheckAndRecord(ctx, "a@b.com:signup", base.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	third, err := store.CheckAndRecord(ctx, "c@d.com:login", base.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, third.Allowed)
}

func TestMemoryStoreConcurrentSameKey(t *testing.T) {
	store := newTestMemoryStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	const goroutines = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := store.CheckAndRecord(ctx, "a@b.com:login", base)
			require.NoError(t, err)
			if decision.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// No lost updates: exactly the per-window budget is granted.
	assert.Equal(t, 3, allowed)
}

func TestLimiterKey(t *testing.T) {
	assert.Equal(t, "a@b.com:login", Key("a@b.com", "login"))
}

func TestLimiterChecksStore(t *testing.T) {
	store := newTestMemoryStore(t)
	limiter := NewLimiter(store, zap.NewNop())

	decision, err := limiter.CheckAndRecordAttempt(context.Background(), Key("a@b.com", "login"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
