package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"verification-service/internal/config"
	"verification-service/internal/util"
)

// Decision is the outcome of one recorded attempt. The limiter never
// rejects with an error on the decision path; a denied attempt carries the
// remaining cooldown instead.
type Decision struct {
	Allowed           bool
	RemainingCooldown time.Duration
}

// Store applies one attempt for a key atomically: the read-modify-write of
// the key's record must not interleave with another attempt for the same
// key. Implementations: MemoryStore (sharded mutexes) and RedisStore (Lua
// script), so deployments with multiple instances can share state.
type Store interface {
	CheckAndRecord(ctx context.Context, key string, now time.Time) (Decision, error)
}

// Policy fixes the throttling behavior: up to MaxAttempts attempts per
// Window; once the window is saturated the key cools down for Cooldown
// measured from its last accepted attempt.
type Policy struct {
	Window      time.Duration
	MaxAttempts int
	Cooldown    time.Duration
}

// PolicyFromConfig copies the configured limits into a Policy.
func PolicyFromConfig(cfg config.RateLimitConfig) Policy {
	return Policy{
		Window:      cfg.Window,
		MaxAttempts: cfg.MaxAttempts,
		Cooldown:    cfg.Cooldown,
	}
}

// Limiter throttles request-code attempts per identity key.
type Limiter struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLimiter(store Store, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// CheckAndRecordAttempt records one attempt for key and reports whether it
// is allowed. Each call counts as a new attempt; callers must not retry a
// denied call expecting a different answer within the cooldown.
func (l *Limiter) CheckAndRecordAttempt(ctx context.Context, key string) (Decision, error) {
	decision, err := l.store.CheckAndRecord(ctx, key, l.now())
	if err != nil {
		return Decision{}, err
	}

	if !decision.Allowed {
		l.logger.Debug("Attempt rejected by rate limiter",
			util.String("key", key),
			util.Duration("remaining_cooldown", decision.RemainingCooldown),
		)
	}

	return decision, nil
}

// Key builds the composite identity key from a normalized recipient and
// purpose.
func Key(recipient, purpose string) string {
	return recipient + ":" + purpose
}
