package ratelimit

import (
	"context"
	"fmt"
	"time"

	"verification-service/internal/client"
)

const rateLimitPrefix = "rate_limit:"

// checkAndRecordLua performs the full check-and-record decision in one
// atomic script so concurrent attempts for the same key cannot lose
// updates. Times travel as unix milliseconds from the caller's clock.
//
// KEYS[1] = record key
// ARGV[1] = now (ms), ARGV[2] = window (ms), ARGV[3] = max attempts,
// ARGV[4] = cooldown (ms)
//
// Returns {allowed (0/1), remaining cooldown (ms)}.
const checkAndRecordLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max_attempts = tonumber(ARGV[3])
local cooldown = tonumber(ARGV[4])
local retention = window + cooldown

local rec = redis.call('HMGET', key, 'attempts', 'window_started_at', 'last_attempt_at')
local attempts = tonumber(rec[1])

if not attempts then
    redis.call('HSET', key, 'attempts', 1, 'window_started_at', now, 'last_attempt_at', now)
    redis.call('PEXPIRE', key, retention)
    return {1, 0}
end

local window_started_at = tonumber(rec[2])
local last_attempt_at = tonumber(rec[3])

if now - window_started_at >= window then
    redis.call('HSET', key, 'attempts', 1, 'window_started_at', now, 'last_attempt_at', now)
    redis.call('PEXPIRE', key, retention)
    return {1, 0}
end

if attempts >= max_attempts then
    local remaining = cooldown - (now - last_attempt_at)
    if remaining > 0 then
        return {0, remaining}
    end
    redis.call('HSET', key, 'attempts', 1, 'window_started_at', now, 'last_attempt_at', now)
    redis.call('PEXPIRE', key, retention)
    return {1, 0}
end

redis.call('HSET', key, 'attempts', attempts + 1, 'last_attempt_at', now)
redis.call('PEXPIRE', key, retention)
return {1, 0}
`

// RedisStore backs the limiter with Redis so all server instances share
// attempt counts. Keys expire via TTL once they can no longer influence a
// decision.
type RedisStore struct {
	client *client.RedisClient
	policy Policy
}

func NewRedisStore(redisClient *client.RedisClient, policy Policy) *RedisStore {
	return &RedisStore{client: redisClient, policy: policy}
}

func (s *RedisStore) CheckAndRecord(ctx context.Context, key string, now time.Time) (Decision, error) {
	result, err := s.client.Eval(ctx, checkAndRecordLua,
		[]string{rateLimitPrefix + key},
		now.UnixMilli(),
		s.policy.Window.Milliseconds(),
		s.policy.MaxAttempts,
		s.policy.Cooldown.Milliseconds(),
	)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{}, fmt.Errorf("unexpected rate limit script result: %v", result)
	}

	allowed, _ := values[0].(int64)
	remainingMs, _ := values[1].(int64)

	return Decision{
		Allowed:           allowed == 1,
		RemainingCooldown: time.Duration(remainingMs) * time.Millisecond,
	}, nil
}
