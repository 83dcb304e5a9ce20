package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"verification-service/internal/client"
	"verification-service/internal/models"
)

const otpPrefix = "otp:"

// consumeLua marks the stored entry consumed if and only if it is still
// the identified, unconsumed entry. Running the GET/check/SET inside one
// script is what makes a code accepted exactly once under concurrent
// verifies.
//
// KEYS[1] = entry key, ARGV[1] = entry id
// Returns 1 when this call performed the consume, otherwise 0.
const consumeLua = `
local data = redis.call('GET', KEYS[1])
if not data then
    return 0
end
local entry = cjson.decode(data)
if entry.id ~= ARGV[1] or entry.consumed then
    return 0
end
entry.consumed = true
local ttl = redis.call('PTTL', KEYS[1])
if ttl <= 0 then
    return 0
end
redis.call('SET', KEYS[1], cjson.encode(entry), 'PX', ttl)
return 1
`

// removeLua deletes the entry only if it is still the identified one, so
// removing an expired entry cannot race a superseding Save.
const removeLua = `
local data = redis.call('GET', KEYS[1])
if not data then
    return 0
end
local entry = cjson.decode(data)
if entry.id ~= ARGV[1] then
    return 0
end
redis.call('DEL', KEYS[1])
return 1
`

// RedisStore persists OTP entries as JSON values with a Redis TTL, so
// multiple server instances share verification state and expired entries
// evict themselves.
type RedisStore struct {
	client *client.RedisClient
}

func NewRedisStore(redisClient *client.RedisClient) *RedisStore {
	return &RedisStore{client: redisClient}
}

func redisKey(recipient string, purpose Purpose) string {
	return otpPrefix + string(purpose) + ":" + recipient
}

func (s *RedisStore) Save(ctx context.Context, entry *models.OTPEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal OTP entry: %w", err)
	}

	key := redisKey(entry.Recipient, Purpose(entry.Purpose))
	if err := s.client.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("failed to store OTP entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, recipient string, purpose Purpose) (*models.OTPEntry, error) {
	key := redisKey(recipient, purpose)

	data, err := s.client.Get(ctx, key)
	if err != nil {
		if strings.Contains(err.Error(), "key not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read OTP entry: %w", err)
	}

	var entry models.OTPEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode OTP entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) Consume(ctx context.Context, recipient string, purpose Purpose, entryID string) (bool, error) {
	result, err := s.client.Eval(ctx, consumeLua, []string{redisKey(recipient, purpose)}, entryID)
	if err != nil {
		return false, fmt.Errorf("consume script failed: %w", err)
	}

	consumed, _ := result.(int64)
	return consumed == 1, nil
}

func (s *RedisStore) Remove(ctx context.Context, recipient string, purpose Purpose, entryID string) error {
	if _, err := s.client.Eval(ctx, removeLua, []string{redisKey(recipient, purpose)}, entryID); err != nil {
		return fmt.Errorf("remove script failed: %w", err)
	}
	return nil
}
