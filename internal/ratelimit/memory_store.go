package ratelimit

import (
	"context"
	"sync"
	"time"

	"verification-service/internal/bucketing"
	"verification-service/internal/models"
)

// MemoryStore keeps rate-limit records in sharded in-process maps. It is
// the development/single-instance backend; multi-instance deployments use
// RedisStore. A janitor goroutine sweeps records idle past the point where
// they can still influence a decision, so the maps stay bounded.
type MemoryStore struct {
	policy  Policy
	buckets *bucketing.BucketingManager
	shards  []*memoryShard
	stop    chan struct{}
	stopped sync.Once
}

type memoryShard struct {
	mu      sync.Mutex
	records map[string]*models.RateLimitRecord
}

func NewMemoryStore(policy Policy, buckets *bucketing.BucketingManager) *MemoryStore {
	shards := make([]*memoryShard, buckets.ShardCount())
	for i := range shards {
		shards[i] = &memoryShard{records: make(map[string]*models.RateLimitRecord)}
	}

	s := &MemoryStore{
		policy:  policy,
		buckets: buckets,
		shards:  shards,
		stop:    make(chan struct{}),
	}

	go s.janitor()

	return s
}

func (s *MemoryStore) CheckAndRecord(_ context.Context, key string, now time.Time) (Decision, error) {
	shard := s.shards[s.buckets.GetShard(key)]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.records[key]
	if !ok {
		shard.records[key] = &models.RateLimitRecord{
			Key:             key,
			Attempts:        1,
			WindowStartedAt: now,
			LastAttemptAt:   now,
		}
		return Decision{Allowed: true}, nil
	}

	if now.Sub(rec.WindowStartedAt) >= s.policy.Window {
		s.reset(rec, now)
		return Decision{Allowed: true}, nil
	}

	if rec.Attempts >= s.policy.MaxAttempts {
		remaining := s.policy.Cooldown - now.Sub(rec.LastAttemptAt)
		if remaining > 0 {
			// Denied attempts leave the record untouched; refreshing the
			// last-attempt time here would let a retry loop extend the
			// cooldown forever.
			return Decision{Allowed: false, RemainingCooldown: remaining}, nil
		}
		s.reset(rec, now)
		return Decision{Allowed: true}, nil
	}

	rec.Attempts++
	rec.LastAttemptAt = now
	return Decision{Allowed: true}, nil
}

func (s *MemoryStore) reset(rec *models.RateLimitRecord, now time.Time) {
	rec.Attempts = 1
	rec.WindowStartedAt = now
	rec.LastAttemptAt = now
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() {
	s.stopped.Do(func() { close(s.stop) })
}

func (s *MemoryStore) janitor() {
	interval := s.policy.Window
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep drops records whose last attempt is older than cooldown+window;
// such a record would be reset on its next attempt anyway.
func (s *MemoryStore) sweep(now time.Time) {
	horizon := s.policy.Cooldown + s.policy.Window

	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, rec := range shard.records {
			if now.Sub(rec.LastAttemptAt) >= horizon {
				delete(shard.records, key)
			}
		}
		shard.mu.Unlock()
	}
}
