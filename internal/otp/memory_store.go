package otp

import (
	"context"
	"sync"
	"time"

	"verification-service/internal/bucketing"
	"verification-service/internal/models"
)

// MemoryStore keeps OTP entries in sharded in-process maps, one mutex per
// shard. Expired entries are removed lazily on read and by a periodic
// sweep.
type MemoryStore struct {
	buckets *bucketing.BucketingManager
	shards  []*memoryShard
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]*models.OTPEntry
}

func NewMemoryStore(buckets *bucketing.BucketingManager) *MemoryStore {
	shards := make([]*memoryShard, buckets.ShardCount())
	for i := range shards {
		shards[i] = &memoryShard{entries: make(map[string]*models.OTPEntry)}
	}

	s := &MemoryStore{
		buckets: buckets,
		shards:  shards,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go s.janitor()

	return s
}

func entryKey(recipient string, purpose Purpose) string {
	return string(purpose) + ":" + recipient
}

func (s *MemoryStore) shard(key string) *memoryShard {
	return s.shards[s.buckets.GetShard(key)]
}

func (s *MemoryStore) Save(_ context.Context, entry *models.OTPEntry, _ time.Duration) error {
	key := entryKey(entry.Recipient, Purpose(entry.Purpose))
	shard := s.shard(key)

	copied := *entry

	shard.mu.Lock()
	shard.entries[key] = &copied
	shard.mu.Unlock()

	return nil
}

func (s *MemoryStore) Get(_ context.Context, recipient string, purpose Purpose) (*models.OTPEntry, error) {
	key := entryKey(recipient, purpose)
	shard := s.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok {
		return nil, nil
	}

	copied := *entry
	return &copied, nil
}

func (s *MemoryStore) Consume(_ context.Context, recipient string, purpose Purpose, entryID string) (bool, error) {
	key := entryKey(recipient, purpose)
	shard := s.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok || entry.ID != entryID || entry.Consumed {
		return false, nil
	}

	entry.Consumed = true
	return true, nil
}

func (s *MemoryStore) Remove(_ context.Context, recipient string, purpose Purpose, entryID string) error {
	key := entryKey(recipient, purpose)
	shard := s.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if entry, ok := shard.entries[key]; ok && entry.ID == entryID {
		delete(shard.entries, key)
	}
	return nil
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() {
	s.stopped.Do(func() { close(s.stop) })
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, entry := range shard.entries {
			if now.After(entry.ExpiresAt) {
				delete(shard.entries, key)
			}
		}
		shard.mu.Unlock()
	}
}
