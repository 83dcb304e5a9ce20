package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"verification-service/internal/config"
)

// BucketingManager assigns identity strings to stable buckets. It backs
// two concerns: partition buckets for audit events, and shard selection
// for the sharded in-memory stores (per-shard locking keeps cross-key
// concurrency, one mutex per shard rather than a global lock).
type BucketingManager struct {
	eventBuckets int
	shardCount   int
	hasherPool   sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	bm := &BucketingManager{
		eventBuckets: cfg.Bucketing.EventBuckets,
		shardCount:   cfg.Bucketing.ShardCount,
	}

	// Pool of hash functions to avoid allocation overhead on the hot path
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// GetEventBucket returns the partition bucket for an audit event
// identifier (0 to eventBuckets-1).
func (bm *BucketingManager) GetEventBucket(identifier string) int {
	return bm.bucket(identifier, bm.eventBuckets)
}

// GetShard returns the store shard index for an identity key
// (0 to shardCount-1).
func (bm *BucketingManager) GetShard(key string) int {
	return bm.bucket(key, bm.shardCount)
}

// ShardCount reports how many shards the memory stores should allocate.
func (bm *BucketingManager) ShardCount() int {
	return bm.shardCount
}

// GetTimeBucket returns the start of the aligned time window containing now.
func (bm *BucketingManager) GetTimeBucket(windowSeconds int) int64 {
	return time.Now().Unix() / int64(windowSeconds) * int64(windowSeconds)
}

// GetDateBucket returns the UTC date partition for events.
func (bm *BucketingManager) GetDateBucket() string {
	return time.Now().UTC().Format("2006-01-02")
}

func (bm *BucketingManager) bucket(identifier string, buckets int) int {
	if buckets <= 1 {
		return 0
	}

	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	_, _ = hasher.Write([]byte(identifier))

	return int(hasher.Sum64() % uint64(buckets))
}
