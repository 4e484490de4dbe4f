package gatekeep

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// Store defines the interface for bucket storage implementations.
type Store interface {
	// GetBucket retrieves the bucket for the given key, creating a full
	// one on first sight.
	GetBucket(key string) (*Bucket, error)

	// Evict removes every bucket whose last update is older than cutoff
	// and returns the keys that were removed.
	Evict(cutoff time.Time) ([]string, error)

	// Count returns the total number of buckets in the store.
	Count() int
}

// storeShards is fixed and independent of key cardinality. Sharding keeps
// buckets for different keys from contending on a single lock.
const storeShards = 64

type storeShard struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
}

// InMemoryStore is a sharded in-memory Store. It is safe for concurrent
// use by request handlers and the evictor.
type InMemoryStore struct {
	shards     [storeShards]storeShard
	capacity   int64
	refillRate float64

	now func() time.Time // test hook
}

// NewInMemoryStore creates a store whose buckets are built with the given
// capacity and refill rate.
func NewInMemoryStore(capacity int64, refillRate float64) (*InMemoryStore, error) {
	if capacity <= 0 {
		return nil, ErrNonPositiveBurst
	}
	if refillRate <= 0 {
		return nil, ErrNonPositiveRefillRate
	}

	s := &InMemoryStore{
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
	for i := range s.shards {
		s.shards[i].buckets = make(map[string]*Bucket)
	}
	return s, nil
}

func (s *InMemoryStore) shard(key string) *storeShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.shards[h.Sum32()%storeShards]
}

// GetBucket retrieves or lazily creates the bucket for key.
func (s *InMemoryStore) GetBucket(key string) (*Bucket, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	sh := s.shard(key)

	// Fast path: bucket already exists.
	sh.mu.RLock()
	b, ok := sh.buckets[key]
	sh.mu.RUnlock()
	if ok {
		return b, nil
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	// Double-check: another goroutine might have created it.
	if b, ok := sh.buckets[key]; ok {
		return b, nil
	}

	b, err := newBucketAt(s.capacity, s.refillRate, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	sh.buckets[key] = b
	return b, nil
}

// Evict removes buckets idle since before cutoff. Each bucket's last
// update is checked under the bucket's own mutex, so an entry that a
// concurrent request just touched is never removed even when the scan
// began earlier.
func (s *InMemoryStore) Evict(cutoff time.Time) ([]string, error) {
	var removed []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, b := range sh.buckets {
			if b.idleBefore(cutoff) {
				delete(sh.buckets, key)
				removed = append(removed, key)
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Count returns the total number of buckets across all shards.
func (s *InMemoryStore) Count() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.buckets)
		sh.mu.RUnlock()
	}
	return n
}
