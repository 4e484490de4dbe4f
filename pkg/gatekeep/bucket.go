package gatekeep

import (
	"sync"
	"time"
)

// Bucket is the per-client token bucket. Tokens accrue over time up to
// capacity and each admitted request spends one. All state is guarded by
// the bucket's own mutex, so concurrent checks on the same key never
// double-consume or lose a token.
type Bucket struct {
	capacity   int64     // Maximum number of tokens (burst size)
	tokens     float64   // Current available tokens
	refillRate float64   // Tokens added per second
	lastUpdate time.Time // Last refill or consumption
	mu         sync.Mutex
}

// NewBucket creates a full token bucket with the given capacity and
// refill rate.
func NewBucket(capacity int64, refillRate float64) (*Bucket, error) {
	return newBucketAt(capacity, refillRate, time.Now())
}

func newBucketAt(capacity int64, refillRate float64, now time.Time) (*Bucket, error) {
	if capacity <= 0 {
		return nil, ErrNonPositiveBurst
	}
	if refillRate <= 0 {
		return nil, ErrNonPositiveRefillRate
	}

	return &Bucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastUpdate: now,
	}, nil
}

// Take attempts to consume one token. It returns whether the request is
// admitted and, on denial, how long to wait before one token is available.
func (b *Bucket) Take() (bool, time.Duration) {
	return b.takeAt(time.Now())
}

func (b *Bucket) takeAt(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	needed := 1 - b.tokens
	wait := time.Duration(needed / b.refillRate * float64(time.Second))
	return false, wait
}

// refillLocked adds tokens for the time elapsed since lastUpdate, capped
// at capacity. MUST be called with b.mu held.
func (b *Bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > float64(b.capacity) {
			b.tokens = float64(b.capacity)
		}
	}
	b.lastUpdate = now
}

// Remaining returns the whole tokens currently available. The value is a
// snapshot and may change immediately under concurrent access.
func (b *Bucket) Remaining() int64 {
	return b.remainingAt(time.Now())
}

func (b *Bucket) remainingAt(now time.Time) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	return int64(b.tokens)
}

// Capacity returns the maximum number of tokens the bucket can hold.
func (b *Bucket) Capacity() int64 {
	return b.capacity
}

// RefillRate returns the tokens added per second.
func (b *Bucket) RefillRate() float64 {
	return b.refillRate
}

// LastUpdate returns the time of the last refill or consumption.
func (b *Bucket) LastUpdate() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpdate
}

// idleBefore reports whether the bucket has not been touched since cutoff.
// Taking the bucket mutex here is what keeps eviction from racing a
// concurrent Take on the same key.
func (b *Bucket) idleBefore(cutoff time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpdate.Before(cutoff)
}
