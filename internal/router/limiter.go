package router

import (
	"sync"
	"time"
)

// maxIdleBuckets bounds the bucket map; full buckets are pruned once the
// map grows past it.
const maxIdleBuckets = 1024

// Limiter applies a token bucket per conversation so one chatty peer cannot
// monopolize the interpreter. Buckets start full and refill at refillRate
// tokens per refillPeriod.
type Limiter struct {
	capacity     int
	refillRate   int
	refillPeriod time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewLimiter creates a limiter. A capacity of zero or less disables
// limiting; Allow always succeeds.
func NewLimiter(capacity, refillRate int, refillPeriod time.Duration) *Limiter {
	return &Limiter{
		capacity:     capacity,
		refillRate:   refillRate,
		refillPeriod: refillPeriod,
		buckets:      make(map[string]*bucket),
	}
}

// Allow tries to consume a token for conversation, reporting whether the
// message may proceed.
func (l *Limiter) Allow(conversation string) bool {
	if l.capacity <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	b, ok := l.buckets[conversation]
	if !ok {
		if len(l.buckets) >= maxIdleBuckets {
			l.pruneLocked()
		}
		b = &bucket{tokens: l.capacity, lastRefill: now}
		l.buckets[conversation] = b
	}

	l.refillLocked(b, now)

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// refillLocked adds tokens for the refill periods elapsed since lastRefill,
// capped at capacity.
func (l *Limiter) refillLocked(b *bucket, now time.Time) {
	periods := int(now.Sub(b.lastRefill) / l.refillPeriod)
	if periods <= 0 {
		return
	}

	b.tokens += periods * l.refillRate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(periods) * l.refillPeriod)
}

// pruneLocked drops buckets that have refilled back to capacity; they carry
// no state worth keeping.
func (l *Limiter) pruneLocked() {
	now := time.Now()
	for conversation, b := range l.buckets {
		l.refillLocked(b, now)
		if b.tokens >= l.capacity {
			delete(l.buckets, conversation)
		}
	}
}
