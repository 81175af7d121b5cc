package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalBuckets keeps one in-process bucket per key. Used when no redis is
// configured; limits then apply per instance.
type LocalBuckets struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	rate    rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

func NewLocalBuckets(perSecond float64, burst int) *LocalBuckets {
	return &LocalBuckets{
		entries: make(map[string]*localEntry),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		idle:    bucketTTL(perSecond, burst),
		now:     time.Now,
	}
}

func (b *LocalBuckets) Allow(_ context.Context, key string) (Result, error) {
	now := b.now()

	b.mu.Lock()
	entry, ok := b.entries[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(b.rate, b.burst)}
		b.entries[key] = entry
	}
	entry.lastSeen = now
	b.mu.Unlock()

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Result{Limit: b.burst}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Result{Limit: b.burst, RetryAfter: delay}, nil
	}
	return Result{
		Allowed:   true,
		Limit:     b.burst,
		Remaining: int(entry.limiter.TokensAt(now)),
	}, nil
}

// Sweep drops buckets idle for longer than a full refill.
func (b *LocalBuckets) Sweep() {
	cutoff := b.now().Add(-b.idle)
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, entry := range b.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(b.entries, key)
		}
	}
}

func (b *LocalBuckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
