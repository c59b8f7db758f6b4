// Package ratelimit provides a keyed token-bucket rate limiter. The dev
// server keys it by client address, so idle entries are evicted to keep
// the map bounded.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleAfter is how long a key can go unused before its limiter is dropped.
const idleAfter = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter manages per-key rate limiting. Each unique key gets
// its own independent token bucket.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a keyed rate limiter allowing rps requests per second
// with the given burst per key.
func New(rps float64, burst int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(rps),
		burst:   burst,
		done:    make(chan struct{}),
	}

	go krl.evictLoop()

	return krl
}

// Allow reports whether a request for the given key may proceed,
// without blocking. Use for inbound request protection.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for the given key is allowed or the
// context is canceled. Use for outbound requests.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	e, ok := krl.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Stop shuts down the eviction goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

func (krl *KeyedRateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case now := <-ticker.C:
			krl.sweep(now)
		}
	}
}

func (krl *KeyedRateLimiter) sweep(now time.Time) {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	for key, e := range krl.entries {
		if now.Sub(e.lastSeen) > idleAfter {
			delete(krl.entries, key)
		}
	}
}
