package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	mu         sync.Mutex
	clock      clock.Clock
	tokens     int
	capacity   int
	rate       int // tokens per second
	lastRefill time.Time
	lastUsed   time.Time
}

// NewTokenBucket creates a new token bucket with the given rate and capacity
func NewTokenBucket(rate, capacity int, clk clock.Clock) *TokenBucket {
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &TokenBucket{
		clock:      clk,
		tokens:     capacity,
		capacity:   capacity,
		rate:       rate,
		lastRefill: now,
		lastUsed:   now,
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.clock.Now()
	tb.lastUsed = now
	tokensToAdd := int(now.Sub(tb.lastRefill).Seconds() * float64(tb.rate))
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) idleSince(cutoff time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastUsed.Before(cutoff)
}

// Limiter applies a global bucket and one bucket per key (client IP, session).
// A zero rate disables that level.
type Limiter struct {
	mu        sync.Mutex
	clock     clock.Clock
	global    *TokenBucket
	perKey    map[string]*TokenBucket
	keyRate   int
	burstSize int
}

// New creates a Limiter.
func New(globalRate, perKeyRate, burstSize int, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.New()
	}
	if burstSize <= 0 {
		burstSize = 1
	}
	l := &Limiter{
		clock:     clk,
		perKey:    make(map[string]*TokenBucket),
		keyRate:   perKeyRate,
		burstSize: burstSize,
	}
	if globalRate > 0 {
		l.global = NewTokenBucket(globalRate, burstSize, clk)
	}
	return l
}

// Allow reports whether a request for key may proceed.
func (l *Limiter) Allow(key string) bool {
	if l.global != nil && !l.global.Allow() {
		return false
	}
	if l.keyRate <= 0 {
		return true
	}
	l.mu.Lock()
	bucket, ok := l.perKey[key]
	if !ok {
		bucket = NewTokenBucket(l.keyRate, l.burstSize, l.clock)
		l.perKey[key] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}

// Sweep drops per-key buckets unused for longer than idle.
func (l *Limiter) Sweep(idle time.Duration) int {
	cutoff := l.clock.Now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.perKey {
		if b.idleSince(cutoff) {
			delete(l.perKey, key)
			removed++
		}
	}
	return removed
}

// Keys returns the number of tracked keys.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perKey)
}
