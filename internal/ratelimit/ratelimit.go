// Package ratelimit throttles HTTP clients with token buckets.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter is a token bucket.
type Limiter struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      int
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// NewLimiter creates a full bucket that refills at rate tokens per second
// up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return newLimiter(rate, burst, time.Now)
}

func newLimiter(rate float64, burst int, now func() time.Time) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastRefill: now(),
		now:        now,
	}
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.lastRefill = now

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// RetryAfter estimates how long until the next token is available.
func (l *Limiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	missing := 1 - l.tokens
	if missing <= 0 || l.rate <= 0 {
		return 0
	}
	return time.Duration(missing / l.rate * float64(time.Second))
}

func (l *Limiter) idleSince(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return now.Sub(l.lastRefill)
}

// Keyed keeps one Limiter per client key, usually the remote address.
// Buckets idle longer than the cleanup interval are dropped.
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rate     float64
	burst    int
	cleanup  time.Duration
	now      func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewKeyed creates a per-key limiter. Close stops its cleanup goroutine.
func NewKeyed(rate float64, burst int, cleanup time.Duration) *Keyed {
	k := &Keyed{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		burst:    burst,
		cleanup:  cleanup,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if cleanup > 0 {
		go k.cleanupLoop()
	}
	return k
}

func (k *Keyed) limiter(key string) *Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.limiters[key]
	if !ok {
		l = newLimiter(k.rate, k.burst, k.now)
		k.limiters[key] = l
	}
	return l
}

// Allow reports whether key may proceed.
func (k *Keyed) Allow(key string) bool {
	return k.limiter(key).Allow()
}

// RetryAfter estimates how long key has to wait.
func (k *Keyed) RetryAfter(key string) time.Duration {
	return k.limiter(key).RetryAfter()
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// Close stops the cleanup goroutine.
func (k *Keyed) Close() {
	k.closeOnce.Do(func() { close(k.done) })
}

func (k *Keyed) cleanupLoop() {
	ticker := time.NewTicker(k.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-k.done:
			return
		case <-ticker.C:
			k.prune()
		}
	}
}

func (k *Keyed) prune() {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	for key, l := range k.limiters {
		if l.idleSince(now) > k.cleanup {
			delete(k.limiters, key)
		}
	}
}
