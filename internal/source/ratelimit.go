package source

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every request to one upstream.
// A nil *RateLimiter never blocks.
type RateLimiter struct {
	tokens    int
	maxTokens int
	interval  time.Duration
	last      time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a bucket of maxTokens that gains one token every
// interval.
func NewRateLimiter(maxTokens int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:    maxTokens,
		maxTokens: maxTokens,
		interval:  interval,
		last:      time.Now(),
	}
}

// PerSecond allows n requests per second with a burst of n. n <= 0 disables
// limiting.
func PerSecond(n int) *RateLimiter {
	if n <= 0 {
		return nil
	}
	return NewRateLimiter(n, time.Second/time.Duration(n))
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}
	for {
		d := rl.reserve()
		if d == 0 {
			return nil
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// reserve takes a token and returns 0, or returns how long until the next
// token is due.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if add := int(now.Sub(rl.last) / rl.interval); add > 0 {
		rl.tokens += add
		rl.last = rl.last.Add(time.Duration(add) * rl.interval)
		if rl.tokens >= rl.maxTokens {
			rl.tokens = rl.maxTokens
			rl.last = now
		}
	}
	if rl.tokens > 0 {
		rl.tokens--
		return 0
	}
	return rl.interval - now.Sub(rl.last)
}
