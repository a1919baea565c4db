package utils

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum gap between the end of one page request and
// the start of the next
type RateLimiter struct {
	mu       sync.Mutex
	lastDone time.Time
	delay    time.Duration
}

// NewRateLimiter creates a new RateLimiter with the given delay in milliseconds
func NewRateLimiter(delayMs int) *RateLimiter {
	return &RateLimiter{
		delay: time.Duration(delayMs) * time.Millisecond,
	}
}

// Wait blocks until the delay has passed since the last Done, or ctx is done.
// Before the first Done it returns at once.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	last := r.lastDone
	r.mu.Unlock()

	if last.IsZero() {
		return nil
	}
	remaining := r.delay - time.Since(last)
	if remaining <= 0 {
		return nil
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Done marks the end of a request; the next Wait measures from here
func (r *RateLimiter) Done() {
	r.mu.Lock()
	r.lastDone = time.Now()
	r.mu.Unlock()
}
