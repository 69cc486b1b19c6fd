package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket limiter used to pace calls to the upstream feed.
type Limiter struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      float64
	tokens     float64
	lastRefill time.Time
}

// New creates a limiter allowing rps requests per second with a burst of the
// same size.
func New(rps float64) *Limiter {
	if rps <= 0 {
		rps = 1.0
	}
	return &Limiter{
		rate:       rps,
		burst:      rps,
		tokens:     rps,
		lastRefill: time.Now(),
	}
}

// Allow reports whether a request may proceed now.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / l.rate)
	for {
		if l.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// refill must be called with the lock held.
func (l *Limiter) refill() {
	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now
}
