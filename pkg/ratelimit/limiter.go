package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a token if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset refills the limiter to its full burst
	Reset()
}

// New returns a token bucket allowing requestsPerMinute with the given burst.
// A non-positive rate disables pacing.
func New(requestsPerMinute, burst int) Limiter {
	if requestsPerMinute <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(requestsPerMinute, burst)
}

// TokenBucket is a Limiter backed by golang.org/x/time/rate whose limits can
// be adjusted at runtime.
type TokenBucket struct {
	mu                sync.RWMutex
	limiter           *rate.Limiter
	requestsPerMinute int
	burst             int
}

// NewTokenBucket creates a token bucket limiter
func NewTokenBucket(requestsPerMinute, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		limiter:           rate.NewLimiter(perMinute(requestsPerMinute), burst),
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
	}
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(n))
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return tb.limiter.Allow()
}

// Wait blocks until the limiter allows a request or the context is canceled
func (tb *TokenBucket) Wait(ctx context.Context) error {
	tb.mu.RLock()
	limiter := tb.limiter
	tb.mu.RUnlock()
	return limiter.Wait(ctx)
}

// Reset restores the bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = rate.NewLimiter(perMinute(tb.requestsPerMinute), tb.burst)
}

// UpdateLimits adjusts the rate and burst, for example after the remote side
// signals throttling.
func (tb *TokenBucket) UpdateLimits(requestsPerMinute, burst int) {
	if burst < 1 {
		burst = 1
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.requestsPerMinute = requestsPerMinute
	tb.burst = burst
	tb.limiter.SetLimit(perMinute(requestsPerMinute))
	tb.limiter.SetBurst(burst)
}

// Limits returns the current rate and burst
func (tb *TokenBucket) Limits() (requestsPerMinute, burst int) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return tb.requestsPerMinute, tb.burst
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

func (Unlimited) Reset() {}
