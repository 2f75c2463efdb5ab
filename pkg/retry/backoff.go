package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"igarchive/pkg/config"
	errs "igarchive/pkg/errors"
)

// BackoffStrategy computes the wait before the next attempt
type BackoffStrategy interface {
	// NextDelay returns the delay after the given failed attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff waits BaseDelay * Multiplier^(attempt-1), spread by
// ±JitterFactor and capped at MaxDelay.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration // 0 means no cap
	Multiplier   float64       // values below 1 are treated as 1
	JitterFactor float64       // 0.0 to 1.0

	// Rand returns a value in [0, 1); defaults to math/rand
	Rand func() float64
}

// DefaultExponentialBackoff returns 1s, 2s, 4s... up to a minute, with 10% jitter
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NewExponentialBackoff builds the backoff described by the retry section of the config
func NewExponentialBackoff(rc config.RetryConfig) *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    rc.BaseDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.Multiplier,
		JitterFactor: rc.JitterFactor,
	}
}

// NextDelay implements BackoffStrategy. The result never exceeds MaxDelay.
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 || eb.BaseDelay <= 0 {
		return 0
	}

	growth := math.Max(eb.Multiplier, 1)
	delay := float64(eb.BaseDelay) * math.Pow(growth, float64(attempt-1))
	delay = eb.clamp(delay)

	if eb.JitterFactor > 0 {
		random := eb.Rand
		if random == nil {
			random = rand.Float64
		}
		spread := delay * math.Min(eb.JitterFactor, 1)
		delay = eb.clamp(delay - spread + 2*spread*random())
	}

	return time.Duration(delay)
}

func (eb *ExponentialBackoff) clamp(delay float64) float64 {
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		return float64(eb.MaxDelay)
	}
	return math.Max(delay, 0)
}

// delayAfter returns the wait after a failed attempt: the backoff delay, or
// the server-requested Retry-After carried by err when that is longer.
func delayAfter(b BackoffStrategy, attempt int, err error) time.Duration {
	var delay time.Duration
	if b != nil {
		delay = b.NextDelay(attempt)
	}
	if after := errs.RetryAfterOf(err); after > delay {
		return after
	}
	return delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
