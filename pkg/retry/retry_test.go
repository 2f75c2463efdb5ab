package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igarchive/pkg/config"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
)

// recordSleeps replaces real waiting with a recorder
func recordSleeps(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func testConfig(maxAttempts int, delays *[]time.Duration) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:  100 * time.Millisecond,
			MaxDelay:   time.Second,
			Multiplier: 2.0,
		},
		Context: context.Background(),
		Logger:  logger.NewNopLogger(),
		Sleep:   recordSleeps(delays),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	backoff.Rand = func() float64 { return 0 }
	assert.Equal(t, 140*time.Millisecond, backoff.NextDelay(2))

	backoff.Rand = func() float64 { return 0.5 }
	assert.Equal(t, 200*time.Millisecond, backoff.NextDelay(2))

	// upward jitter never passes the cap
	backoff.Rand = func() float64 { return 0.99 }
	assert.Equal(t, time.Second, backoff.NextDelay(10))

	backoff.Rand = nil
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestExponentialBackoffDegenerate(t *testing.T) {
	assert.Zero(t, (&ExponentialBackoff{}).NextDelay(3))

	flat := &ExponentialBackoff{BaseDelay: 50 * time.Millisecond, Multiplier: 0.5}
	assert.Equal(t, 50*time.Millisecond, flat.NextDelay(4))

	uncapped := &ExponentialBackoff{BaseDelay: time.Second, Multiplier: 3}
	assert.Equal(t, 27*time.Second, uncapped.NextDelay(4))
}

func TestDelayAfter(t *testing.T) {
	backoff := &ExponentialBackoff{BaseDelay: time.Second, Multiplier: 2}
	limited := errs.New(errs.ErrorTypeRateLimit, 429, "slow down")

	assert.Equal(t, 2*time.Second, delayAfter(backoff, 2, limited))

	limited.RetryAfter = 10 * time.Second
	assert.Equal(t, 10*time.Second, delayAfter(backoff, 2, limited))
	assert.Equal(t, 10*time.Second, delayAfter(nil, 1, limited))

	limited.RetryAfter = time.Second
	assert.Equal(t, 4*time.Second, delayAfter(backoff, 3, limited))
}

func TestDoSucceedsAfterTransientErrors(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errs.New(errs.ErrorTypeServerError, 503, "unavailable")
		}
		return nil
	}, testConfig(5, &delays))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestDoExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	calls := 0
	cause := errs.New(errs.ErrorTypeNetwork, 0, "connection reset")

	err := Do(func(int) error {
		calls++
		return cause
	}, testConfig(3, &delays))

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2, "no wait after the final attempt")
	assert.True(t, IsExhausted(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestDoStopsOnFatalError(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(func(int) error {
		calls++
		return errs.New(errs.ErrorTypeAuth, 401, "login required")
	}, testConfig(5, &delays))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
	assert.False(t, IsExhausted(err))
	assert.Equal(t, errs.ClassFatal, errs.ClassOf(err))
}

func TestDoHonoursRetryAfter(t *testing.T) {
	var delays []time.Duration
	limited := errs.New(errs.ErrorTypeRateLimit, 429, "slow down")
	limited.RetryAfter = 5 * time.Second

	_ = Do(func(attempt int) error {
		if attempt == 1 {
			return limited
		}
		return nil
	}, testConfig(3, &delays))

	assert.Equal(t, []time.Duration{5 * time.Second}, delays)
}

func TestDoWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var delays []time.Duration
	cfg := testConfig(10, &delays)
	cfg.Context = ctx

	calls := 0
	err := Do(func(int) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errs.New(errs.ErrorTypeNetwork, 0, "timeout")
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
	assert.False(t, IsExhausted(err))
}

func TestDoCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var delays []time.Duration
	cfg := testConfig(3, &delays)
	cfg.Context = ctx

	err := Do(func(int) error {
		t.Fatal("operation must not run")
		return nil
	}, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCustomRetryIfAndOnRetry(t *testing.T) {
	var delays []time.Duration
	var seen []int
	cfg := testConfig(10, &delays)
	cfg.RetryIf = func(err error) bool {
		return errs.ClassOf(err) == errs.ClassTransient && len(seen) < 2
	}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	}

	err := Do(func(int) error {
		return errs.New(errs.ErrorTypeParsing, 200, "bad shape")
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen)
	assert.False(t, IsExhausted(err))
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeRateLimit, 429, "x")))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeParsing, 200, "x")))
	assert.False(t, DefaultRetryIf(errs.Escalate(errs.New(errs.ErrorTypeParsing, 200, "x"))))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeNotFound, 404, "x")))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errors.New("untyped")))
}

func TestDoWithResult(t *testing.T) {
	var delays []time.Duration
	result, err := DoWithResult(func(attempt int) (string, error) {
		if attempt == 1 {
			return "", errs.New(errs.ErrorTypeNetwork, 0, "blip")
		}
		return "page", nil
	}, testConfig(3, &delays))

	require.NoError(t, err)
	assert.Equal(t, "page", result)
}

func TestFromConfig(t *testing.T) {
	rc := config.DefaultConfig().Retry
	cfg := FromConfig(context.Background(), rc, nil)

	assert.Equal(t, rc.MaxAttempts, cfg.MaxAttempts)
	backoff, ok := cfg.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, rc.BaseDelay, backoff.BaseDelay)
	assert.Equal(t, rc.MaxDelay, backoff.MaxDelay)
	assert.Equal(t, rc.Multiplier, backoff.Multiplier)
	assert.Equal(t, rc.JitterFactor, backoff.JitterFactor)
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0))
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
