package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassOfType(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  Class
	}{
		{ErrorTypeNetwork, ClassTransient},
		{ErrorTypeRateLimit, ClassTransient},
		{ErrorTypeServerError, ClassTransient},
		{ErrorTypeParsing, ClassTransient},
		{ErrorTypeAuth, ClassFatal},
		{ErrorTypeNotFound, ClassFatal},
		{ErrorTypeStorage, ClassFatal},
		{ErrorTypeUnknown, ClassFatal},
		{ErrorTypeConfig, ClassConfiguration},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassOfType(tt.errorType))
		})
	}
}

func TestClassOfWrappedError(t *testing.T) {
	base := New(ErrorTypeRateLimit, 429, "rate limit exceeded")
	wrapped := fmt.Errorf("fetch page: %w", base)

	assert.Equal(t, ClassTransient, ClassOf(wrapped))
	assert.Equal(t, ErrorTypeRateLimit, TypeOf(wrapped))
	assert.Equal(t, ClassFatal, ClassOf(stderrors.New("plain")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
}

func TestEscalate(t *testing.T) {
	parsing := New(ErrorTypeParsing, 200, "unexpected response shape")
	require.Equal(t, ClassTransient, ClassOf(parsing))

	escalated := Escalate(fmt.Errorf("attempt 3: %w", parsing))
	assert.Equal(t, ClassFatal, ClassOf(escalated))
	assert.Equal(t, ErrorTypeParsing, TypeOf(escalated))

	// the original is left untouched
	assert.False(t, parsing.Escalated)
	assert.Nil(t, Escalate(nil))
	assert.Equal(t, ClassFatal, ClassOf(Escalate(stderrors.New("boom"))))
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrorTypeStorage, cause, "failed to write archive")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "storage error")
}

func TestIsConfiguration(t *testing.T) {
	assert.True(t, IsConfiguration(Configf("batch size must be positive, got %d", 0)))
	assert.False(t, IsConfiguration(New(ErrorTypeAuth, 401, "authentication required")))
	assert.False(t, IsConfiguration(nil))
}

func TestRetryAfterOf(t *testing.T) {
	err := New(ErrorTypeRateLimit, 429, "slow down")
	err.RetryAfter = 30 * time.Second

	assert.Equal(t, 30*time.Second, RetryAfterOf(fmt.Errorf("fetch: %w", err)))
	assert.Equal(t, time.Duration(0), RetryAfterOf(stderrors.New("plain")))
}
