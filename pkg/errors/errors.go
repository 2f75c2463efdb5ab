package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Class groups error types by how a caller should react to them
type Class string

const (
	// ClassTransient errors may succeed when retried
	ClassTransient Class = "transient"
	// ClassFatal errors abort the run; durable state stays untouched
	ClassFatal Class = "fatal"
	// ClassConfiguration errors are detected before any network call
	ClassConfiguration Class = "configuration"
)

// Error represents a typed error with an optional HTTP status code
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
	// Escalated marks an error whose type is normally transient but which
	// has been promoted to fatal by the caller's retry policy.
	Escalated bool
	// RetryAfter is the server's requested wait, zero when not given
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Class returns the class of this error
func (e *Error) Class() Class {
	if e.Escalated {
		return ClassFatal
	}
	return ClassOfType(e.Type)
}

// New creates a typed error
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// Wrap creates a typed error around an underlying cause
func Wrap(t ErrorType, err error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Configf is shorthand for a configuration error
func Configf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, 0, format, args...)
}

// Escalate returns a copy of err promoted to the fatal class.
// Errors that are not *Error are wrapped as unknown.
func Escalate(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		escalated := *apiErr
		escalated.Escalated = true
		return &escalated
	}
	return &Error{Type: ErrorTypeUnknown, Message: "escalated", Err: err, Escalated: true}
}

// ClassOfType maps an error type to its class
func ClassOfType(t ErrorType) Class {
	switch t {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeParsing:
		return ClassTransient
	case ErrorTypeConfig:
		return ClassConfiguration
	default:
		return ClassFatal
	}
}

// ClassOf returns the class of any error. Untyped errors are fatal.
func ClassOf(err error) Class {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Class()
	}
	return ClassFatal
}

// TypeOf returns the type of err, or ErrorTypeUnknown for untyped errors
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// RetryAfterOf returns the server-requested wait carried by err, if any
func RetryAfterOf(err error) time.Duration {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool {
	return err != nil && ClassOf(err) == ClassConfiguration
}
