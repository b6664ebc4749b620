// Package errors provides the shared error vocabulary for connpool.
//
// Packages define their own sentinels by wrapping the generic ones declared
// here, so callers can test for a broad condition (errors.Is(err, ErrTimeout))
// without knowing which package produced the error.
//
// This package provides:
//   - Sentinel errors for common error conditions
//   - Numeric error codes for reporting and metrics labels
//   - A coded Error type that keeps the cause for debugging
package errors

import (
	"errors"
	"fmt"
)

// Error codes. Zero is never used so an unset code is detectable.
const (
	CodeInternal      = 1 // Unclassified failure
	CodeInvalidInput  = 2 // Caller supplied invalid arguments
	CodeConfiguration = 3 // Invalid configuration
	CodeClosed        = 4 // Resource already closed
	CodeTimeout       = 5 // Deadline elapsed
	CodeUnavailable   = 6 // Backend not available
	CodeConnection    = 7 // Connection could not be established
	CodeInvalidState  = 8 // Operation not valid in the current state
	CodeRateLimited   = 9 // Rate limit exceeded
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")

	// ErrClosed indicates a resource is closed.
	ErrClosed = errors.New("closed")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates a backend is unavailable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrConnection indicates a connection error.
	ErrConnection = errors.New("connection error")

	// ErrInvalidState indicates an invalid state transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrRateLimited indicates a rate limit was exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")

	// ErrCircuitOpen indicates the circuit breaker is open.
	ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", ErrUnavailable)
)

// Error is a coded error carrying a short message and an optional cause.
type Error struct {
	// Code categorizes the error.
	Code int `json:"code"`
	// Message is a short description without internal details.
	Message string `json:"message"`
	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// FromSentinel creates a coded error from any error wrapping one of the
// sentinels above. Unknown errors map to CodeInternal.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}
	code := Code(err)
	log.WithField("code", code).WithError(err).Debug("classified error")
	return &Error{
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}

// Code returns the error code for err. A coded *Error in the chain wins over
// sentinel matching.
func Code(err error) int {
	var coded *Error
	if errors.As(err, &coded) && coded.Code != 0 {
		return coded.Code
	}

	switch {
	case errors.Is(err, ErrClosed):
		return CodeClosed
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, ErrConnection):
		return CodeConnection
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsUnavailable returns true if the error indicates a backend is unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Join combines multiple errors into a single error.
// Returns nil if all errors are nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
