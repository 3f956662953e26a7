package errors

import (
	"errors"
	"fmt"
)

// NonRetriableError marks a failure that will fail identically on every
// retry: missing configuration, malformed values, unregistered node types.
// The dispatcher treats it as terminal without consulting any retry policy.
type NonRetriableError struct {
	Message string
	Cause   error
}

// NewNonRetriable creates a NonRetriableError with a plain message.
func NewNonRetriable(message string) *NonRetriableError {
	return &NonRetriableError{Message: message}
}

// NewNonRetriablef creates a NonRetriableError with a formatted message.
func NewNonRetriablef(format string, args ...interface{}) *NonRetriableError {
	return &NonRetriableError{Message: fmt.Sprintf(format, args...)}
}

// WrapNonRetriable wraps an existing error as non-retriable.
// Returns nil if cause is nil.
func WrapNonRetriable(cause error) *NonRetriableError {
	if cause == nil {
		return nil
	}
	return &NonRetriableError{Message: cause.Error(), Cause: cause}
}

// WrapNonRetriablef wraps an existing error as non-retriable with a
// formatted message prefix. Returns nil if cause is nil.
func WrapNonRetriablef(cause error, format string, args ...interface{}) *NonRetriableError {
	if cause == nil {
		return nil
	}
	return &NonRetriableError{
		Message: fmt.Sprintf(format, args...) + ": " + cause.Error(),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *NonRetriableError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NonRetriableError) Unwrap() error {
	return e.Cause
}

// IsNonRetriable reports whether err or any error in its chain is a
// NonRetriableError.
func IsNonRetriable(err error) bool {
	var nr *NonRetriableError
	return errors.As(err, &nr)
}
