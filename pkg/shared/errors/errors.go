// Package errors provides the operation-error taxonomy shared across the
// pipeline's stages: a structured OperationError plus the minimal set of
// constructors the pipeline actually builds on.
package errors

import (
	"fmt"
	"strings"
)

// OperationError describes a failed operation with enough structure for
// both human logs and programmatic classification.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString("failed to ")
	b.WriteString(e.Operation)
	if e.Component != "" {
		b.WriteString(", component: ")
		b.WriteString(e.Component)
	}
	if e.Resource != "" {
		b.WriteString(", resource: ")
		b.WriteString(e.Resource)
	}
	if e.Cause != nil {
		b.WriteString(", cause: ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds a minimal OperationError for an action and its cause.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &OperationError{Operation: action}
	}
	return &OperationError{Operation: action, Cause: cause}
}

// FailedToWithDetails builds a fully-populated OperationError.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{
		Operation: action,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf wraps err with an additional formatted message, using fmt.Errorf's
// %w semantics so errors.Is / errors.As continue to work. Returns nil if err
// is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

var retryableSubstrings = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"service unavailable",
	"temporarily unavailable",
	"too many requests",
	"broken pipe",
	"eof",
}

// IsRetryable applies a conservative substring heuristic over an error's
// message to classify it as transient. It is a fallback used when an error
// does not already carry a typed classification (see the fetcher's
// FetchError and the retrier's WrapRetryableError).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
