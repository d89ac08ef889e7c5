// Package errs defines the error kinds returned by the posting engine.
// Callers match them with errors.As; wrapping keeps the kind intact.
package errs

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when a parent chain revisits a group.
var ErrCycle = errors.New("account group parent chain contains a cycle")

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing record the engine depends on.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// NotFound builds a NotFoundError.
func NotFound(entity string, key any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}

// ClassificationError means no resolver rule matched the line. The engine
// never guesses a side in that case.
type ClassificationError struct {
	VoucherType string
	Primary     string
	Opposite    string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("unresolvable classification: %s voucher with primary nature %s and opposite nature %s",
		e.VoucherType, e.Primary, e.Opposite)
}

// ConsistencyError reports a stored figure that disagrees with its recomputation.
type ConsistencyError struct {
	Subject  string
	Expected string
	Actual   string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent %s: expected %s, stored %s", e.Subject, e.Expected, e.Actual)
}

// Kind names the category of err for logs and metrics labels.
func Kind(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ClassificationError
		ke *ConsistencyError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &ce):
		return "classification"
	case errors.As(err, &ke), errors.Is(err, ErrCycle):
		return "consistency"
	default:
		return "internal"
	}
}
