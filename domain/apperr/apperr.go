// Package apperr defines the error kinds that cross component boundaries.
// The persistence gateway and fairness oracle raise kinds, the engine and
// arbiter act on them, and the transport edges translate them to HTTP
// statuses or socket error frames.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and retry decisions.
type Kind string

const (
	Unauthenticated     Kind = "unauthenticated"
	PermissionDenied    Kind = "permission_denied"
	InvalidArgument     Kind = "invalid_argument"
	FailedPrecondition  Kind = "failed_precondition"
	AlreadyExists       Kind = "already_exists"
	NotFound            Kind = "not_found"
	InsufficientFunds   Kind = "insufficient_funds"
	DailyLimitExceeded  Kind = "daily_limit_exceeded"
	ResourceExhausted   Kind = "resource_exhausted"
	DeadlineExceeded    Kind = "deadline_exceeded"
	Internal            Kind = "internal"
	DegradedConsistency Kind = "degraded_consistency"
)

// Error carries a kind, a message safe to show a client, and an optional
// underlying cause that is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind with a client-safe message
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted client-safe message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and client-safe message to an underlying error
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// MessageOf extracts the client-safe message from an error chain. Unknown
// errors map to a generic message so internals never leak.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "something went wrong, please try again"
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// Retryable reports whether a mutating persistence operation may be retried
// once for this error. Only transient kinds qualify.
func Retryable(err error) bool {
	return Is(err, DeadlineExceeded)
}
