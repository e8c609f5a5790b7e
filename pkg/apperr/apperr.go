// Package apperr defines the domain error taxonomy shared by the scheduling
// engine and the messaging relay. Errors carry a Kind that the HTTP and
// WebSocket boundaries translate into wire responses; the core packages only
// construct and inspect kinds, never status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindUnauthorized     Kind = "unauthorized"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindAlreadyReserved  Kind = "already_reserved"
	KindScheduleConflict Kind = "schedule_conflict"
	KindRateLimited      Kind = "rate_limited"
	KindValidation       Kind = "validation"
	KindInternal         Kind = "internal"
)

// Error is a domain failure with a machine-readable kind and a human message.
// Detail is optional context, e.g. the title of the colliding session for
// schedule conflicts.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New creates a domain error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of the error carrying extra context.
func (e *Error) WithDetail(detail string) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Detail: detail}
}

// KindOf extracts the Kind from an error chain. Non-domain errors (pgx
// failures, redis outages) report KindInternal so callers never leak
// infrastructure detail to the wire.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is a domain error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
