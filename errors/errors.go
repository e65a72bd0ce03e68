// Package errors provides error handling for atomdb.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for users of the CLI and server
//
// Usage:
//
//	// Wrap with context
//	if err := backend.AddLink(ctx, params); err != nil {
//	    return errors.Wrap(err, "failed to add link")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // absent atom, not a failure
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Join         = crdb.Join
)

// User-facing messages and details
var (
	WithHint       = crdb.WithHint
	WithHintf      = crdb.WithHintf
	WithDetail     = crdb.WithDetail
	WithDetailf    = crdb.WithDetailf
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Error inspection
var (
	Is         = crdb.Is
	IsAny      = crdb.IsAny
	As         = crdb.As
	Unwrap     = crdb.Unwrap
	UnwrapOnce = crdb.UnwrapOnce
	UnwrapAll  = crdb.UnwrapAll
)

// Markers let a driver error answer errors.Is for one of the sentinels
// below while keeping its own message.
var (
	Mark = crdb.Mark
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors. Wrap these with errors.Wrap() to add context while
// preserving the type, and check them with errors.Is().
var (
	// ErrNotFound indicates an absent node, link or index. Expected during
	// matching and never fatal to a streaming query.
	ErrNotFound = New("not found")

	// ErrInvalidAssignment indicates a mutation of a frozen assignment or an
	// empty label/value.
	ErrInvalidAssignment = New("invalid assignment")

	// ErrUnexpectedQueryFormat indicates a query tree element of unknown shape.
	ErrUnexpectedQueryFormat = New("unexpected query format")

	// ErrMalformedPattern indicates a structurally invalid atom or pattern,
	// e.g. a link without targets.
	ErrMalformedPattern = New("malformed pattern")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrConnection indicates a remote backend could not be reached after retries
	ErrConnection = New("connection failure")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")

	// ErrNotStarted is returned by Get before the first call to Next
	ErrNotStarted = New("iterator not started")

	// ErrExhausted is returned by Get once an iterator has no current element
	ErrExhausted = New("iterator exhausted")

	// ErrClosed is returned by operations on a closed backend or iterator
	ErrClosed = New("closed")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
// or ErrMalformedPattern, both of which are caller mistakes.
func IsInvalidRequestError(err error) bool {
	return err != nil && (Is(err, ErrInvalidRequest) || Is(err, ErrMalformedPattern) || Is(err, ErrUnexpectedQueryFormat))
}

// IsConnectionError checks if an error is or wraps ErrConnection or ErrTimeout
func IsConnectionError(err error) bool {
	return err != nil && (Is(err, ErrConnection) || Is(err, ErrTimeout))
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// NewMalformedPatternError creates a malformed-pattern error with a formatted message
func NewMalformedPatternError(format string, args ...interface{}) error {
	return Wrap(ErrMalformedPattern, Newf(format, args...).Error())
}

// NewQueryFormatError creates an unexpected-query-format error with a formatted message
func NewQueryFormatError(format string, args ...interface{}) error {
	return Wrap(ErrUnexpectedQueryFormat, Newf(format, args...).Error())
}

// NewInvalidAssignmentError creates an invalid-assignment error with a formatted message
func NewInvalidAssignmentError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidAssignment, Newf(format, args...).Error())
}
