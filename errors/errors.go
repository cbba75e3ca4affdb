// Package errors provides error handling for lintd.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints for user-facing remediation
//   - Error marks, so one failure can match several sentinels
//
// Usage:
//
//	// Wrap with context
//	if err := conn.Close(); err != nil {
//	    return errors.Wrap(err, "failed to close connection")
//	}
//
//	// Classify a failure without losing its cause
//	return errors.Mark(errors.Wrap(err, "read response"), errors.ErrTransport)
//
//	// Add hints for users
//	return errors.WithHint(err, "is the lint server listening on this port?")
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
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Common sentinel errors for use across lintd.
// Use these with errors.Is() for type-safe error checking.
// Mark or wrap these to add context while preserving the type.
var (
	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// Failure classes of the lint server exchange and its process lifecycle.
var (
	// ErrTransport covers connect, write and read failures, including timeouts
	ErrTransport = New("transport error")

	// ErrProtocol covers malformed framing and premature EOF before the terminator
	ErrProtocol = New("protocol error")

	// ErrProcess covers failures to spawn or supervise the server process
	ErrProcess = New("process error")

	// ErrConfiguration indicates no server is reachable and auto-start is disabled,
	// or the settings themselves are unusable
	ErrConfiguration = New("configuration error")

	// ErrServerExited is the one fatal condition: a server process this
	// manager started has exited with a non-zero status
	ErrServerExited = New("lint server exited with non-zero status")
)

// IsTransportError checks if an error is or is marked as ErrTransport
func IsTransportError(err error) bool {
	return err != nil && Is(err, ErrTransport)
}

// IsProtocolError checks if an error is or is marked as ErrProtocol
func IsProtocolError(err error) bool {
	return err != nil && Is(err, ErrProtocol)
}

// IsTimeoutError checks if an error is or is marked as ErrTimeout
func IsTimeoutError(err error) bool {
	return err != nil && Is(err, ErrTimeout)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// NewProtocolError creates a protocol error with a formatted message
func NewProtocolError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrProtocol)
}

// NewConfigurationError creates a configuration error with a formatted message
func NewConfigurationError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrConfiguration)
}

// MarkTransport classifies err as a transport failure, keeping its message and cause
func MarkTransport(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, msg), ErrTransport)
}

// MarkProcess classifies err as a process failure, keeping its message and cause
func MarkProcess(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, msg), ErrProcess)
}
