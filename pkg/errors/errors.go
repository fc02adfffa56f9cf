// Package errors provides structured error types for the automation engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the engine, the server and the CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Reconciliation codes describe failures inside a composition root:
//   - UNKNOWN_CHILD: composite invoked for a cid that has no live element
//   - UNKNOWN_KEY / DUPLICATE_KEY: container invariant violations
//   - MALFORMED_CHANNEL_PAYLOAD / CHANNEL_TRANSPORT: realtime channel failures
//   - FETCH_FAILURE: backing-data refetch failures
//
// The remaining codes cover input validation, markup handling and I/O.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownChild, "no element for cid %d", cid)
//	if errors.Is(err, errors.ErrCodeUnknownChild) {
//	    // safe no-op
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetchFailure, origErr, "refetch cid %d", cid)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Reconciliation errors
	ErrCodeUnknownChild     Code = "UNKNOWN_CHILD"
	ErrCodeUnknownKey       Code = "UNKNOWN_KEY"
	ErrCodeDuplicateKey     Code = "DUPLICATE_KEY"
	ErrCodeReadOnly         Code = "READ_ONLY_ATTRIBUTE"
	ErrCodeInvalidMarkup    Code = "INVALID_MARKUP"
	ErrCodeInvalidPatch     Code = "INVALID_PATCH"
	ErrCodeTemplate         Code = "TEMPLATE"
	ErrCodeMalformedPayload Code = "MALFORMED_CHANNEL_PAYLOAD"
	ErrCodeChannelTransport Code = "CHANNEL_TRANSPORT"
	ErrCodeFetchFailure     Code = "FETCH_FAILURE"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidTopic  Code = "INVALID_TOPIC"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeNetwork  Code = "NETWORK_ERROR"
	ErrCodeTimeout  Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Recoverable reports whether err is one of the failures the reconciliation
// loop absorbs locally (logged, never propagated).
func Recoverable(err error) bool {
	switch GetCode(err) {
	case ErrCodeUnknownChild, ErrCodeMalformedPayload, ErrCodeFetchFailure, ErrCodeChannelTransport:
		return true
	}
	return false
}
