// Package errors defines the error taxonomy for the OpsConnect SDK and the
// normalization and classification rules applied to errors returned by the
// operations platform.
//
// SDK-internal failures are represented as SDKError, which provides:
//   - Code: Machine-readable error identifier
//   - Message: Human-readable error description
//   - Layer: Which component layer produced the error (core, client, cache, observer)
//   - Cause: Underlying error, if any
//   - Context: Additional error details (cache key, operation name, etc.)
//
// Errors reported by the platform itself arrive as GraphQL error entries and
// are carried by ResponseError or, for the legacy client shape, ClientError.
// Normalize reduces any of these (and arbitrary values) to a CanonicalError.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error identifier.
type Code string

// Error codes - Core Layer
const (
	NETWORK_ERROR          Code = "NETWORK_ERROR"
	REQUEST_BUILD_FAILED   Code = "REQUEST_BUILD_FAILED"
	RESPONSE_DECODE_FAILED Code = "RESPONSE_DECODE_FAILED"
	CIRCUIT_OPEN           Code = "CIRCUIT_OPEN"
)

// Error codes - Client Layer
const (
	CONFIG_INVALID     Code = "CONFIG_INVALID"
	DECODE_FAILED      Code = "DECODE_FAILED"
	TRANSITION_INVALID Code = "TRANSITION_INVALID"
	UNKNOWN_ERROR      Code = "UNKNOWN_ERROR"
)

// Error codes - Cache Layer
const (
	CANCEL_TIMEOUT Code = "CANCEL_TIMEOUT"
)

// Error codes - Observer Layer
const (
	OBSERVER_RUNNING Code = "OBSERVER_RUNNING"
	POLL_FAILED      Code = "POLL_FAILED"
	HANDLER_PANIC    Code = "HANDLER_PANIC"
)

// Error codes reported by the platform API in extensions.code.
const (
	UNAUTHENTICATED       Code = "UNAUTHENTICATED"
	UNAUTHORIZED          Code = "UNAUTHORIZED"
	FORBIDDEN             Code = "FORBIDDEN"
	NOT_FOUND             Code = "NOT_FOUND"
	CONFLICT              Code = "CONFLICT"
	VALIDATION_ERROR      Code = "VALIDATION_ERROR"
	BAD_USER_INPUT        Code = "BAD_USER_INPUT"
	INTERNAL_SERVER_ERROR Code = "INTERNAL_SERVER_ERROR"
	DATABASE_ERROR        Code = "DATABASE_ERROR"
	RATE_LIMITED          Code = "RATE_LIMITED"
	TOKEN_EXPIRED         Code = "TOKEN_EXPIRED"
	SESSION_EXPIRED       Code = "SESSION_EXPIRED"
)

// SDKError is the base error type for all SDK errors.
type SDKError struct {
	Code    Code
	Message string
	Layer   string // "core", "client", "cache", "observer"
	Cause   error
	Context map[string]any
}

// Error returns a formatted error string.
func (e *SDKError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Layer, e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error, enabling error chain inspection.
func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the code as a plain string.
func (e *SDKError) ErrorCode() string {
	return string(e.Code)
}

// With sets a context key and returns e for chaining.
func (e *SDKError) With(key string, value any) *SDKError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(layer string, code Code, message string, cause error) *SDKError {
	return &SDKError{
		Code:    code,
		Message: message,
		Layer:   layer,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewCoreError creates a core layer error.
func NewCoreError(code Code, message string, cause error) *SDKError {
	return newError("core", code, message, cause)
}

// NewClientError creates a client layer error.
func NewClientError(code Code, message string, cause error) *SDKError {
	return newError("client", code, message, cause)
}

// NewCacheError creates a cache layer error.
func NewCacheError(code Code, message string, cause error) *SDKError {
	return newError("cache", code, message, cause)
}

// NewObserverError creates an observer layer error.
func NewObserverError(code Code, message string, cause error) *SDKError {
	return newError("observer", code, message, cause)
}

// Is checks if the target error is an SDKError with the same code.
func (e *SDKError) Is(target error) bool {
	if target == nil {
		return false
	}
	other, ok := target.(*SDKError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// As finds the first SDKError in err's chain and assigns it to target.
func As(err error, target **SDKError) bool {
	if err == nil {
		return false
	}
	return stderrors.As(err, target)
}

// CodeOf returns the code of the first SDKError in err's chain, or "".
func CodeOf(err error) Code {
	var se *SDKError
	if As(err, &se) {
		return se.Code
	}
	return ""
}
