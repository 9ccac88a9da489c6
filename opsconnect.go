// Package opsconnect provides the resilience layer of the operations-platform
// GraphQL client SDK. It normalizes errors from the platform API, decides how
// failures are surfaced to users, adapts fetch state into a consistent view
// model, and coordinates optimistic cache writes around mutations.
//
// Transport, caching, notification and logging are delegated to the caller
// through the small interfaces declared here. The SDK uses them; it does not
// own them.
package opsconnect

import (
	"context"
	"encoding/json"
)

// Operation is a GraphQL document together with the operation name the
// platform uses for tracing and error attribution.
type Operation struct {
	Name     string
	Document string
}

// GraphQLError is one entry of the errors array returned by the platform API.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// ResultEnvelope is the response body of a GraphQL request. Data and Errors
// may both be present for partial results.
type ResultEnvelope struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// Executor sends a GraphQL operation to the platform API.
// The SDK does not assume anything about the transport beyond this contract.
type Executor interface {
	// Execute runs op with the given variables. A non-nil error is returned
	// only when no envelope could be obtained; GraphQL errors are reported in
	// the envelope.
	Execute(ctx context.Context, op Operation, variables map[string]any) (*ResultEnvelope, error)
}

// CacheStore is the client-side view cache, keyed by cache key.
// It is consumed exclusively by the optimistic mutation coordinator and the
// query handles that populate it.
type CacheStore interface {
	// Get returns the cached value for key, if any.
	Get(key string) (any, bool)

	// Set replaces the cached value for key.
	Set(key string, value any)

	// CancelPending cancels in-flight fetches for key and waits for them to
	// stop, or for ctx to end, whichever comes first.
	CancelPending(ctx context.Context, key string) error

	// Invalidate marks key as stale so the next read reconciles with the server.
	Invalidate(key string)
}

// ToastVariant controls how a notification is styled.
type ToastVariant string

const (
	// VariantDefault is a neutral notification.
	VariantDefault ToastVariant = "default"

	// VariantDestructive marks a failure.
	VariantDestructive ToastVariant = "destructive"
)

// Toast is a user-facing notification payload.
type Toast struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Variant     ToastVariant `json:"variant"`
}

// Notifier displays notifications to the user.
type Notifier interface {
	Show(toast Toast)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(Toast)

// Show calls f(toast).
func (f NotifierFunc) Show(toast Toast) { f(toast) }

// Logger is the structured logging sink the SDK writes to.
// Implementations must accept a nil err and a nil fields map.
type Logger interface {
	Info(msg string, err error, fields map[string]any)
	Error(msg string, err error, fields map[string]any)
}

// FieldError is a server-side validation message attached to a form field.
type FieldError struct {
	Type    string
	Message string
}

// FormBinding is the subset of a form controller used by form-bound mutations.
type FormBinding interface {
	// Reset restores the form to its initial values.
	Reset()

	// SetError attaches err to the named field.
	SetError(field string, err FieldError)
}
