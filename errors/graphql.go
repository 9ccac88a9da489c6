package errors

import (
	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
)

// ResponseError wraps the GraphQL errors returned for a single operation.
// It is what the SDK client returns when an envelope carries errors.
type ResponseError struct {
	Message   string
	Operation string
	Errors    []opsconnect.GraphQLError
}

// NewResponseError builds a ResponseError for op from the envelope errors.
func NewResponseError(operation string, errs []opsconnect.GraphQLError) *ResponseError {
	return &ResponseError{
		Message:   "graphql request failed",
		Operation: operation,
		Errors:    errs,
	}
}

func (e *ResponseError) Error() string {
	if e == nil {
		return DefaultMessage
	}
	if len(e.Errors) > 0 && e.Errors[0].Message != "" {
		return e.Errors[0].Message
	}
	if e.Message != "" {
		return e.Message
	}
	return DefaultMessage
}

// OperationName returns the name of the operation that failed.
func (e *ResponseError) OperationName() string { return e.Operation }

// ClientError is the legacy client error shape: GraphQL errors and a
// transport failure reported side by side.
type ClientError struct {
	Message       string
	GraphQLErrors []opsconnect.GraphQLError
	NetworkError  error
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(message string, cause error) *ClientError {
	return &ClientError{Message: message, NetworkError: cause}
}

func (e *ClientError) Error() string {
	if e == nil {
		return DefaultMessage
	}
	if e.Message != "" {
		return e.Message
	}
	if e.NetworkError != nil {
		return e.NetworkError.Error()
	}
	return DefaultMessage
}

// Unwrap returns the transport failure, if any.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.NetworkError
}
