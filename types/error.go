package types

import "fmt"

// ErrorCode represents a unified error code across the gateway.
type ErrorCode string

// Gateway error codes
const (
	// ErrTransport covers network-level failures before any response exists:
	// DNS resolution, connection refused, TLS handshake, deadline exceeded.
	ErrTransport ErrorCode = "TRANSPORT_ERROR"
	// ErrUpstreamStatus covers responses whose status signals failure.
	ErrUpstreamStatus ErrorCode = "UPSTREAM_STATUS"
	// ErrUnsupportedFormat covers successful responses in a format the
	// calling agent cannot consume (HTML).
	ErrUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
)

// Registry error codes
const (
	ErrUnknownOperation ErrorCode = "UNKNOWN_OPERATION"
	ErrInvalidArguments ErrorCode = "INVALID_ARGUMENTS"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrInternal         ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a structured error with an underlying cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Retryable: code == ErrTransport}
}
