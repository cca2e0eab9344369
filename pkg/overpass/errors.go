// Package overpass provides the client for the upstream spatial-query
// service, including query building, rate limiting, retries and request
// de-duplication.
package overpass

import (
	"fmt"
	"net/http"
)

// ErrorCode classifies upstream failures.
type ErrorCode string

const (
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrParseError         ErrorCode = "PARSE_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
)

// Error is a detailed upstream error with optional remediation guidance.
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Guidance string    `json:"guidance,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithGuidance adds guidance information to the error.
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// ServiceError maps an HTTP status from the upstream service to a typed
// error with guidance.
func ServiceError(service string, statusCode int, message string) *Error {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Try a smaller viewport."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The request was invalid. Check the bounds and try again."
	case http.StatusInternalServerError:
		code = ErrInternalError
		guidance = "The server encountered an error. This is likely temporary, please try again later."
	case http.StatusServiceUnavailable:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	default:
		code = ErrServiceUnavailable
		guidance = "Please try again later or modify the viewport."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}
