package types

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingCity    ErrorCode = "validation_missing_city"
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidBoolean ErrorCode = "validation_invalid_boolean"
	ErrCodeValidationInvalidField   ErrorCode = "validation_invalid_field"
	ErrCodeValidationUpstream       ErrorCode = "validation_upstream_error"

	// Limits (429)
	ErrCodeRateLimit ErrorCode = "rate_limit_exceeded"

	// Not Found (404)
	ErrCodeNotFoundRoute ErrorCode = "not_found_route"

	// Internal/Upstream (500/502)
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case s == string(ErrCodeRateLimit):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// UpstreamError is the normalized outcome of a failed weather provider call:
// an HTTP-like status plus whatever message the provider (or the client, for
// empty results) produced. Message is either a string or a decoded JSON body.
type UpstreamError struct {
	Status  int
	Message any
	Err     error
}

// NewUpstreamError creates an UpstreamError with the given status and message.
func NewUpstreamError(status int, message any, err error) *UpstreamError {
	return &UpstreamError{Status: status, Message: message, Err: err}
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Text())
}

// Unwrap returns the underlying transport error, if any.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the provider had nothing for the query.
func (e *UpstreamError) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

// Text flattens Message into a human-readable string. Provider bodies carry
// their text under "Message" (AccuWeather), "message" or "detail".
func (e *UpstreamError) Text() string {
	switch m := e.Message.(type) {
	case nil:
		return http.StatusText(e.Status)
	case string:
		return m
	case map[string]any:
		for _, key := range []string{"Message", "message", "detail"} {
			if s, ok := m[key].(string); ok && s != "" {
				return s
			}
		}
	}
	b, err := json.Marshal(e.Message)
	if err != nil {
		return fmt.Sprint(e.Message)
	}
	return string(b)
}

// AsValidation converts the upstream failure into the 400 validation error
// returned to API callers.
func (e *UpstreamError) AsValidation() *AppError {
	return NewAppErrorWithDetails(ErrCodeValidationUpstream, e.Text(), e, map[string]any{
		"upstream_status":  e.Status,
		"upstream_message": e.Message,
	})
}
