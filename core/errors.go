package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is a sentinel error for "not found" cases
var ErrNotFound = errors.New("not found")

// APIError is the uniform error taxonomy for integration operations.
// Every error carries an HTTP status code and a retryable flag so callers
// can decide whether repeating the request makes sense.
type APIError struct {
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func NewValidationError(message string) *APIError {
	return &APIError{Code: "VALIDATION_ERROR", Message: message, StatusCode: 400, Retryable: false}
}

func NewAuthenticationError(message string) *APIError {
	return &APIError{Code: "AUTHENTICATION_ERROR", Message: message, StatusCode: 401, Retryable: false}
}

func NewAuthorizationError(message string) *APIError {
	return &APIError{Code: "AUTHORIZATION_ERROR", Message: message, StatusCode: 403, Retryable: false}
}

func NewNotFoundError(message string) *APIError {
	return &APIError{Code: "NOT_FOUND_ERROR", Message: message, StatusCode: 404, Retryable: false}
}

func NewConflictError(message string) *APIError {
	return &APIError{Code: "CONFLICT_ERROR", Message: message, StatusCode: 409, Retryable: false}
}

func NewRateLimitError(message string) *APIError {
	return &APIError{Code: "RATE_LIMIT_ERROR", Message: message, StatusCode: 429, Retryable: true}
}

// NewExternalServiceError wraps a transport-level provider failure
// (connection refused, timeout, 5xx) as a retryable 503.
func NewExternalServiceError(message string, err error) *APIError {
	return &APIError{Code: "EXTERNAL_SERVICE_ERROR", Message: message, StatusCode: 503, Retryable: true, Err: err}
}

// NewSyncError wraps a failure surfacing from the sync orchestrator's
// non-per-record path as a retryable 500.
func NewSyncError(message string, err error) *APIError {
	return &APIError{Code: "SYNC_ERROR", Message: message, StatusCode: 500, Retryable: true, Err: err}
}

// IsRetryable reports whether err (or any error it wraps) is an APIError
// marked retryable. Errors outside the taxonomy are not retryable.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

// StatusCodeOf returns the HTTP status for err, defaulting to 500 for
// errors outside the taxonomy.
func StatusCodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	if errors.Is(err, ErrNotFound) {
		return 404
	}
	return 500
}

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
