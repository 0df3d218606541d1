package clients

import (
	"fmt"
	"net/http"

	"imbackend/core"
)

// WrapHTTPStatus maps a provider HTTP status to the uniform error taxonomy.
// Transient failures (429, 5xx) come back retryable; other 4xx do not.
func WrapHTTPStatus(provider, operation string, statusCode int, body string) error {
	message := fmt.Sprintf("%s %s failed with status %d: %s", provider, operation, statusCode, body)

	switch {
	case statusCode == http.StatusUnauthorized:
		return core.NewAuthenticationError(message)
	case statusCode == http.StatusForbidden:
		return core.NewAuthorizationError(message)
	case statusCode == http.StatusNotFound:
		return core.NewNotFoundError(message)
	case statusCode == http.StatusConflict:
		return core.NewConflictError(message)
	case statusCode == http.StatusTooManyRequests:
		return core.NewRateLimitError(message)
	case statusCode >= 500:
		return core.NewExternalServiceError(message, nil)
	default:
		return core.NewValidationError(message)
	}
}

// WrapTransportError wraps a network-level failure (connection refused,
// timeout) as a retryable external service error.
func WrapTransportError(provider, operation string, err error) error {
	return core.NewExternalServiceError(
		fmt.Sprintf("%s %s failed", provider, operation),
		err,
	)
}

// NotAuthenticatedError is the non-retryable error returned by every adapter
// operation invoked before a successful Authenticate. No network call is made.
func NotAuthenticatedError(provider string) error {
	return core.NewAuthenticationError(fmt.Sprintf("not authenticated with %s", provider))
}
