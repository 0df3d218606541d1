package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		statusCode int
		retryable  bool
	}{
		{"validation", NewValidationError("bad input"), http.StatusBadRequest, false},
		{"authentication", NewAuthenticationError("bad token"), http.StatusUnauthorized, false},
		{"authorization", NewAuthorizationError("forbidden"), http.StatusForbidden, false},
		{"not found", NewNotFoundError("missing"), http.StatusNotFound, false},
		{"conflict", NewConflictError("duplicate"), http.StatusConflict, false},
		{"rate limit", NewRateLimitError("slow down"), http.StatusTooManyRequests, true},
		{"external service", NewExternalServiceError("upstream down", nil), http.StatusServiceUnavailable, true},
		{"sync", NewSyncError("sync broke", nil), http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Equal(t, tt.statusCode, StatusCodeOf(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestStatusCodeOf_UnclassifiedError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCodeOf(errors.New("boom")))
}

func TestIsRetryable_Wrapped(t *testing.T) {
	inner := NewRateLimitError("too fast")
	wrapped := fmt.Errorf("operation failed: %w", inner)

	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, http.StatusTooManyRequests, StatusCodeOf(wrapped))
}

func TestExternalServiceError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewExternalServiceError("provider unreachable", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(NewNotFoundError("gone")))
	assert.True(t, IsNotFoundError(ErrNotFound))
	assert.False(t, IsNotFoundError(NewValidationError("bad")))
}
