package authcore

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStatusTaxonomy(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrInvalidCredentials, http.StatusBadRequest},
		{ErrInvalidToken, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrUserNotFound, http.StatusNotFound},
		{ErrEmailExists, http.StatusConflict},
		{Unprocessable("bad"), http.StatusUnprocessableEntity},
		{ErrTooManyRequests, http.StatusTooManyRequests},
		{ExternalSystem("store", errors.New("boom")), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
		{nil, http.StatusOK},
	}
	for _, tc := range tests {
		if got := StatusCode(tc.err); got != tc.status {
			t.Fatalf("StatusCode(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}

func TestErrorIsMatchesByReason(t *testing.T) {
	custom := ErrConflict.WithMessage("role already exists")
	assert.ErrorIs(t, custom, ErrConflict)
	assert.NotErrorIs(t, custom, ErrEmailExists)

	wrapped := fmt.Errorf("outer: %w", ErrForbidden)
	assert.ErrorIs(t, wrapped, ErrForbidden)
	assert.Equal(t, http.StatusForbidden, StatusCode(wrapped))
	assert.Equal(t, "forbidden", ErrForbidden.Message, "sentinel must not be mutated by WithMessage")
}

func TestAsErrorHidesInternalDetail(t *testing.T) {
	cause := errors.New("pq: connection refused")
	typed := AsError(cause)
	assert.Equal(t, ReasonInternal, typed.Reason)
	assert.NotContains(t, typed.Message, "pq:")
	assert.ErrorIs(t, typed, cause)

	ext := ExternalSystem("load session", cause)
	assert.Equal(t, "load session failed", ext.Message)
	assert.ErrorIs(t, ext, cause)
}
