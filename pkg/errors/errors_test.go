package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validationf("body is empty"), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("get message: %w", ErrNotFound), http.StatusNotFound},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"expired token", ErrTokenExpired, http.StatusUnauthorized},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"upstream", Upstream("append message", errors.New("connection refused")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HTTPStatusFromError(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	req := require.New(t)

	req.Equal(CodeValidation, Code(Validationf("unknown event %q", "x")))
	req.Equal(CodeNotFound, Code(ErrNotFound))
	req.Equal(CodeForbidden, Code(fmt.Errorf("delete: %w", ErrForbidden)))
	req.Equal(CodeRateLimited, Code(ErrRateLimited))
	req.Equal(CodeUpstream, Code(Upstream("history", errors.New("timeout"))))
	req.Equal(CodeInternal, Code(errors.New("boom")))
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Upstream("mark read", cause)

	require.ErrorIs(t, err, ErrUpstream)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "mark read")
}

func TestAPIErrorCarriesClientCode(t *testing.T) {
	req := require.New(t)

	apiErr := NewAPIError("Service temporarily unavailable", Code(Upstream("history", errors.New("timeout"))))
	req.Equal("Service temporarily unavailable", apiErr.Error())
	req.Equal(CodeUpstream, apiErr.Code)
}
