package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

func serveError(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(logger.NewNop()))
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(err)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	return w
}

func TestErrorHandlerRendersAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			"not found keeps message",
			fmt.Errorf("message m1: %w", apperrors.ErrNotFound),
			http.StatusNotFound,
			`{"error":"message m1: not found","code":"not_found"}`,
		},
		{
			"upstream hides driver details",
			apperrors.Upstream("load history", errors.New("dial tcp 10.0.0.5:5432: refused")),
			http.StatusBadGateway,
			`{"error":"Service temporarily unavailable","code":"upstream"}`,
		},
		{
			"unknown error is internal",
			errors.New("nil pointer somewhere"),
			http.StatusInternalServerError,
			`{"error":"Internal server error","code":"internal"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveError(tt.err)
			require.Equal(t, tt.status, w.Code)
			require.JSONEq(t, tt.body, w.Body.String())
		})
	}
}
