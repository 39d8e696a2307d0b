package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/longform/internal/api/shared"
	"github.com/phrazzld/longform/internal/platform/logger"
	"github.com/phrazzld/longform/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

type brokenValidator struct{}

func (brokenValidator) ValidateToken(context.Context, string) (*auth.Claims, error) {
	return nil, errors.New("keystore unavailable")
}

func TestAuthenticate(t *testing.T) {
	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	valid, err := tokens.GenerateToken(context.Background(), "newsroom", time.Hour)
	require.NoError(t, err)

	var gotClient string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClient = shared.GetClient(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name      string
		validator TokenValidator
		header    string
		want      int
	}{
		{"valid token", tokens, "Bearer " + valid, http.StatusNoContent},
		{"missing header", tokens, "", http.StatusUnauthorized},
		{"wrong scheme", tokens, "Basic " + valid, http.StatusUnauthorized},
		{"garbage token", tokens, "Bearer nope", http.StatusUnauthorized},
		{"validator failure", brokenValidator{}, "Bearer " + valid, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotClient = ""
			req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			NewAuthMiddleware(tc.validator).Authenticate(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.want, rr.Code)
			if tc.want == http.StatusNoContent {
				assert.Equal(t, "newsroom", gotClient)
			} else {
				assert.Empty(t, gotClient)
			}
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var traceID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})

	TraceMiddleware(base)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Len(t, traceID, 32)
	assert.Contains(t, buf.String(), `"msg":"handled"`)
	assert.Contains(t, buf.String(), `"trace_id":"`+traceID+`"`)
}
