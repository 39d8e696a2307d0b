package shared

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	traced := SetTraceID(ctx)
	traceID := GetTraceID(traced)
	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)

	assert.NotEqual(t, traceID, GetTraceID(SetTraceID(ctx)))
	assert.Empty(t, GetTraceID(context.WithValue(ctx, TraceIDKey, 123)))
}

func TestClientContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetClient(ctx))
	assert.Equal(t, "newsroom", GetClient(SetClient(ctx, "newsroom")))
}

type sample struct {
	Topic string `json:"topic" validate:"required"`
	Count int    `json:"count" validate:"gte=1,lte=5"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"topic":"tides","count":2}`, false},
		{"unknown field", `{"topic":"tides","extra":true}`, true},
		{"trailing data", `{"topic":"tides"}{"topic":"again"}`, true},
		{"malformed", `{"topic":`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var got sample
			err := DecodeJSON(httptest.NewRecorder(), req, &got)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "tides", got.Topic)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sample{Topic: "tides", Count: 3}))
	assert.Error(t, ValidateRequest(sample{Count: 3}))
	assert.Error(t, ValidateRequest(sample{Topic: "tides", Count: 9}))
}

func TestRespondWithErrorAndLog(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/runs/x", nil)
	req = req.WithContext(SetTraceID(req.Context()))
	rr := httptest.NewRecorder()

	RespondWithErrorAndLog(rr, req, http.StatusInternalServerError, "Failed to create run",
		errors.New("dial tcp: api_key=sk-secret"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotContains(t, rr.Body.String(), "sk-secret")

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Failed to create run", resp.Error)
	assert.Equal(t, GetTraceID(req.Context()), resp.TraceID)
}
