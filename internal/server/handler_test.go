package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"resumematch/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestAnalyzeSuccessReturnsArgumentsVerbatim(t *testing.T) {
	up := newUpstream(t, http.StatusOK, toolCallResponse(validArgs))
	s := newTestServer(t, up.server.URL, testAPIKey, testServerConfig())

	for _, path := range []string{AnalyzePath, FunctionsAnalyzePath} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, path, validBody, nil)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, validArgs, rec.Body.String())
			assertCORS(t, rec)

			_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
			assert.NoError(t, err)
		})
	}
	assert.Equal(t, int32(2), up.calls.Load())
}

func TestPreflightReturnsEmptyOK(t *testing.T) {
	up := newUpstream(t, http.StatusOK, toolCallResponse(validArgs))
	s := newTestServer(t, up.server.URL, testAPIKey, testServerConfig())

	rec := do(t, s, http.MethodOptions, AnalyzePath, "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assertCORS(t, rec)
	assert.Zero(t, up.calls.Load())
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	up := newUpstream(t, http.StatusOK, toolCallResponse(validArgs))
	s := newTestServer(t, up.server.URL, testAPIKey, testServerConfig())

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"not json", `{resume:`, http.StatusBadRequest, errors.MsgInvalidBody},
		{"empty body", ``, http.StatusBadRequest, errors.MsgInvalidBody},
		{"missing company", `{"resume":"r","jobDescription":"j"}`, http.StatusBadRequest, errors.MsgMissingFields},
		{"empty resume", `{"resume":"","jobDescription":"j","companyName":"c"}`, http.StatusBadRequest, errors.MsgMissingFields},
		{"non-string field", `{"resume":"r","jobDescription":42,"companyName":"c"}`, http.StatusBadRequest, errors.MsgMissingFields},
		{"json array", `["r","j","c"]`, http.StatusBadRequest, errors.MsgMissingFields},
		{"too large", `{"resume":"` + strings.Repeat("x", 2048) + `","jobDescription":"j","companyName":"c"}`,
			http.StatusBadRequest, "Invalid request body: request body too large (limit is 1024 bytes)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, AnalyzePath, tt.body, nil)

			assert.Equal(t, tt.status, rec.Code)
			assertCORS(t, rec)
			env := decodeEnvelope(t, rec.Body.Bytes())
			assert.Equal(t, tt.message, env["error"])
			assert.Equal(t, "validation", env["kind"])
			assert.Equal(t, rec.Header().Get(requestIDHeader), env["requestId"])
		})
	}
	assert.Zero(t, up.calls.Load(), "invalid requests must not reach the gateway")
}

func TestAnalyzeMethodNotAllowed(t *testing.T) {
	up := newUpstream(t, http.StatusOK, toolCallResponse(validArgs))
	s := newTestServer(t, up.server.URL, testAPIKey, testServerConfig())

	rec := do(t, s, http.MethodGet, AnalyzePath, "", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Allow"))
	assertCORS(t, rec)
	assert.Equal(t, "Method GET not allowed", decodeEnvelope(t, rec.Body.Bytes())["error"])
}

func TestAnalyzeMapsUpstreamFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantKind string
		wantMsg  string
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, http.StatusTooManyRequests, "rate_limited", errors.MsgRateLimited},
		{"credits", http.StatusPaymentRequired, `{}`, http.StatusPaymentRequired, "credits_exhausted", errors.MsgCreditsExhausted},
		{"server error", http.StatusServiceUnavailable, `{"detail":"` + testAPIKey + `"}`, http.StatusInternalServerError, "upstream_error", "AI gateway error: 503"},
		{"no tool call", http.StatusOK, `{"choices":[{"message":{"content":"hi"}}]}`, http.StatusInternalServerError, "malformed_upstream_response", errors.MsgInvalidAIResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t, tt.status, tt.body)
			s := newTestServer(t, up.server.URL, testAPIKey, testServerConfig())

			rec := do(t, s, http.MethodPost, AnalyzePath, validBody, nil)

			assert.Equal(t, tt.wantCode, rec.Code)
			assertCORS(t, rec)
			env := decodeEnvelope(t, rec.Body.Bytes())
			assert.Equal(t, tt.wantKind, env["kind"])
			assert.Equal(t, tt.wantMsg, env["error"])
			assert.NotContains(t, rec.Body.String(), testAPIKey)
			assert.Equal(t, int32(1), up.calls.Load(), "no retries")
		})
	}
}

func TestAnalyzeWithoutKeyNeverCallsGateway(t *testing.T) {
	up := newUpstream(t, http.StatusOK, toolCallResponse(validArgs))
	s := newTestServer(t, up.server.URL, "", testServerConfig())

	rec := do(t, s, http.MethodPost, AnalyzePath, validBody, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.MsgNotConfigured, decodeEnvelope(t, rec.Body.Bytes())["error"])
	assert.Zero(t, up.calls.Load())
}

func TestRequestIDIsReused(t *testing.T) {
	up := newUpstream(t, http.StatusOK, toolCallResponse(validArgs))
	s := newTestServer(t, up.server.URL, testAPIKey, testServerConfig())

	id := uuid.NewString()
	rec := do(t, s, http.MethodPost, AnalyzePath, `{}`, map[string]string{requestIDHeader: id})
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))
	assert.Equal(t, id, decodeEnvelope(t, rec.Body.Bytes())["requestId"])

	rec = do(t, s, http.MethodPost, AnalyzePath, `{}`, map[string]string{requestIDHeader: "not-a-uuid"})
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(requestIDHeader))
}

func TestHealthAndStats(t *testing.T) {
	up := newUpstream(t, http.StatusOK, toolCallResponse(validArgs))

	s := newTestServer(t, up.server.URL, testAPIKey, testServerConfig())
	rec := do(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)
	health := decodeEnvelope(t, rec.Body.Bytes())
	assert.Equal(t, "healthy", health["status"])
	aiInfo := health["ai"].(map[string]any)
	assert.Equal(t, "gateway", aiInfo["provider"])
	assert.Equal(t, true, aiInfo["credential_configured"])
	assert.NotContains(t, rec.Body.String(), testAPIKey)

	s = newTestServer(t, up.server.URL, "", testServerConfig())
	rec = do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, "degraded", decodeEnvelope(t, rec.Body.Bytes())["status"])

	rec = do(t, s, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeEnvelope(t, rec.Body.Bytes())
	assert.Equal(t, map[string]any{"enabled": false}, stats["rate_limiting"])

	rec = do(t, s, http.MethodPost, "/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
