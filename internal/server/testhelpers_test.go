package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"resumematch/internal/ai"
	"resumematch/internal/config"
	"resumematch/internal/errors"

	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLoggerWithHandler(slog.NewTextHandler(io.Discard, nil))

const (
	testAPIKey = "sk-test-secret-value"

	validArgs = `{"atsScore":72,"matchedSkills":["Go"],"missingSkills":["Kubernetes"],` +
		`"suggestions":[{"title":"Add metrics","description":"Quantify impact","priority":"high"}],` +
		`"topCompanies":[{"company":"Acme","position":"Backend Engineer","location":"Remote","score":81,"matchedSkills":7,"totalSkills":9}]}`

	validBody = `{"resume":"Go developer","jobDescription":"Backend role","companyName":"Acme"}`
)

// upstream is a stand-in AI gateway replying with a fixed status and body
type upstream struct {
	server *httptest.Server
	calls  atomic.Int32
}

func newUpstream(t *testing.T, status int, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func toolCallResponse(arguments string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{
			"message": map[string]any{
				"tool_calls": []any{map[string]any{
					"type": "function",
					"function": map[string]any{
						"name":      ai.ToolName,
						"arguments": arguments,
					},
				}},
			},
		}},
	})
	return string(raw)
}

func testServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		Version:        "test",
		TLSConfig:      config.TLSConfig{Mode: "disabled"},
		CORS:           config.CORSConfig{AllowOrigin: "*", AllowHeaders: "authorization, x-client-info, apikey, content-type", AllowMethods: "POST, OPTIONS"},
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		IdleTimeout:    5 * time.Second,
		MaxRequestSize: 1024,
	}
}

// newTestServer wires a gateway-backed service against url with the given key
func newTestServer(t *testing.T, url, key string, cfg ServerConfig) *Server {
	t.Helper()
	aiCfg := &config.AIConfig{
		Provider:         config.ProviderGateway,
		Model:            config.DefaultGatewayModel,
		GatewayURL:       url,
		Timeout:          5 * time.Second,
		UseSystemPrompts: true,
		StrictSchema:     true,
	}
	prompts := ai.NewPromptStore(config.LoadedPrompts{}, true)
	service, err := ai.NewService(aiCfg, ai.StaticKey(key), prompts, testLogger)
	require.NoError(t, err)

	s := NewServer(cfg, service, nil, testLogger)
	t.Cleanup(func() {
		if s.RateLimiter != nil {
			s.RateLimiter.Close()
		}
	})
	return s
}

func decodeEnvelope(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}
