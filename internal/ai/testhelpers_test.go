package ai

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"resumematch/internal/config"
	"resumematch/internal/errors"

	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLoggerWithHandler(slog.NewTextHandler(io.Discard, nil))

const validArgs = `{"atsScore":72,"matchedSkills":["Go","SQL"],"missingSkills":["Kubernetes"],` +
	`"suggestions":[{"title":"Add metrics","description":"Quantify impact","priority":"high"}],` +
	`"topCompanies":[{"company":"Acme","position":"Backend Engineer","location":"Remote","score":81,"matchedSkills":7,"totalSkills":9}]}`

func testAIConfig(url string) *config.AIConfig {
	return &config.AIConfig{
		Provider:         config.ProviderGateway,
		Model:            config.DefaultGatewayModel,
		GatewayURL:       url,
		Timeout:          5 * time.Second,
		UseSystemPrompts: true,
		StrictSchema:     true,
	}
}

// toolCallBody builds a chat-completions response carrying one tool call
func toolCallBody(name, arguments string) string {
	body := map[string]any{
		"choices": []any{map[string]any{
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []any{map[string]any{
					"id":   "call_1",
					"type": "function",
					"function": map[string]any{
						"name":      name,
						"arguments": arguments,
					},
				}},
			},
			"finish_reason": "tool_calls",
		}},
		"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 80, "total_tokens": 200},
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

// fakeGateway records every request and replies with a fixed status and body
type fakeGateway struct {
	server *httptest.Server
	calls  atomic.Int32

	lastAuth string
	lastBody map[string]any
}

func newFakeGateway(t *testing.T, status int, body string) *fakeGateway {
	t.Helper()
	fg := &fakeGateway{}
	fg.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fg.calls.Add(1)
		fg.lastAuth = r.Header.Get("Authorization")
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		fg.lastBody = map[string]any{}
		require.NoError(t, json.Unmarshal(raw, &fg.lastBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(fg.server.Close)
	return fg
}
