package server

import (
	"net/http"
)

// healthHandler reports provider readiness without exposing the credential
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, requestID, r.Method)
		return
	}

	breaker := s.Service.BreakerStats()
	credential := s.Service.CredentialConfigured()

	status := "healthy"
	code := http.StatusOK
	if !credential {
		status = "degraded"
	}
	if state, _ := breaker["state"].(string); state == "open" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response := map[string]any{
		"status":  status,
		"service": "resumematch",
		"version": s.Version,
		"ai": map[string]any{
			"provider":              s.Service.ProviderName(),
			"model":                 s.Service.Model(),
			"credential_configured": credential,
			"circuit_breaker":       breaker,
			"prompts":               s.Service.Prompts().Sources(),
		},
	}

	if s.KeyWatcher != nil {
		response["key_watcher"] = s.KeyWatcher.Status()
	}
	if s.PromptWatcher != nil {
		response["prompt_watcher"] = map[string]any{
			"running": s.PromptWatcher.IsRunning(),
			"files":   s.PromptWatcher.WatchedFiles(),
		}
	}

	if err := writeJSON(w, code, response); err != nil {
		s.Logger.LogError(err, "Failed to encode health response")
	}
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, requestID, r.Method)
		return
	}

	response := map[string]any{
		"service": "resumematch",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
		"circuit_breaker": s.Service.BreakerStats(),
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		s.Logger.LogError(err, "Failed to encode stats response")
	}
}
