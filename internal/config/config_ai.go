package config

import (
	"fmt"
	"os"
)

// Supported upstream providers
const (
	ProviderGateway = "gateway"
	ProviderGemini  = "gemini"
)

// Defaults for the OpenAI-compatible gateway
const (
	DefaultGatewayURL   = "https://ai.gateway.lovable.dev/v1/chat/completions"
	DefaultGatewayModel = "google/gemini-3-flash-preview"
	DefaultGeminiModel  = "gemini-2.5-flash"
)

// legacyKeyEnv returns the environment variable consulted for the provider's
// key when nothing else set one.
func legacyKeyEnv(provider string) string {
	if provider == ProviderGemini {
		return "GEMINI_API_KEY"
	}
	return "LOVABLE_API_KEY"
}

// applyAIFallbacks fills the API key from the legacy environment variable and
// swaps in the Gemini default model when the gateway model id would not apply.
func (c *Config) applyAIFallbacks() {
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv(legacyKeyEnv(c.AI.Provider))
	}

	if c.AI.Provider == ProviderGemini && c.AI.Model == DefaultGatewayModel {
		c.AI.Model = DefaultGeminiModel
	}
}

// HasAPIKey reports whether a gateway key is configured
func (c *Config) HasAPIKey() bool {
	return c.AI.APIKey != ""
}

func (cb CircuitBreakerConfig) validate() error {
	if !cb.Enabled {
		return nil
	}
	if cb.FailureThreshold < 0 || cb.FailureThreshold > 1 {
		return fmt.Errorf("failureThreshold must be between 0.0 and 1.0, got %v", cb.FailureThreshold)
	}
	if cb.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
