package ai

import (
	"context"
	"fmt"
	"net/http"

	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/types"
)

// Service runs resume analyses through the configured provider
type Service struct {
	provider Provider
	prompts  *PromptStore
	keys     KeySource
	logger   *errors.Logger
}

// ServiceOption customizes a Service
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	httpClient *http.Client
	provider   Provider
}

// WithHTTPClient sets the client used by the gateway provider
func WithHTTPClient(client *http.Client) ServiceOption {
	return func(o *serviceOptions) { o.httpClient = client }
}

// WithProvider replaces the configured provider
func WithProvider(p Provider) ServiceOption {
	return func(o *serviceOptions) { o.provider = p }
}

// NewService creates the analysis service. The key source and prompt store are
// shared with watchers that may swap their contents at runtime.
func NewService(cfg *config.AIConfig, keys KeySource, prompts *PromptStore, logger *errors.Logger, opts ...ServiceOption) (*Service, error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"timeout", cfg.Timeout,
		"strict_schema", cfg.StrictSchema,
		"use_system_prompts", cfg.UseSystemPrompts,
		"circuit_breaker", cfg.CircuitBreaker.Enabled)

	provider := o.provider
	if provider == nil {
		switch cfg.Provider {
		case config.ProviderGateway:
			provider = NewGatewayProvider(cfg, keys, o.httpClient, logger)
		case config.ProviderGemini:
			provider = NewGeminiProvider(cfg, keys, logger)
		default:
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
		}
	}

	if keys.APIKey() == "" {
		logger.Warn("No AI API key configured; analysis requests will fail until one is provided",
			"provider", provider.Name())
	}

	return &Service{
		provider: provider,
		prompts:  prompts,
		keys:     keys,
		logger:   logger,
	}, nil
}

// Analyze validates the request and performs a single upstream analysis
func (s *Service) Analyze(ctx context.Context, req types.AnalysisRequest) (*Analysis, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	analysis, err := s.provider.Analyze(ctx, req, s.prompts)
	if err != nil {
		s.logger.LogError(err, "Resume analysis failed",
			"provider", s.provider.Name(),
			"error_kind", errors.Kind(err))
		return nil, err
	}

	score := 0.0
	if analysis.Result != nil {
		score = analysis.Result.ATSScore
	}
	s.logger.Info("Resume analysis completed",
		"provider", s.provider.Name(),
		"ats_score", score,
		"response_bytes", len(analysis.Raw))

	return analysis, nil
}

// Prompts returns the shared prompt store
func (s *Service) Prompts() *PromptStore { return s.prompts }

// ProviderName returns the active provider name
func (s *Service) ProviderName() string { return s.provider.Name() }

// Model returns the active model id
func (s *Service) Model() string { return s.provider.Model() }

// CredentialConfigured reports whether an API key is currently available
func (s *Service) CredentialConfigured() bool { return s.keys.APIKey() != "" }

// BreakerStats returns circuit breaker statistics for the provider
func (s *Service) BreakerStats() map[string]any { return s.provider.BreakerStats() }

// Close releases provider resources
func (s *Service) Close() error { return s.provider.Close() }
