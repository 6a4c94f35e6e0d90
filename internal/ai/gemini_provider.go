package ai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GeminiProvider calls Gemini directly with a forced analyze_resume function call
type GeminiProvider struct {
	model       string
	temperature *float32
	strict      bool
	keys        KeySource
	httpClient  *http.Client
	breaker     *CircuitBreaker[*genai.GenerateContentResponse]
	logger      *errors.Logger

	mu        sync.Mutex
	client    *genai.Client
	clientKey string
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini provider. Clients are built lazily so a
// rotated key takes effect on the next request.
func NewGeminiProvider(cfg *config.AIConfig, keys KeySource, logger *errors.Logger) *GeminiProvider {
	return &GeminiProvider{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		strict:      cfg.StrictSchema,
		keys:        keys,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: NewCircuitBreaker[*genai.GenerateContentResponse]("gemini", cfg.CircuitBreaker, logger),
		logger:  logger,
	}
}

func (g *GeminiProvider) Name() string  { return config.ProviderGemini }
func (g *GeminiProvider) Model() string { return g.model }
func (g *GeminiProvider) Close() error  { return nil }

func (g *GeminiProvider) BreakerStats() map[string]any {
	return g.breaker.Stats()
}

func (g *GeminiProvider) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.clientKey == key {
		return g.client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.NewUpstreamError(errors.ErrCodeProviderInitFailed, errors.MsgGatewayFailed, err)
	}
	g.client = client
	g.clientKey = key
	return client, nil
}

// generateConfig builds the request config that forces the analyze_resume call
func (g *GeminiProvider) generateConfig(systemPrompt string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: g.temperature,
		Tools: []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        ToolName,
				Description: ToolDescription,
				Parameters:  AnalysisSchema().GenaiSchema(),
			}},
		}},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{ToolName},
			},
		},
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return cfg
}

// Analyze sends one GenerateContent call. Failures are never retried.
func (g *GeminiProvider) Analyze(ctx context.Context, req types.AnalysisRequest, prompts *PromptStore) (*Analysis, error) {
	tracer := otel.Tracer("resumematch.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.analyze_resume")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", config.ProviderGemini),
		attribute.String("ai.model", g.model),
		attribute.Int("input.resume_length", len(req.Resume)),
		attribute.Int("input.job_length", len(req.JobDescription)),
	)

	key := g.keys.APIKey()
	if key == "" {
		err := errors.NewConfigError(errors.ErrCodeMissingAPIKey, errors.MsgNotConfigured, nil)
		span.SetStatus(codes.Error, errors.Kind(err))
		return nil, err
	}

	client, err := g.clientFor(ctx, key)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	genCfg := g.generateConfig(prompts.System())
	result, err := g.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		resp, callErr := client.Models.GenerateContent(ctx, g.model, genai.Text(prompts.RenderUser(req)), genCfg)
		if callErr != nil {
			return nil, mapGeminiError(callErr)
		}
		return resp, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.Kind(err))
		g.logger.LogError(err, "Gemini call failed", "model", g.model)
		return nil, err
	}

	args, err := functionCallArguments(result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.Kind(err))
		return nil, err
	}

	decoded, err := DecodeAnalysis(args, g.strict)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.Kind(err))
		return nil, err
	}

	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.PromptTokens),
			attribute.Int64("ai.tokens.output", usage.CompletionTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(attribute.Bool("success", true))

	return &Analysis{Raw: args, Result: decoded, Usage: usage}, nil
}

// functionCallArguments returns the JSON-encoded arguments of the analyze_resume call
func functionCallArguments(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil {
		return nil, malformed(errors.ErrCodeMissingToolCall, fmt.Errorf("empty response"))
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return nil, malformed(errors.ErrCodeMissingToolCall, fmt.Errorf("no function call in response"))
	}
	if calls[0].Name != ToolName {
		return nil, malformed(errors.ErrCodeWrongToolCall, fmt.Errorf("unexpected function call %q", calls[0].Name))
	}

	args, err := json.Marshal(calls[0].Args)
	if err != nil {
		return nil, malformed(errors.ErrCodeInvalidArguments, err)
	}
	return args, nil
}

// mapGeminiError converts Gemini API failures into the bridge error vocabulary
func mapGeminiError(err error) error {
	if status := geminiStatus(err); status != 0 {
		mapped := MapUpstreamStatus(status)
		if appErr, ok := errors.As(mapped); ok {
			appErr.Cause = err
		}
		return mapped
	}
	return errors.NewUpstreamError(errors.ErrCodeUpstreamTransport, errors.MsgGatewayFailed, err)
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if stderrors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	var gErr *googleapi.Error
	if stderrors.As(err, &gErr) {
		return gErr.Code
	}
	return 0
}

// extractTokenUsage extracts token usage information from a Gemini response
func extractTokenUsage(result *genai.GenerateContentResponse) *types.TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &types.TokenUsage{
		PromptTokens:     int64(usage.PromptTokenCount),
		CompletionTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:      int64(usage.TotalTokenCount),
	}
}
