package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxUpstreamBody = 8 << 20

// gatewayReply is the raw outcome of one gateway round trip
type gatewayReply struct {
	status int
	body   []byte
}

// GatewayProvider calls an OpenAI-compatible chat-completions endpoint
type GatewayProvider struct {
	httpClient  *http.Client
	url         string
	model       string
	temperature *float32
	strict      bool
	keys        KeySource
	breaker     *CircuitBreaker[*gatewayReply]
	logger      *errors.Logger
}

var _ Provider = (*GatewayProvider)(nil)

// NewGatewayProvider creates a gateway provider. A nil httpClient gets an
// instrumented client with the configured timeout.
func NewGatewayProvider(cfg *config.AIConfig, keys KeySource, httpClient *http.Client, logger *errors.Logger) *GatewayProvider {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &GatewayProvider{
		httpClient:  httpClient,
		url:         cfg.GatewayURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		strict:      cfg.StrictSchema,
		keys:        keys,
		breaker:     NewCircuitBreaker[*gatewayReply]("gateway", cfg.CircuitBreaker, logger),
		logger:      logger,
	}
}

func (g *GatewayProvider) Name() string  { return config.ProviderGateway }
func (g *GatewayProvider) Model() string { return g.model }
func (g *GatewayProvider) Close() error  { return nil }

func (g *GatewayProvider) BreakerStats() map[string]any {
	return g.breaker.Stats()
}

// Analyze sends exactly one request to the gateway. Failures are never retried.
func (g *GatewayProvider) Analyze(ctx context.Context, req types.AnalysisRequest, prompts *PromptStore) (*Analysis, error) {
	tracer := otel.Tracer("resumematch.ai.gateway")
	ctx, span := tracer.Start(ctx, "gateway.analyze_resume")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", config.ProviderGateway),
		attribute.String("ai.model", g.model),
		attribute.Int("input.resume_length", len(req.Resume)),
		attribute.Int("input.job_length", len(req.JobDescription)),
	)

	analysis, err := g.analyze(ctx, req, prompts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.Kind(err))
		span.SetAttributes(attribute.Bool("success", false), attribute.String("error.kind", errors.Kind(err)))
		return nil, err
	}

	if analysis.Usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", analysis.Usage.PromptTokens),
			attribute.Int64("ai.tokens.output", analysis.Usage.CompletionTokens),
			attribute.Int64("ai.tokens.total", analysis.Usage.TotalTokens),
		)
	}
	span.SetAttributes(attribute.Bool("success", true))
	return analysis, nil
}

func (g *GatewayProvider) analyze(ctx context.Context, req types.AnalysisRequest, prompts *PromptStore) (*Analysis, error) {
	key := g.keys.APIKey()
	if key == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey, errors.MsgNotConfigured, nil)
	}

	payload, err := json.Marshal(BuildChatRequest(g.model, prompts.System(), prompts.RenderUser(req), g.temperature))
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeRequestEncoding, errors.MsgInternal, err)
	}

	reply, err := g.breaker.Execute(func() (*gatewayReply, error) {
		return g.roundTrip(ctx, key, payload)
	})
	if err != nil {
		return nil, err
	}

	args, usage, err := ExtractToolArguments(reply.body)
	if err != nil {
		g.logger.Warn("Gateway response missing expected tool call",
			"model", g.model,
			"body", truncate(reply.body, 512))
		return nil, err
	}

	result, err := DecodeAnalysis(args, g.strict)
	if err != nil {
		return nil, err
	}

	if usage != nil {
		g.logger.Debug("Gateway token usage",
			"prompt_tokens", usage.PromptTokens,
			"completion_tokens", usage.CompletionTokens,
			"total_tokens", usage.TotalTokens)
	}

	return &Analysis{Raw: json.RawMessage(bytes.TrimSpace(args)), Result: result, Usage: usage}, nil
}

// roundTrip performs the HTTP exchange and maps non-2xx statuses
func (g *GatewayProvider) roundTrip(ctx context.Context, key string, payload []byte) (*gatewayReply, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeRequestEncoding, errors.MsgInternal, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamTransport, errors.MsgGatewayFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamTransport, errors.MsgGatewayFailed,
			fmt.Errorf("read gateway response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn("AI gateway returned error status",
			"status", resp.StatusCode,
			"body", truncate(body, 512))
		return nil, MapUpstreamStatus(resp.StatusCode)
	}

	return &gatewayReply{status: resp.StatusCode, body: body}, nil
}
