package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resumematch/internal/ai"
	"resumematch/internal/errors"
	"resumematch/internal/types"
)

// Bridge sends one analysis request to the analysis bridge
type Bridge interface {
	Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error)
}

// BridgeError is a failure reported by the bridge
type BridgeError struct {
	StatusCode int
	Kind       string
	Message    string
	RequestID  string
}

func (e *BridgeError) Error() string {
	return e.Message
}

// HTTPBridgeOptions configures an HTTPBridge
type HTTPBridgeOptions struct {
	URL        string
	APIKey     string // sent as both apikey and Authorization: Bearer
	ClientInfo string // x-client-info header value
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPBridge invokes a remote bridge over HTTP
type HTTPBridge struct {
	url        string
	apiKey     string
	clientInfo string
	httpClient *http.Client
}

var _ Bridge = (*HTTPBridge)(nil)

// NewHTTPBridge creates an HTTP bridge. A zero Timeout means no client timeout.
func NewHTTPBridge(opts HTTPBridgeOptions) *HTTPBridge {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPBridge{
		url:        opts.URL,
		apiKey:     opts.APIKey,
		clientInfo: opts.ClientInfo,
		httpClient: httpClient,
	}
}

// Analyze posts the request and decodes either the result or the error envelope
func (b *HTTPBridge) Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create bridge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.clientInfo != "" {
		httpReq.Header.Set("x-client-info", b.clientInfo)
	}
	if b.apiKey != "" {
		httpReq.Header.Set("apikey", b.apiKey)
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bridge response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeBridgeError(resp.StatusCode, body)
	}

	// a 2xx body carrying an error field is still a failure
	var envelope types.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return nil, &BridgeError{
			StatusCode: resp.StatusCode,
			Kind:       envelope.Kind,
			Message:    envelope.Error,
			RequestID:  envelope.RequestID,
		}
	}

	var result types.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode analysis result: %w", err)
	}
	return &result, nil
}

func decodeBridgeError(status int, body []byte) *BridgeError {
	bErr := &BridgeError{StatusCode: status}

	var envelope types.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		bErr.Kind = envelope.Kind
		bErr.Message = envelope.Error
		bErr.RequestID = envelope.RequestID
		return bErr
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(status)
	}
	bErr.Message = fmt.Sprintf("bridge returned %d: %s", status, text)
	return bErr
}

// LocalBridge runs the analysis in-process against an ai.Service
type LocalBridge struct {
	service *ai.Service
}

var _ Bridge = (*LocalBridge)(nil)

// NewLocalBridge creates a bridge backed by service
func NewLocalBridge(service *ai.Service) *LocalBridge {
	return &LocalBridge{service: service}
}

// Analyze calls the service and converts failures to BridgeError
func (b *LocalBridge) Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error) {
	analysis, err := b.service.Analyze(ctx, req)
	if err != nil {
		return nil, &BridgeError{
			StatusCode: errors.HTTPStatus(err),
			Kind:       errors.Kind(err),
			Message:    errors.PublicMessage(err),
		}
	}

	if analysis.Result != nil {
		return analysis.Result.Clone(), nil
	}

	// lenient schema mode may leave Result unset
	var result types.AnalysisResult
	if err := json.Unmarshal(analysis.Raw, &result); err != nil {
		return nil, &BridgeError{
			StatusCode: http.StatusInternalServerError,
			Kind:       string(errors.ErrorTypeMalformedResponse),
			Message:    errors.MsgInvalidAIResponse,
		}
	}
	return &result, nil
}
