package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"resumematch/internal/errors"
	"resumematch/internal/types"
)

// ChatMessage is a single message in a chat-completions request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolFunction declares a callable function and its parameter schema
type ToolFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  *JSONSchema `json:"parameters"`
}

// Tool wraps a function declaration
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolChoice forces the model to call a named function
type ToolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// ChatCompletionRequest is the OpenAI-compatible request body sent to the gateway
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Tools       []Tool        `json:"tools"`
	ToolChoice  ToolChoice    `json:"tool_choice"`
	Temperature *float32      `json:"temperature,omitempty"`
}

// ToolCall is a function invocation returned by the model
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ChatCompletionResponse is the subset of the gateway response the bridge reads
type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role"`
			Content   *string    `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// ValidateRequest rejects requests with any absent or empty field.
// Whitespace-only values are accepted here.
func ValidateRequest(req types.AnalysisRequest) error {
	if req.Resume == "" || req.JobDescription == "" || req.CompanyName == "" {
		return errors.NewValidationError(errors.ErrCodeMissingFields, errors.MsgMissingFields, nil)
	}
	return nil
}

// BuildChatRequest constructs the forced tool-call request for one analysis
func BuildChatRequest(model, systemPrompt, userPrompt string, temperature *float32) ChatCompletionRequest {
	messages := make([]ChatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: userPrompt})

	choice := ToolChoice{Type: "function"}
	choice.Function.Name = ToolName

	return ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools: []Tool{{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolName,
				Description: ToolDescription,
				Parameters:  AnalysisSchema(),
			},
		}},
		ToolChoice:  choice,
		Temperature: temperature,
	}
}

// MapUpstreamStatus converts a non-2xx gateway status into the bridge error vocabulary
func MapUpstreamStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return errors.NewRateLimitedError(errors.ErrCodeRateLimited, errors.MsgRateLimited, nil).
			WithContext("upstream_status", status)
	case http.StatusPaymentRequired:
		return errors.NewCreditsExhaustedError(errors.ErrCodeCreditsExhausted, errors.MsgCreditsExhausted, nil).
			WithContext("upstream_status", status)
	default:
		return errors.NewUpstreamError(errors.ErrCodeUpstreamStatus, fmt.Sprintf("AI gateway error: %d", status), nil).
			WithContext("upstream_status", status)
	}
}

func malformed(code string, cause error) error {
	return errors.NewMalformedResponseError(code, errors.MsgInvalidAIResponse, cause)
}

// ExtractToolArguments pulls the analyze_resume arguments out of a gateway response body
func ExtractToolArguments(body []byte) ([]byte, *types.TokenUsage, error) {
	var resp ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, malformed(errors.ErrCodeMissingToolCall, fmt.Errorf("decode gateway response: %w", err))
	}

	var usage *types.TokenUsage
	if resp.Usage != nil {
		usage = &types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, usage, malformed(errors.ErrCodeMissingToolCall, fmt.Errorf("no tool call in response"))
	}

	call := resp.Choices[0].Message.ToolCalls[0]
	if call.Function.Name != ToolName {
		return nil, usage, malformed(errors.ErrCodeWrongToolCall, fmt.Errorf("unexpected tool call %q", call.Function.Name))
	}

	return []byte(call.Function.Arguments), usage, nil
}

// DecodeAnalysis parses tool-call arguments. In strict mode the payload must
// conform to AnalysisSchema; otherwise only JSON syntax is checked and the
// typed result is best effort.
func DecodeAnalysis(args []byte, strict bool) (*types.AnalysisResult, error) {
	trimmed := bytes.TrimSpace(args)
	if !json.Valid(trimmed) {
		return nil, malformed(errors.ErrCodeInvalidArguments, fmt.Errorf("tool arguments are not valid JSON"))
	}

	if strict {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var generic any
		if err := dec.Decode(&generic); err != nil {
			return nil, malformed(errors.ErrCodeInvalidArguments, err)
		}
		if err := AnalysisSchema().Validate(generic); err != nil {
			return nil, malformed(errors.ErrCodeSchemaViolation, err)
		}
	}

	var result types.AnalysisResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		if strict {
			return nil, malformed(errors.ErrCodeSchemaViolation, err)
		}
		return nil, nil
	}
	return &result, nil
}

// truncate shortens upstream bodies before they are logged
func truncate(body []byte, limit int) string {
	s := strings.ToValidUTF8(string(body), "")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
