package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"resumematch/internal/ai"
	"resumematch/internal/errors"
	"resumematch/internal/observability"
	"resumematch/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// analyzeHandler is the bridge: one validated request, one upstream call
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.Observability.Tracer("resumematch.api").Start(r.Context(), "api.analyze_resume")
	defer span.End()

	requestID := requestIDFromContext(ctx)
	span.SetAttributes(attribute.String("request.id", requestID))

	if r.Method != http.MethodPost {
		span.SetStatus(codes.Error, "method not allowed")
		w.Header().Set("Allow", "POST, OPTIONS")
		writeMethodNotAllowed(w, requestID, r.Method)
		return
	}

	req, err := parseAnalysisRequest(r)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.kind", errors.Kind(err)))
		s.Logger.Debug("Rejected analysis request",
			"request_id", requestID,
			"error", err.Error())
		writeErrorResponse(w, requestID, err, 0)
		return
	}

	span.SetAttributes(
		attribute.Int("request.resume_length", len(req.Resume)),
		attribute.Int("request.job_length", len(req.JobDescription)),
		attribute.String("request.company", req.CompanyName),
	)

	var analysis *ai.Analysis
	err = s.Observability.TrackAnalysis(ctx, s.Service.ProviderName(), func(ctx context.Context) *observability.AnalysisOutcome {
		result, aiErr := s.Service.Analyze(ctx, req)
		analysis = result
		outcome := &observability.AnalysisOutcome{Error: aiErr}
		if result != nil {
			outcome.TokenUsage = result.Usage
			if result.Result != nil {
				score := result.Result.ATSScore
				outcome.Score = &score
			}
		}
		return outcome
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.Kind(err))
		s.Logger.Info("Analysis request failed",
			"request_id", requestID,
			"kind", errors.Kind(err),
			"status", errors.HTTPStatus(err))
		writeErrorResponse(w, requestID, err, 0)
		return
	}

	span.SetAttributes(attribute.Bool("success", true))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(analysis.Raw); err != nil {
		s.Logger.LogError(err, "Failed to write analysis response", "request_id", requestID)
	}
}

// parseAnalysisRequest decodes the body leniently: any field that is absent or
// not a string counts as missing.
func parseAnalysisRequest(r *http.Request) (types.AnalysisRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return types.AnalysisRequest{}, errors.NewValidationError(errors.ErrCodeRequestTooLarge,
				fmt.Sprintf("Invalid request body: request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return types.AnalysisRequest{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, errors.MsgInvalidBody, err)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return types.AnalysisRequest{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, errors.MsgInvalidBody, err)
	}

	fields, _ := raw.(map[string]any)
	req := types.AnalysisRequest{
		Resume:         stringField(fields, "resume"),
		JobDescription: stringField(fields, "jobDescription"),
		CompanyName:    stringField(fields, "companyName"),
	}
	if err := ai.ValidateRequest(req); err != nil {
		return types.AnalysisRequest{}, err
	}
	return req, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// writeErrorResponse writes the JSON error envelope. A zero status uses the
// status mapped from err.
func writeErrorResponse(w http.ResponseWriter, requestID string, err error, status int) {
	if status == 0 {
		status = errors.HTTPStatus(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error:     errors.PublicMessage(err),
		Kind:      errors.Kind(err),
		RequestID: requestID,
	})
}

func writeMethodNotAllowed(w http.ResponseWriter, requestID, method string) {
	err := errors.NewValidationError(errors.ErrCodeMethodNotAllowed, fmt.Sprintf("Method %s not allowed", method), nil)
	writeErrorResponse(w, requestID, err, http.StatusMethodNotAllowed)
}

// writeJSON writes v as a JSON document with the given status
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
