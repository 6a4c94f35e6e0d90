package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// AnalyzePath is the bridge endpoint
	AnalyzePath = "/analyze-resume"
	// FunctionsAnalyzePath keeps the hosted-function path working for existing clients
	FunctionsAnalyzePath = "/functions/v1/analyze-resume"

	requestIDHeader = "X-Request-Id"
)

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// Handler returns the complete HTTP handler with all middleware applied
func (s *Server) Handler() http.Handler {
	mux := s.setupRoutes()
	return s.corsMiddleware(requestIDMiddleware(s.Observability.HTTPMiddleware()(mux)))
}

// setupRoutes configures all HTTP routes and per-route middleware
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	analyze := s.rateLimitMiddleware()(s.requestSizeLimitMiddleware()(s.analyzeHandler))

	mux.HandleFunc(AnalyzePath, analyze)
	mux.HandleFunc(FunctionsAnalyzePath, analyze)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)

	return mux
}

// corsMiddleware attaches the CORS headers to every response and answers
// preflight requests with an empty 200.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.CORS.AllowOrigin)
		h.Set("Access-Control-Allow-Headers", s.CORS.AllowHeaders)
		if s.CORS.AllowMethods != "" {
			h.Set("Access-Control-Allow-Methods", s.CORS.AllowMethods)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags each request with a UUID, reusing a valid incoming one
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// requestIDFromContext returns the request id set by requestIDMiddleware
func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}
			next(w, r)
		}
	}
}
