package ai

import (
	"context"
	"encoding/json"
	"sync"

	"resumematch/internal/types"
)

// Provider performs one structured analysis call against an upstream model
type Provider interface {
	Analyze(ctx context.Context, req types.AnalysisRequest, prompts *PromptStore) (*Analysis, error)
	Name() string
	Model() string
	BreakerStats() map[string]any
	Close() error
}

// Analysis is the decoded tool-call payload of a successful upstream call
type Analysis struct {
	// Raw holds the tool-call arguments exactly as the upstream returned them
	Raw    json.RawMessage
	Result *types.AnalysisResult
	Usage  *types.TokenUsage
}

// KeySource supplies the upstream API key at request time
type KeySource interface {
	APIKey() string
}

// StaticKey is a KeySource that never changes
type StaticKey string

func (k StaticKey) APIKey() string { return string(k) }

// RotatingKey is a KeySource that can be swapped while requests are in flight
type RotatingKey struct {
	mu      sync.RWMutex
	key     string
	version int64
}

// NewRotatingKey creates a rotating key holder seeded with key
func NewRotatingKey(key string, version int64) *RotatingKey {
	return &RotatingKey{key: key, version: version}
}

func (r *RotatingKey) APIKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.key
}

// Version returns the secret version of the current key
func (r *RotatingKey) Version() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Rotate replaces the key. It reports false when version is not newer.
func (r *RotatingKey) Rotate(key string, version int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if version <= r.version && r.key != "" {
		return false
	}
	r.key = key
	r.version = version
	return true
}
