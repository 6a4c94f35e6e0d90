package ai

import (
	stderrors "errors"
	"fmt"

	"resumematch/internal/config"
	"resumematch/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker wraps upstream calls with the circuit breaker pattern.
// A nil breaker passes calls straight through.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewCircuitBreaker creates a breaker for the named upstream, or nil when disabled
func NewCircuitBreaker[T any](upstream string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *CircuitBreaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("AI-%s", upstream),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		// Quota and configuration errors say nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.IsType(err, errors.ErrorTypeRateLimited) ||
				errors.IsType(err, errors.ErrorTypeCreditsExhausted) ||
				errors.IsType(err, errors.ErrorTypeConfig)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"upstream", upstream,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn under breaker protection. Rejections by an open breaker
// surface as upstream errors.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	if c == nil || c.cb == nil {
		return fn()
	}

	result, err := c.cb.Execute(fn)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, errors.NewUpstreamError(errors.ErrCodeCircuitOpen, errors.MsgGatewayUnavailable, err).
			WithContext("breaker", c.cb.Name())
	}
	return result, err
}

// Stats returns circuit breaker statistics
func (c *CircuitBreaker[T]) Stats() map[string]any {
	if c == nil || c.cb == nil {
		return map[string]any{"enabled": false}
	}

	counts := c.cb.Counts()
	return map[string]any{
		"enabled": true,
		"name":    c.cb.Name(),
		"state":   c.cb.State().String(),
		"counts": map[string]uint32{
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		},
	}
}

// IsHealthy returns true if the breaker is closed or disabled
func (c *CircuitBreaker[T]) IsHealthy() bool {
	if c == nil || c.cb == nil {
		return true
	}
	return c.cb.State() == gobreaker.StateClosed
}
