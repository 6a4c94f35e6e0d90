package observability

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"

	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var testLogger = errors.NewLoggerWithHandler(slog.NewTextHandler(io.Discard, nil))

func enabledConfig() ObservabilityConfig {
	return ObservabilityConfig{
		ServiceName:    "resumematch-test",
		ServiceVersion: "test",
		Enabled:        true,
		SampleRate:     1.0,
		CustomMetrics: config.CustomMetricsConfig{
			AIOperations:    config.AIOperationsMetricsConfig{Enabled: true, TrackDuration: true, TrackTokenUsage: true},
			BusinessMetrics: config.BusinessMetricsConfig{Enabled: true},
			Infrastructure:  config.InfrastructureMetricsConfig{Enabled: true, TrackRateLimits: true, TrackReloads: true},
		},
	}
}

func collect(t *testing.T, om *ObservabilityManager) map[string]metricdata.Metrics {
	t.Helper()
	require.NotNil(t, om.manualReader)
	var rm metricdata.ResourceMetrics
	require.NoError(t, om.manualReader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterTotal(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestDisabledManagerIsNoop(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{ServiceName: "x"}, testLogger)
	require.NoError(t, err)

	called := false
	err = om.TrackAnalysis(context.Background(), "gateway", func(context.Context) *AnalysisOutcome {
		called = true
		return &AnalysisOutcome{}
	})
	assert.NoError(t, err)
	assert.True(t, called)

	om.RecordRateLimitHit(context.Background(), "/analyze-resume")
	om.RecordKeyRotation(context.Background(), true)
	om.RecordPromptReload(context.Background(), "system", true)
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestTrackAnalysisRecordsMetrics(t *testing.T) {
	om, err := NewObservabilityManager(enabledConfig(), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })

	score := 77.0
	err = om.TrackAnalysis(context.Background(), "gateway", func(context.Context) *AnalysisOutcome {
		return &AnalysisOutcome{
			Score:      &score,
			TokenUsage: &types.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}
	})
	require.NoError(t, err)

	failure := stderrors.New("boom")
	err = om.TrackAnalysis(context.Background(), "gateway", func(context.Context) *AnalysisOutcome {
		return &AnalysisOutcome{Error: failure}
	})
	assert.ErrorIs(t, err, failure)

	om.RecordRateLimitHit(context.Background(), "/analyze-resume")
	om.RecordKeyRotation(context.Background(), true)
	om.RecordPromptReload(context.Background(), "user", false)

	metrics := collect(t, om)
	assert.Equal(t, int64(2), counterTotal(t, metrics["resumematch_analysis_requests_total"]))
	assert.Equal(t, int64(1), counterTotal(t, metrics["resumematch_analysis_errors_total"]))
	assert.Equal(t, int64(1), counterTotal(t, metrics["resumematch_rate_limit_hits_total"]))
	assert.Equal(t, int64(1), counterTotal(t, metrics["resumematch_key_rotations_total"]))
	assert.Equal(t, int64(1), counterTotal(t, metrics["resumematch_prompt_reloads_total"]))
	assert.Contains(t, metrics, "resumematch_ats_score")
	assert.Contains(t, metrics, "resumematch_ai_token_usage")
}

func TestReloadMetricsRespectConfig(t *testing.T) {
	cfg := enabledConfig()
	cfg.CustomMetrics.Infrastructure.TrackReloads = false
	om, err := NewObservabilityManager(cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })

	om.RecordKeyRotation(context.Background(), true)
	om.RecordPromptReload(context.Background(), "system", true)

	metrics := collect(t, om)
	assert.NotContains(t, metrics, "resumematch_key_rotations_total")
	assert.NotContains(t, metrics, "resumematch_prompt_reloads_total")
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.ServiceName = "resumematch"
	cfg.Observability.SampleRate = 0.5
	cfg.Observability.Console.Enabled = true

	obs := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "1.2.3", obs.ServiceVersion)
	assert.Equal(t, 0.5, obs.SampleRate)
	assert.True(t, obs.ConsoleOutput)

	cfg.Observability.Tracing.SampleRate = 0.25
	assert.Equal(t, 0.25, GetObservabilityConfig(cfg, "1.2.3").SampleRate)

	assert.False(t, GetObservabilityConfig(nil, "dev").Enabled)
}
