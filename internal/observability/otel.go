package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Metrics holds all custom metrics for resumematch
type Metrics struct {
	// Upstream call metrics
	AnalysisDuration metric.Float64Histogram
	AnalysisRequests metric.Int64Counter
	AnalysisErrors   metric.Int64Counter
	TokenUsage       metric.Int64Histogram

	// Business metrics
	ATSScore metric.Float64Histogram

	// Infrastructure metrics
	RateLimitHits metric.Int64Counter
	KeyRotations  metric.Int64Counter
	PromptReloads metric.Int64Counter
}

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config         ObservabilityConfig
	logger         *errors.Logger
	resource       *resource.Resource
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	manualReader   *sdkmetric.ManualReader
	metrics        *Metrics
	shutdownFuncs  []func(context.Context) error
}

// NewObservabilityManager creates a new observability manager. A disabled
// manager hands out no-op tracers and records nothing.
func NewObservabilityManager(obsConfig ObservabilityConfig, logger *errors.Logger) (*ObservabilityManager, error) {
	om := &ObservabilityManager{config: obsConfig, logger: logger}
	if !obsConfig.Enabled {
		return om, nil
	}

	if err := om.initResource(); err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := om.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

func (om *ObservabilityManager) initResource() error {
	instance := om.config.ServiceInstance
	if instance == "" {
		instance = om.config.ServiceName + "-1"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			semconv.ServiceInstanceID(instance),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	om.resource = res
	return nil
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case om.config.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case om.config.OTLP.Enabled:
		exporter, err = om.createOTLPExporter()
	default:
		exporter = noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(om.resource),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(om.config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)
	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics() error {
	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(om.resource)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	return om.initCustomMetrics()
}

func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	interval := om.collectionInterval()

	if om.config.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if om.config.OTLP.Enabled {
		exporter, err := om.createOTLPMetricExporter()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if om.config.Prometheus.Enabled {
		reader, mux, err := SetupPrometheusExporter(om.config.Prometheus)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		shutdown := StartPrometheusServer(mux, om.config.Prometheus.Port, om.logger)
		om.shutdownFuncs = append(om.shutdownFuncs, shutdown)
		readers = append(readers, reader)
	}

	// Nothing exports; keep a manual reader so instruments still aggregate
	if len(readers) == 0 {
		om.manualReader = sdkmetric.NewManualReader()
		readers = append(readers, om.manualReader)
	}

	return readers, nil
}

// initCustomMetrics creates the resumematch instruments
func (om *ObservabilityManager) initCustomMetrics() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	m := &Metrics{}
	var err error

	if m.AnalysisDuration, err = meter.Float64Histogram(
		"resumematch_analysis_duration_seconds",
		metric.WithDescription("Time spent waiting for the upstream analysis"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create analysis duration metric: %w", err)
	}

	if m.AnalysisRequests, err = meter.Int64Counter(
		"resumematch_analysis_requests_total",
		metric.WithDescription("Total number of analysis requests sent upstream"),
	); err != nil {
		return fmt.Errorf("failed to create analysis request metric: %w", err)
	}

	if m.AnalysisErrors, err = meter.Int64Counter(
		"resumematch_analysis_errors_total",
		metric.WithDescription("Total number of failed analyses by error kind"),
	); err != nil {
		return fmt.Errorf("failed to create analysis error metric: %w", err)
	}

	if m.TokenUsage, err = meter.Int64Histogram(
		"resumematch_ai_token_usage",
		metric.WithDescription("Token usage for upstream calls (input, output, total)"),
		metric.WithUnit("tokens"),
	); err != nil {
		return fmt.Errorf("failed to create token usage metric: %w", err)
	}

	if m.ATSScore, err = meter.Float64Histogram(
		"resumematch_ats_score",
		metric.WithDescription("Distribution of returned ATS scores"),
		metric.WithExplicitBucketBoundaries(20, 40, 60, 80, 100),
	); err != nil {
		return fmt.Errorf("failed to create ATS score metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter(
		"resumematch_rate_limit_hits_total",
		metric.WithDescription("Total number of requests rejected by the rate limiter"),
	); err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	if m.KeyRotations, err = meter.Int64Counter(
		"resumematch_key_rotations_total",
		metric.WithDescription("Total number of upstream key rotations picked up from Vault"),
	); err != nil {
		return fmt.Errorf("failed to create key rotation metric: %w", err)
	}

	if m.PromptReloads, err = meter.Int64Counter(
		"resumematch_prompt_reloads_total",
		metric.WithDescription("Total number of prompt file reloads"),
	); err != nil {
		return fmt.Errorf("failed to create prompt reload metric: %w", err)
	}

	om.metrics = m
	return nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om == nil || om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if om == nil || !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if om == nil || !om.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return om.tracerProvider.Tracer(name)
}

// Shutdown flushes and stops every exporter. All components are attempted.
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	if om == nil {
		return nil
	}
	var errs []error
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// AnalysisOutcome is what an instrumented analysis reports back
type AnalysisOutcome struct {
	Error      error
	Score      *float64
	TokenUsage *types.TokenUsage
}

// TrackAnalysis instruments one upstream analysis with a span and metrics
func (om *ObservabilityManager) TrackAnalysis(ctx context.Context, provider string, fn func(context.Context) *AnalysisOutcome) error {
	ctx, span := om.Tracer("resumematch.ai").Start(ctx, "ai.analyze_resume")
	defer span.End()

	start := time.Now()
	outcome := fn(ctx)
	duration := time.Since(start).Seconds()
	if outcome == nil {
		outcome = &AnalysisOutcome{}
	}
	err := outcome.Error

	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.Bool("success", err == nil),
	}
	span.SetAttributes(attrs...)

	m := om.GetMetrics()
	custom := om.customMetrics()

	if custom.AIOperations.Enabled && m.AnalysisRequests != nil {
		if custom.AIOperations.TrackDuration {
			m.AnalysisDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
		}
		m.AnalysisRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
		if err != nil {
			m.AnalysisErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("provider", provider),
				attribute.String("kind", errors.Kind(err)),
			))
		}
		if custom.AIOperations.TrackTokenUsage && outcome.TokenUsage != nil {
			om.recordTokenUsage(ctx, provider, outcome.TokenUsage)
		}
	}

	if custom.BusinessMetrics.Enabled && m.ATSScore != nil && outcome.Score != nil {
		m.ATSScore.Record(ctx, *outcome.Score, metric.WithAttributes(attribute.String("provider", provider)))
	}

	if outcome.TokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", outcome.TokenUsage.PromptTokens),
			attribute.Int64("ai.tokens.output", outcome.TokenUsage.CompletionTokens),
			attribute.Int64("ai.tokens.total", outcome.TokenUsage.TotalTokens),
		)
	}

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.kind", errors.Kind(err)))
	}
	return err
}

func (om *ObservabilityManager) recordTokenUsage(ctx context.Context, provider string, usage *types.TokenUsage) {
	for _, tt := range []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.PromptTokens},
		{"output", usage.CompletionTokens},
		{"total", usage.TotalTokens},
	} {
		om.metrics.TokenUsage.Record(ctx, tt.value, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("token_type", tt.tokenType),
		))
	}
}

// RecordRateLimitHit counts a request rejected by the rate limiter
func (om *ObservabilityManager) RecordRateLimitHit(ctx context.Context, endpoint string) {
	m := om.GetMetrics()
	custom := om.customMetrics()
	if m.RateLimitHits == nil || !custom.Infrastructure.Enabled || !custom.Infrastructure.TrackRateLimits {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordKeyRotation counts an attempted upstream key rotation
func (om *ObservabilityManager) RecordKeyRotation(ctx context.Context, success bool) {
	m := om.GetMetrics()
	if m.KeyRotations == nil || !om.trackReloads() {
		return
	}
	m.KeyRotations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordPromptReload counts an attempted prompt file reload
func (om *ObservabilityManager) RecordPromptReload(ctx context.Context, kind string, success bool) {
	m := om.GetMetrics()
	if m.PromptReloads == nil || !om.trackReloads() {
		return
	}
	m.PromptReloads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("prompt", kind),
		attribute.Bool("success", success),
	))
}

func (om *ObservabilityManager) trackReloads() bool {
	custom := om.customMetrics()
	return custom.Infrastructure.Enabled && custom.Infrastructure.TrackReloads
}

func (om *ObservabilityManager) customMetrics() config.CustomMetricsConfig {
	if om == nil {
		return config.CustomMetricsConfig{}
	}
	return om.config.CustomMetrics
}

type noOpSpanExporter struct{}

func (noOpSpanExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }
func (noOpSpanExporter) Shutdown(context.Context) error                          { return nil }

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	otlpConfig := om.config.OTLP

	var opts []otlptracehttp.Option
	if strings.Contains(otlpConfig.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(otlpConfig.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(otlpConfig.Endpoint))
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// createOTLPMetricExporter creates an OTLP HTTP metrics exporter
func (om *ObservabilityManager) createOTLPMetricExporter() (sdkmetric.Exporter, error) {
	otlpConfig := om.config.OTLP

	var opts []otlpmetrichttp.Option
	if strings.Contains(otlpConfig.Endpoint, "://") {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint))
	} else {
		opts = append(opts, otlpmetrichttp.WithEndpoint(otlpConfig.Endpoint))
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	return exporter, nil
}

func (om *ObservabilityManager) collectionInterval() time.Duration {
	if om.config.CollectionInterval > 0 {
		return om.config.CollectionInterval
	}
	return 15 * time.Second
}
