package telemetry

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOTELHook_Run(t *testing.T) {
	tests := getOTELHookTestCases()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runOTELHookTest(t, tt)
		})
	}
}

// getOTELHookTestCases returns test cases for OTEL hook
func getOTELHookTestCases() []struct {
	name        string
	setupCtx    func() context.Context
	expectTrace bool
	expectSpan  bool
} {
	return []struct {
		name        string
		setupCtx    func() context.Context
		expectTrace bool
		expectSpan  bool
	}{
		{
			name: "no context",
			setupCtx: func() context.Context {
				return nil
			},
			expectTrace: false,
			expectSpan:  false,
		},
		{
			name: "context without span",
			setupCtx: func() context.Context {
				return context.Background()
			},
			expectTrace: false,
			expectSpan:  false,
		},
		{
			name: "context with valid span",
			setupCtx: func() context.Context {
				return createContextWithSpan()
			},
			expectTrace: true,
			expectSpan:  true,
		},
	}
}

// createContextWithSpan creates a context with tracing span
func createContextWithSpan() context.Context {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)
	tracer := provider.Tracer("test")
	ctx, _ := tracer.Start(context.Background(), "test-span")
	return ctx
}

// runOTELHookTest executes a single OTEL hook test
func runOTELHookTest(t *testing.T, tt struct {
	name        string
	setupCtx    func() context.Context
	expectTrace bool
	expectSpan  bool
}) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	hook := OTELHook{}
	event := logger.Info().Ctx(tt.setupCtx())

	hook.Run(event, zerolog.InfoLevel, "test message")
	event.Msg("test")

	verifyOTELOutput(t, buf.String(), tt.expectTrace, tt.expectSpan)
}

// verifyOTELOutput checks if output contains expected trace/span IDs
func verifyOTELOutput(t *testing.T, output string, expectTrace, expectSpan bool) {
	if expectTrace {
		assert.Contains(t, output, "trace_id")
	} else {
		assert.NotContains(t, output, "trace_id")
	}

	if expectSpan {
		assert.Contains(t, output, "span_id")
	} else {
		assert.NotContains(t, output, "span_id")
	}
}

func TestOTELHook_ErrorLevel(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)
	tracer := provider.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	hook := OTELHook{}
	event := logger.Error().Ctx(ctx)

	hook.Run(event, zerolog.ErrorLevel, "error message")
	event.Msg("test error")

	// Verify span status was set to error
	span.End()
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "error message", spans[0].Status.Description)
}

func TestNewLogger(t *testing.T) {
	// Redirect stdout to capture output
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	logger := NewLogger("sweeper")

	// Write a test message
	logger.Info().Msg("test message")

	// Close writer and restore stdout
	_ = w.Close()
	os.Stdout = oldStdout

	// Read captured output
	buf := make([]byte, 1024)
	n, _ := r.Read(buf)
	output := string(buf[:n])

	assert.NotNil(t, logger)
	assert.Contains(t, output, "sweeper")
	assert.Contains(t, output, "test message")
}

func TestLogger_WithContext(t *testing.T) {
	logger := NewLogger("sweeper")
	ctx := context.Background()

	contextLogger := logger.WithContext(ctx)
	assert.NotNil(t, contextLogger)
}

func TestLogger_LogSpanStart(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{Logger: zerolog.New(&buf)}
	ctx := context.Background()

	attrs := []attribute.KeyValue{
		attribute.String("test.key", "test.value"),
		attribute.Int("test.count", 42),
	}

	logger.LogSpanStart(ctx, "test-span", attrs...)

	output := buf.String()
	assert.Contains(t, output, "span started")
	assert.Contains(t, output, "test-span")
	assert.Contains(t, output, "test.value")
	assert.Contains(t, output, "42")
}

func TestLogger_LogSpanEnd(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		expectError bool
	}{
		{
			name:        "successful span",
			err:         nil,
			expectError: false,
		},
		{
			name:        "failed span",
			err:         assert.AnError,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := &Logger{Logger: zerolog.New(&buf)}
			ctx := context.Background()

			logger.LogSpanEnd(ctx, "test-span", tt.err)

			output := buf.String()
			assert.Contains(t, output, "test-span")

			if tt.expectError {
				assert.Contains(t, output, "span failed")
				assert.Contains(t, output, "level\":\"error")
			} else {
				assert.Contains(t, output, "span completed")
				assert.Contains(t, output, "level\":\"debug")
			}
		})
	}
}

func TestAddAttributeToEvent(t *testing.T) {
	tests := []struct {
		name     string
		attr     attribute.KeyValue
		expected string
	}{
		{
			name:     "string attribute",
			attr:     attribute.String("key", "value"),
			expected: "\"key\":\"value\"",
		},
		{
			name:     "int64 attribute",
			attr:     attribute.Int64("count", 42),
			expected: "\"count\":42",
		},
		{
			name:     "float64 attribute",
			attr:     attribute.Float64("rate", 3.14),
			expected: "\"rate\":3.14",
		},
		{
			name:     "bool attribute",
			attr:     attribute.Bool("enabled", true),
			expected: "\"enabled\":true",
		},
		{
			name:     "int attribute (converted to int64)",
			attr:     attribute.Int("size", 100),
			expected: "\"size\":100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)
			event := logger.Info()

			event = addAttributeToEvent(event, tt.attr)
			event.Msg("test")

			output := buf.String()
			assert.Contains(t, output, tt.expected)
		})
	}
}

func TestLogger_ConvenienceMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{Logger: zerolog.New(&buf)}
	ctx := context.Background()

	// Test LogInstanceSkipped
	logger.LogInstanceSkipped(ctx, "i-0abc123", "not opted in")
	assert.Contains(t, buf.String(), "instance skipped")
	assert.Contains(t, buf.String(), "i-0abc123")
	assert.Contains(t, buf.String(), "not opted in")

	buf.Reset()

	// Test LogInstanceError
	logger.LogInstanceError(ctx, "i-0abc123", "evaluate", assert.AnError)
	assert.Contains(t, buf.String(), "instance processing failed")
	assert.Contains(t, buf.String(), "evaluate")
	assert.Contains(t, buf.String(), "level\":\"error")

	buf.Reset()

	// Test LogShutdown
	logger.LogShutdown(ctx, "i-0abc123", "batch-worker", 3.5)
	assert.Contains(t, buf.String(), "stopping idle instance")
	assert.Contains(t, buf.String(), "batch-worker")
	assert.Contains(t, buf.String(), "3.5")
}

func TestConfig_Defaults(t *testing.T) {
	// Clear environment variables
	oldEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	defer func() {
		if oldEndpoint != "" {
			_ = os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", oldEndpoint)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	cfg := Config{}

	// Without an OTLP endpoint the Prometheus exporter still works and
	// traces run on a local provider, so init must succeed
	shutdown, err := InitOTEL(ctx, cfg)
	assert.NoError(t, err)
	assert.NotNil(t, shutdown)

	// Cleanup
	if shutdown != nil {
		_ = shutdown(ctx)
	}
}

func TestConfig_EnvironmentVariable(t *testing.T) {
	// Set environment variable
	testEndpoint := "test.example.com:4317"
	_ = os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", testEndpoint)
	defer func() { _ = os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT") }()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	cfg := Config{}

	// InitOTEL should succeed with env var endpoint
	shutdown, err := InitOTEL(ctx, cfg)
	assert.NoError(t, err)
	assert.NotNil(t, shutdown)

	// Cleanup
	if shutdown != nil {
		_ = shutdown(ctx)
	}
}

func TestInitMetrics(t *testing.T) {
	// Create a test meter provider
	provider := metric.NewMeterProvider()
	otel.SetMeterProvider(provider)
	Meter = provider.Meter("test")

	err := initMetrics()
	assert.NoError(t, err)

	// Verify metrics were created
	assert.NotNil(t, InstancesSwept)
	assert.NotNil(t, InstancesStopped)
	assert.NotNil(t, EvaluationsFailed)
	assert.NotNil(t, NotificationsSent)
	assert.NotNil(t, SweepDuration)
	assert.NotNil(t, IdleWatermarks)
}

func TestServiceNameDefault(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	cfg := Config{
		OTELEndpoint: "localhost:4317",
		Insecure:     true,
	}

	// InitOTEL should succeed and use default service name
	shutdown, err := InitOTEL(ctx, cfg)
	assert.NoError(t, err)
	assert.NotNil(t, shutdown)

	// Cleanup
	if shutdown != nil {
		_ = shutdown(ctx)
	}
}

func TestOTELInitShutdown(t *testing.T) {
	// Test with minimal config to avoid actual connection
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cfg := Config{
		ServiceName:    "reaper-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTELEndpoint:   "localhost:4317",
		Insecure:       true,
	}

	// InitOTEL should succeed (Prometheus exporter doesn't need server)
	shutdown, err := InitOTEL(ctx, cfg)
	assert.NoError(t, err)

	// Even on failure, if we got a shutdown function, test it
	if shutdown != nil {
		shutdownErr := shutdown(context.Background())
		// Shutdown error is acceptable since nothing is listening
		_ = shutdownErr
	}
}

func TestSetupTraceProvider_NoEndpoint(t *testing.T) {
	ctx := context.Background()

	cfg := Config{}
	res := resource.Default()

	shutdown, err := setupTraceProvider(ctx, cfg, res)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NotNil(t, Tracer)

	_ = shutdown(ctx)
}

func TestSetupTraceProvider_WithEndpoint(t *testing.T) {
	// Test successful setup without actual connection
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cfg := Config{
		OTELEndpoint: "localhost:4317",
		Insecure:     true,
	}

	res := resource.Default()
	shutdown, err := setupTraceProvider(ctx, cfg, res)

	// The function might succeed in creating the provider even without a server
	if err == nil {
		assert.NotNil(t, shutdown)
		// Clean up
		if shutdown != nil {
			_ = shutdown(ctx)
		}
	} else {
		// Or it might fail due to connection issues, which is also acceptable
		assert.Error(t, err)
	}
}

func TestSetupMetricProvider_Success(t *testing.T) {
	// Test successful setup without actual connection
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cfg := Config{
		OTELEndpoint: "localhost:4317",
		Insecure:     true,
	}

	res := resource.Default()
	shutdown, err := setupMetricProvider(ctx, cfg, res)

	// The function might succeed in creating the provider even without a server
	if err == nil {
		assert.NotNil(t, shutdown)
		assert.NotNil(t, PrometheusRegistry)
		// Clean up
		if shutdown != nil {
			_ = shutdown(ctx)
		}
	} else {
		// Or it might fail due to connection issues, which is also acceptable
		assert.Error(t, err)
	}
}

func TestMetricRecording(t *testing.T) {
	// Setup test providers
	metricProvider := metric.NewMeterProvider()
	otel.SetMeterProvider(metricProvider)
	Meter = metricProvider.Meter("test")

	// Initialize metrics
	err := initMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	// Test counter recording
	InstancesSwept.Add(ctx, 100)
	InstancesStopped.Add(ctx, 3)
	EvaluationsFailed.Add(ctx, 1)
	NotificationsSent.Add(ctx, 3)

	// Test histogram recording
	SweepDuration.Record(ctx, 1.5)

	// Test gauge recording
	IdleWatermarks.Record(ctx, 7)

	// If we get here without panicking, metrics are working
	assert.NotNil(t, InstancesSwept)
}

func TestRecordDecisionEvent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)
	tracer := provider.Tracer("test")

	_, span := tracer.Start(context.Background(), "test-span")
	RecordDecisionEvent(span, "stop", "i-0abc123", 4.2, "idle past limit")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	events := spans[0].Events
	require.Len(t, events, 1)
	assert.Equal(t, "reaper.decision.made", events[0].Name)
	assert.Contains(t, events[0].Attributes, attribute.String("decision.action", "stop"))
	assert.Contains(t, events[0].Attributes, attribute.String("resource.id", "i-0abc123"))
	assert.Contains(t, events[0].Attributes, attribute.Float64("idle.hours", 4.2))
}

func TestRecordShutdownEvent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)
	tracer := provider.Tracer("test")

	t.Run("success", func(t *testing.T) {
		exporter.Reset()
		_, span := tracer.Start(context.Background(), "test-span")
		RecordShutdownEvent(span, "i-0abc123", "batch-worker", 3.5, "stopped", "")
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		events := spans[0].Events
		require.Len(t, events, 1)
		assert.Equal(t, "reaper.shutdown.executed", events[0].Name)
		assert.Contains(t, events[0].Attributes, attribute.String("status", "stopped"))
		assert.NotContains(t, events[0].Attributes, attribute.String("error.message", ""))
	})

	t.Run("failure carries error message", func(t *testing.T) {
		exporter.Reset()
		_, span := tracer.Start(context.Background(), "test-span")
		RecordShutdownEvent(span, "i-0abc123", "batch-worker", 3.5, "failed", "api throttled")
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		events := spans[0].Events
		require.Len(t, events, 1)
		assert.Contains(t, events[0].Attributes, attribute.String("error.message", "api throttled"))
	})
}

func TestRecordEvents_NilSpan(t *testing.T) {
	// Must not panic
	RecordDecisionEvent(nil, "stop", "i-0abc123", 1.0, "idle")
	RecordShutdownEvent(nil, "i-0abc123", "name", 1.0, "stopped", "")
}
