package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithServiceName("test-service"),
	)

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected service name 'test-service', got '%s'", cfg.ServiceName)
	}
}

func TestConfigInitialize(t *testing.T) {
	tp := tracenoop.NewTracerProvider()
	mp := noop.NewMeterProvider()

	cfg := NewConfig(
		WithTracerProvider(tp),
		WithMeterProvider(mp),
		WithServiceName("test-service"),
	)

	err := cfg.Initialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Tracer() == nil {
		t.Error("expected tracer to be initialized")
	}
	if cfg.Metrics() == nil {
		t.Error("expected metrics to be initialized")
	}
}

func TestConfigInitializeNoProviders(t *testing.T) {
	cfg := NewConfig(WithServiceName("test-service"))

	err := cfg.Initialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should get noop implementations
	if cfg.Tracer() == nil {
		t.Error("expected noop tracer to be returned")
	}
	if cfg.Metrics() == nil {
		t.Error("expected noop metrics to be returned")
	}
}

func TestNoopTracer(t *testing.T) {
	tracer := NewNoopTracer()

	ctx := context.Background()

	// Test various span creation methods don't panic
	ctx, span := tracer.StartSpan(ctx, "test")
	span.End()

	ctx, span = tracer.StartBatch(ctx, "mime")
	span.End()

	_, span = tracer.StartChangeset(ctx, "cs-1")
	tracer.EndChangeset(span, 2, true)
}

func TestNoopMetrics(t *testing.T) {
	metrics := NewNoopMetrics()

	ctx := context.Background()

	// Test various record methods don't panic
	metrics.RecordBatchSize(ctx, 5)
	metrics.RecordChangesetSize(ctx, 2)
	metrics.RecordOperation(ctx, "mime")
	metrics.RecordQuotaExceeded(ctx, "QuotaExceeded")
	metrics.RecordParseError(ctx, "MalformedFraming")
}

func TestIsEnabled(t *testing.T) {
	// Empty config is not enabled
	cfg := NewConfig()
	if cfg.IsEnabled() {
		t.Error("expected empty config to not be enabled")
	}

	// With tracer provider is enabled
	cfg = NewConfig(WithTracerProvider(tracenoop.NewTracerProvider()))
	if !cfg.IsEnabled() {
		t.Error("expected config with tracer to be enabled")
	}

	// With meter provider is enabled
	cfg = NewConfig(WithMeterProvider(noop.NewMeterProvider()))
	if !cfg.IsEnabled() {
		t.Error("expected config with meter to be enabled")
	}
}

func TestTracerRecordError(t *testing.T) {
	tracer := NewNoopTracer()

	ctx := context.Background()
	_, span := tracer.StartSpan(ctx, "test")

	// Should not panic
	tracer.RecordError(span, nil)
	tracer.RecordError(span, context.Canceled)
	span.End()
}

func TestAttributes(t *testing.T) {
	// Test attribute helper functions don't panic
	_ = OperationAttr(OpOperation)
	_ = BatchFormatAttr("json")
	_ = BatchSizeAttr(5)
	_ = ChangesetSizeAttr(3)
	_ = ContentIDAttr("1")
	_ = ErrorKindAttr("QuotaExceeded")
}
