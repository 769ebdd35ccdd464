package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with batch-reader-specific span
// creation methods.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// NewTracer creates a new Tracer using the given TracerProvider.
func NewTracer(tp trace.TracerProvider, serviceName string) *Tracer {
	return &Tracer{
		tracer:      tp.Tracer(TracerName),
		serviceName: serviceName,
	}
}

// StartSpan starts a new span with the given name and attributes.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}

// StartBatch starts a span covering the whole lifetime of a BatchReader,
// from Initial to Completed/Exception.
func (t *Tracer) StartBatch(ctx context.Context, format string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "odatabatch.batch", trace.WithAttributes(
		OperationAttr(OpBatch),
		BatchFormatAttr(format),
	))
}

// StartChangeset starts a span for a changeset (MIME nested multipart or a
// JSON atomicityGroup), from ChangesetStart to ChangesetEnd.
func (t *Tracer) StartChangeset(ctx context.Context, groupID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{OperationAttr(OpChangeset)}
	if groupID != "" {
		attrs = append(attrs, ContentIDAttr(groupID))
	}
	return t.tracer.Start(ctx, "odatabatch.changeset", trace.WithAttributes(attrs...))
}

// EndChangeset finalizes a changeset span with its operation count and
// whether it closed successfully.
func (t *Tracer) EndChangeset(span trace.Span, operationCount int, success bool) {
	span.SetAttributes(
		ChangesetSizeAttr(operationCount),
		attribute.Bool(AttrChangesetSuccess, success),
	)
	span.End()
}

// RecordError records an error on the span and marks it as failed.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// LoggerWithTrace returns a logger enriched with trace context.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logger
	}
	return logger.With(
		slog.String(LogFieldTraceID, span.SpanContext().TraceID().String()),
		slog.String(LogFieldSpanID, span.SpanContext().SpanID().String()),
	)
}
