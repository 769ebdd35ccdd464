package observability

import (
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// NewNoopTracer creates a tracer that does nothing.
func NewNoopTracer() *Tracer {
	return &Tracer{
		tracer:      tracenoop.NewTracerProvider().Tracer(""),
		serviceName: "",
	}
}

// NewNoopMetrics creates metrics that do nothing.
func NewNoopMetrics() *Metrics {
	meter := noop.NewMeterProvider().Meter("")
	m := &Metrics{}

	// Note: the noop meter never returns errors, so they are discarded.
	m.batchSize, _ = meter.Int64Histogram("odatabatch.batch.size")
	m.changesetSize, _ = meter.Int64Histogram("odatabatch.changeset.size")
	m.operationCount, _ = meter.Int64Counter("odatabatch.operation.count")
	m.quotaExceeded, _ = meter.Int64Counter("odatabatch.quota_exceeded.count")
	m.parseErrorCount, _ = meter.Int64Counter("odatabatch.parse_error.count")

	return m
}
