// Package observability provides OpenTelemetry-based instrumentation for the
// batch reader.
//
// It supports distributed tracing and metrics collection over the reader's
// advance()/operation lifecycle. All observability features are opt-in. When
// not configured, no-op implementations are used with zero overhead.
package observability

import "go.opentelemetry.io/otel/attribute"

// Instrumentation identity constants.
const (
	// TracerName is the instrumentation name for tracing.
	TracerName = "github.com/nlstn/odata-batch"
	// MeterName is the instrumentation name for metrics.
	MeterName = "github.com/nlstn/odata-batch"
)

// Batch-reader semantic attribute keys following OpenTelemetry conventions.
const (
	AttrOperation        = "odatabatch.operation"
	AttrBatchFormat      = "odatabatch.format"
	AttrBatchSize        = "odatabatch.batch.size"
	AttrChangesetSize    = "odatabatch.changeset.size"
	AttrContentID        = "odatabatch.content_id"
	AttrChangesetSuccess = "odatabatch.changeset.success"
	AttrErrorKind        = "odatabatch.error.kind"
)

// Operation types for the odatabatch.operation attribute.
const (
	OpBatch     = "batch"
	OpChangeset = "changeset"
	OpOperation = "operation"
)

// Log field keys for structured logging with trace context.
const (
	LogFieldTraceID   = "trace_id"
	LogFieldSpanID    = "span_id"
	LogFieldOperation = "odatabatch.operation"
	LogFieldError     = "error"
)

// OperationAttr creates an attribute for the operation type.
func OperationAttr(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// BatchFormatAttr creates an attribute identifying the wire format (mime/json).
func BatchFormatAttr(format string) attribute.KeyValue {
	return attribute.String(AttrBatchFormat, format)
}

// BatchSizeAttr creates an attribute for the batch size (parts/elements seen so far).
func BatchSizeAttr(size int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, size)
}

// ChangesetSizeAttr creates an attribute for the changeset size.
func ChangesetSizeAttr(size int) attribute.KeyValue {
	return attribute.Int(AttrChangesetSize, size)
}

// ContentIDAttr creates an attribute for a Content-ID / atomicityGroup request id.
func ContentIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrContentID, id)
}

// ErrorKindAttr creates an attribute for an ODataBatchError Kind.
func ErrorKindAttr(kind string) attribute.KeyValue {
	return attribute.String(AttrErrorKind, kind)
}
