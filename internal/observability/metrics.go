package observability

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the batch-reader-specific metric instruments.
type Metrics struct {
	batchSize       metric.Int64Histogram
	changesetSize   metric.Int64Histogram
	operationCount  metric.Int64Counter
	quotaExceeded   metric.Int64Counter
	parseErrorCount metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	// Note: errors from meter instrument creation are unlikely in practice
	// and would only occur with invalid parameters. We use explicit checks
	// to satisfy the linter while continuing with partial metrics on error.
	var err error

	m.batchSize, err = meter.Int64Histogram(
		"odatabatch.batch.size",
		metric.WithDescription("Number of parts/elements seen in a batch"),
		metric.WithUnit("{part}"),
	)
	if err != nil {
		m.batchSize, _ = meter.Int64Histogram("odatabatch.batch.size")
	}

	m.changesetSize, err = meter.Int64Histogram(
		"odatabatch.changeset.size",
		metric.WithDescription("Number of operations in a changeset"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		m.changesetSize, _ = meter.Int64Histogram("odatabatch.changeset.size")
	}

	m.operationCount, err = meter.Int64Counter(
		"odatabatch.operation.count",
		metric.WithDescription("Total number of operations yielded by the reader"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		m.operationCount, _ = meter.Int64Counter("odatabatch.operation.count")
	}

	m.quotaExceeded, err = meter.Int64Counter(
		"odatabatch.quota_exceeded.count",
		metric.WithDescription("Number of times a batch/changeset quota was exceeded"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.quotaExceeded, _ = meter.Int64Counter("odatabatch.quota_exceeded.count")
	}

	m.parseErrorCount, err = meter.Int64Counter(
		"odatabatch.parse_error.count",
		metric.WithDescription("Total number of ODataBatchError failures raised by the reader"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.parseErrorCount, _ = meter.Int64Counter("odatabatch.parse_error.count")
	}

	return m
}

// RecordBatchSize records the final number of parts/elements seen in a batch.
func (m *Metrics) RecordBatchSize(ctx context.Context, size int) {
	m.batchSize.Record(ctx, int64(size))
}

// RecordChangesetSize records the number of operations in a completed changeset.
func (m *Metrics) RecordChangesetSize(ctx context.Context, size int) {
	m.changesetSize.Record(ctx, int64(size))
}

// RecordOperation records that an operation (request or response) was yielded.
func (m *Metrics) RecordOperation(ctx context.Context, format string) {
	m.operationCount.Add(ctx, 1, metric.WithAttributes(BatchFormatAttr(format)))
}

// RecordQuotaExceeded records that a quota (batch_size or changeset_size) was hit.
func (m *Metrics) RecordQuotaExceeded(ctx context.Context, kind string) {
	m.quotaExceeded.Add(ctx, 1, metric.WithAttributes(ErrorKindAttr(kind)))
}

// RecordParseError records a terminal ODataBatchError by its Kind.
func (m *Metrics) RecordParseError(ctx context.Context, kind string) {
	m.parseErrorCount.Add(ctx, 1, metric.WithAttributes(ErrorKindAttr(kind)))
}
