package revisit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/revisit/pkg/trace"
)

// Operation names used for metrics labels and trace records.
const (
	opLoad          = "load"
	opRecordAttempt = "record_attempt"
	opMarkExported  = "mark_exported"
)

// Status values used for metrics labels and trace records.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// operation accumulates spans for one tracker call and reports them to the
// metrics collector and trace exporter when it ends.
type operation struct {
	t      *Tracker
	start  time.Time
	record *trace.TraceRecord
}

// begin starts timing a named operation.
func (t *Tracker) begin(name string) *operation {
	start := time.Now()
	return &operation{
		t:     t,
		start: start,
		record: &trace.TraceRecord{
			Timestamp:   start.UTC(),
			OperationID: uuid.New().String(),
			Operation:   name,
			Spans:       make([]trace.SpanRecord, 0, 3),
		},
	}
}

// spanTimer is a helper for measuring span duration
type spanTimer struct {
	name  string
	start time.Time
	op    *operation
}

// span starts a named stage within the operation.
func (op *operation) span(name string) *spanTimer {
	return &spanTimer{name: name, start: time.Now(), op: op}
}

// finish completes the span and records it on the operation.
func (st *spanTimer) finish(ctx context.Context, err error, counters map[string]int64) {
	duration := time.Since(st.start)
	span := trace.SpanRecord{
		Name:       st.name,
		DurationMs: duration.Milliseconds(),
		OK:         err == nil,
		Counters:   counters,
	}
	if err != nil {
		span.ErrorType = ClassifyError(err)
	}
	st.op.record.Spans = append(st.op.record.Spans, span)
	st.op.t.metrics.RecordStage(ctx, st.op.record.Operation, st.name, duration)
}

// end reports the operation. Export failures are logged, never returned.
func (op *operation) end(ctx context.Context, err error, counters map[string]int64) {
	rec := op.record
	elapsed := time.Since(op.start)
	rec.DurationMs = elapsed.Milliseconds()
	rec.Counters = counters
	rec.Status = statusSuccess
	if err != nil {
		rec.Status = statusError
		rec.ErrorType = ClassifyError(err)
		op.t.metrics.RecordError(ctx, rec.Operation, rec.ErrorType)
	}
	op.t.metrics.RecordOperation(ctx, rec.Operation, rec.Status, elapsed)

	if exportErr := op.t.tracer.Export(ctx, rec); exportErr != nil {
		op.t.logger.Warn("failed to export trace",
			slog.String("operation", rec.Operation),
			slog.String("operation_id", rec.OperationID),
			slog.Any("error", exportErr),
		)
	}
}
