package metrics

import (
	"context"
	"time"
)

// Collector is the interface for metrics collection.
// Implementations include the Prometheus-backed collector and the no-op
// collector used when no collector is configured.
type Collector interface {
	RecordOperation(ctx context.Context, operation string, status string, duration time.Duration)
	RecordStage(ctx context.Context, operation string, stage string, duration time.Duration)
	RecordError(ctx context.Context, operation string, errorType string)
	RecordBackoff(ctx context.Context, exponent int)
	SetStorageCount(ctx context.Context, storageType string, count int64)
}
