package metrics

import (
	"context"
	"time"
)

// NoopCollector is a no-op implementation used when metrics are disabled.
type NoopCollector struct{}

// NewNoopCollector creates a no-op collector
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

// RecordOperation does nothing
func (n *NoopCollector) RecordOperation(ctx context.Context, operation string, status string, duration time.Duration) {
}

// RecordStage does nothing
func (n *NoopCollector) RecordStage(ctx context.Context, operation string, stage string, duration time.Duration) {
}

// RecordError does nothing
func (n *NoopCollector) RecordError(ctx context.Context, operation string, errorType string) {
}

// RecordBackoff does nothing
func (n *NoopCollector) RecordBackoff(ctx context.Context, exponent int) {
}

// SetStorageCount does nothing
func (n *NoopCollector) SetStorageCount(ctx context.Context, storageType string, count int64) {
}

var (
	_ Collector = (*NoopCollector)(nil)
	_ Collector = (*PrometheusCollector)(nil)
)
