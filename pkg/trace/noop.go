package trace

import "context"

// NoopExporter is a zero-overhead exporter that does nothing.
// Used when no trace file is configured.
type NoopExporter struct{}

// NewNoopExporter returns an exporter that discards every record.
func NewNoopExporter() *NoopExporter {
	return &NoopExporter{}
}

// Export does nothing.
func (n *NoopExporter) Export(ctx context.Context, record *TraceRecord) error {
	return nil
}

// Close does nothing.
func (n *NoopExporter) Close() error {
	return nil
}
