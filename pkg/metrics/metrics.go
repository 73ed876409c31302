package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// maxExponentLabel caps the exponent label so a pathological question
// cannot create an unbounded number of series.
const maxExponentLabel = 16

// PrometheusCollector provides Prometheus metrics collection for tracker operations
type PrometheusCollector struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	backoffTotal      *prometheus.CounterVec
	storageCount      *prometheus.GaugeVec
	registry          *prometheus.Registry
}

// NewCollector creates a new Prometheus metrics collector with its own registry
func NewCollector() *PrometheusCollector {
	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revisit_operations_total",
			Help: "Total number of tracker operations by type and status",
		},
		[]string{"operation", "status"},
	)

	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "revisit_operation_duration_seconds",
			Help:    "Duration of tracker operations by type and stage",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation", "stage"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revisit_errors_total",
			Help: "Total number of errors by operation and error type",
		},
		[]string{"operation", "error_type"},
	)

	backoffTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revisit_backoff_scheduled_total",
			Help: "Reviews scheduled by backoff exponent",
		},
		[]string{"exponent"},
	)

	storageCount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "revisit_storage_count",
			Help: "Current count of stored items by type",
		},
		[]string{"type"},
	)

	registry.MustRegister(operationsTotal)
	registry.MustRegister(operationDuration)
	registry.MustRegister(errorsTotal)
	registry.MustRegister(backoffTotal)
	registry.MustRegister(storageCount)

	return &PrometheusCollector{
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
		errorsTotal:       errorsTotal,
		backoffTotal:      backoffTotal,
		storageCount:      storageCount,
		registry:          registry,
	}
}

// RecordOperation records the completion of an operation
func (m *PrometheusCollector) RecordOperation(ctx context.Context, operation string, status string, duration time.Duration) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation, "total").Observe(duration.Seconds())
}

// RecordStage records the duration of a specific stage within an operation
func (m *PrometheusCollector) RecordStage(ctx context.Context, operation string, stage string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation, stage).Observe(duration.Seconds())
}

// RecordError records an error occurrence
func (m *PrometheusCollector) RecordError(ctx context.Context, operation string, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordBackoff counts a scheduled review at the given exponent.
// Exponents above maxExponentLabel share the "16+" series.
func (m *PrometheusCollector) RecordBackoff(ctx context.Context, exponent int) {
	label := strconv.Itoa(exponent)
	if exponent >= maxExponentLabel {
		label = strconv.Itoa(maxExponentLabel) + "+"
	}
	m.backoffTotal.WithLabelValues(label).Inc()
}

// SetStorageCount sets the current count for a storage type
func (m *PrometheusCollector) SetStorageCount(ctx context.Context, storageType string, count int64) {
	m.storageCount.WithLabelValues(storageType).Set(float64(count))
}

// Registry returns the Prometheus registry so callers can gather or expose it
func (m *PrometheusCollector) Registry() *prometheus.Registry {
	return m.registry
}
