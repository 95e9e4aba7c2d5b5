package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector provides an interface for collecting and exposing serde metrics.
//
// This interface is implemented by the concrete *Metrics type.
type MetricsCollector interface {
	// RecordOperation counts one completed operation and records its latency
	// and payload size.
	RecordOperation(component, operation string, err error, duration time.Duration, size int64)

	// IncrementInstances counts a codec instance built by a confined supplier.
	IncrementInstances(component, resource string)

	// Dynamic metric factories

	// CreateCounter creates a new CounterVec metric and registers it.
	CreateCounter(name, help string, labels []string) *prometheus.CounterVec

	// CreateHistogram creates a new HistogramVec metric and registers it.
	CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec

	// CreateGauge creates a new GaugeVec metric and registers it.
	CreateGauge(name, help string, labels []string) *prometheus.GaugeVec
}
