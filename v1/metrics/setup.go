package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// payloadBuckets spans 16 B to 4 MiB.
var payloadBuckets = prometheus.ExponentialBuckets(16, 4, 10)

// Metrics encapsulates the Prometheus registry and HTTP server responsible
// for exposing serde metrics.
type Metrics struct {
	// Server defines the HTTP server used to expose the /metrics endpoint.
	Server *http.Server

	// Registry is the Prometheus registry where all metrics are registered.
	// Each service maintains its own isolated registry to prevent metric name collisions.
	Registry *prometheus.Registry

	// registerer applies the constant service label.
	registerer prometheus.Registerer
	namespace  string

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	payloadSize       *prometheus.HistogramVec
	instancesCreated  *prometheus.CounterVec
}

// NewMetrics initializes and returns a new instance of the Metrics struct.
// It sets up a dedicated Prometheus registry, registers default system collectors,
// wraps all metrics with a constant `service` label, and creates an HTTP server
// exposing the /metrics endpoint.
//
// The built-in series are:
//   - serde_operations_total{component,operation,status}
//   - serde_operation_duration_seconds{component,operation}
//   - serde_payload_bytes{component,operation}
//   - serde_codec_instances_total{component,resource}
//
// Example:
//
//	m := metrics.NewMetrics(metrics.Config{
//	    Address:     ":9090",
//	    ServiceName: "stream-worker",
//	})
//	go m.Server.ListenAndServe()
func NewMetrics(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()

	// All metrics emitted by this service carry service="<cfg.ServiceName>".
	wrappedRegistry := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": cfg.ServiceName},
		registry,
	)

	m := &Metrics{
		Registry:   registry,
		registerer: wrappedRegistry,
		namespace:  cfg.Namespace,
	}

	m.operationsTotal = createCounterVec(cfg.Namespace, "serde_operations_total",
		"Total number of serde, registry and transport operations", []string{"component", "operation", "status"})
	m.operationDuration = createHistogramVec(cfg.Namespace, "serde_operation_duration_seconds",
		"Duration of serde, registry and transport operations in seconds", []string{"component", "operation"}, prometheus.DefBuckets)
	m.payloadSize = createHistogramVec(cfg.Namespace, "serde_payload_bytes",
		"Size of encoded payloads in bytes", []string{"component", "operation"}, payloadBuckets)
	m.instancesCreated = createCounterVec(cfg.Namespace, "serde_codec_instances_total",
		"Number of confined codec instances built", []string{"component", "resource"})

	wrappedRegistry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.payloadSize,
		m.instancesCreated,
	)

	// Register standard collectors if enabled.
	//   - GoCollector: Memory usage, goroutines, GC stats
	//   - ProcessCollector: CPU, file descriptors, memory stats
	//   - BuildInfoCollector: Binary version/build info
	if cfg.EnableDefaultCollectors {
		wrappedRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	address := cfg.Address
	if address == "" {
		address = DefaultMetricsAddress
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.Server = &http.Server{
		Addr:    address,
		Handler: mux,
	}
	return m
}
