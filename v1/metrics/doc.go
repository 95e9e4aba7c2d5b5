// Package metrics exposes Prometheus metrics for the serde stack.
//
// A Metrics value owns an isolated registry (every series carries a constant
// service label), a small set of built-in serde series and an HTTP server for
// /metrics. OperationObserver bridges the observability.Observer hook used by
// the serde, schema_registry and kafka packages onto those series.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - MetricsCollector interface: the recording contract
//   - Metrics struct: the Prometheus implementation
//   - OperationObserver: observability.Observer on top of a MetricsCollector
//   - FXModule: provides *Metrics, MetricsCollector and observability.Observer
//
// # Direct Usage (Without FX)
//
//	m := metrics.NewMetrics(metrics.Config{
//		Address:                 ":9090",
//		EnableDefaultCollectors: true,
//		ServiceName:             "stream-worker",
//	})
//	go m.Server.ListenAndServe()
//
//	factory := protobuf.NewFactory(
//		protobuf.WithObserver(metrics.NewOperationObserver(m)),
//	)
//
// # Built-in series
//
//	serde_operations_total{component,operation,status}
//	serde_operation_duration_seconds{component,operation}
//	serde_payload_bytes{component,operation}
//	serde_codec_instances_total{component,resource}
//
// # Configuration
//
//	METRICS_ADDRESS=:9090
//	METRICS_ENABLE_DEFAULT_COLLECTORS=true
//	METRICS_NAMESPACE=ksql
//	METRICS_SERVICE_NAME=stream-worker
package metrics
