// Package observability defines the hook through which the serde, schema
// registry and kafka packages report completed operations.
//
// Packages accept an optional Observer (via WithObserver or FX injection) and
// call it after each operation with an OperationContext. The metrics package
// ships an Observer that turns these notifications into Prometheus series:
//
//	reg := metrics.NewMetrics(metrics.Config{ServiceName: "stream-worker"})
//	obs := metrics.NewOperationObserver(reg)
//
//	factory := protobuf.NewFactory(protobuf.WithObserver(obs))
//
// A nil Observer is always allowed and means "observe nothing".
package observability
