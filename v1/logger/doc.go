// Package logger provides structured logging for the serde packages.
//
// It wraps Uber's zap with a small map-based field API and optional
// OpenTelemetry correlation: when EnableTracing is set, the *WithContext
// methods add trace_id and span_id of the active span to each entry.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - Logger interface: the contract other packages depend on
//   - LoggerClient struct: the zap-backed implementation
//   - NewLoggerClient constructor: returns *LoggerClient
//   - FXModule: provides both *LoggerClient and Logger
//
// # Direct Usage (Without FX)
//
//	log := logger.NewLoggerClient(logger.Config{
//		Level:         logger.Info,
//		ServiceName:   "stream-worker",
//		EnableTracing: true,
//	})
//
//	log.Info("serde created", nil, map[string]interface{}{
//		"format": "PROTOBUF",
//	})
//
//	log.ErrorWithContext(ctx, "record rejected", err, map[string]interface{}{
//		"topic": "orders",
//	})
//
// # Configuration
//
//	ZAP_LOGGER_LEVEL=debug          # debug, info, warning, error
//	LOGGER_SERVICE_NAME=worker      # "service" field on every entry
//	LOGGER_ENABLE_TRACING=true      # trace/span ids in *WithContext entries
//
// # Thread Safety
//
// All methods are safe for concurrent use by multiple goroutines.
package logger
