package observability

import "time"

// Observer receives a notification for every completed serde, registry or
// transport operation. It decouples the codec packages from concrete metrics,
// tracing or logging backends.
//
// Observers are optional; every package works without one.
type Observer interface {
	// ObserveOperation is called once an operation completes.
	// Implementations must be safe for concurrent use.
	ObserveOperation(ctx OperationContext)
}

// OperationContext describes one completed operation.
type OperationContext struct {
	// Component identifies the package that performed the operation.
	// Examples: "serde", "schema_registry", "kafka"
	Component string

	// Operation names what happened.
	// Examples:
	//   serde:           "create_serde", "serialize", "deserialize", "instance_created"
	//   schema_registry: "register_schema", "get_schema_by_id", "get_subjects"
	//   kafka:           "produce", "consume"
	Operation string

	// Resource is the primary resource, usually a topic or subject name.
	Resource string

	// SubResource carries secondary context such as a schema id or partition.
	SubResource string

	// Duration is the wall time of the operation.
	Duration time.Duration

	// Error is the operation's error, nil on success.
	Error error

	// Size is the payload size in bytes where one applies.
	Size int64

	// Metadata holds operation-specific extras, e.g. {"cache_hit": true}.
	Metadata map[string]interface{}
}
