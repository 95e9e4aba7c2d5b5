package metrics

import "github.com/Aleph-Alpha/serde/v1/observability"

// OperationObserver adapts a MetricsCollector to observability.Observer so
// serde, schema_registry and kafka operations land in Prometheus.
type OperationObserver struct {
	collector MetricsCollector
}

// NewOperationObserver returns an observer recording into collector.
func NewOperationObserver(collector MetricsCollector) *OperationObserver {
	return &OperationObserver{collector: collector}
}

// ObserveOperation implements observability.Observer.
func (o *OperationObserver) ObserveOperation(ctx observability.OperationContext) {
	if o == nil || o.collector == nil {
		return
	}
	if ctx.Operation == "instance_created" {
		o.collector.IncrementInstances(ctx.Component, ctx.Resource)
	}
	o.collector.RecordOperation(ctx.Component, ctx.Operation, ctx.Error, ctx.Duration, ctx.Size)
}
