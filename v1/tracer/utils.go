package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	traceSpan "go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies spans created through this package.
const instrumentationName = "github.com/Aleph-Alpha/serde"

// Messaging attribute keys from the OpenTelemetry semantic conventions.
const (
	AttrMessagingSystem      = "messaging.system"
	AttrMessagingDestination = "messaging.destination.name"
	AttrMessagingOperation   = "messaging.operation"
	AttrKafkaMessageKey      = "messaging.kafka.message.key"
	AttrKafkaPartition       = "messaging.kafka.destination.partition"
	AttrKafkaOffset          = "messaging.kafka.message.offset"
)

// StartSpan starts an internal span as a child of whatever span ctx holds.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, traceSpan.Span) {
	return t.tracer.Start(ctx, name)
}

// StartProduceSpan starts the producer span for one record published to
// topic. The returned context carries it, so GetCarrier on that context
// makes the span the parent of the consumer side.
//
// Example:
//
//	ctx, span := t.StartProduceSpan(ctx, "orders", key)
//	err := writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Headers: toHeaders(t.GetCarrier(ctx))})
//	t.FinishSpan(span, err)
func (t *Tracer) StartProduceSpan(ctx context.Context, topic, key string) (context.Context, traceSpan.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrMessagingSystem, "kafka"),
		attribute.String(AttrMessagingDestination, topic),
		attribute.String(AttrMessagingOperation, "publish"),
	}
	if key != "" {
		attrs = append(attrs, attribute.String(AttrKafkaMessageKey, key))
	}
	return t.tracer.Start(ctx, topic+" publish",
		traceSpan.WithSpanKind(traceSpan.SpanKindProducer),
		traceSpan.WithAttributes(attrs...),
	)
}

// StartConsumeSpan starts the consumer span for a record read from
// topic, continuing the trace found in its headers. Without trace headers
// the span is a child of ctx.
func (t *Tracer) StartConsumeSpan(ctx context.Context, headers map[string]string, topic string, partition int, offset int64) (context.Context, traceSpan.Span) {
	ctx = t.SetCarrierOnContext(ctx, headers)
	return t.tracer.Start(ctx, topic+" receive",
		traceSpan.WithSpanKind(traceSpan.SpanKindConsumer),
		traceSpan.WithAttributes(
			attribute.String(AttrMessagingSystem, "kafka"),
			attribute.String(AttrMessagingDestination, topic),
			attribute.String(AttrMessagingOperation, "receive"),
			attribute.Int(AttrKafkaPartition, partition),
			attribute.Int64(AttrKafkaOffset, offset),
		),
	)
}

// FinishSpan records err on span, if any, and ends it.
func (t *Tracer) FinishSpan(span traceSpan.Span, err error) {
	if err != nil {
		t.RecordErrorOnSpan(span, err)
	}
	span.End()
}

// RecordErrorOnSpan records an error on a span and sets its status to error.
//
// Example:
//
//	if _, err := s.Serialize(topic, rec); err != nil {
//	    tracer.RecordErrorOnSpan(span, err)
//	    return err
//	}
func (t *Tracer) RecordErrorOnSpan(span traceSpan.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes adds attributes to a span. Strings, ints, int32, int64,
// float64 and bool keep their type. []byte keys are stored as strings and
// anything else is formatted with fmt.Sprint.
func (t *Tracer) SetAttributes(span traceSpan.Span, attrs map[string]interface{}) {
	if len(attrs) == 0 {
		return
	}

	attributes := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			attributes = append(attributes, attribute.String(k, val))
		case []byte:
			attributes = append(attributes, attribute.String(k, string(val)))
		case int:
			attributes = append(attributes, attribute.Int(k, val))
		case int32:
			attributes = append(attributes, attribute.Int64(k, int64(val)))
		case int64:
			attributes = append(attributes, attribute.Int64(k, val))
		case float64:
			attributes = append(attributes, attribute.Float64(k, val))
		case bool:
			attributes = append(attributes, attribute.Bool(k, val))
		default:
			attributes = append(attributes, attribute.String(k, fmt.Sprint(val)))
		}
	}
	span.SetAttributes(attributes...)
}

// GetCarrier returns the trace context of ctx as message headers
// ("traceparent", "tracestate" and "baggage").
func (t *Tracer) GetCarrier(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	t.propagator.Inject(ctx, carrier)
	return carrier
}

// SetCarrierOnContext returns ctx carrying the remote trace context found in
// headers written by GetCarrier.
func (t *Tracer) SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context {
	return t.propagator.Extract(ctx, propagation.MapCarrier(carrier))
}
