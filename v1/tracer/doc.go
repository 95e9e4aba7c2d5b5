// Package tracer provides OpenTelemetry tracing for the serde stack.
//
// The Tracer wraps an SDK TracerProvider, installs it (and W3C trace-context +
// baggage propagation) globally, and offers helpers to start spans, record
// errors and move trace context in and out of Kafka record headers.
//
// Basic Usage:
//
//	tr := tracer.NewClient(tracer.Config{
//		ServiceName:  "stream-worker",
//		AppEnv:       "production",
//		EnableExport: true, // OTLP over HTTP, endpoint from OTEL_EXPORTER_OTLP_ENDPOINT
//	}, log)
//
//	ctx, span := tr.StartProduceSpan(ctx, "orders", key)
//	headers := tr.GetCarrier(ctx) // attach to the outgoing record
//	err := writer.WriteMessages(ctx, msg)
//	tr.FinishSpan(span, err)
//
// On the consuming side the receive span continues the producer's trace:
//
//	ctx, span := tr.StartConsumeSpan(ctx, msg.Header(), msg.Topic(), msg.Partition(), msg.Offset())
//	tr.FinishSpan(span, nil)
//
// Spans carry the messaging.* attributes of the OpenTelemetry semantic
// conventions, so backends group them by topic.
//
// FX Integration:
//
//	app := fx.New(
//		logger.FXModule,
//		tracer.FXModule,
//		fx.Provide(func() tracer.Config { return tracer.Config{ServiceName: "stream-worker"} }),
//	)
//
// The tracer provider is shut down (and pending spans flushed) on fx stop.
package tracer
