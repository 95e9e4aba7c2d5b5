package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	traceSpan "go.opentelemetry.io/otel/trace"
)

// Logger defines the interface for logging operations in the tracer package.
//
//go:generate mockgen -source=setup.go -destination=mock_logger.go -package=tracer
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
	Fatal(msg string, err error, fields ...map[string]interface{})
}

// Tracer records spans for serde-encoded records moving through Kafka and
// carries their trace context in message headers.
//
// Producers wrap each publish in StartProduceSpan and attach GetCarrier to
// the headers. Consumers hand the headers to StartConsumeSpan, so the
// receive span continues the producer's trace.
//
// Tracer is safe for concurrent use.
type Tracer struct {
	provider   *trace.TracerProvider
	tracer     traceSpan.Tracer
	propagator propagation.TextMapPropagator
	logger     Logger
}

// NewClient builds the tracer provider and installs it, together with the
// W3C trace context and baggage propagator, as the otel globals.
//
// With cfg.EnableExport spans are batched to an OTLP HTTP endpoint taken from
// the OTEL_EXPORTER_OTLP_* environment. A failing exporter is fatal.
//
// Example:
//
//	tracerClient := tracer.NewClient(tracer.Config{
//	    ServiceName: "stream-worker",
//	    AppEnv:      "production",
//	}, log)
//
//	ctx, span := tracerClient.StartProduceSpan(ctx, "orders", "42")
//	defer span.End()
func NewClient(cfg Config, logger Logger) *Tracer {
	options := []trace.TracerProviderOption{trace.WithResource(newResource(cfg))}

	if cfg.EnableExport {
		exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient())
		if err != nil {
			logger.Fatal("cannot initiate tracer", err, map[string]interface{}{
				"service": cfg.ServiceName,
			})
			return nil
		}
		options = append(options, trace.WithBatcher(exporter))
	}

	tp := trace.NewTracerProvider(options...)
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)

	return &Tracer{
		provider:   tp,
		tracer:     tp.Tracer(instrumentationName),
		propagator: propagator,
		logger:     logger,
	}
}

func newResource(cfg Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.AppEnv),
		attribute.String("environment", cfg.AppEnv),
	)
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
