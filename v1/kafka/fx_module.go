package kafka

import (
	"context"

	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"github.com/Aleph-Alpha/serde/v1/tracer"
	"go.uber.org/fx"
)

var _ Propagator = (*tracer.Tracer)(nil)

// FXModule is an fx.Module that provides and configures the Kafka client.
// It provides *KafkaClient and the Client interface, and closes the client
// when the application stops.
//
// A *serde.Serde, a Logger, an observer and a *tracer.Tracer are picked up
// when present in the container.
//
// Usage:
//
//	app := fx.New(
//	    kafka.FXModule,
//	    fx.Provide(
//	        func() kafka.Config {
//	            return kafka.Config{
//	                Brokers: []string{"localhost:9092"},
//	                Topic:   "orders",
//	            }
//	        },
//	        func(f serde.Factory, cfg *config.Config) (*serde.Serde, error) {
//	            return f.CreateSerde(ordersSchema, cfg, nil)
//	        },
//	    ),
//	)
var FXModule = fx.Module("kafka",
	fx.Provide(
		NewClientWithDI,
		fx.Annotate(
			func(k *KafkaClient) Client { return k },
			fx.As(new(Client)),
		),
	),
	fx.Invoke(RegisterKafkaLifecycle),
)

// KafkaParams groups the dependencies needed to create a Kafka client
type KafkaParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Serde    *serde.Serde           `optional:"true"`
	Observer observability.Observer `optional:"true"`
	Tracer   *tracer.Tracer         `optional:"true"`
}

// NewClientWithDI creates a new Kafka client using dependency injection.
func NewClientWithDI(params KafkaParams) (*KafkaClient, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}

	if params.Logger != nil {
		client = client.WithLogger(params.Logger)
	}
	if params.Observer != nil {
		client = client.WithObserver(params.Observer)
	}
	if params.Tracer != nil {
		client = client.WithTracer(params.Tracer)
	}
	return client.WithSerde(params.Serde), nil
}

// KafkaLifecycleParams groups the dependencies needed for Kafka lifecycle management
type KafkaLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *KafkaClient
}

// RegisterKafkaLifecycle shuts the client down when the application stops.
// The serde is owned by whoever provided it and is not closed here.
func RegisterKafkaLifecycle(params KafkaLifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			params.Client.logInfo(ctx, "Kafka client started", nil)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			params.Client.logInfo(ctx, "Shutting down Kafka client", nil)
			params.Client.GracefulShutdown()
			return nil
		},
	})
}
