package schema_registry

import (
	"context"

	"github.com/Aleph-Alpha/serde/v1/observability"
	"go.uber.org/fx"
)

// FXModule is an fx.Module that provides and configures the Schema Registry client.
// This module registers the Schema Registry client with the Fx dependency injection framework,
// making it available to other components in the application.
//
// The module provides *Client, the Registry interface and a ClientFactory that
// builds a fresh client from the same Config for every codec instance.
//
// Usage:
//
//	app := fx.New(
//	    schema_registry.FXModule,
//	    fx.Provide(
//	        func() schema_registry.Config {
//	            return schema_registry.Config{
//	                URL:      "http://localhost:8081",
//	                Username: "user",
//	                Password: "pass",
//	            }
//	        },
//	    ),
//	)
var FXModule = fx.Module("schema_registry",
	fx.Provide(
		NewClientWithDI,
		fx.Annotate(
			func(c *Client) Registry { return c },
			fx.As(new(Registry)),
		),
		NewClientFactoryWithDI,
	),
	fx.Invoke(RegisterSchemaRegistryLifecycle),
)

// SchemaRegistryParams groups the dependencies needed to create a Schema Registry client
type SchemaRegistryParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI creates a new Schema Registry client using dependency injection.
// Logger and Observer are optional and attached when present.
func NewClientWithDI(params SchemaRegistryParams) (*Client, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	if params.Logger != nil {
		client.logger = params.Logger
	}
	if params.Observer != nil {
		client.observer = params.Observer
	}
	return client, nil
}

// NewClientFactoryWithDI provides a ClientFactory that creates an independent
// client per call, sharing the injected logger and observer.
func NewClientFactoryWithDI(params SchemaRegistryParams) ClientFactory {
	return func() (Registry, error) {
		return NewClientWithDI(params)
	}
}

// SchemaRegistryLifecycleParams groups the dependencies needed for Schema Registry lifecycle management
type SchemaRegistryLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *Client
}

// RegisterSchemaRegistryLifecycle logs client start and shutdown. The HTTP
// client holds no resources that need explicit release.
func RegisterSchemaRegistryLifecycle(params SchemaRegistryLifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if params.Client.logger != nil {
				params.Client.logger.InfoWithContext(ctx, "Schema Registry client initialized", nil, map[string]interface{}{
					"registry_url": params.Client.url,
				})
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			params.Client.httpClient.CloseIdleConnections()
			if params.Client.logger != nil {
				params.Client.logger.InfoWithContext(ctx, "Schema Registry client shutdown", nil)
			}
			return nil
		},
	})
}
