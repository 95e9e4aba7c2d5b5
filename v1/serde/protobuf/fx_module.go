package protobuf

import (
	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"go.uber.org/fx"
)

// FXModule provides the protobuf *Factory and exposes it as serde.Factory.
// A Logger and an observability.Observer are used when the graph has them.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    metrics.FXModule,
//	    protobuf.FXModule,
//	    fx.Invoke(func(f serde.Factory, cfg *config.Config) error {
//	        codec, err := f.CreateSerde(schema.Wrapped(s), cfg, nil)
//	        ...
//	    }),
//	)
var FXModule = fx.Module("serde_protobuf",
	fx.Provide(
		NewFactoryWithDI,
		fx.Annotate(
			func(f *Factory) serde.Factory { return f },
			fx.As(new(serde.Factory)),
		),
	),
)

// FactoryParams groups the optional dependencies of the factory.
type FactoryParams struct {
	fx.In

	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
	Config   Config                 `optional:"true"`
}

// Config tunes the factory from configuration files.
type Config struct {
	// MaxIdle bounds idle codec instances per serializer and deserializer.
	// Zero keeps them all.
	MaxIdle int `yaml:"max_idle" envconfig:"SERDE_MAX_IDLE"`
}

// NewFactoryWithDI builds a Factory from injected dependencies.
func NewFactoryWithDI(params FactoryParams) *Factory {
	var opts []Option
	if params.Logger != nil {
		opts = append(opts, WithLogger(params.Logger))
	}
	if params.Observer != nil {
		opts = append(opts, WithObserver(params.Observer))
	}
	if params.Config.MaxIdle > 0 {
		opts = append(opts, WithMaxIdle(params.Config.MaxIdle))
	}
	return NewFactory(opts...)
}
