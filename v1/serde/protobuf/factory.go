package protobuf

import (
	"fmt"
	"time"

	"github.com/Aleph-Alpha/serde/v1/config"
	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/Aleph-Alpha/serde/v1/schema"
	"github.com/Aleph-Alpha/serde/v1/schema_registry"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"github.com/Aleph-Alpha/serde/v1/serde/confined"
	"golang.org/x/sync/errgroup"
)

// Logger defines the logging the factory and its codecs need. logger.Logger
// satisfies it.
//
//go:generate mockgen -source=factory.go -destination=mock_logger.go -package=protobuf
type Logger interface {
	Debug(msg string, err error, fields ...map[string]interface{})
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Factory builds registry-backed protobuf codecs.
type Factory struct {
	logger   Logger
	observer observability.Observer
	maxIdle  int
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger used by the factory and the codecs it builds.
func WithLogger(logger Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// WithObserver reports factory and codec operations.
func WithObserver(observer observability.Observer) Option {
	return func(f *Factory) { f.observer = observer }
}

// WithMaxIdle bounds the idle codec instances kept per serializer and per
// deserializer. Without it every instance is kept for reuse.
func WithMaxIdle(n int) Option {
	return func(f *Factory) { f.maxIdle = n }
}

// NewFactory returns a protobuf Factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func init() {
	serde.RegisterFormat(serde.FormatProtobuf, NewFactory())
}

// Validate accepts every schema: the protobuf format has no schema-level
// restrictions beyond those CreateSerde reports.
func (f *Factory) Validate(schema.PersistenceSchema) error {
	return nil
}

// CreateSerde builds a serializer/deserializer pair for s.
//
// Everything that can be checked without a record is checked here: the
// registry configuration, the schema translation and the converter settings.
// One check serializer and one check deserializer are built through
// clientFactory and exercised once, and the registry is asked for its subject
// list exactly once. Any failure is returned and no codec is handed out.
//
// A nil clientFactory uses DefaultClientFactory for the derived configuration.
// The returned codecs build further instances lazily, one per concurrent
// caller, each with its own registry handle.
func (f *Factory) CreateSerde(s schema.PersistenceSchema, cfg *config.Config, clientFactory schema_registry.ClientFactory) (*serde.Serde, error) {
	start := time.Now()
	out, err := f.createSerde(s, cfg, clientFactory)
	f.observe(start, s, err)
	if err != nil {
		if f.logger != nil {
			f.logger.Error("failed to create protobuf serde", err, map[string]interface{}{
				"schema": s.String(),
			})
		}
		return nil, err
	}
	if f.logger != nil {
		f.logger.Info("created protobuf serde", nil, map[string]interface{}{
			"schema":   s.String(),
			"duration": time.Since(start).String(),
		})
	}
	return out, nil
}

func (f *Factory) createSerde(s schema.PersistenceSchema, cfg *config.Config, clientFactory schema_registry.ClientFactory) (*serde.Serde, error) {
	rc, err := RegistryConfigFrom(cfg)
	if err != nil {
		return nil, err
	}

	if s.Unwrapped() {
		return nil, fmt.Errorf("%w: unwrapped single values are not supported by the protobuf format", serde.ErrSchemaTranslation)
	}
	wire, err := ToWireSchema(s.SerializedSchema())
	if err != nil {
		return nil, err
	}

	settings, err := settingsFrom(rc)
	if err != nil {
		return nil, err
	}

	if clientFactory == nil {
		clientFactory = DefaultClientFactory(rc, WithClientObserver(f.observer))
	}
	b := builder{wire: wire, settings: settings, clientFactory: clientFactory, observer: f.observer}

	var (
		checkSer   *serializer
		checkDeser *deserializer
		g          errgroup.Group
	)
	g.Go(func() error {
		var err error
		checkSer, err = b.serializer()
		return err
	})
	g.Go(func() error {
		var err error
		checkDeser, err = b.deserializer()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if _, err := checkSer.registry.GetSubjects(); err != nil {
		return nil, fmt.Errorf("%w: cannot reach schema registry at %s: %w", serde.ErrRegistryConnectivity, rc.URL(), err)
	}
	if _, err := checkSer.Serialize("", nil); err != nil {
		return nil, err
	}
	if _, err := checkDeser.Deserialize("", nil); err != nil {
		return nil, err
	}

	opts := []confined.Option{confined.WithName(serde.FormatProtobuf)}
	if f.maxIdle > 0 {
		opts = append(opts, confined.WithMaxIdle(f.maxIdle))
	}
	if f.observer != nil {
		opts = append(opts, confined.WithObserver(f.observer))
	}
	if f.logger != nil {
		opts = append(opts, confined.WithLogger(f.logger))
	}

	ser := confined.NewSerializer(func() (serde.Serializer, error) {
		inst, err := b.serializer()
		if err != nil {
			return nil, err
		}
		return inst, nil
	}, opts...)
	deser := confined.NewDeserializer(func() (serde.Deserializer, error) {
		inst, err := b.deserializer()
		if err != nil {
			return nil, err
		}
		return inst, nil
	}, opts...)

	return serde.New(ser, deser), nil
}

func (f *Factory) observe(start time.Time, s schema.PersistenceSchema, err error) {
	if f.observer == nil {
		return
	}
	f.observer.ObserveOperation(observability.OperationContext{
		Component: "serde",
		Operation: "create_serde",
		Resource:  serde.FormatProtobuf,
		Duration:  time.Since(start),
		Error:     err,
		Metadata: map[string]interface{}{
			"schema": s.String(),
		},
	})
}

// builder holds the immutable state shared by every codec instance of one
// serde and builds new instances, each with its own registry handle.
type builder struct {
	wire          *WireSchema
	settings      converterSettings
	clientFactory schema_registry.ClientFactory
	observer      observability.Observer
}

func (b builder) converter() (converter, error) {
	registry, err := b.clientFactory()
	if err != nil {
		if serde.IsConstructionError(err) {
			return converter{}, err
		}
		return converter{}, fmt.Errorf("%w: creating registry client: %w", serde.ErrRegistryConnectivity, err)
	}
	if registry == nil {
		return converter{}, fmt.Errorf("%w: registry client factory returned nil", serde.ErrRegistryConnectivity)
	}
	return converter{
		registry: registry,
		wire:     b.wire,
		settings: b.settings,
		observer: b.observer,
	}, nil
}

func (b builder) serializer() (*serializer, error) {
	c, err := b.converter()
	if err != nil {
		return nil, err
	}
	return newSerializer(c), nil
}

func (b builder) deserializer() (*deserializer, error) {
	c, err := b.converter()
	if err != nil {
		return nil, err
	}
	return newDeserializer(c), nil
}
