package protobuf

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Aleph-Alpha/serde/v1/config"
	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/Aleph-Alpha/serde/v1/schema_registry"
	"github.com/Aleph-Alpha/serde/v1/serde"
)

// Converter property keys inside the registry configuration.
const (
	PropertyAutoRegister = "auto.register.schemas"
	PropertyUseLatest    = "use.latest.version"
	PropertyIsKey        = "is.key"
)

// RegistryConfig is the flat registry configuration handed to converters and
// registry clients: every ksql.schema.registry.* property with the prefix
// removed, plus schema.registry.url.
type RegistryConfig map[string]string

// RegistryConfigFrom derives the registry configuration from the engine
// configuration. The URL must be an absolute http or https URL.
func RegistryConfigFrom(cfg *config.Config) (RegistryConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration is nil", serde.ErrConfiguration)
	}

	rc := make(RegistryConfig)
	for k, v := range cfg.OriginalsWithPrefix(config.SchemaRegistryPrefix) {
		if v == nil {
			continue
		}
		rc[k] = fmt.Sprint(v)
	}

	raw := strings.TrimSpace(cfg.GetString(config.SchemaRegistryURLProperty))
	if raw == "" {
		return nil, fmt.Errorf("%w: %s is not set", serde.ErrConfiguration, config.SchemaRegistryURLProperty)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", serde.ErrConfiguration, config.SchemaRegistryURLProperty, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s %q is not an absolute http(s) URL", serde.ErrConfiguration, config.SchemaRegistryURLProperty, raw)
	}
	rc[schema_registry.PropertyURL] = raw
	return rc, nil
}

// URL returns schema.registry.url.
func (rc RegistryConfig) URL() string {
	return rc[schema_registry.PropertyURL]
}

// Keys returns the property names in order.
func (rc RegistryConfig) Keys() []string {
	keys := make([]string, 0, len(rc))
	for k := range rc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// converterSettings are the per-converter switches read from the registry
// configuration.
type converterSettings struct {
	autoRegister bool
	useLatest    bool
	isKey        bool
}

func settingsFrom(rc RegistryConfig) (converterSettings, error) {
	s := converterSettings{autoRegister: true}
	for key, dst := range map[string]*bool{
		PropertyAutoRegister: &s.autoRegister,
		PropertyUseLatest:    &s.useLatest,
		PropertyIsKey:        &s.isKey,
	} {
		raw, ok := rc[key]
		if !ok {
			continue
		}
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return converterSettings{}, fmt.Errorf("%w: %s: %q is not a boolean", serde.ErrConfiguration, key, raw)
		}
		*dst = v
	}
	return s, nil
}

// subject names the registry subject for a topic.
func (s converterSettings) subject(topic string) string {
	if s.isKey {
		return topic + "-key"
	}
	return topic + "-value"
}

// DefaultClientFactory returns a ClientFactory building an HTTP registry
// client from rc, honouring basic.auth.user.info and request.timeout.ms.
// Each call returns an independent client.
func DefaultClientFactory(rc RegistryConfig, opts ...ClientOption) schema_registry.ClientFactory {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func() (schema_registry.Registry, error) {
		cfg, err := schema_registry.ConfigFromProperties(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", serde.ErrConfiguration, err)
		}
		client, err := schema_registry.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", serde.ErrConfiguration, err)
		}
		if o.observer != nil {
			client.WithObserver(o.observer)
		}
		if o.logger != nil {
			client.WithLogger(o.logger)
		}
		return client, nil
	}
}

type clientOptions struct {
	observer observability.Observer
	logger   schema_registry.Logger
}

// ClientOption configures clients built by DefaultClientFactory.
type ClientOption func(*clientOptions)

// WithClientObserver attaches an observer to every client.
func WithClientObserver(observer observability.Observer) ClientOption {
	return func(o *clientOptions) { o.observer = observer }
}

// WithClientLogger attaches a logger to every client.
func WithClientLogger(logger schema_registry.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}
