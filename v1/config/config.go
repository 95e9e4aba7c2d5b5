package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SchemaRegistryPrefix namespaces every property forwarded to the
	// schema registry client and converters.
	SchemaRegistryPrefix = "ksql.schema.registry."

	// SchemaRegistryURLProperty is the top-level registry URL key.
	SchemaRegistryURLProperty = "ksql.schema.registry.url"
)

// Config is the engine's global configuration: an immutable map of
// dot-separated property names to values. It is safe for concurrent reads.
type Config struct {
	props map[string]any
}

// New copies props into a Config.
func New(props map[string]any) *Config {
	c := &Config{props: make(map[string]any, len(props))}
	for k, v := range props {
		c.props[k] = v
	}
	return c
}

// Load reads a YAML document and flattens nested mappings into dotted keys:
//
//	ksql:
//	  schema:
//	    registry:
//	      url: http://registry.local:8081
//
// becomes ksql.schema.registry.url. Dotted keys may also be written directly.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse is Load without the file read.
func Parse(raw []byte) (*Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	props := make(map[string]any)
	flatten("", doc, props)
	return &Config{props: props}, nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// ApplyEnv returns a copy of c with overrides from environment variables
// whose names start with envPrefix. KSQL_SCHEMA_REGISTRY_URL maps to
// ksql.schema.registry.url: the name is lower-cased and '_' becomes '.'.
// Values are kept as strings.
func (c *Config) ApplyEnv(envPrefix string) *Config {
	out := New(c.props)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envPrefix) {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(name, "_", "."))
		out.props[key] = value
	}
	return out
}

// With returns a copy of c with key set to value.
func (c *Config) With(key string, value any) *Config {
	out := New(c.props)
	out.props[key] = value
	return out
}

// Get returns the raw value for key.
func (c *Config) Get(key string) (any, bool) {
	v, ok := c.props[key]
	return v, ok
}

// GetString returns the value for key rendered as a string, or "" when absent.
func (c *Config) GetString(key string) string {
	v, ok := c.props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// GetBool parses key as a boolean, returning def when it is absent.
func (c *Config) GetBool(key string, def bool) (bool, error) {
	v, ok := c.props[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("property %s: %q is not a boolean", key, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("property %s: unsupported boolean value %v", key, v)
	}
}

// OriginalsWithPrefix returns every property under prefix with the prefix
// removed. The result is a fresh map owned by the caller.
func (c *Config) OriginalsWithPrefix(prefix string) map[string]any {
	out := make(map[string]any)
	for k, v := range c.props {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// Keys returns all property names, sorted.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.props))
	for k := range c.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
