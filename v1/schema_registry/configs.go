package schema_registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every registry request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Registry property keys, as they appear after the engine's
// "ksql.schema.registry." prefix has been stripped.
const (
	PropertyURL              = "schema.registry.url"
	PropertyBasicAuthInfo    = "basic.auth.user.info"
	PropertyBasicAuthSource  = "basic.auth.credentials.source"
	PropertyRequestTimeoutMs = "request.timeout.ms"
)

// Config holds configuration for schema registry client
type Config struct {
	// URL is the schema registry endpoint (e.g., "http://localhost:8081")
	URL string `yaml:"url" envconfig:"SCHEMA_REGISTRY_URL"`

	// Username for basic auth (optional)
	Username string `yaml:"username" envconfig:"SCHEMA_REGISTRY_USERNAME"`

	// Password for basic auth (optional)
	Password string `yaml:"password" json:"-" envconfig:"SCHEMA_REGISTRY_PASSWORD"` //nolint:gosec

	// Timeout for HTTP requests
	Timeout time.Duration `yaml:"timeout" envconfig:"SCHEMA_REGISTRY_TIMEOUT"`
}

// ConfigFromProperties builds a Config from flat registry properties:
// schema.registry.url, basic.auth.user.info ("user:password", used when the
// credentials source is USER_INFO or unset) and request.timeout.ms.
func ConfigFromProperties(props map[string]string) (Config, error) {
	cfg := Config{URL: props[PropertyURL]}
	if cfg.URL == "" {
		return Config{}, fmt.Errorf("%s is required", PropertyURL)
	}

	if info := props[PropertyBasicAuthInfo]; info != "" {
		source := strings.ToUpper(props[PropertyBasicAuthSource])
		if source != "" && source != "USER_INFO" {
			return Config{}, fmt.Errorf("unsupported %s %q", PropertyBasicAuthSource, source)
		}
		user, pass, ok := strings.Cut(info, ":")
		if !ok {
			return Config{}, fmt.Errorf("%s must have the form user:password", PropertyBasicAuthInfo)
		}
		cfg.Username = user
		cfg.Password = pass
	}

	if raw := props[PropertyRequestTimeoutMs]; raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			return Config{}, fmt.Errorf("%s must be a non-negative integer, got %q", PropertyRequestTimeoutMs, raw)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}
