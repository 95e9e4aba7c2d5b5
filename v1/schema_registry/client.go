package schema_registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Aleph-Alpha/serde/v1/observability"
	"golang.org/x/sync/singleflight"
)

// bgctx is used for requests that don't receive a caller context; the
// per-request deadline comes from the http.Client timeout.
var bgctx = context.Background

const contentType = "application/vnd.schemaregistry.v1+json"

// Registry provides an interface for interacting with a Confluent Schema Registry.
// It handles schema registration, retrieval, and caching for efficient serialization.
//
//go:generate mockgen -source=client.go -destination=mock_registry.go -package=schema_registry
type Registry interface {
	// GetSchemaByID retrieves a schema by its ID
	GetSchemaByID(id int) (string, error)

	// GetLatestSchema retrieves the latest version of a schema for a subject
	GetLatestSchema(subject string) (*Metadata, error)

	// RegisterSchema registers a new schema for a subject
	RegisterSchema(subject, schema, schemaType string) (int, error)

	// CheckCompatibility checks if a schema is compatible with the latest version
	CheckCompatibility(subject, schema, schemaType string) (bool, error)

	// GetSubjects lists the registered subjects. It is the cheapest call that
	// proves the registry is reachable and the credentials are accepted.
	GetSubjects() ([]string, error)
}

// ClientFactory produces a fresh registry handle. Codec builders call it once
// per codec instance and never memoize the result.
type ClientFactory func() (Registry, error)

// Metadata contains metadata about a registered schema
type Metadata struct {
	ID      int    `json:"id"`
	Version int    `json:"version"`
	Schema  string `json:"schema"`
	Subject string `json:"subject"`
	Type    string `json:"schemaType,omitempty"`
}

// Logger is the subset of logger.Logger the client uses.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Client is the default implementation of Registry
// that communicates with Confluent Schema Registry over HTTP.
type Client struct {
	url        string
	httpClient *http.Client

	// Cache for schemas by ID
	schemaCache      map[int]string
	schemaCacheMutex sync.RWMutex

	// Cache for schema IDs by subject and schema
	idCache      map[string]int
	idCacheMutex sync.RWMutex

	// concurrent misses for the same id share one request
	fetches singleflight.Group

	username string
	password string

	observer observability.Observer
	logger   Logger
}

// NewClient creates a new schema registry client
// Returns the concrete *Client type.
func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("schema registry URL is required")
	}
	u, err := url.Parse(config.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("schema registry URL %q must be an absolute http(s) URL", config.URL)
	}

	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		url: trimSlash(config.URL),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		schemaCache: make(map[int]string),
		idCache:     make(map[string]int),
		username:    config.Username,
		password:    config.Password,
	}, nil
}

// WithObserver attaches an observer and returns the client.
func (c *Client) WithObserver(observer observability.Observer) *Client {
	c.observer = observer
	return c
}

// WithLogger attaches a logger and returns the client.
func (c *Client) WithLogger(logger Logger) *Client {
	c.logger = logger
	return c
}

// URL returns the registry base URL.
func (c *Client) URL() string {
	return c.url
}

// GetSchemaByID retrieves a schema from the registry by its ID
func (c *Client) GetSchemaByID(id int) (string, error) {
	start := time.Now()
	idStr := strconv.Itoa(id)

	c.schemaCacheMutex.RLock()
	if schema, ok := c.schemaCache[id]; ok {
		c.schemaCacheMutex.RUnlock()
		c.observeOperation("get_schema_by_id", "registry", idStr, time.Since(start), nil, map[string]interface{}{
			"cache_hit": true,
		})
		return schema, nil
	}
	c.schemaCacheMutex.RUnlock()

	v, err, _ := c.fetches.Do(idStr, func() (interface{}, error) {
		var result struct {
			Schema string `json:"schema"`
		}
		if err := c.do(http.MethodGet, "/schemas/ids/"+idStr, nil, &result); err != nil {
			return "", err
		}

		c.schemaCacheMutex.Lock()
		c.schemaCache[id] = result.Schema
		c.schemaCacheMutex.Unlock()
		return result.Schema, nil
	})
	c.observeOperation("get_schema_by_id", "registry", idStr, time.Since(start), err, map[string]interface{}{
		"cache_hit": false,
	})
	if err != nil {
		c.logError("failed to fetch schema by id", err, map[string]interface{}{"schema_id": id})
		return "", err
	}
	return v.(string), nil
}

// GetLatestSchema retrieves the latest version of a schema for a subject
func (c *Client) GetLatestSchema(subject string) (*Metadata, error) {
	start := time.Now()

	var metadata Metadata
	err := c.do(http.MethodGet, "/subjects/"+url.PathEscape(subject)+"/versions/latest", nil, &metadata)
	c.observeOperation("get_latest_schema", subject, "latest", time.Since(start), err, nil)
	if err != nil {
		c.logError("failed to fetch latest schema", err, map[string]interface{}{"subject": subject})
		return nil, err
	}

	metadata.Subject = subject

	c.schemaCacheMutex.Lock()
	c.schemaCache[metadata.ID] = metadata.Schema
	c.schemaCacheMutex.Unlock()

	return &metadata, nil
}

// RegisterSchema registers a new schema with the schema registry
func (c *Client) RegisterSchema(subject, schema, schemaType string) (int, error) {
	start := time.Now()

	cacheKey := subject + ":" + schemaType + ":" + schema
	c.idCacheMutex.RLock()
	if id, ok := c.idCache[cacheKey]; ok {
		c.idCacheMutex.RUnlock()
		c.observeOperation("register_schema", subject, strconv.Itoa(id), time.Since(start), nil, map[string]interface{}{
			"cache_hit":   true,
			"schema_type": schemaType,
		})
		return id, nil
	}
	c.idCacheMutex.RUnlock()

	var result struct {
		ID int `json:"id"`
	}
	err := c.do(http.MethodPost, "/subjects/"+url.PathEscape(subject)+"/versions", schemaPayload(schema, schemaType), &result)
	c.observeOperation("register_schema", subject, strconv.Itoa(result.ID), time.Since(start), err, map[string]interface{}{
		"cache_hit":   false,
		"schema_type": schemaType,
	})
	if err != nil {
		c.logError("failed to register schema", err, map[string]interface{}{"subject": subject, "schema_type": schemaType})
		return 0, err
	}

	c.idCacheMutex.Lock()
	c.idCache[cacheKey] = result.ID
	c.idCacheMutex.Unlock()

	c.schemaCacheMutex.Lock()
	c.schemaCache[result.ID] = schema
	c.schemaCacheMutex.Unlock()

	return result.ID, nil
}

// CheckCompatibility checks if a schema is compatible with the existing schema for a subject
func (c *Client) CheckCompatibility(subject, schema, schemaType string) (bool, error) {
	start := time.Now()

	var result struct {
		IsCompatible bool `json:"is_compatible"`
	}
	err := c.do(http.MethodPost, "/compatibility/subjects/"+url.PathEscape(subject)+"/versions/latest", schemaPayload(schema, schemaType), &result)
	c.observeOperation("check_compatibility", subject, "latest", time.Since(start), err, nil)
	if err != nil {
		return false, err
	}
	return result.IsCompatible, nil
}

// GetSubjects lists all subjects known to the registry.
func (c *Client) GetSubjects() ([]string, error) {
	start := time.Now()

	var subjects []string
	err := c.do(http.MethodGet, "/subjects", nil, &subjects)
	c.observeOperation("get_subjects", "registry", "", time.Since(start), err, map[string]interface{}{
		"subjects": len(subjects),
	})
	if err != nil {
		c.logError("failed to list subjects", err, nil)
		return nil, err
	}
	if subjects == nil {
		subjects = []string{}
	}
	return subjects, nil
}

func schemaPayload(schema, schemaType string) map[string]interface{} {
	payload := map[string]interface{}{
		"schema": schema,
	}
	if schemaType != "" && schemaType != "AVRO" {
		payload["schemaType"] = schemaType
	}
	return payload
}

// do runs one request against the registry and decodes a 200 response into out.
func (c *Client) do(method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(bgctx(), method, c.url+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", contentType)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec
	if err != nil {
		return fmt.Errorf("schema registry request %s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return newRegistryError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) logError(msg string, err error, fields map[string]interface{}) {
	if c.logger == nil {
		return
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["registry_url"] = c.url
	c.logger.ErrorWithContext(bgctx(), msg, err, fields)
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
