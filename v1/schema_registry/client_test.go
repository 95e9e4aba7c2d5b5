package schema_registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

const protoSchema = `syntax = "proto3";

message ConnectDefault1 {
  optional int32 ID = 1;
}
`

// recordingObserver collects every observed operation.
type recordingObserver struct {
	mu  sync.Mutex
	ops []observability.OperationContext
}

func (r *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, ctx)
}

func (r *recordingObserver) operations() []observability.OperationContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]observability.OperationContext(nil), r.ops...)
}

func newRegistryServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", contentType)
		switch {
		case r.URL.Path == "/schemas/ids/7":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"schema": protoSchema})
		case r.URL.Path == "/subjects" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]string{"orders-value"})
		case r.URL.Path == "/subjects/orders-value/versions" && r.Method == http.MethodPost:
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["schemaType"] != "PROTOBUF" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"error_code":42201,"message":"invalid schema"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 7})
		case r.URL.Path == "/subjects/orders-value/versions/latest":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 7, "version": 3, "schema": protoSchema, "schemaType": "PROTOBUF"})
		case r.URL.Path == "/compatibility/subjects/orders-value/versions/latest":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"is_compatible": true})
		case r.URL.Path == "/subjects/missing-value/versions/latest":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error_code":40401,"message":"Subject 'missing-value' not found."}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error_code":40403,"message":"Schema not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{URL: "registry:8081"})
	assert.Error(t, err)

	_, err = NewClient(Config{URL: "ftp://registry:8081"})
	assert.Error(t, err)

	c, err := NewClient(Config{URL: "http://registry.local:8081/"})
	require.NoError(t, err)
	assert.Equal(t, "http://registry.local:8081", c.URL())
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestClient(t *testing.T) {
	var hits atomic.Int32
	srv := newRegistryServer(t, &hits)

	obs := &recordingObserver{}
	client, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)
	client.WithObserver(obs)

	t.Run("register schema caches the id", func(t *testing.T) {
		id, err := client.RegisterSchema("orders-value", protoSchema, "PROTOBUF")
		require.NoError(t, err)
		assert.Equal(t, 7, id)

		before := hits.Load()
		id, err = client.RegisterSchema("orders-value", protoSchema, "PROTOBUF")
		require.NoError(t, err)
		assert.Equal(t, 7, id)
		assert.Equal(t, before, hits.Load())
	})

	t.Run("get schema by id", func(t *testing.T) {
		schema, err := client.GetSchemaByID(7)
		require.NoError(t, err)
		assert.Equal(t, protoSchema, schema)
	})

	t.Run("get latest schema", func(t *testing.T) {
		md, err := client.GetLatestSchema("orders-value")
		require.NoError(t, err)
		assert.Equal(t, 7, md.ID)
		assert.Equal(t, 3, md.Version)
		assert.Equal(t, "orders-value", md.Subject)
		assert.Equal(t, "PROTOBUF", md.Type)
	})

	t.Run("check compatibility", func(t *testing.T) {
		ok, err := client.CheckCompatibility("orders-value", protoSchema, "PROTOBUF")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("get subjects", func(t *testing.T) {
		subjects, err := client.GetSubjects()
		require.NoError(t, err)
		assert.Equal(t, []string{"orders-value"}, subjects)
	})

	t.Run("observer sees every operation", func(t *testing.T) {
		seen := map[string]bool{}
		for _, op := range obs.operations() {
			assert.Equal(t, "schema_registry", op.Component)
			seen[op.Operation] = true
		}
		for _, name := range []string{"register_schema", "get_schema_by_id", "get_latest_schema", "check_compatibility", "get_subjects"} {
			assert.True(t, seen[name], name)
		}
	})
}

func TestClientErrors(t *testing.T) {
	srv := newRegistryServer(t, nil)
	client, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)

	_, err = client.GetLatestSchema("missing-value")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSubjectNotFound))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))

	_, err = client.GetSchemaByID(99)
	assert.True(t, errors.Is(err, ErrSchemaNotFound))

	_, err = client.RegisterSchema("orders-value", "x", "AVRO")
	var regErr *RegistryError
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, 42201, regErr.ErrorCode)
	assert.False(t, IsNotFound(err))
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ctrl := gomock.NewController(t)
	log := NewMockLogger(ctrl)
	log.EXPECT().ErrorWithContext(gomock.Any(), "failed to list subjects", gomock.Any(), gomock.Any()).Times(1)

	client, err := NewClient(Config{URL: url, Timeout: time.Second})
	require.NoError(t, err)
	client.WithLogger(log)

	_, err = client.GetSubjects()
	assert.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
}

func TestClientBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error_code":401,"message":"Unauthorized"}`))
			return
		}
		_ = json.NewEncoder(w).Encode([]string{})
	}))
	defer srv.Close()

	anon, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)
	_, err = anon.GetSubjects()
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	authed, err := NewClient(Config{URL: srv.URL, Username: "svc", Password: "s3cret"})
	require.NoError(t, err)
	subjects, err := authed.GetSubjects()
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestGetSchemaByIDConcurrentCallers(t *testing.T) {
	var hits atomic.Int32
	srv := newRegistryServer(t, &hits)
	client, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			schema, err := client.GetSchemaByID(7)
			if err == nil && schema != protoSchema {
				return errors.New("unexpected schema text")
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, hits.Load(), int32(16))

	before := hits.Load()
	_, err = client.GetSchemaByID(7)
	require.NoError(t, err)
	assert.Equal(t, before, hits.Load())
}

func TestConfigFromProperties(t *testing.T) {
	cfg, err := ConfigFromProperties(map[string]string{
		PropertyURL:              "https://registry:8081",
		PropertyBasicAuthInfo:    "svc:pa:ss",
		PropertyRequestTimeoutMs: "2500",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://registry:8081", cfg.URL)
	assert.Equal(t, "svc", cfg.Username)
	assert.Equal(t, "pa:ss", cfg.Password)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)

	_, err = ConfigFromProperties(map[string]string{})
	assert.Error(t, err)

	_, err = ConfigFromProperties(map[string]string{PropertyURL: "http://r", PropertyBasicAuthInfo: "nocolon"})
	assert.Error(t, err)

	_, err = ConfigFromProperties(map[string]string{PropertyURL: "http://r", PropertyRequestTimeoutMs: "soon"})
	assert.Error(t, err)

	_, err = ConfigFromProperties(map[string]string{PropertyURL: "http://r", PropertyBasicAuthInfo: "a:b", PropertyBasicAuthSource: "URL"})
	assert.Error(t, err)
}
