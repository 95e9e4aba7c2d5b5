package kafka

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Aleph-Alpha/serde/v1/config"
	"github.com/Aleph-Alpha/serde/v1/schema"
	"github.com/Aleph-Alpha/serde/v1/schema_registry"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"github.com/Aleph-Alpha/serde/v1/serde/protobuf"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
)

const redpandaImage = "docker.redpanda.com/redpandadata/redpanda:v24.2.7"

// TestRedpandaRoundTrip publishes protobuf records through a real broker and
// schema registry and reads them back with a consumer group.
func TestRedpandaRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	broker, registryURL, containerInstance := initializeRedpanda(ctx, t)
	defer func() {
		if err := containerInstance.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	const topic = "orders"
	createTopic(t, broker, topic)

	orders := schema.MustNew(
		schema.Field{Name: "ID", Type: schema.BigintType},
		schema.Field{Name: "CUSTOMER", Type: schema.StringType},
		schema.Field{Name: "ITEMS", Type: schema.ArrayOf(schema.StructOf(
			schema.Field{Name: "SKU", Type: schema.StringType},
			schema.Field{Name: "QTY", Type: schema.IntegerType},
		))},
	)
	engineConfig := config.New(map[string]any{
		config.SchemaRegistryURLProperty: registryURL,
	})

	s, err := protobuf.NewFactory().CreateSerde(schema.Wrapped(orders), engineConfig, nil)
	require.NoError(t, err)
	defer s.Close()

	var producer *KafkaClient
	app := fx.New(
		FXModule,
		fx.Provide(
			func() Config { return Config{Brokers: []string{broker}, Topic: topic} },
			func() *serde.Serde { return s },
		),
		fx.Populate(&producer),
	)
	require.NoError(t, app.Start(ctx))
	defer app.Stop(ctx)

	records := []schema.Record{
		{"ID": int64(1), "CUSTOMER": "alice", "ITEMS": []any{
			map[string]any{"SKU": "a-1", "QTY": int32(2)},
		}},
		{"ID": int64(2), "CUSTOMER": nil, "ITEMS": []any{}},
		{"ID": int64(3), "CUSTOMER": "carol", "ITEMS": []any{
			map[string]any{"SKU": "c-1", "QTY": int32(1)},
			map[string]any{"SKU": "c-2", "QTY": nil},
		}},
	}
	for _, r := range records {
		require.NoError(t, producer.Publish(ctx, strconv.FormatInt(r["ID"].(int64), 10), r))
	}

	registry, err := schema_registry.NewClient(schema_registry.Config{URL: registryURL})
	require.NoError(t, err)
	subjects, err := registry.GetSubjects()
	require.NoError(t, err)
	assert.Contains(t, subjects, topic+"-value")

	consumer, err := NewClient(Config{
		Brokers:    []string{broker},
		Topic:      topic,
		GroupID:    "orders-it",
		IsConsumer: true,
		MaxWait:    500 * time.Millisecond,
	})
	require.NoError(t, err)
	consumer = consumer.WithSerde(s)
	defer consumer.GracefulShutdown()

	cctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	wg := &sync.WaitGroup{}
	got := make(map[int64]schema.Record)
	for msg := range consumer.Consume(cctx, wg) {
		decoded, err := msg.Record()
		require.NoError(t, err)
		record := decoded.(schema.Record)
		got[record["ID"].(int64)] = record
		require.NoError(t, msg.CommitMsg())
		if len(got) == len(records) {
			cancel()
		}
	}
	wg.Wait()

	require.Len(t, got, len(records))
	assert.Equal(t, "alice", got[1]["CUSTOMER"])
	assert.Nil(t, got[2]["CUSTOMER"])
	assert.Equal(t, []any{}, got[2]["ITEMS"])
	assert.Equal(t, []any{
		schema.Record{"SKU": "c-1", "QTY": int32(1)},
		schema.Record{"SKU": "c-2", "QTY": nil},
	}, got[3]["ITEMS"])
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	require.NoError(t, err)
}

func initializeRedpanda(ctx context.Context, t *testing.T) (string, string, testcontainers.Container) {
	kafkaPort, err := getFreePort()
	require.NoError(t, err)
	registryPort, err := getFreePort()
	require.NoError(t, err)

	containerInstance, err := createRedpandaContainer(ctx, kafkaPort, registryPort)
	require.NoError(t, err)

	host, err := containerInstance.Host(ctx)
	require.NoError(t, err)

	registryURL := fmt.Sprintf("http://%s", net.JoinHostPort(host, registryPort))
	require.Eventually(t, func() bool {
		resp, err := http.Get(registryURL + "/subjects")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 60*time.Second, 500*time.Millisecond, "schema registry not ready")

	return net.JoinHostPort(host, kafkaPort), registryURL, containerInstance
}

func createRedpandaContainer(ctx context.Context, kafkaPort, registryPort string) (testcontainers.Container, error) {
	portBindings := nat.PortMap{
		"9092/tcp": []nat.PortBinding{{HostPort: kafkaPort}},
		"8081/tcp": []nat.PortBinding{{HostPort: registryPort}},
	}

	req := testcontainers.ContainerRequest{
		Image:        redpandaImage,
		ExposedPorts: []string{"9092/tcp", "8081/tcp"},
		Cmd: []string{
			"redpanda", "start",
			"--mode", "dev-container",
			"--smp", "1",
			"--kafka-addr", "PLAINTEXT://0.0.0.0:9092",
			"--advertise-kafka-addr", "PLAINTEXT://localhost:" + kafkaPort,
			"--schema-registry-addr", "0.0.0.0:8081",
		},
		HostConfigModifier: func(cfg *container.HostConfig) {
			cfg.PortBindings = portBindings
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("9092/tcp").WithStartupTimeout(60*time.Second),
			wait.ForLog("Successfully started Redpanda!").WithStartupTimeout(60*time.Second),
		),
	}

	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
}

func getFreePort() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port), nil
}
