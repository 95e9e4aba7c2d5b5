package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// KafkaClient publishes and consumes serde-encoded records on one topic.
//
// KafkaClient implements the Client interface.
type KafkaClient struct {
	// cfg stores the configuration for this Kafka client
	cfg Config

	// observer provides optional observability hooks for tracking operations
	observer observability.Observer

	// logger is used for lifecycle events and worker logs
	logger Logger

	// propagator injects and extracts trace context through headers
	propagator Propagator

	// writer is the Kafka writer used for publishing messages
	writer messageWriter

	// reader is the Kafka reader used for consuming messages
	reader messageReader

	// serializer encodes records before publishing
	serializer serde.Serializer

	// deserializer decodes consumed values
	deserializer serde.Deserializer

	// mu protects concurrent access to writer, reader and the codecs
	mu sync.RWMutex

	// shutdownSignal is closed when the client is being shut down
	shutdownSignal chan struct{}

	closeShutdownOnce sync.Once
}

// NewClient creates a KafkaClient with a writer, or a reader when
// cfg.IsConsumer is set. Records are only encoded once a serializer is
// attached with WithSerde or WithSerializer.
//
// Example:
//
//	client, err := kafka.NewClient(cfg)
//	if err != nil {
//		return err
//	}
//	client = client.WithSerde(protobufSerde)
//	defer client.GracefulShutdown()
func NewClient(cfg Config) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	cfg = cfg.withDefaults()

	k := newClient(cfg)

	// Set up TLS config if enabled
	var tlsConfig *tls.Config
	var err error
	if cfg.TLS.Enabled {
		tlsConfig, err = createTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	// Set up SASL mechanism if enabled
	var mechanism sasl.Mechanism
	if cfg.SASL.Enabled {
		mechanism, err = createSASLMechanism(cfg.SASL)
		if err != nil {
			return nil, fmt.Errorf("failed to create SASL mechanism: %w", err)
		}
	}

	if cfg.IsConsumer {
		k.reader = createReader(cfg, tlsConfig, mechanism, k)
	} else {
		k.writer = createWriter(cfg, tlsConfig, mechanism, k)
	}

	return k, nil
}

func newClient(cfg Config) *KafkaClient {
	return &KafkaClient{
		cfg:            cfg,
		shutdownSignal: make(chan struct{}),
	}
}

// WithObserver attaches an observer notified of every produce and consume.
func (k *KafkaClient) WithObserver(observer observability.Observer) *KafkaClient {
	k.observer = observer
	return k
}

// WithLogger attaches a logger for lifecycle events, worker logs and
// kafka-go internal errors.
func (k *KafkaClient) WithLogger(logger Logger) *KafkaClient {
	k.logger = logger
	return k
}

// WithTracer makes Publish add the trace carrier of its context to the
// message headers. Consumers restore it with Message.Context.
func (k *KafkaClient) WithTracer(propagator Propagator) *KafkaClient {
	k.propagator = propagator
	return k
}

// WithSerde attaches both halves of a serde.
func (k *KafkaClient) WithSerde(s *serde.Serde) *KafkaClient {
	if s == nil {
		return k
	}
	k.SetSerializer(s.Serializer())
	k.SetDeserializer(s.Deserializer())
	return k
}

// WithSerializer attaches a serializer used by Publish.
func (k *KafkaClient) WithSerializer(serializer serde.Serializer) *KafkaClient {
	k.SetSerializer(serializer)
	return k
}

// WithDeserializer attaches a deserializer used by Message.Record.
func (k *KafkaClient) WithDeserializer(deserializer serde.Deserializer) *KafkaClient {
	k.SetDeserializer(deserializer)
	return k
}

// SetSerializer sets the serializer for the Kafka client.
func (k *KafkaClient) SetSerializer(s serde.Serializer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.serializer = s
}

// SetDeserializer sets the deserializer for the Kafka client.
func (k *KafkaClient) SetDeserializer(d serde.Deserializer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.deserializer = d
}

// Topic returns the configured topic.
func (k *KafkaClient) Topic() string {
	return k.cfg.Topic
}

// GracefulShutdown stops consumer workers and closes the writer and reader.
// It is safe to call more than once.
func (k *KafkaClient) GracefulShutdown() {
	k.closeShutdownOnce.Do(func() {
		close(k.shutdownSignal)

		k.mu.Lock()
		defer k.mu.Unlock()

		k.logInfo(context.Background(), "Closing Kafka client", nil)

		if k.writer != nil {
			if err := k.writer.Close(); err != nil {
				k.logWarn(context.Background(), "Failed to close Kafka writer", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}

		if k.reader != nil {
			if err := k.reader.Close(); err != nil {
				k.logWarn(context.Background(), "Failed to close Kafka reader", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	})
}

func (k *KafkaClient) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if k.logger != nil {
		k.logger.InfoWithContext(ctx, msg, nil, k.withTopic(fields))
	}
}

func (k *KafkaClient) logWarn(ctx context.Context, msg string, fields map[string]interface{}) {
	if k.logger != nil {
		k.logger.WarnWithContext(ctx, msg, nil, k.withTopic(fields))
	}
}

func (k *KafkaClient) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if k.logger != nil {
		k.logger.ErrorWithContext(ctx, msg, err, k.withTopic(fields))
	}
}

func (k *KafkaClient) withTopic(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for key, v := range fields {
		out[key] = v
	}
	out["topic"] = k.cfg.Topic
	return out
}

// createErrorLogger routes kafka-go internal errors to the client logger,
// then to cfg.ErrorLogger, then to the standard log package.
func createErrorLogger(client *KafkaClient) kafka.LoggerFunc {
	return kafka.LoggerFunc(func(msg string, args ...interface{}) {
		if client.logger != nil {
			formattedMsg := msg
			if len(args) > 0 {
				formattedMsg = fmt.Sprintf(msg, args...)
			}
			client.logError(context.Background(), "Kafka internal error", nil, map[string]interface{}{
				"error": formattedMsg,
			})
			return
		}

		if client.cfg.ErrorLogger != nil {
			client.cfg.ErrorLogger(msg, args...)
			return
		}

		log.Printf("KAFKA ERROR: "+msg, args...)
	})
}

// createWriter creates a Kafka writer with the given configuration
func createWriter(cfg Config, tlsConfig *tls.Config, mechanism sasl.Mechanism, client *KafkaClient) *kafka.Writer {
	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: cfg.RequiredAcks,
		ErrorLogger:  createErrorLogger(client),
	}

	if cfg.Async {
		writerConfig.Async = true
		writerConfig.BatchSize = cfg.BatchSize
		writerConfig.BatchTimeout = cfg.BatchTimeout
	}

	switch cfg.CompressionCodec {
	case "gzip":
		writerConfig.CompressionCodec = &compress.GzipCodec
	case "snappy":
		writerConfig.CompressionCodec = &compress.SnappyCodec
	case "lz4":
		writerConfig.CompressionCodec = &compress.Lz4Codec
	case "zstd":
		writerConfig.CompressionCodec = &compress.ZstdCodec
	}

	writerConfig.Dialer = &kafka.Dialer{
		TLS:           tlsConfig,
		SASLMechanism: mechanism,
	}

	return kafka.NewWriter(writerConfig)
}

// createReader creates a Kafka reader with the given configuration
func createReader(cfg Config, tlsConfig *tls.Config, mechanism sasl.Mechanism, client *KafkaClient) *kafka.Reader {
	readerConfig := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: cfg.StartOffset,
		ErrorLogger: createErrorLogger(client),
	}

	if cfg.EnableAutoCommit {
		readerConfig.CommitInterval = cfg.CommitInterval
	}

	// kafka-go rejects a partition together with a group id
	if cfg.Partition != -1 && cfg.GroupID == "" {
		readerConfig.Partition = cfg.Partition
	}

	readerConfig.Dialer = &kafka.Dialer{
		TLS:           tlsConfig,
		SASLMechanism: mechanism,
	}

	return kafka.NewReader(readerConfig)
}

// createTLSConfig creates a TLS configuration from the provided config
func createTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCertPath != "" && cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// createSASLMechanism creates a SASL mechanism from the provided config
func createSASLMechanism(cfg SASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN":
		return plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}
}
