package kafka

import (
	"context"
	"time"
)

// Config defines the configuration for the Kafka client that carries
// serde-encoded records between the engine and a topic.
type Config struct {
	// Brokers is a list of Kafka broker addresses
	Brokers []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`

	// Topic is the Kafka topic to publish to or consume from. It is also the
	// topic handed to the serializer and deserializer, which derive the
	// registry subject from it.
	Topic string `yaml:"topic" envconfig:"KAFKA_TOPIC"`

	// GroupID is the consumer group ID
	GroupID string `yaml:"group_id" envconfig:"KAFKA_GROUP_ID"`

	// IsConsumer selects a reader instead of a writer
	IsConsumer bool `yaml:"is_consumer" envconfig:"KAFKA_IS_CONSUMER"`

	// MinBytes is the minimum number of bytes to fetch
	MinBytes int `yaml:"min_bytes" envconfig:"KAFKA_MIN_BYTES"`

	// MaxBytes is the maximum number of bytes to fetch
	MaxBytes int `yaml:"max_bytes" envconfig:"KAFKA_MAX_BYTES"`

	// MaxWait is how long a fetch waits for MinBytes
	MaxWait time.Duration `yaml:"max_wait" envconfig:"KAFKA_MAX_WAIT"`

	// CommitInterval is how often offsets are committed when auto-commit is on
	CommitInterval time.Duration `yaml:"commit_interval" envconfig:"KAFKA_COMMIT_INTERVAL"`

	// EnableAutoCommit commits fetched offsets periodically. When false the
	// caller commits with Message.CommitMsg.
	EnableAutoCommit bool `yaml:"enable_auto_commit" envconfig:"KAFKA_ENABLE_AUTO_COMMIT"`

	// StartOffset is where a new consumer group starts (FirstOffset or LastOffset)
	StartOffset int64 `yaml:"start_offset" envconfig:"KAFKA_START_OFFSET"`

	// Partition pins the reader to one partition; -1 lets the group assign
	Partition int `yaml:"partition" envconfig:"KAFKA_PARTITION"`

	// RequiredAcks is RequireNone, RequireOne or RequireAll
	RequiredAcks int `yaml:"required_acks" envconfig:"KAFKA_REQUIRED_ACKS"`

	// WriteTimeout bounds a single write
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"KAFKA_WRITE_TIMEOUT"`

	// Async makes Publish return before the broker acknowledges
	Async bool `yaml:"async" envconfig:"KAFKA_ASYNC"`

	// BatchSize is the number of messages batched in async mode
	BatchSize int `yaml:"batch_size" envconfig:"KAFKA_BATCH_SIZE"`

	// BatchTimeout flushes an incomplete batch in async mode
	BatchTimeout time.Duration `yaml:"batch_timeout" envconfig:"KAFKA_BATCH_TIMEOUT"`

	// CompressionCodec is one of gzip, snappy, lz4, zstd or empty
	CompressionCodec string `yaml:"compression_codec" envconfig:"KAFKA_COMPRESSION_CODEC"`

	// MaxAttempts is the number of write attempts before giving up
	MaxAttempts int `yaml:"max_attempts" envconfig:"KAFKA_MAX_ATTEMPTS"`

	// TLS configuration
	TLS TLSConfig `yaml:"tls"`

	// SASL configuration
	SASL SASLConfig `yaml:"sasl"`

	// ErrorLogger receives kafka-go internal errors when no Logger is set
	ErrorLogger func(msg string, args ...interface{}) `yaml:"-" ignored:"true"`
}

// Logger is the subset of logger.Logger the Kafka client uses.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// TLSConfig contains TLS/SSL configuration
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" envconfig:"KAFKA_TLS_ENABLED"`
	CACertPath         string `yaml:"ca_cert_path" envconfig:"KAFKA_TLS_CA_CERT_PATH"`
	ClientCertPath     string `yaml:"client_cert_path" envconfig:"KAFKA_TLS_CLIENT_CERT_PATH"`
	ClientKeyPath      string `yaml:"client_key_path" envconfig:"KAFKA_TLS_CLIENT_KEY_PATH"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" envconfig:"KAFKA_TLS_INSECURE_SKIP_VERIFY"`
}

// SASLConfig contains SASL authentication configuration
type SASLConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"KAFKA_SASL_ENABLED"`

	// Mechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512
	Mechanism string `yaml:"mechanism" envconfig:"KAFKA_SASL_MECHANISM"`
	Username  string `yaml:"username" envconfig:"KAFKA_SASL_USERNAME"`
	Password  string `yaml:"password" envconfig:"KAFKA_SASL_PASSWORD"` //nolint:gosec
}

// Default values for configuration
const (
	DefaultMinBytes       = 1
	DefaultMaxBytes       = 10e6 // 10MB
	DefaultMaxWait        = 10 * time.Second
	DefaultCommitInterval = 1 * time.Second
	DefaultStartOffset    = FirstOffset
	DefaultPartition      = -1
	DefaultRequiredAcks   = RequireAll
	DefaultBatchSize      = 100
	DefaultBatchTimeout   = 1 * time.Second
	DefaultMaxAttempts    = 10
	DefaultWriteTimeout   = 10 * time.Second

	RequireNone = 0
	RequireOne  = 1
	RequireAll  = -1

	FirstOffset = -2
	LastOffset  = -1
)

// withDefaults fills every zero field with its default.
func (c Config) withDefaults() Config {
	if c.MinBytes == 0 {
		c.MinBytes = DefaultMinBytes
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxWait == 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.CommitInterval == 0 {
		c.CommitInterval = DefaultCommitInterval
	}
	if c.StartOffset == 0 {
		c.StartOffset = DefaultStartOffset
	}
	if c.Partition == 0 {
		c.Partition = DefaultPartition
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = DefaultRequiredAcks
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}
