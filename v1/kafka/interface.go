package kafka

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

// Client provides a high-level interface for publishing engine records to
// Kafka and consuming them back.
type Client interface {
	// Publish serializes record for the configured topic and writes it.
	// A []byte record is written as is.
	Publish(ctx context.Context, key string, record any, headers ...map[string]string) error

	// Consume starts a single consumer goroutine.
	Consume(ctx context.Context, wg *sync.WaitGroup) <-chan Message

	// ConsumeParallel starts numWorkers consumer goroutines sharing one channel.
	ConsumeParallel(ctx context.Context, wg *sync.WaitGroup, numWorkers int) <-chan Message

	// GracefulShutdown stops consumers and closes the writer and reader.
	GracefulShutdown()
}

// Message is a consumed Kafka message.
type Message interface {
	// CommitMsg commits the message offset.
	CommitMsg() error

	// Body returns the raw, still framed value.
	Body() []byte

	// Record deserializes the value with the client's deserializer. The
	// result is whatever the deserializer yields, a schema.Record for the
	// protobuf format.
	Record() (any, error)

	// Key returns the message key.
	Key() string

	// Topic returns the topic the message was read from.
	Topic() string

	// Header returns the message headers.
	Header() map[string]string

	// Context returns parent enriched with any trace context carried in
	// the headers.
	Context(parent context.Context) context.Context

	Partition() int
	Offset() int64
}

// messageWriter is the part of *kafka.Writer the client uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageReader is the part of *kafka.Reader the client uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Propagator records a span per produced and received message and moves
// trace context in and out of message headers. *tracer.Tracer implements it.
type Propagator interface {
	StartProduceSpan(ctx context.Context, topic, key string) (context.Context, trace.Span)
	StartConsumeSpan(ctx context.Context, headers map[string]string, topic string, partition int, offset int64) (context.Context, trace.Span)
	FinishSpan(span trace.Span, err error)
	GetCarrier(ctx context.Context) map[string]string
	SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context
}

var _ Client = (*KafkaClient)(nil)
