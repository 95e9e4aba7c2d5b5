package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Aleph-Alpha/serde/v1/serde"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

// ConsumerMessage implements the Message interface for a fetched kafka.Message.
type ConsumerMessage struct {
	message      kafka.Message
	reader       messageReader
	deserializer serde.Deserializer
	propagator   Propagator

	// spanContext is the receive span recorded when the message was fetched
	spanContext trace.SpanContext
}

// Consume starts a single consumer goroutine. The returned channel is closed
// once ctx is cancelled or the client shuts down; wg tracks the goroutine.
//
// Example:
//
//	wg := &sync.WaitGroup{}
//	for msg := range client.Consume(ctx, wg) {
//		record, err := msg.Record()
//		if err != nil {
//			continue
//		}
//		handle(record)
//		_ = msg.CommitMsg()
//	}
//	wg.Wait()
func (k *KafkaClient) Consume(ctx context.Context, wg *sync.WaitGroup) <-chan Message {
	return k.ConsumeParallel(ctx, wg, 1)
}

// ConsumeParallel starts numWorkers goroutines fetching from the same reader
// and feeding one channel. Each worker hands out the shared deserializer, so
// it must be safe for concurrent use, as serdes built by serde.Factory are.
func (k *KafkaClient) ConsumeParallel(ctx context.Context, wg *sync.WaitGroup, numWorkers int) <-chan Message {
	if numWorkers < 1 {
		numWorkers = 1
	}

	outChan := make(chan Message, 100*numWorkers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(outChan)

		workerWg := &sync.WaitGroup{}

		for i := 0; i < numWorkers; i++ {
			workerWg.Add(1)
			go func(workerID int) {
				defer workerWg.Done()
				k.consumeWorker(ctx, outChan, workerID)
			}(i)
		}

		workerWg.Wait()
	}()

	return outChan
}

// consumeWorker is a worker goroutine that fetches and sends messages
func (k *KafkaClient) consumeWorker(ctx context.Context, outChan chan<- Message, workerID int) {
	for {
		select {
		case <-k.shutdownSignal:
			k.logInfo(ctx, "Stopping consumer worker due to shutdown signal", map[string]interface{}{
				"worker_id": workerID,
			})
			return
		case <-ctx.Done():
			k.logInfo(ctx, "Stopping consumer worker due to context cancellation", map[string]interface{}{
				"worker_id": workerID,
			})
			return
		default:
		}

		k.mu.RLock()
		reader := k.reader
		deserializer := k.deserializer
		k.mu.RUnlock()

		if reader == nil {
			k.logError(ctx, "Kafka reader is not initialized", ErrReaderNotInitialized, map[string]interface{}{
				"worker_id": workerID,
			})
			return
		}

		start := time.Now()
		msg, err := reader.FetchMessage(ctx)

		var size int64
		if err == nil {
			size = int64(len(msg.Value))
		}
		k.observeOperation("consume", k.cfg.Topic, strconv.Itoa(msg.Partition), time.Since(start), err, size)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			if isShutdown(k.shutdownSignal) {
				return
			}
			k.logError(ctx, "Worker failed to fetch message", err, map[string]interface{}{
				"worker_id": workerID,
			})
			continue
		}

		var spanContext trace.SpanContext
		if k.propagator != nil {
			spanCtx, span := k.propagator.StartConsumeSpan(ctx, headerMap(msg.Headers), msg.Topic, msg.Partition, msg.Offset)
			k.propagator.FinishSpan(span, nil)
			spanContext = trace.SpanContextFromContext(spanCtx)
		}

		select {
		case outChan <- &ConsumerMessage{
			message:      msg,
			reader:       reader,
			deserializer: deserializer,
			propagator:   k.propagator,
			spanContext:  spanContext,
		}:
		case <-ctx.Done():
			return
		case <-k.shutdownSignal:
			return
		}
	}
}

func isShutdown(signal <-chan struct{}) bool {
	select {
	case <-signal:
		return true
	default:
		return false
	}
}

// Publish serializes record for the configured topic and writes it with key.
// A []byte record is written untouched. When a tracer is attached the
// publish runs inside a producer span whose carrier is added to the
// headers; explicit headers win on conflicts.
//
// Serializer failures keep their serde classification, so callers can
// tell a bad record (serde.ErrSerialization) from an unreachable registry
// (serde.ErrRegistryConnectivity) with errors.Is.
//
// Example:
//
//	record := schema.Record{"ID": int64(1), "NAME": "alice"}
//	if err := client.Publish(ctx, "1", record); err != nil {
//		return err
//	}
func (k *KafkaClient) Publish(ctx context.Context, key string, record any, headers ...map[string]string) error {
	start := time.Now()
	var publishErr error
	var msgSize int64

	defer func() {
		k.observeOperation("produce", k.cfg.Topic, "", time.Since(start), publishErr, msgSize)
	}()

	if err := ctx.Err(); err != nil {
		publishErr = err
		return publishErr
	}
	if isShutdown(k.shutdownSignal) {
		publishErr = ErrClientClosed
		return publishErr
	}

	if propagator := k.propagator; propagator != nil {
		var span trace.Span
		ctx, span = propagator.StartProduceSpan(ctx, k.cfg.Topic, key)
		defer func() { propagator.FinishSpan(span, publishErr) }()
	}

	k.mu.RLock()
	writer := k.writer
	serializer := k.serializer
	k.mu.RUnlock()

	if writer == nil {
		publishErr = ErrWriterNotInitialized
		return publishErr
	}

	var value []byte
	switch v := record.(type) {
	case []byte:
		value = v
	default:
		if serializer == nil {
			publishErr = fmt.Errorf("%w: cannot publish %T", ErrNoSerializer, record)
			return publishErr
		}
		encoded, err := serializer.Serialize(k.cfg.Topic, record)
		if err != nil {
			publishErr = fmt.Errorf("failed to serialize record: %w", err)
			return publishErr
		}
		value = encoded
	}
	msgSize = int64(len(value))

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: k.buildHeaders(ctx, headers...),
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		publishErr = err
		return publishErr
	}
	return nil
}

func (k *KafkaClient) buildHeaders(ctx context.Context, headers ...map[string]string) []kafka.Header {
	merged := make(map[string]string)
	if k.propagator != nil {
		for key, v := range k.propagator.GetCarrier(ctx) {
			merged[key] = v
		}
	}
	for _, h := range headers {
		for key, v := range h {
			merged[key] = v
		}
	}
	if len(merged) == 0 {
		return nil
	}

	out := make([]kafka.Header, 0, len(merged))
	for key, v := range merged {
		out = append(out, kafka.Header{Key: key, Value: []byte(v)})
	}
	return out
}

// CommitMsg commits the message, informing Kafka that the message
// has been successfully processed.
func (cm *ConsumerMessage) CommitMsg() error {
	return cm.reader.CommitMessages(context.Background(), cm.message)
}

// Body returns the raw message value.
func (cm *ConsumerMessage) Body() []byte {
	return cm.message.Value
}

// Record deserializes the value for the message's topic.
func (cm *ConsumerMessage) Record() (any, error) {
	if cm.deserializer == nil {
		return nil, ErrNoDeserializer
	}
	return cm.deserializer.Deserialize(cm.Topic(), cm.message.Value)
}

// Key returns the message key.
func (cm *ConsumerMessage) Key() string {
	return string(cm.message.Key)
}

// Topic returns the topic the message was read from.
func (cm *ConsumerMessage) Topic() string {
	return cm.message.Topic
}

// Header returns the message headers.
func (cm *ConsumerMessage) Header() map[string]string {
	return headerMap(cm.message.Headers)
}

func headerMap(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

// Context returns parent carrying the message's receive span, so work done
// for the message joins the producer's trace. Messages built without that
// span fall back to the trace context in the headers. Without a tracer
// parent is returned unchanged.
func (cm *ConsumerMessage) Context(parent context.Context) context.Context {
	if cm.propagator == nil {
		return parent
	}
	if cm.spanContext.IsValid() {
		return trace.ContextWithSpanContext(parent, cm.spanContext)
	}
	return cm.propagator.SetCarrierOnContext(parent, cm.Header())
}

// Partition returns the partition the message was read from.
func (cm *ConsumerMessage) Partition() int {
	return cm.message.Partition
}

// Offset returns the message offset.
func (cm *ConsumerMessage) Offset() int64 {
	return cm.message.Offset
}
