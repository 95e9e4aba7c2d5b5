// Package kafka carries serde-encoded engine records over Apache Kafka.
//
// A KafkaClient is bound to one topic. As a producer it serializes every
// record with the attached serializer, passing the topic so the registry
// subject is derived from it, and writes the framed bytes. As a consumer it
// hands out messages whose Record method runs the attached deserializer.
//
// Core Features:
//   - Producer and consumer on segmentio/kafka-go with TLS and SASL
//   - Serialization through any serde.Serializer, typically a *serde.Serde
//     built by a registered serde.Factory
//   - Parallel consumer workers sharing one thread-safe deserializer
//   - Trace context propagated through message headers
//   - Produce and consume operations reported to an observability.Observer
//
// Basic Usage:
//
//	import (
//		"github.com/Aleph-Alpha/serde/v1/kafka"
//		"github.com/Aleph-Alpha/serde/v1/schema"
//		"github.com/Aleph-Alpha/serde/v1/serde"
//		_ "github.com/Aleph-Alpha/serde/v1/serde/protobuf"
//	)
//
//	factory, _ := serde.Lookup(serde.FormatProtobuf)
//	s, err := factory.CreateSerde(ordersSchema, engineConfig, nil)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	producer, err := kafka.NewClient(kafka.Config{
//		Brokers: []string{"localhost:9092"},
//		Topic:   "orders",
//	})
//	if err != nil {
//		return err
//	}
//	producer = producer.WithSerde(s)
//	defer producer.GracefulShutdown()
//
//	err = producer.Publish(ctx, "1", schema.Record{"ID": int64(1), "NAME": "alice"})
//
// Consuming:
//
//	consumer, err := kafka.NewClient(kafka.Config{
//		Brokers:    []string{"localhost:9092"},
//		Topic:      "orders",
//		GroupID:    "orders-reader",
//		IsConsumer: true,
//	})
//	consumer = consumer.WithSerde(s)
//
//	wg := &sync.WaitGroup{}
//	for msg := range consumer.ConsumeParallel(ctx, wg, 4) {
//		record, err := msg.Record()
//		if err != nil {
//			// serde.ErrDeserialization or serde.ErrRegistryConnectivity
//			continue
//		}
//		handle(msg.Context(ctx), record)
//		_ = msg.CommitMsg()
//	}
//	wg.Wait()
//
// Tracing:
//
// With WithTracer (or a *tracer.Tracer in the fx container) every Publish
// runs in a producer span whose carrier goes into the headers. Consumers
// record a receive span continuing that trace, and Message.Context hands it
// to the handler.
//
// FX Integration:
//
//	app := fx.New(
//		logger.FXModule,
//		kafka.FXModule,
//		fx.Provide(func() kafka.Config { return cfg }),
//		fx.Provide(newOrdersSerde),
//	)
//
// Thread Safety:
//
// Publish and the consumer methods are safe for concurrent use. The
// attached serde must be thread-safe as well; serdes created by
// serde.Factory are.
package kafka
