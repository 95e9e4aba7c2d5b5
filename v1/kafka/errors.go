package kafka

import "errors"

var (
	// ErrWriterNotInitialized is returned by Publish on a consumer client
	ErrWriterNotInitialized = errors.New("kafka writer is not initialized")

	// ErrReaderNotInitialized is returned when consuming from a producer client
	ErrReaderNotInitialized = errors.New("kafka reader is not initialized")

	// ErrNoSerializer is returned when a non-[]byte value is published
	// without a serializer
	ErrNoSerializer = errors.New("no serializer configured")

	// ErrNoDeserializer is returned by Message.Record without a deserializer
	ErrNoDeserializer = errors.New("no deserializer configured")

	// ErrClientClosed is returned after GracefulShutdown
	ErrClientClosed = errors.New("kafka client is closed")
)
