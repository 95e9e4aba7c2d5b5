package serde

import (
	"errors"
	"io"
)

// Serde is a serializer and deserializer pair for one schema. Both halves
// are safe for concurrent use.
type Serde struct {
	serializer   Serializer
	deserializer Deserializer
}

// New pairs a serializer with a deserializer.
func New(serializer Serializer, deserializer Deserializer) *Serde {
	return &Serde{serializer: serializer, deserializer: deserializer}
}

// Serializer returns the serializing half.
func (s *Serde) Serializer() Serializer {
	return s.serializer
}

// Deserializer returns the deserializing half.
func (s *Serde) Deserializer() Deserializer {
	return s.deserializer
}

// Serialize delegates to the serializer.
func (s *Serde) Serialize(topic string, data any) ([]byte, error) {
	return s.serializer.Serialize(topic, data)
}

// Deserialize delegates to the deserializer.
func (s *Serde) Deserialize(topic string, data []byte) (any, error) {
	return s.deserializer.Deserialize(topic, data)
}

// Close releases both halves when they hold resources.
func (s *Serde) Close() error {
	var errs []error
	if c, ok := s.serializer.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.deserializer.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
