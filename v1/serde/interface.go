package serde

import (
	"github.com/Aleph-Alpha/serde/v1/config"
	"github.com/Aleph-Alpha/serde/v1/schema"
	"github.com/Aleph-Alpha/serde/v1/schema_registry"
)

// Serializer turns an engine record into bytes for a topic.
// A nil record serializes to nil bytes.
type Serializer interface {
	Serialize(topic string, data any) ([]byte, error)
}

// Deserializer turns bytes read from a topic back into an engine record.
// nil or empty bytes deserialize to a nil record.
type Deserializer interface {
	Deserialize(topic string, data []byte) (any, error)
}

// Factory builds codec pairs for one wire format.
type Factory interface {
	// Validate checks whether the format can represent the schema at all.
	Validate(s schema.PersistenceSchema) error

	// CreateSerde builds a codec pair for the schema. All configuration and
	// connectivity problems surface here rather than on the first record.
	CreateSerde(s schema.PersistenceSchema, cfg *config.Config, clientFactory schema_registry.ClientFactory) (*Serde, error)
}

// SerializerFunc adapts a function to Serializer.
type SerializerFunc func(topic string, data any) ([]byte, error)

// Serialize calls f.
func (f SerializerFunc) Serialize(topic string, data any) ([]byte, error) {
	return f(topic, data)
}

// DeserializerFunc adapts a function to Deserializer.
type DeserializerFunc func(topic string, data []byte) (any, error)

// Deserialize calls f.
func (f DeserializerFunc) Deserialize(topic string, data []byte) (any, error) {
	return f(topic, data)
}
