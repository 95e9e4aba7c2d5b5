// Package serde defines the codec contract shared by every wire format.
//
// A Factory validates a logical schema and builds a *Serde, a
// Serializer/Deserializer pair safe for concurrent use. Formats register
// their factory by name so callers can pick one from configuration:
//
//	import _ "github.com/Aleph-Alpha/serde/v1/serde/protobuf"
//
//	factory, err := serde.Lookup("protobuf")
//	codec, err := factory.CreateSerde(schema.Wrapped(s), cfg, clientFactory)
//	defer codec.Close()
//
//	payload, err := codec.Serialize("orders", schema.Record{"ID": int32(1)})
//	row, err := codec.Deserialize("orders", payload)
//
// # Errors
//
// Construction failures wrap ErrConfiguration, ErrRegistryConnectivity or
// ErrSchemaTranslation (see IsConstructionError). Per-record failures wrap
// ErrSerialization or ErrDeserialization (see IsRecordError) and leave the
// codec usable.
package serde
