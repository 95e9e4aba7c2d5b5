// Package protobuf implements the PROTOBUF serde format backed by a schema
// registry.
//
// # Schema translation
//
// A logical row schema becomes a proto3 file with one top-level message,
// ConnectDefault1. Columns keep their names and get field numbers in column
// order starting at 1:
//
//	STRUCT<ID INTEGER, NAME STRING, TAGS ARRAY<STRING>, ATTRS MAP<STRING, BIGINT>>
//
// registers as
//
//	syntax = "proto3";
//
//	message ConnectDefault1 {
//	  optional int32 ID = 1;
//	  optional string NAME = 2;
//	  repeated string TAGS = 3;
//	  map<string, int64> ATTRS = 4;
//	}
//
// Scalars are optional so NULL columns survive a round trip. Arrays and maps
// cannot be NULL on the wire: NULL encodes as empty and decodes as empty.
// Struct columns become nested messages ConnectDefault2, ConnectDefault3, ...
// Nested arrays and maps holding arrays or maps are rejected.
//
// # Framing
//
// Payloads are 0x00, the 4-byte big-endian schema id, the message-index byte
// 0 and the protobuf body. The subject is "<topic>-value", or "<topic>-key"
// when is.key is set.
//
// # Building codecs
//
//	cfg := config.New(map[string]any{
//	    "ksql.schema.registry.url": "http://registry.local:8081",
//	})
//	codec, err := protobuf.NewFactory().CreateSerde(schema.Wrapped(s), cfg, nil)
//
// CreateSerde validates configuration and registry connectivity before it
// returns. The serializer and deserializer are safe for concurrent use; each
// concurrent caller works on its own codec instance with its own registry
// client.
//
// Converter settings are read from ksql.schema.registry.*:
//
//	auto.register.schemas  register the schema on first use (default true)
//	use.latest.version     with auto registration off, write with the latest id (default false)
//	is.key                 use the -key subject (default false)
//	basic.auth.user.info   user:password for the default client
//	request.timeout.ms     request timeout for the default client
package protobuf
