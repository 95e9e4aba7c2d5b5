// Package schema_registry provides a client for a Confluent-compatible schema
// registry and the wire framing shared by registry-backed codecs.
//
// # Client
//
// Client talks to the registry over HTTP and caches schemas by id and ids by
// subject and schema text:
//
//	client, err := schema_registry.NewClient(schema_registry.Config{
//	    URL:     "http://localhost:8081",
//	    Timeout: 5 * time.Second,
//	})
//	id, err := client.RegisterSchema("orders-value", protoText, "PROTOBUF")
//	text, err := client.GetSchemaByID(id)
//
// Concurrent cache misses for the same schema id share a single request.
// Non-200 responses come back as *RegistryError; errors.Is matches
// ErrSubjectNotFound and ErrSchemaNotFound by the registry's error_code.
//
// Config can also be derived from flat properties, the form an engine
// configuration carries them in:
//
//	cfg, err := schema_registry.ConfigFromProperties(map[string]string{
//	    "schema.registry.url":  "https://registry:8081",
//	    "basic.auth.user.info": "user:secret",
//	    "request.timeout.ms":   "3000",
//	})
//
// # Wire format
//
// Framed payloads start with the magic byte 0x0 and a 4-byte big-endian schema
// id. Protobuf payloads then carry a message-index path selecting the message
// inside the registered file; the first top-level message is the single byte 0.
//
//	header := schema_registry.EncodeProtobufHeader(id, []int{0})
//	id, indexes, body, err := schema_registry.DecodeProtobufHeader(payload)
//
// # Testing
//
// MockClient is an in-memory Registry with failure injection and per-method
// call counts. MockRegistry and MockLogger are gomock doubles.
//
// # FX
//
// FXModule provides *Client, Registry and a ClientFactory; Logger and
// observability.Observer are picked up when present in the graph.
package schema_registry
