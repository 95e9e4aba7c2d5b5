package protobuf

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/Aleph-Alpha/serde/v1/schema"
	"github.com/Aleph-Alpha/serde/v1/schema_registry"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// SchemaType is the registry schema type of every registered schema.
const SchemaType = "PROTOBUF"

var rootIndexes = []int{0}

// converter carries what a serializer and deserializer instance share. It is
// not safe for concurrent use: the caches are plain maps.
type converter struct {
	registry schema_registry.Registry
	wire     *WireSchema
	settings converterSettings
	observer observability.Observer
}

func (c *converter) observe(operation, topic string, start time.Time, size int, err error, metadata map[string]interface{}) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveOperation(observability.OperationContext{
		Component: "serde",
		Operation: operation,
		Resource:  topic,
		Duration:  time.Since(start),
		Error:     err,
		Size:      int64(size),
		Metadata:  metadata,
	})
}

// serializer encodes records for one wire schema.
type serializer struct {
	converter
	ids map[string]int
}

func newSerializer(c converter) *serializer {
	return &serializer{converter: c, ids: make(map[string]int)}
}

// Serialize implements serde.Serializer. A nil record encodes to nil.
func (s *serializer) Serialize(topic string, data any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	start := time.Now()

	out, err := s.serialize(topic, data)
	s.observe("serialize", topic, start, len(out), err, nil)
	return out, err
}

func (s *serializer) serialize(topic string, data any) ([]byte, error) {
	rec, err := asRecord(data)
	if err != nil {
		return nil, err
	}

	id, err := s.schemaID(s.settings.subject(topic))
	if err != nil {
		return nil, err
	}

	msg, err := ToMessage(s.wire.Descriptor, rec)
	if err != nil {
		return nil, err
	}
	body, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", serde.ErrSerialization, err)
	}

	out := schema_registry.EncodeProtobufHeader(id, rootIndexes)
	return append(out, body...), nil
}

func asRecord(data any) (schema.Record, error) {
	switch rec := data.(type) {
	case schema.Record:
		return rec, nil
	case map[string]any:
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a record", serde.ErrSerialization, data)
	}
}

// schemaID resolves and caches the id the record is framed with.
func (s *serializer) schemaID(subject string) (int, error) {
	if id, ok := s.ids[subject]; ok {
		return id, nil
	}

	var id int
	switch {
	case s.settings.autoRegister:
		registered, err := s.registry.RegisterSchema(subject, s.wire.Text, SchemaType)
		if err != nil {
			return 0, fmt.Errorf("%w: registering schema for %s: %w", serde.ErrRegistryConnectivity, subject, err)
		}
		id = registered

	default:
		latest, err := s.registry.GetLatestSchema(subject)
		if err != nil {
			if schema_registry.IsNotFound(err) {
				return 0, fmt.Errorf("%w: no schema registered for %s and auto registration is off: %w", serde.ErrSerialization, subject, err)
			}
			return 0, fmt.Errorf("%w: fetching latest schema for %s: %w", serde.ErrRegistryConnectivity, subject, err)
		}
		if !s.settings.useLatest && strings.TrimSpace(latest.Schema) != strings.TrimSpace(s.wire.Text) {
			return 0, fmt.Errorf("%w: latest schema for %s (id %d) differs from the record schema; set %s to write with it anyway",
				serde.ErrSerialization, subject, latest.ID, PropertyUseLatest)
		}
		id = latest.ID
	}

	s.ids[subject] = id
	return id, nil
}

// deserializer decodes payloads with the local (reader) wire schema.
type deserializer struct {
	converter
	resolved map[int]struct{}
}

func newDeserializer(c converter) *deserializer {
	return &deserializer{converter: c, resolved: make(map[int]struct{})}
}

// Deserialize implements serde.Deserializer. nil or empty bytes decode to nil.
func (d *deserializer) Deserialize(topic string, data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	start := time.Now()

	rec, meta, err := d.deserialize(data)
	d.observe("deserialize", topic, start, len(data), err, meta)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *deserializer) deserialize(data []byte) (schema.Record, map[string]interface{}, error) {
	id, indexes, body, err := schema_registry.DecodeProtobufHeader(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", serde.ErrDeserialization, err)
	}
	meta := map[string]interface{}{"schema_id": strconv.Itoa(id)}
	if !slices.Equal(indexes, rootIndexes) {
		return nil, meta, fmt.Errorf("%w: message index path %v does not select the top-level message", serde.ErrDeserialization, indexes)
	}

	if err := d.resolve(id); err != nil {
		return nil, meta, err
	}

	msg := dynamicpb.NewMessage(d.wire.Descriptor)
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, meta, fmt.Errorf("%w: malformed body for schema %d: %w", serde.ErrDeserialization, id, err)
	}
	if err := checkUnknown(msg, ""); err != nil {
		return nil, meta, fmt.Errorf("%w: schema %d does not match the reader schema: %w", serde.ErrDeserialization, id, err)
	}
	rec, err := FromMessage(msg)
	return rec, meta, err
}

// checkUnknown fails when a field the reader declares arrived with a wire
// type it cannot read. proto.Unmarshal keeps such fields as unknown bytes
// and leaves the declared field unset, which would read as NULL. Unknown
// numbers the reader does not declare are fields added by a newer writer.
func checkUnknown(msg protoreflect.Message, path string) error {
	fields := msg.Descriptor().Fields()
	raw := msg.GetUnknown()
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return protowire.ParseError(n)
		}
		if fd := fields.ByNumber(num); fd != nil {
			return fmt.Errorf("%s: field %d arrived with wire type %d, which a %s field cannot read",
				join(path, string(fd.Name())), num, typ, fd.Kind())
		}
		m := protowire.ConsumeFieldValue(num, typ, raw[n:])
		if m < 0 {
			return protowire.ParseError(m)
		}
		raw = raw[n+m:]
	}

	var err error
	msg.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		fieldPath := join(path, string(fd.Name()))
		switch {
		case fd.IsMap():
			if fd.MapValue().Kind() != protoreflect.MessageKind {
				return true
			}
			v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
				err = checkUnknown(mv.Message(), fmt.Sprintf("%s[%q]", fieldPath, k.String()))
				return err == nil
			})
		case fd.IsList():
			if fd.Kind() != protoreflect.MessageKind {
				return true
			}
			l := v.List()
			for i := 0; i < l.Len() && err == nil; i++ {
				err = checkUnknown(l.Get(i).Message(), fmt.Sprintf("%s[%d]", fieldPath, i))
			}
		case fd.Kind() == protoreflect.MessageKind:
			err = checkUnknown(v.Message(), fieldPath)
		}
		return err == nil
	})
	return err
}

// resolve checks once per id that the writer schema exists. The body is read
// with the local descriptor; field numbers carry compatibility and
// checkUnknown rejects numbers whose wire type changed.
func (d *deserializer) resolve(id int) error {
	if _, ok := d.resolved[id]; ok {
		return nil
	}
	if _, err := d.registry.GetSchemaByID(id); err != nil {
		if schema_registry.IsNotFound(err) {
			return fmt.Errorf("%w: unknown schema id %d: %w", serde.ErrDeserialization, id, err)
		}
		return fmt.Errorf("%w: resolving schema id %d: %w", serde.ErrRegistryConnectivity, id, err)
	}
	d.resolved[id] = struct{}{}
	return nil
}
