package protobuf

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/Aleph-Alpha/serde/v1/schema"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	// RootMessageName names the top-level message of every wire schema.
	RootMessageName = "ConnectDefault1"

	messagePrefix = "ConnectDefault"
	fileName      = "ConnectDefault1.proto"
)

// WireSchema is the protobuf rendering of a logical schema.
type WireSchema struct {
	// Descriptor describes the top-level message.
	Descriptor protoreflect.MessageDescriptor

	// File is the file descriptor the message lives in.
	File *descriptorpb.FileDescriptorProto

	// Text is the canonical .proto source registered with the registry.
	Text string
}

// ToWireSchema translates a logical schema into a proto3 message. Equal
// schemas always produce equal descriptors and byte-equal text.
//
// Scalars become proto3 optional fields so NULL survives a round trip.
// Structs become nested messages named ConnectDefault2, ConnectDefault3, ...
// in depth-first field order. Nested arrays, arrays of maps and maps whose
// values are arrays or maps have no protobuf form and are rejected.
//
// Names protoc derives can clash with column names. Synthetic oneofs then
// gain X prefixes, and a map whose entry name is taken is declared as a
// repeated key/value message named with a numeric suffix.
func ToWireSchema(s schema.Schema) (*WireSchema, error) {
	b := &descriptorBuilder{next: 2}
	root, err := b.message(RootMessageName, s.Fields(), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", serde.ErrSchemaTranslation, err)
	}

	file := &descriptorpb.FileDescriptorProto{
		Name:        proto.String(fileName),
		Syntax:      proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{root},
	}
	fd, err := protodesc.NewFile(file, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid descriptor: %w", serde.ErrSchemaTranslation, err)
	}
	md := fd.Messages().ByName(RootMessageName)
	if md == nil {
		return nil, fmt.Errorf("%w: message %s missing from descriptor", serde.ErrSchemaTranslation, RootMessageName)
	}

	return &WireSchema{
		Descriptor: md,
		File:       file,
		Text:       renderProto(file),
	}, nil
}

type descriptorBuilder struct {
	next int
}

func (b *descriptorBuilder) message(name string, fields []schema.Field, parent string) (*descriptorpb.DescriptorProto, error) {
	fullName := parent + "." + name
	msg := &descriptorpb.DescriptorProto{Name: proto.String(name)}

	// Fields, nested messages and oneofs share one namespace.
	scope := make(map[string]bool, len(fields))
	for _, f := range fields {
		scope[f.Name] = true
	}

	for i, f := range fields {
		if !protoreflect.Name(f.Name).IsValid() {
			return nil, fmt.Errorf("field name %q is not a valid protobuf identifier", f.Name)
		}
		field := &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(f.Name),
			Number:   proto.Int32(int32(i + 1)),
			JsonName: proto.String(jsonName(f.Name)),
		}

		switch f.Type.Base {
		case schema.Array:
			elem := *f.Type.Elem
			if elem.Base == schema.Array || elem.Base == schema.Map {
				return nil, fmt.Errorf("field %s: %s has no protobuf representation", f.Name, f.Type)
			}
			field.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
			if err := b.setType(field, elem, msg, fullName); err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}

		case schema.Map:
			value := *f.Type.Value
			if value.Base == schema.Array || value.Base == schema.Map {
				return nil, fmt.Errorf("field %s: %s has no protobuf representation", f.Name, f.Type)
			}
			// A map entry must carry its implicit name. When an earlier map
			// already took it, the field becomes a repeated key/value message
			// instead, which has the same wire encoding.
			entry := &descriptorpb.DescriptorProto{
				Name:    proto.String(mapEntryName(f.Name)),
				Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
				Field: []*descriptorpb.FieldDescriptorProto{{
					Name:     proto.String("key"),
					Number:   proto.Int32(1),
					JsonName: proto.String("key"),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
				}},
			}
			valueField := &descriptorpb.FieldDescriptorProto{
				Name:     proto.String("value"),
				Number:   proto.Int32(2),
				JsonName: proto.String("value"),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			}
			if scope[entry.GetName()] {
				entry.Name = proto.String(uniqueName(scope, entry.GetName()))
				entry.Options = nil
			}
			scope[entry.GetName()] = true
			entryName := fullName + "." + entry.GetName()
			if err := b.setType(valueField, value, msg, fullName); err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			entry.Field = append(entry.Field, valueField)
			msg.NestedType = append(msg.NestedType, entry)

			field.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
			field.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
			field.TypeName = proto.String(entryName)

		case schema.Struct:
			field.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
			if err := b.setType(field, f.Type, msg, fullName); err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}

		default:
			field.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
			field.Proto3Optional = proto.Bool(true)
			if err := b.setType(field, f.Type, msg, fullName); err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
		}

		msg.Field = append(msg.Field, field)
	}

	for _, nested := range msg.NestedType {
		scope[nested.GetName()] = true
	}

	// Synthetic oneofs for optional scalars go last, in field order. Like
	// protoc, a clashing name is prefixed with X until it is free.
	for _, field := range msg.Field {
		if !field.GetProto3Optional() {
			continue
		}
		oneof := "_" + field.GetName()
		for scope[oneof] {
			oneof = "X" + oneof
		}
		scope[oneof] = true
		field.OneofIndex = proto.Int32(int32(len(msg.OneofDecl)))
		msg.OneofDecl = append(msg.OneofDecl, &descriptorpb.OneofDescriptorProto{
			Name: proto.String(oneof),
		})
	}

	return msg, nil
}

// setType fills in the scalar type, or builds the nested message for a
// struct and points field at it.
func (b *descriptorBuilder) setType(field *descriptorpb.FieldDescriptorProto, t schema.Type, parent *descriptorpb.DescriptorProto, parentName string) error {
	switch t.Base {
	case schema.Boolean:
		field.Type = descriptorpb.FieldDescriptorProto_TYPE_BOOL.Enum()
	case schema.Integer:
		field.Type = descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum()
	case schema.Bigint:
		field.Type = descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum()
	case schema.Double:
		field.Type = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE.Enum()
	case schema.String:
		field.Type = descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
	case schema.Bytes:
		field.Type = descriptorpb.FieldDescriptorProto_TYPE_BYTES.Enum()
	case schema.Struct:
		name := messagePrefix + strconv.Itoa(b.next)
		b.next++
		nested, err := b.message(name, t.Fields, parentName)
		if err != nil {
			return err
		}
		parent.NestedType = append(parent.NestedType, nested)
		field.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		field.TypeName = proto.String(parentName + "." + name)
	default:
		return fmt.Errorf("type %s has no protobuf representation", t)
	}
	return nil
}

// uniqueName appends the smallest suffix from 2 up that makes name free in scope.
func uniqueName(scope map[string]bool, name string) string {
	for n := 2; ; n++ {
		candidate := name + strconv.Itoa(n)
		if !scope[candidate] {
			return candidate
		}
	}
}

// mapEntryName follows protoc: the field name in CamelCase plus "Entry".
func mapEntryName(field string) string {
	out := make([]rune, 0, len(field)+5)
	upperNext := true
	for _, r := range field {
		switch {
		case r == '_':
			upperNext = true
		case upperNext:
			out = append(out, unicode.ToUpper(r))
			upperNext = false
		default:
			out = append(out, r)
		}
	}
	return string(out) + "Entry"
}

// jsonName follows protoc: underscores dropped, the following letter upper-cased.
func jsonName(field string) string {
	out := make([]rune, 0, len(field))
	upperNext := false
	for _, r := range field {
		switch {
		case r == '_':
			upperNext = true
		case upperNext:
			out = append(out, unicode.ToUpper(r))
			upperNext = false
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
