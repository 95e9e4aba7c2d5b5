package protobuf

import (
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

// renderProto prints file as .proto source. Only the constructs ToWireSchema
// emits are supported: scalars, optional scalars, repeated fields, maps and
// nested messages.
func renderProto(file *descriptorpb.FileDescriptorProto) string {
	var sb strings.Builder
	sb.WriteString("syntax = \"proto3\";\n")
	for _, msg := range file.GetMessageType() {
		sb.WriteString("\n")
		renderMessage(&sb, msg, 0)
	}
	return sb.String()
}

func renderMessage(sb *strings.Builder, msg *descriptorpb.DescriptorProto, depth int) {
	indent := strings.Repeat("  ", depth)
	entries := make(map[string]*descriptorpb.DescriptorProto)
	for _, nested := range msg.GetNestedType() {
		if nested.GetOptions().GetMapEntry() {
			entries[nested.GetName()] = nested
		}
	}

	sb.WriteString(indent + "message " + msg.GetName() + " {\n")
	for _, f := range msg.GetField() {
		sb.WriteString(indent + "  ")
		if entry, ok := entries[lastSegment(f.GetTypeName())]; ok && f.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED {
			sb.WriteString("map<" + typeName(entry.GetField()[0]) + ", " + typeName(entry.GetField()[1]) + ">")
		} else {
			switch {
			case f.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
				sb.WriteString("repeated ")
			case f.GetProto3Optional():
				sb.WriteString("optional ")
			}
			sb.WriteString(typeName(f))
		}
		sb.WriteString(" " + f.GetName() + " = " + strconv.Itoa(int(f.GetNumber())) + ";\n")
	}

	for _, nested := range msg.GetNestedType() {
		if nested.GetOptions().GetMapEntry() {
			continue
		}
		sb.WriteString("\n")
		renderMessage(sb, nested, depth+1)
	}
	sb.WriteString(indent + "}\n")
}

func typeName(f *descriptorpb.FieldDescriptorProto) string {
	switch f.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return "bool"
	case descriptorpb.FieldDescriptorProto_TYPE_INT32:
		return "int32"
	case descriptorpb.FieldDescriptorProto_TYPE_INT64:
		return "int64"
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		return "double"
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return "string"
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return "bytes"
	default:
		return lastSegment(f.GetTypeName())
	}
}

func lastSegment(fullName string) string {
	if i := strings.LastIndexByte(fullName, '.'); i >= 0 {
		return fullName[i+1:]
	}
	return fullName
}
