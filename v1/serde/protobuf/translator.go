package protobuf

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/Aleph-Alpha/serde/v1/schema"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ToMessage builds a protobuf message of type desc from an engine record.
// nil values are left unset. Keys the message does not declare are rejected.
func ToMessage(desc protoreflect.MessageDescriptor, rec schema.Record) (*dynamicpb.Message, error) {
	msg := dynamicpb.NewMessage(desc)
	if err := fillMessage(msg, rec, ""); err != nil {
		return nil, fmt.Errorf("%w: %w", serde.ErrSerialization, err)
	}
	return msg, nil
}

// FromMessage converts a protobuf message back into an engine record. Unset
// optional scalars and structs come back as nil, unset lists and maps as
// empty collections.
func FromMessage(msg protoreflect.Message) (schema.Record, error) {
	rec, err := readMessage(msg, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", serde.ErrDeserialization, err)
	}
	return rec, nil
}

func fillMessage(msg protoreflect.Message, rec map[string]any, path string) error {
	fields := msg.Descriptor().Fields()
	for name, value := range rec {
		fd := fields.ByName(protoreflect.Name(name))
		if fd == nil {
			return fmt.Errorf("%s: no such field in %s", join(path, name), msg.Descriptor().Name())
		}
		if isNull(value) {
			continue
		}
		if err := setField(msg, fd, value, join(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func setField(msg protoreflect.Message, fd protoreflect.FieldDescriptor, value any, path string) error {
	switch {
	case fd.IsMap():
		entries, err := asMap(value)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		m := msg.Mutable(fd).Map()
		for k, v := range entries {
			if isNull(v) {
				return fmt.Errorf("%s[%q]: map values must not be null", path, k)
			}
			pv, err := toValue(fd.MapValue(), v, fmt.Sprintf("%s[%q]", path, k), m.NewValue)
			if err != nil {
				return err
			}
			m.Set(protoreflect.ValueOfString(k).MapKey(), pv)
		}
		return nil

	case isEntryList(fd):
		entries, err := asMap(value)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		keyField, valueField := fd.Message().Fields().Get(0), fd.Message().Fields().Get(1)
		l := msg.Mutable(fd).List()
		for _, k := range keys {
			v := entries[k]
			if isNull(v) {
				return fmt.Errorf("%s[%q]: map values must not be null", path, k)
			}
			entry := l.NewElement()
			pv, err := toValue(valueField, v, fmt.Sprintf("%s[%q]", path, k), func() protoreflect.Value {
				return entry.Message().NewField(valueField)
			})
			if err != nil {
				return err
			}
			entry.Message().Set(keyField, protoreflect.ValueOfString(k))
			entry.Message().Set(valueField, pv)
			l.Append(entry)
		}
		return nil

	case fd.IsList():
		elems, err := asList(value)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		l := msg.Mutable(fd).List()
		for i, v := range elems {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if isNull(v) {
				return fmt.Errorf("%s: array elements must not be null", elemPath)
			}
			pv, err := toValue(fd, v, elemPath, l.NewElement)
			if err != nil {
				return err
			}
			l.Append(pv)
		}
		return nil

	default:
		pv, err := toValue(fd, value, path, func() protoreflect.Value { return msg.NewField(fd) })
		if err != nil {
			return err
		}
		msg.Set(fd, pv)
		return nil
	}
}

// toValue converts one Go value to the protobuf value of fd's kind.
// newMessage allocates the message for struct-typed values.
func toValue(fd protoreflect.FieldDescriptor, v any, path string, newMessage func() protoreflect.Value) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.Int32Kind:
		if n, ok := asInt64(v); ok {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return protoreflect.Value{}, fmt.Errorf("%s: %d overflows INTEGER", path, n)
			}
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind:
		if n, ok := asInt64(v); ok {
			return protoreflect.ValueOfInt64(n), nil
		}
	case protoreflect.DoubleKind:
		switch f := v.(type) {
		case float64:
			return protoreflect.ValueOfFloat64(f), nil
		case float32:
			return protoreflect.ValueOfFloat64(float64(f)), nil
		}
	case protoreflect.StringKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BytesKind:
		if b, ok := v.([]byte); ok {
			return protoreflect.ValueOfBytes(b), nil
		}
	case protoreflect.MessageKind:
		nested, err := asMap(v)
		if err != nil {
			return protoreflect.Value{}, fmt.Errorf("%s: %w", path, err)
		}
		pv := newMessage()
		if err := fillMessage(pv.Message(), nested, path); err != nil {
			return protoreflect.Value{}, err
		}
		return pv, nil
	default:
		return protoreflect.Value{}, fmt.Errorf("%s: unsupported protobuf kind %s", path, fd.Kind())
	}
	return protoreflect.Value{}, fmt.Errorf("%s: %T is not a valid %s value", path, v, fd.Kind())
}

// isNull treats typed nil slices, maps and pointers like a bare nil.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asList(v any) ([]any, error) {
	if l, ok := v.([]any); ok {
		return l, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%T is not an ARRAY value", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case schema.Record:
		return m, nil
	case map[string]any:
		return m, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%T is not a MAP or STRUCT value", v)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}

func readMessage(msg protoreflect.Message, path string) (schema.Record, error) {
	fields := msg.Descriptor().Fields()
	rec := make(schema.Record, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		name := string(fd.Name())
		fieldPath := join(path, name)

		switch {
		case fd.IsMap():
			out := make(map[string]any)
			var err error
			msg.Get(fd).Map().Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
				var val any
				val, err = fromValue(fd.MapValue(), v, fmt.Sprintf("%s[%q]", fieldPath, k.String()))
				if err != nil {
					return false
				}
				out[k.String()] = val
				return true
			})
			if err != nil {
				return nil, err
			}
			rec[name] = out

		case isEntryList(fd):
			keyField, valueField := fd.Message().Fields().Get(0), fd.Message().Fields().Get(1)
			l := msg.Get(fd).List()
			out := make(map[string]any, l.Len())
			for j := 0; j < l.Len(); j++ {
				entry := l.Get(j).Message()
				k := entry.Get(keyField).String()
				val, err := fromValue(valueField, entry.Get(valueField), fmt.Sprintf("%s[%q]", fieldPath, k))
				if err != nil {
					return nil, err
				}
				out[k] = val
			}
			rec[name] = out

		case fd.IsList():
			l := msg.Get(fd).List()
			out := make([]any, l.Len())
			for j := 0; j < l.Len(); j++ {
				val, err := fromValue(fd, l.Get(j), fmt.Sprintf("%s[%d]", fieldPath, j))
				if err != nil {
					return nil, err
				}
				out[j] = val
			}
			rec[name] = out

		default:
			if fd.HasPresence() && !msg.Has(fd) {
				rec[name] = nil
				continue
			}
			val, err := fromValue(fd, msg.Get(fd), fieldPath)
			if err != nil {
				return nil, err
			}
			rec[name] = val
		}
	}
	return rec, nil
}

func fromValue(fd protoreflect.FieldDescriptor, v protoreflect.Value, path string) (any, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool(), nil
	case protoreflect.Int32Kind:
		return int32(v.Int()), nil
	case protoreflect.Int64Kind:
		return v.Int(), nil
	case protoreflect.DoubleKind:
		return v.Float(), nil
	case protoreflect.StringKind:
		return v.String(), nil
	case protoreflect.BytesKind:
		b := make([]byte, len(v.Bytes()))
		copy(b, v.Bytes())
		return b, nil
	case protoreflect.MessageKind:
		return readMessage(v.Message(), path)
	default:
		return nil, fmt.Errorf("%s: unsupported protobuf kind %s", path, fd.Kind())
	}
}

// isEntryList reports whether fd is a repeated key/value message standing in
// for a map whose implicit entry name was already taken in its scope. The
// wire encoding is the same as a map's; later duplicate keys win.
func isEntryList(fd protoreflect.FieldDescriptor) bool {
	if !fd.IsList() || fd.Kind() != protoreflect.MessageKind {
		return false
	}
	md := fd.Message()
	if isStructMessage(string(md.Name())) || md.Fields().Len() != 2 {
		return false
	}
	key, value := md.Fields().Get(0), md.Fields().Get(1)
	return key.Name() == "key" && key.Number() == 1 && key.Kind() == protoreflect.StringKind &&
		value.Name() == "value" && value.Number() == 2
}

// isStructMessage reports whether name is one of the ConnectDefaultN
// messages generated for structs.
func isStructMessage(name string) bool {
	digits := strings.TrimPrefix(name, messagePrefix)
	if digits == name || digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
