package schema_registry

import (
	"encoding/binary"
	"fmt"
)

// MagicByte opens every framed payload.
const MagicByte byte = 0x0

// EncodeSchemaID encodes a schema ID in the Confluent wire format
// Format: [magic_byte][schema_id]
// - magic_byte: 0x0 (1 byte)
// - schema_id: 4 bytes (big-endian)
func EncodeSchemaID(schemaID int) []byte {
	buf := make([]byte, 5)
	buf[0] = MagicByte
	binary.BigEndian.PutUint32(buf[1:], uint32(schemaID))
	return buf
}

// DecodeSchemaID decodes a schema ID from the Confluent wire format
// Returns the schema ID and the remaining payload (after the 5-byte header)
func DecodeSchemaID(data []byte) (int, []byte, error) {
	if len(data) < 5 {
		return 0, nil, fmt.Errorf("%w: data too short: expected at least 5 bytes, got %d", ErrInvalidWireFormat, len(data))
	}

	if data[0] != MagicByte {
		return 0, nil, fmt.Errorf("%w: invalid magic byte: expected 0x0, got 0x%x", ErrInvalidWireFormat, data[0])
	}

	schemaID := int(binary.BigEndian.Uint32(data[1:5]))
	return schemaID, data[5:], nil
}

// AppendMessageIndexes appends the protobuf message-index path that follows
// the schema id. The path [0] (first top-level message) is written as the
// single byte 0; any other path is a zig-zag varint count followed by the
// zig-zag varint indexes.
func AppendMessageIndexes(buf []byte, indexes []int) []byte {
	if len(indexes) == 0 || (len(indexes) == 1 && indexes[0] == 0) {
		return append(buf, 0)
	}
	buf = binary.AppendVarint(buf, int64(len(indexes)))
	for _, idx := range indexes {
		buf = binary.AppendVarint(buf, int64(idx))
	}
	return buf
}

// DecodeMessageIndexes reads a message-index path and returns it with the
// remaining bytes. A zero count decodes as [0].
func DecodeMessageIndexes(data []byte) ([]int, []byte, error) {
	count, n := binary.Varint(data)
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: malformed message index count", ErrInvalidWireFormat)
	}
	data = data[n:]
	if count == 0 {
		return []int{0}, data, nil
	}
	if count < 0 || count > int64(len(data)) {
		return nil, nil, fmt.Errorf("%w: message index count %d out of range", ErrInvalidWireFormat, count)
	}

	indexes := make([]int, count)
	for i := range indexes {
		idx, n := binary.Varint(data)
		if n <= 0 || idx < 0 {
			return nil, nil, fmt.Errorf("%w: malformed message index %d", ErrInvalidWireFormat, i)
		}
		indexes[i] = int(idx)
		data = data[n:]
	}
	return indexes, data, nil
}

// EncodeProtobufHeader returns magic byte, schema id and the message-index
// path for a protobuf payload.
func EncodeProtobufHeader(schemaID int, indexes []int) []byte {
	return AppendMessageIndexes(EncodeSchemaID(schemaID), indexes)
}

// DecodeProtobufHeader is the inverse of EncodeProtobufHeader.
func DecodeProtobufHeader(data []byte) (schemaID int, indexes []int, body []byte, err error) {
	schemaID, rest, err := DecodeSchemaID(data)
	if err != nil {
		return 0, nil, nil, err
	}
	indexes, body, err = DecodeMessageIndexes(rest)
	if err != nil {
		return 0, nil, nil, err
	}
	return schemaID, indexes, body, nil
}
