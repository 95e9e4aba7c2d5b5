package protobuf

import (
	"errors"
	"testing"

	"github.com/Aleph-Alpha/serde/v1/schema"
	"github.com/Aleph-Alpha/serde/v1/schema_registry"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newPair(t *testing.T, registry schema_registry.Registry, settings converterSettings) (*serializer, *deserializer) {
	t.Helper()
	c := converter{registry: registry, wire: mustWire(t, scenarioSchema()), settings: settings}
	return newSerializer(c), newDeserializer(c)
}

func TestSerializerFraming(t *testing.T) {
	reg := schema_registry.NewMockClient()
	ser, deser := newPair(t, reg, converterSettings{autoRegister: true})

	out, err := ser.Serialize("users", schema.Record{"id": int32(1), "name": "a"})
	require.NoError(t, err)

	id, indexes, body, err := schema_registry.DecodeProtobufHeader(out)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, []int{0}, indexes)
	assert.Equal(t, []byte{0x08, 0x01, 0x12, 0x01, 'a'}, body)

	subjects, err := reg.GetSubjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"users-value"}, subjects)

	text, err := reg.GetSchemaByID(id)
	require.NoError(t, err)
	assert.Equal(t, ser.wire.Text, text)

	rec, err := deser.Deserialize("users", out)
	require.NoError(t, err)
	assert.Equal(t, schema.Record{"id": int32(1), "name": "a"}, rec)
}

func TestSerializerCachesSchemaID(t *testing.T) {
	reg := schema_registry.NewMockClient()
	ser, _ := newPair(t, reg, converterSettings{autoRegister: true})

	for i := 0; i < 3; i++ {
		_, err := ser.Serialize("users", schema.Record{"id": int32(i)})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reg.Calls("RegisterSchema"))
}

func TestSerializerKeySubject(t *testing.T) {
	reg := schema_registry.NewMockClient()
	ser, _ := newPair(t, reg, converterSettings{autoRegister: true, isKey: true})

	_, err := ser.Serialize("users", schema.Record{"id": int32(1)})
	require.NoError(t, err)
	subjects, _ := reg.GetSubjects()
	assert.Equal(t, []string{"users-key"}, subjects)
}

func TestSerializerNullRecord(t *testing.T) {
	reg := schema_registry.NewMockClient()
	ser, _ := newPair(t, reg, converterSettings{autoRegister: true})

	out, err := ser.Serialize("users", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0, reg.Calls("RegisterSchema"))
}

func TestSerializerWithoutAutoRegister(t *testing.T) {
	t.Run("latest version matches", func(t *testing.T) {
		reg := schema_registry.NewMockClient()
		wire := mustWire(t, scenarioSchema())
		id, err := reg.RegisterSchema("users-value", wire.Text, SchemaType)
		require.NoError(t, err)

		ser, _ := newPair(t, reg, converterSettings{})
		out, err := ser.Serialize("users", schema.Record{"id": int32(1)})
		require.NoError(t, err)
		got, _, err := schema_registry.DecodeSchemaID(out)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("latest version differs", func(t *testing.T) {
		reg := schema_registry.NewMockClient()
		_, err := reg.RegisterSchema("users-value", `syntax = "proto3";`, SchemaType)
		require.NoError(t, err)

		ser, _ := newPair(t, reg, converterSettings{})
		_, err = ser.Serialize("users", schema.Record{"id": int32(1)})
		assert.ErrorIs(t, err, serde.ErrSerialization)

		latest, _ := newPair(t, reg, converterSettings{useLatest: true})
		_, err = latest.Serialize("users", schema.Record{"id": int32(1)})
		assert.NoError(t, err)
	})

	t.Run("subject missing", func(t *testing.T) {
		ser, _ := newPair(t, schema_registry.NewMockClient(), converterSettings{useLatest: true})
		_, err := ser.Serialize("users", schema.Record{"id": int32(1)})
		assert.ErrorIs(t, err, serde.ErrSerialization)
	})
}

func TestSerializerRegistryDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := schema_registry.NewMockRegistry(ctrl)
	reg.EXPECT().RegisterSchema("users-value", gomock.Any(), SchemaType).Return(0, errors.New("connection refused"))

	ser, _ := newPair(t, reg, converterSettings{autoRegister: true})
	_, err := ser.Serialize("users", schema.Record{"id": int32(1)})
	assert.ErrorIs(t, err, serde.ErrRegistryConnectivity)
}

func TestSerializerRejectsNonRecords(t *testing.T) {
	ser, _ := newPair(t, schema_registry.NewMockClient(), converterSettings{autoRegister: true})
	_, err := ser.Serialize("users", "not a record")
	assert.ErrorIs(t, err, serde.ErrSerialization)
}

func TestDeserializerRejectsMalformedPayloads(t *testing.T) {
	reg := schema_registry.NewMockClient()
	ser, deser := newPair(t, reg, converterSettings{autoRegister: true})
	good, err := ser.Serialize("users", schema.Record{"id": int32(5), "name": "five"})
	require.NoError(t, err)

	cases := map[string][]byte{
		"truncated header": good[:3],
		"bad magic byte":   append([]byte{0x1}, good[1:]...),
		"truncated body":   good[:len(good)-2],
		"nested index":     append(schema_registry.EncodeProtobufHeader(1, []int{1}), good[6:]...),
		"unknown schema":   append(schema_registry.EncodeProtobufHeader(99, []int{0}), good[6:]...),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := deser.Deserialize("users", payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, serde.ErrDeserialization)
		})
	}

	rec, err := deser.Deserialize("users", good)
	require.NoError(t, err)
	assert.Equal(t, schema.Record{"id": int32(5), "name": "five"}, rec)
}

func TestDeserializerEmptyPayload(t *testing.T) {
	_, deser := newPair(t, schema_registry.NewMockClient(), converterSettings{})
	for _, payload := range [][]byte{nil, {}} {
		rec, err := deser.Deserialize("users", payload)
		require.NoError(t, err)
		assert.Nil(t, rec)
	}
}

func TestDeserializerResolvesEachIDOnce(t *testing.T) {
	reg := schema_registry.NewMockClient()
	ser, deser := newPair(t, reg, converterSettings{autoRegister: true})
	payload, err := ser.Serialize("users", schema.Record{"id": int32(1)})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := deser.Deserialize("users", payload)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reg.Calls("GetSchemaByID"))
}

func TestDeserializerRegistryDown(t *testing.T) {
	reg := schema_registry.NewMockClient()
	ser, deser := newPair(t, reg, converterSettings{autoRegister: true})
	payload, err := ser.Serialize("users", schema.Record{"id": int32(1)})
	require.NoError(t, err)

	reg.Fail(errors.New("connection refused"))
	_, err = deser.Deserialize("users", payload)
	assert.ErrorIs(t, err, serde.ErrRegistryConnectivity)
}

func TestDeserializerReadsEvolvedWriter(t *testing.T) {
	reg := schema_registry.NewMockClient()
	writerSchema := schema.MustNew(
		schema.Field{Name: "id", Type: schema.IntegerType},
		schema.Field{Name: "name", Type: schema.StringType},
		schema.Field{Name: "email", Type: schema.StringType},
	)
	writer := newSerializer(converter{registry: reg, wire: mustWire(t, writerSchema), settings: converterSettings{autoRegister: true}})
	payload, err := writer.Serialize("users", schema.Record{"id": int32(1), "name": "a", "email": "a@example.com"})
	require.NoError(t, err)

	_, reader := newPair(t, reg, converterSettings{})
	rec, err := reader.Deserialize("users", payload)
	require.NoError(t, err)
	assert.Equal(t, schema.Record{"id": int32(1), "name": "a"}, rec)
}

func TestDeserializerRejectsIncompatibleWriter(t *testing.T) {
	reg := schema_registry.NewMockClient()
	writerSchema := schema.MustNew(
		schema.Field{Name: "id", Type: schema.StringType},
		schema.Field{Name: "name", Type: schema.IntegerType},
	)
	writer := newSerializer(converter{registry: reg, wire: mustWire(t, writerSchema), settings: converterSettings{autoRegister: true}})
	payload, err := writer.Serialize("users", schema.Record{"id": "abc", "name": int32(7)})
	require.NoError(t, err)

	_, reader := newPair(t, reg, converterSettings{})
	rec, err := reader.Deserialize("users", payload)
	assert.ErrorIs(t, err, serde.ErrDeserialization)
	assert.ErrorContains(t, err, "id")
	assert.Nil(t, rec)
}

func TestDeserializerRejectsIncompatibleNestedWriter(t *testing.T) {
	reg := schema_registry.NewMockClient()
	item := func(qty schema.Type) schema.Schema {
		return schema.MustNew(
			schema.Field{Name: "ID", Type: schema.BigintType},
			schema.Field{Name: "ITEMS", Type: schema.ArrayOf(schema.StructOf(
				schema.Field{Name: "SKU", Type: schema.StringType},
				schema.Field{Name: "QTY", Type: qty},
			))},
		)
	}
	writer := newSerializer(converter{registry: reg, wire: mustWire(t, item(schema.StringType)), settings: converterSettings{autoRegister: true}})
	payload, err := writer.Serialize("orders", schema.Record{
		"ID":    int64(1),
		"ITEMS": []any{schema.Record{"SKU": "a", "QTY": "two"}},
	})
	require.NoError(t, err)

	reader := newDeserializer(converter{registry: reg, wire: mustWire(t, item(schema.IntegerType))})
	_, err = reader.Deserialize("orders", payload)
	assert.ErrorIs(t, err, serde.ErrDeserialization)
	assert.ErrorContains(t, err, "ITEMS[0].QTY")
}
