package protobuf

import (
	"testing"

	"github.com/Aleph-Alpha/serde/v1/schema"
	"github.com/Aleph-Alpha/serde/v1/serde"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func TestToWireSchemaScenario(t *testing.T) {
	wire := mustWire(t, scenarioSchema())

	assert.Equal(t, `syntax = "proto3";

message ConnectDefault1 {
  optional int32 id = 1;
  optional string name = 2;
}
`, wire.Text)

	md := wire.Descriptor
	assert.Equal(t, protoreflect.FullName(RootMessageName), md.FullName())
	require.Equal(t, 2, md.Fields().Len())

	id := md.Fields().ByName("id")
	assert.Equal(t, protoreflect.FieldNumber(1), id.Number())
	assert.Equal(t, protoreflect.Int32Kind, id.Kind())
	assert.True(t, id.HasPresence())

	name := md.Fields().ByName("name")
	assert.Equal(t, protoreflect.FieldNumber(2), name.Number())
	assert.Equal(t, protoreflect.StringKind, name.Kind())
}

func TestToWireSchemaNested(t *testing.T) {
	wire := mustWire(t, nestedSchema())

	assert.Equal(t, `syntax = "proto3";

message ConnectDefault1 {
  optional int64 ID = 1;
  repeated ConnectDefault2 ITEMS = 2;
  ConnectDefault3 ADDR = 3;
  map<string, ConnectDefault5> ATTRS = 4;

  message ConnectDefault2 {
    optional string SKU = 1;
    optional int32 QTY = 2;
  }

  message ConnectDefault3 {
    optional string CITY = 1;
    ConnectDefault4 GEO = 2;

    message ConnectDefault4 {
      optional double LAT = 1;
    }
  }

  message ConnectDefault5 {
    optional bool V = 1;
  }
}
`, wire.Text)

	items := wire.Descriptor.Fields().ByName("ITEMS")
	assert.True(t, items.IsList())
	assert.Equal(t, protoreflect.FullName("ConnectDefault1.ConnectDefault2"), items.Message().FullName())

	attrs := wire.Descriptor.Fields().ByName("ATTRS")
	require.True(t, attrs.IsMap())
	assert.Equal(t, protoreflect.StringKind, attrs.MapKey().Kind())
	assert.Equal(t, protoreflect.FullName("ConnectDefault1.ConnectDefault5"), attrs.MapValue().Message().FullName())

	geo := wire.Descriptor.Fields().ByName("ADDR").Message().Fields().ByName("GEO")
	assert.Equal(t, protoreflect.FullName("ConnectDefault1.ConnectDefault3.ConnectDefault4"), geo.Message().FullName())
}

func TestToWireSchemaIsDeterministic(t *testing.T) {
	a := mustWire(t, nestedSchema())
	b := mustWire(t, nestedSchema())
	assert.Equal(t, a.Text, b.Text)
	assert.True(t, proto.Equal(a.File, b.File))
}

func TestToWireSchemaAllTypes(t *testing.T) {
	wire := mustWire(t, allTypesSchema())
	assert.Contains(t, wire.Text, "optional bool B = 1;")
	assert.Contains(t, wire.Text, "optional bytes RAW = 6;")
	assert.Contains(t, wire.Text, "repeated int64 NUMS = 7;")
	assert.Contains(t, wire.Text, "map<string, string> LABELS = 8;")
}

func TestToWireSchemaRejects(t *testing.T) {
	nestedBadName := schema.MustNew(schema.Field{Name: "S", Type: schema.StructOf(
		schema.Field{Name: "1x", Type: schema.IntegerType},
	)})
	cases := map[string]schema.Schema{
		"nested array":    schema.MustNew(schema.Field{Name: "A", Type: schema.ArrayOf(schema.ArrayOf(schema.IntegerType))}),
		"array of map":    schema.MustNew(schema.Field{Name: "A", Type: schema.ArrayOf(schema.MapOf(schema.IntegerType))}),
		"map of array":    schema.MustNew(schema.Field{Name: "M", Type: schema.MapOf(schema.ArrayOf(schema.IntegerType))}),
		"map of map":      schema.MustNew(schema.Field{Name: "M", Type: schema.MapOf(schema.MapOf(schema.IntegerType))}),
		"bad name":        schema.MustNew(schema.Field{Name: "my col", Type: schema.IntegerType}),
		"nested bad name": nestedBadName,
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ToWireSchema(s)
			require.Error(t, err)
			assert.ErrorIs(t, err, serde.ErrSchemaTranslation)
		})
	}
}

func TestMapEntryName(t *testing.T) {
	assert.Equal(t, "AttrsEntry", mapEntryName("attrs"))
	assert.Equal(t, "MyMapEntry", mapEntryName("my_map"))
	assert.Equal(t, "ATTRSEntry", mapEntryName("ATTRS"))
}

func TestToWireSchemaOneofNameClash(t *testing.T) {
	wire := mustWire(t, schema.MustNew(
		schema.Field{Name: "id", Type: schema.IntegerType},
		schema.Field{Name: "_id", Type: schema.StringType},
	))

	assert.Equal(t, `syntax = "proto3";

message ConnectDefault1 {
  optional int32 id = 1;
  optional string _id = 2;
}
`, wire.Text)

	id := wire.Descriptor.Fields().ByName("id")
	require.NotNil(t, id.ContainingOneof())
	assert.Equal(t, protoreflect.Name("X_id"), id.ContainingOneof().Name())

	underscored := wire.Descriptor.Fields().ByName("_id")
	require.NotNil(t, underscored.ContainingOneof())
	assert.Equal(t, protoreflect.Name("__id"), underscored.ContainingOneof().Name())
}

func TestToWireSchemaMapEntryNameClash(t *testing.T) {
	wire := mustWire(t, schema.MustNew(
		schema.Field{Name: "a_b", Type: schema.MapOf(schema.IntegerType)},
		schema.Field{Name: "aB", Type: schema.MapOf(schema.StringType)},
		schema.Field{Name: "CEntry", Type: schema.IntegerType},
		schema.Field{Name: "c", Type: schema.MapOf(schema.BooleanType)},
	))

	assert.Equal(t, `syntax = "proto3";

message ConnectDefault1 {
  map<string, int32> a_b = 1;
  repeated ABEntry2 aB = 2;
  optional int32 CEntry = 3;
  repeated CEntry2 c = 4;

  message ABEntry2 {
    string key = 1;
    string value = 2;
  }

  message CEntry2 {
    string key = 1;
    bool value = 2;
  }
}
`, wire.Text)

	fields := wire.Descriptor.Fields()
	assert.True(t, fields.ByName("a_b").IsMap())
	assert.Equal(t, protoreflect.Name("ABEntry"), fields.ByName("a_b").Message().Name())

	ab := fields.ByName("aB")
	assert.True(t, ab.IsList())
	assert.Equal(t, protoreflect.Name("ABEntry2"), ab.Message().Name())
	assert.True(t, isEntryList(ab))

	c := fields.ByName("c")
	assert.Equal(t, protoreflect.Name("CEntry2"), c.Message().Name())
	assert.True(t, isEntryList(c))
}

func TestIsEntryListIgnoresStructArrays(t *testing.T) {
	wire := mustWire(t, schema.MustNew(schema.Field{Name: "KV", Type: schema.ArrayOf(schema.StructOf(
		schema.Field{Name: "key", Type: schema.StringType},
		schema.Field{Name: "value", Type: schema.IntegerType},
	))}))
	assert.False(t, isEntryList(wire.Descriptor.Fields().ByName("KV")))
}
