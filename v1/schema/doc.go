// Package schema models the engine's logical row schema and generic record.
//
// A Schema is an ordered list of named, typed columns; PersistenceSchema adds
// how the row is persisted. Record is the format-independent value of a row.
//
//	s := schema.MustNew(
//		schema.Field{Name: "ID", Type: schema.IntegerType},
//		schema.Field{Name: "NAME", Type: schema.StringType},
//		schema.Field{Name: "TAGS", Type: schema.ArrayOf(schema.StringType)},
//	)
//	fmt.Println(s) // STRUCT<ID INTEGER, NAME STRING, TAGS ARRAY<STRING>>
//
//	row := schema.Record{"ID": int32(1), "NAME": "a", "TAGS": []any{"x"}}
//
// Schemas round-trip through encoding/json so they can be shipped to workers.
package schema
