package schema

import (
	"encoding/json"
	"fmt"
)

// Schema is the ordered list of columns of a persisted row. A Schema is
// immutable once built; accessors return copies.
type Schema struct {
	fields []Field
}

// New builds a Schema and validates it.
func New(fields ...Field) (Schema, error) {
	if err := validateFields(fields); err != nil {
		return Schema{}, err
	}
	return Schema{fields: append([]Field(nil), fields...)}, nil
}

// MustNew is New for static schemas; it panics on invalid input.
func MustNew(fields ...Field) Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns a copy of the columns.
func (s Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Len is the number of columns.
func (s Schema) Len() int {
	return len(s.fields)
}

// Field looks a column up by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// AsStruct returns the row type as STRUCT<...>.
func (s Schema) AsStruct() Type {
	return StructOf(s.fields...)
}

// String renders the schema in SQL syntax.
func (s Schema) String() string {
	return s.AsStruct().String()
}

// Equal reports structural equality.
func (s Schema) Equal(other Schema) bool {
	return s.String() == other.String()
}

// MarshalJSON encodes the schema as its field list.
func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.fields)
}

// UnmarshalJSON decodes and validates a field list.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var fields []Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	parsed, err := New(fields...)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	*s = parsed
	return nil
}

// PersistenceSchema is the schema a serde is built for: the row columns plus
// whether a single-column row is written without an enclosing record.
type PersistenceSchema struct {
	schema    Schema
	unwrapped bool
}

// NewPersistenceSchema wraps s. Unwrapped requires exactly one column.
func NewPersistenceSchema(s Schema, unwrapped bool) (PersistenceSchema, error) {
	if unwrapped && s.Len() != 1 {
		return PersistenceSchema{}, fmt.Errorf("unwrapped persistence schema needs exactly one column, got %d", s.Len())
	}
	return PersistenceSchema{schema: s, unwrapped: unwrapped}, nil
}

// Wrapped is NewPersistenceSchema(s, false), which cannot fail.
func Wrapped(s Schema) PersistenceSchema {
	return PersistenceSchema{schema: s}
}

// SerializedSchema returns the row schema used to derive the wire schema.
func (p PersistenceSchema) SerializedSchema() Schema {
	return p.schema
}

// Unwrapped reports whether single values are written without an envelope.
func (p PersistenceSchema) Unwrapped() bool {
	return p.unwrapped
}

func (p PersistenceSchema) String() string {
	if p.unwrapped {
		return "Persistence{schema=" + p.schema.String() + ", unwrapped}"
	}
	return "Persistence{schema=" + p.schema.String() + "}"
}

// Record is the engine's generic row value, keyed by column name.
//
// Value mapping: BOOLEAN bool, INTEGER int32, BIGINT int64, DOUBLE float64,
// STRING string, BYTES []byte, ARRAY []any, MAP map[string]any,
// STRUCT Record. A nil value is SQL NULL.
type Record map[string]any
