package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BaseType enumerates the logical SQL types a column may have.
type BaseType string

const (
	Boolean BaseType = "BOOLEAN"
	Integer BaseType = "INTEGER"
	Bigint  BaseType = "BIGINT"
	Double  BaseType = "DOUBLE"
	String  BaseType = "STRING"
	Bytes   BaseType = "BYTES"
	Array   BaseType = "ARRAY"
	Map     BaseType = "MAP"
	Struct  BaseType = "STRUCT"
)

// Type is a logical SQL type. Composite types carry their element (ARRAY),
// value (MAP, keys are always STRING) or field (STRUCT) types.
type Type struct {
	Base   BaseType `json:"type"`
	Elem   *Type    `json:"elem,omitempty"`
	Value  *Type    `json:"value,omitempty"`
	Fields []Field  `json:"fields,omitempty"`
}

// Field is one named column of a STRUCT or row.
type Field struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Primitive type constructors.
var (
	BooleanType = Type{Base: Boolean}
	IntegerType = Type{Base: Integer}
	BigintType  = Type{Base: Bigint}
	DoubleType  = Type{Base: Double}
	StringType  = Type{Base: String}
	BytesType   = Type{Base: Bytes}
)

// ArrayOf returns ARRAY<elem>.
func ArrayOf(elem Type) Type {
	return Type{Base: Array, Elem: &elem}
}

// MapOf returns MAP<STRING, value>.
func MapOf(value Type) Type {
	return Type{Base: Map, Value: &value}
}

// StructOf returns STRUCT<fields...>.
func StructOf(fields ...Field) Type {
	return Type{Base: Struct, Fields: append([]Field(nil), fields...)}
}

// IsPrimitive reports whether t has no nested types.
func (t Type) IsPrimitive() bool {
	switch t.Base {
	case Array, Map, Struct:
		return false
	default:
		return true
	}
}

// Validate checks that t is well formed: a known base type, and composite
// types carry exactly the nested types they need.
func (t Type) Validate() error {
	switch t.Base {
	case Boolean, Integer, Bigint, Double, String, Bytes:
		if t.Elem != nil || t.Value != nil || len(t.Fields) > 0 {
			return fmt.Errorf("primitive type %s must not carry nested types", t.Base)
		}
		return nil
	case Array:
		if t.Elem == nil {
			return fmt.Errorf("ARRAY requires an element type")
		}
		return t.Elem.Validate()
	case Map:
		if t.Value == nil {
			return fmt.Errorf("MAP requires a value type")
		}
		return t.Value.Validate()
	case Struct:
		return validateFields(t.Fields)
	default:
		return fmt.Errorf("unknown type %q", t.Base)
	}
}

func validateFields(fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field names must not be empty")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := f.Type.Validate(); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

// Equal reports structural equality.
func (t Type) Equal(other Type) bool {
	return t.String() == other.String()
}

// String renders t in SQL syntax, e.g. ARRAY<STRUCT<A INTEGER>>.
func (t Type) String() string {
	switch t.Base {
	case Array:
		if t.Elem == nil {
			return "ARRAY<?>"
		}
		return "ARRAY<" + t.Elem.String() + ">"
	case Map:
		if t.Value == nil {
			return "MAP<STRING, ?>"
		}
		return "MAP<STRING, " + t.Value.String() + ">"
	case Struct:
		return "STRUCT<" + fieldList(t.Fields) + ">"
	default:
		return string(t.Base)
	}
}

func fieldList(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + " " + f.Type.String()
	}
	return strings.Join(parts, ", ")
}

// UnmarshalJSON accepts both the object form and a bare primitive name,
// so {"name":"ID","type":"INTEGER"} is as valid as {"type":{"type":"INTEGER"}}.
func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*t = Type{Base: BaseType(strings.ToUpper(name))}
		return nil
	}
	type plain Type
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Base = BaseType(strings.ToUpper(string(p.Base)))
	*t = Type(p)
	return nil
}
