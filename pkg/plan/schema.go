// Package plan defines the logical plan and expression trees consumed by the
// pushdown rewriter. Node and Expr are closed sets: consumers switch
// exhaustively over the concrete types, so adding a kind is a visible,
// compiler-checked change at every switch.
package plan

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Field describes one output column of a relation.
type Field struct {
	Name     string         `json:"name"`
	Type     arrow.DataType `json:"-"`
	Nullable bool           `json:"nullable,omitempty"`
}

// Schema is the ordered output column list of a relation.
type Schema []Field

// Lookup returns the field with the given name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// HasDuplicateNames reports whether two columns share a name. Most SQL
// dialects cannot disambiguate repeated names positionally once the relation
// is composed into a derived table, so duplicates block pushdown.
func (s Schema) HasDuplicateNames() bool {
	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if _, ok := seen[f.Name]; ok {
			return true
		}
		seen[f.Name] = struct{}{}
	}
	return false
}

// Equal reports whether two schemas have the same column names and types in
// the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].Name != other[i].Name {
			return false
		}
		if !arrow.TypeEqual(s[i].Type, other[i].Type) {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, f := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", f.Name, TypeName(f.Type))
	}
	b.WriteByte(')')
	return b.String()
}

// TypeName renders an arrow type as the compact name used in plan JSON and
// explain output.
func TypeName(dt arrow.DataType) string {
	if dt == nil {
		return "null"
	}
	switch t := dt.(type) {
	case *arrow.Decimal128Type:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case *arrow.TimestampType:
		return "timestamp"
	}
	switch dt.ID() {
	case arrow.BOOL:
		return "bool"
	case arrow.INT8:
		return "int8"
	case arrow.INT16:
		return "int16"
	case arrow.INT32:
		return "int32"
	case arrow.INT64:
		return "int64"
	case arrow.FLOAT32:
		return "float32"
	case arrow.FLOAT64:
		return "float64"
	case arrow.STRING:
		return "string"
	case arrow.BINARY:
		return "binary"
	case arrow.DATE32:
		return "date"
	default:
		return strings.ToLower(dt.Name())
	}
}

// TypeFromName is the inverse of TypeName for the types the engine models.
func TypeFromName(name string) (arrow.DataType, error) {
	switch name {
	case "bool":
		return arrow.FixedWidthTypes.Boolean, nil
	case "int8":
		return arrow.PrimitiveTypes.Int8, nil
	case "int16":
		return arrow.PrimitiveTypes.Int16, nil
	case "int32":
		return arrow.PrimitiveTypes.Int32, nil
	case "int64":
		return arrow.PrimitiveTypes.Int64, nil
	case "float32":
		return arrow.PrimitiveTypes.Float32, nil
	case "float64":
		return arrow.PrimitiveTypes.Float64, nil
	case "string":
		return arrow.BinaryTypes.String, nil
	case "binary":
		return arrow.BinaryTypes.Binary, nil
	case "date":
		return arrow.FixedWidthTypes.Date32, nil
	case "timestamp":
		return arrow.FixedWidthTypes.Timestamp_us, nil
	}
	var p, s int32
	if n, _ := fmt.Sscanf(name, "decimal(%d,%d)", &p, &s); n == 2 {
		return &arrow.Decimal128Type{Precision: p, Scale: s}, nil
	}
	return nil, fmt.Errorf("unknown type name %q", name)
}
