package remote

import (
	"database/sql"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/sqlfold/pkg/errors"
	"github.com/TFMV/sqlfold/pkg/plan"
)

// dbTypeMap maps database type names, lowercased, to arrow types. It covers
// the names DuckDB and MySQL report for the types the plan model carries.
var dbTypeMap = map[string]arrow.DataType{
	"tinyint":   arrow.PrimitiveTypes.Int8,
	"smallint":  arrow.PrimitiveTypes.Int16,
	"integer":   arrow.PrimitiveTypes.Int32,
	"int":       arrow.PrimitiveTypes.Int32,
	"mediumint": arrow.PrimitiveTypes.Int32,
	"bigint":    arrow.PrimitiveTypes.Int64,
	"hugeint":   arrow.PrimitiveTypes.Int64,

	"real":   arrow.PrimitiveTypes.Float32,
	"float":  arrow.PrimitiveTypes.Float32,
	"double": arrow.PrimitiveTypes.Float64,

	"boolean": arrow.FixedWidthTypes.Boolean,
	"bool":    arrow.FixedWidthTypes.Boolean,

	"varchar": arrow.BinaryTypes.String,
	"char":    arrow.BinaryTypes.String,
	"text":    arrow.BinaryTypes.String,
	"string":  arrow.BinaryTypes.String,
	"json":    arrow.BinaryTypes.String,
	"uuid":    arrow.BinaryTypes.String,

	"blob":      arrow.BinaryTypes.Binary,
	"bytea":     arrow.BinaryTypes.Binary,
	"binary":    arrow.BinaryTypes.Binary,
	"varbinary": arrow.BinaryTypes.Binary,

	"date":      arrow.FixedWidthTypes.Date32,
	"datetime":  arrow.FixedWidthTypes.Timestamp_us,
	"timestamp": arrow.FixedWidthTypes.Timestamp_us,
}

// TypeFromDatabase maps a reported database type name to an arrow type.
func TypeFromDatabase(dbType string) (arrow.DataType, bool) {
	name := strings.ToLower(strings.TrimSpace(dbType))
	if t, ok := dbTypeMap[name]; ok {
		return t, true
	}
	if strings.HasPrefix(name, "decimal") || strings.HasPrefix(name, "numeric") {
		return decimalFromName(name)
	}
	return nil, false
}

func decimalFromName(name string) (arrow.DataType, bool) {
	open := strings.IndexByte(name, '(')
	if open < 0 {
		return &arrow.Decimal128Type{Precision: 38, Scale: 4}, true
	}
	end := strings.IndexByte(name, ')')
	if end < open {
		return nil, false
	}
	parts := strings.Split(name[open+1:end], ",")
	if len(parts) != 2 {
		return nil, false
	}
	p, err1 := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
	s, err2 := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
	if err1 != nil || err2 != nil || p < 1 || p > 38 || s < 0 || s > p {
		return nil, false
	}
	return &arrow.Decimal128Type{Precision: int32(p), Scale: int32(s)}, true
}

// FieldFromColumn derives a plan field from a result-set column, preferring
// the database's type name and falling back to the driver's scan type.
func FieldFromColumn(col *sql.ColumnType) plan.Field {
	nullable, known := col.Nullable()
	if !known {
		nullable = true
	}
	if t, ok := TypeFromDatabase(col.DatabaseTypeName()); ok {
		return plan.Field{Name: col.Name(), Type: t, Nullable: nullable}
	}
	return plan.Field{Name: col.Name(), Type: typeFromScan(col.ScanType()), Nullable: nullable}
}

func typeFromScan(t reflect.Type) arrow.DataType {
	if t == nil {
		return arrow.BinaryTypes.String
	}
	switch t.Kind() {
	case reflect.Bool:
		return arrow.FixedWidthTypes.Boolean
	case reflect.Int8:
		return arrow.PrimitiveTypes.Int8
	case reflect.Int16:
		return arrow.PrimitiveTypes.Int16
	case reflect.Int32:
		return arrow.PrimitiveTypes.Int32
	case reflect.Int, reflect.Int64:
		return arrow.PrimitiveTypes.Int64
	case reflect.Float32:
		return arrow.PrimitiveTypes.Float32
	case reflect.Float64:
		return arrow.PrimitiveTypes.Float64
	case reflect.String:
		return arrow.BinaryTypes.String
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return arrow.BinaryTypes.Binary
		}
		return arrow.BinaryTypes.String
	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return arrow.FixedWidthTypes.Timestamp_us
		}
		return arrow.BinaryTypes.String
	default:
		return arrow.BinaryTypes.String
	}
}

// SchemaFromColumns derives the result schema from the column metadata.
func SchemaFromColumns(cols []*sql.ColumnType) plan.Schema {
	out := make(plan.Schema, len(cols))
	for i, c := range cols {
		out[i] = FieldFromColumn(c)
	}
	return out
}

// ArrowSchema converts a plan schema to an arrow schema. Decimal columns are
// carried as strings in result batches.
func ArrowSchema(s plan.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(s))
	for i, f := range s {
		t := f.Type
		if t == nil || t.ID() == arrow.DECIMAL128 {
			t = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{Name: f.Name, Type: t, Nullable: f.Nullable}
	}
	return arrow.NewSchema(fields, nil)
}

// readRecords drains a result set into arrow record batches of at most
// batchSize rows each.
func readRecords(rows *sql.Rows, schema *arrow.Schema, batchSize int) ([]arrow.Record, int64, error) {
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	var (
		records []arrow.Record
		total   int64
		pending int
	)
	n := len(schema.Fields())
	holders := make([]interface{}, n)
	for i := range holders {
		holders[i] = new(interface{})
	}

	for rows.Next() {
		if err := rows.Scan(holders...); err != nil {
			releaseAll(records)
			return nil, 0, errors.Wrap(err, errors.CodeQueryFailed, "scan row")
		}
		for i := 0; i < n; i++ {
			v := *holders[i].(*interface{})
			if err := appendValue(builder.Field(i), v); err != nil {
				releaseAll(records)
				return nil, 0, err
			}
		}
		total++
		pending++
		if pending >= batchSize {
			records = append(records, builder.NewRecord())
			pending = 0
		}
	}
	if err := rows.Err(); err != nil {
		releaseAll(records)
		return nil, 0, errors.Wrap(err, errors.CodeQueryFailed, "read rows")
	}
	if pending > 0 {
		records = append(records, builder.NewRecord())
	}
	return records, total, nil
}

func releaseAll(records []arrow.Record) {
	for _, r := range records {
		r.Release()
	}
}

// appendValue writes one scanned driver value into a column builder,
// normalizing the representations drivers use for each arrow type.
func appendValue(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bld := b.(type) {
	case *array.BooleanBuilder:
		switch x := v.(type) {
		case bool:
			bld.Append(x)
		case int64:
			bld.Append(x != 0)
		default:
			return appendMismatch(b, v)
		}
	case *array.Int8Builder:
		n, ok := driverInt(v)
		if !ok {
			return appendMismatch(b, v)
		}
		bld.Append(int8(n))
	case *array.Int16Builder:
		n, ok := driverInt(v)
		if !ok {
			return appendMismatch(b, v)
		}
		bld.Append(int16(n))
	case *array.Int32Builder:
		n, ok := driverInt(v)
		if !ok {
			return appendMismatch(b, v)
		}
		bld.Append(int32(n))
	case *array.Int64Builder:
		n, ok := driverInt(v)
		if !ok {
			return appendMismatch(b, v)
		}
		bld.Append(n)
	case *array.Float32Builder:
		f, ok := driverFloat(v)
		if !ok {
			return appendMismatch(b, v)
		}
		bld.Append(float32(f))
	case *array.Float64Builder:
		f, ok := driverFloat(v)
		if !ok {
			return appendMismatch(b, v)
		}
		bld.Append(f)
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			bld.Append(x)
		case []byte:
			bld.Append(string(x))
		default:
			return appendMismatch(b, v)
		}
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			bld.Append(x)
		case string:
			bld.Append([]byte(x))
		default:
			return appendMismatch(b, v)
		}
	case *array.Date32Builder:
		t, ok := driverTime(v)
		if !ok {
			return appendMismatch(b, v)
		}
		bld.Append(arrow.Date32FromTime(t))
	case *array.TimestampBuilder:
		t, ok := driverTime(v)
		if !ok {
			return appendMismatch(b, v)
		}
		bld.Append(arrow.Timestamp(t.UnixMicro()))
	default:
		return appendMismatch(b, v)
	}
	return nil
}

func appendMismatch(b array.Builder, v interface{}) error {
	return errors.Newf(errors.CodeQueryFailed, "cannot place %T into %s column", v, b.Type())
}

func driverInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case int:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case []byte:
		parsed, err := strconv.ParseInt(string(n), 10, 64)
		return parsed, err == nil
	}
	return 0, false
}

func driverFloat(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int64:
		return float64(f), true
	case []byte:
		parsed, err := strconv.ParseFloat(string(f), 64)
		return parsed, err == nil
	}
	return 0, false
}

func driverTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05.999999", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
