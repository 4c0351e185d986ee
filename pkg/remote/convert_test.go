package remote

import (
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sqlfold/pkg/plan"
)

func TestTypeFromDatabase(t *testing.T) {
	tests := []struct {
		dbType   string
		expected arrow.DataType
	}{
		{"BIGINT", arrow.PrimitiveTypes.Int64},
		{"integer", arrow.PrimitiveTypes.Int32},
		{"MEDIUMINT", arrow.PrimitiveTypes.Int32},
		{"double", arrow.PrimitiveTypes.Float64},
		{"VARCHAR", arrow.BinaryTypes.String},
		{"uuid", arrow.BinaryTypes.String},
		{"BOOLEAN", arrow.FixedWidthTypes.Boolean},
		{"BLOB", arrow.BinaryTypes.Binary},
		{"DATE", arrow.FixedWidthTypes.Date32},
		{"DATETIME", arrow.FixedWidthTypes.Timestamp_us},
		{" timestamp ", arrow.FixedWidthTypes.Timestamp_us},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			dt, ok := TypeFromDatabase(tt.dbType)
			require.True(t, ok)
			assert.True(t, arrow.TypeEqual(tt.expected, dt))
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		_, ok := TypeFromDatabase("geometry")
		assert.False(t, ok)
	})
}

func TestDecimalFromName(t *testing.T) {
	t.Run("explicit precision and scale", func(t *testing.T) {
		dt, ok := TypeFromDatabase("DECIMAL(12,2)")
		require.True(t, ok)
		dec, isDec := dt.(*arrow.Decimal128Type)
		require.True(t, isDec)
		assert.Equal(t, int32(12), dec.Precision)
		assert.Equal(t, int32(2), dec.Scale)
	})

	t.Run("numeric spelling with spaces", func(t *testing.T) {
		dt, ok := TypeFromDatabase("numeric(10, 4)")
		require.True(t, ok)
		dec := dt.(*arrow.Decimal128Type)
		assert.Equal(t, int32(10), dec.Precision)
		assert.Equal(t, int32(4), dec.Scale)
	})

	t.Run("bare decimal gets defaults", func(t *testing.T) {
		dt, ok := TypeFromDatabase("decimal")
		require.True(t, ok)
		dec := dt.(*arrow.Decimal128Type)
		assert.Equal(t, int32(38), dec.Precision)
		assert.Equal(t, int32(4), dec.Scale)
	})

	t.Run("invalid bounds", func(t *testing.T) {
		for _, name := range []string{"decimal(0,0)", "decimal(39,2)", "decimal(5,6)", "decimal(a,b)"} {
			_, ok := TypeFromDatabase(name)
			assert.False(t, ok, name)
		}
	})
}

func TestArrowSchema(t *testing.T) {
	s := plan.Schema{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "price", Type: &arrow.Decimal128Type{Precision: 12, Scale: 2}, Nullable: true},
		{Name: "label", Type: nil, Nullable: true},
	}
	as := ArrowSchema(s)
	require.Equal(t, 3, len(as.Fields()))
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, as.Field(0).Type))
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, as.Field(1).Type))
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, as.Field(2).Type))
	assert.False(t, as.Field(0).Nullable)
	assert.True(t, as.Field(1).Nullable)
}

func TestAppendValue(t *testing.T) {
	build := func(dt arrow.DataType, values ...interface{}) (arrow.Array, error) {
		b := array.NewBuilder(memory.DefaultAllocator, dt)
		defer b.Release()
		for _, v := range values {
			if err := appendValue(b, v); err != nil {
				return nil, err
			}
		}
		return b.NewArray(), nil
	}

	t.Run("integers normalize driver widths", func(t *testing.T) {
		arr, err := build(arrow.PrimitiveTypes.Int64, int64(1), int32(2), []byte("3"), nil)
		require.NoError(t, err)
		defer arr.Release()
		ints := arr.(*array.Int64)
		assert.Equal(t, int64(1), ints.Value(0))
		assert.Equal(t, int64(2), ints.Value(1))
		assert.Equal(t, int64(3), ints.Value(2))
		assert.True(t, ints.IsNull(3))
	})

	t.Run("unsigned values stay in the signed range", func(t *testing.T) {
		arr, err := build(arrow.PrimitiveTypes.Int64, uint64(5))
		require.NoError(t, err)
		defer arr.Release()
		assert.Equal(t, int64(5), arr.(*array.Int64).Value(0))

		_, err = build(arrow.PrimitiveTypes.Int64, uint64(math.MaxInt64)+1)
		assert.Error(t, err)
	})

	t.Run("floats accept byte strings", func(t *testing.T) {
		arr, err := build(arrow.PrimitiveTypes.Float64, 1.5, []byte("2.25"))
		require.NoError(t, err)
		defer arr.Release()
		floats := arr.(*array.Float64)
		assert.Equal(t, 1.5, floats.Value(0))
		assert.Equal(t, 2.25, floats.Value(1))
	})

	t.Run("booleans accept integer flags", func(t *testing.T) {
		arr, err := build(arrow.FixedWidthTypes.Boolean, true, int64(0), int64(7))
		require.NoError(t, err)
		defer arr.Release()
		bools := arr.(*array.Boolean)
		assert.True(t, bools.Value(0))
		assert.False(t, bools.Value(1))
		assert.True(t, bools.Value(2))
	})

	t.Run("strings accept bytes", func(t *testing.T) {
		arr, err := build(arrow.BinaryTypes.String, "a", []byte("b"))
		require.NoError(t, err)
		defer arr.Release()
		strs := arr.(*array.String)
		assert.Equal(t, "a", strs.Value(0))
		assert.Equal(t, "b", strs.Value(1))
	})

	t.Run("dates accept time values and strings", func(t *testing.T) {
		day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
		arr, err := build(arrow.FixedWidthTypes.Date32, day, "2024-03-16")
		require.NoError(t, err)
		defer arr.Release()
		dates := arr.(*array.Date32)
		assert.Equal(t, arrow.Date32FromTime(day), dates.Value(0))
		assert.Equal(t, arrow.Date32FromTime(day.AddDate(0, 0, 1)), dates.Value(1))
	})

	t.Run("timestamps use microseconds", func(t *testing.T) {
		ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
		arr, err := build(arrow.FixedWidthTypes.Timestamp_us, ts)
		require.NoError(t, err)
		defer arr.Release()
		stamps := arr.(*array.Timestamp)
		assert.Equal(t, arrow.Timestamp(ts.UnixMicro()), stamps.Value(0))
	})

	t.Run("mismatched value errors", func(t *testing.T) {
		_, err := build(arrow.PrimitiveTypes.Int64, "not a number at all")
		assert.Error(t, err)
	})
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"datetime", "2024-03-15 10:30:00.123456", true},
		{"rfc3339", "2024-03-15T10:30:00Z", true},
		{"date only", "2024-03-15", true},
		{"garbage", "yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseTime(tt.input)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
