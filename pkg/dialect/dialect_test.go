package dialect

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sqlfold/pkg/errors"
	"github.com/TFMV/sqlfold/pkg/plan"
)

func TestGet(t *testing.T) {
	t.Run("registered names resolve", func(t *testing.T) {
		for _, name := range Names() {
			d, err := Get(name)
			require.NoError(t, err)
			assert.Equal(t, name, d.Name)
		}
	})

	t.Run("lookup is case insensitive", func(t *testing.T) {
		d, err := Get("MySQL")
		require.NoError(t, err)
		assert.Equal(t, "mysql", d.Name)
	})

	t.Run("unknown dialect", func(t *testing.T) {
		_, err := Get("oracle")
		require.Error(t, err)
		assert.Equal(t, errors.CodeUnknownDialect, errors.GetCode(err))
	})
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name     string
		dialect  *Dialect
		ident    string
		expected string
	}{
		{"mysql plain", MySQL(), "orders", "`orders`"},
		{"mysql embedded backtick", MySQL(), "we`ird", "`we``ird`"},
		{"duckdb plain", DuckDB(), "orders", `"orders"`},
		{"duckdb embedded quote", DuckDB(), `we"ird`, `"we""ird"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.Quote(tt.ident))
		})
	}
}

func TestFunctionLookup(t *testing.T) {
	d := MySQL()

	t.Run("case insensitive", func(t *testing.T) {
		rule, ok := d.Function("UPPER")
		require.True(t, ok)
		assert.Equal(t, 1, rule.MinArgs)
	})

	t.Run("unknown function is opaque", func(t *testing.T) {
		_, ok := d.Function("host_udf")
		assert.False(t, ok)
	})

	t.Run("renamed target", func(t *testing.T) {
		rule, ok := d.Function("day")
		require.True(t, ok)
		assert.Equal(t, "DAYOFMONTH", rule.Target)
	})
}

func TestCastType(t *testing.T) {
	t.Run("decimal carries precision and scale", func(t *testing.T) {
		d := DuckDB()
		name, ok := d.CastType(&arrow.Decimal128Type{Precision: 12, Scale: 2})
		require.True(t, ok)
		assert.Equal(t, "DECIMAL(12,2)", name)
	})

	t.Run("mysql integer family collapses to signed", func(t *testing.T) {
		d := MySQL()
		name, ok := d.CastType(arrow.PrimitiveTypes.Int32)
		require.True(t, ok)
		assert.Equal(t, "SIGNED", name)
	})

	t.Run("unsupported target type", func(t *testing.T) {
		d := MySQL()
		_, ok := d.CastType(arrow.FixedWidthTypes.Time32ms)
		assert.False(t, ok)
	})
}

func TestCastAllowed(t *testing.T) {
	mysql := MySQL()
	duckdb := DuckDB()

	tests := []struct {
		name    string
		d       *Dialect
		from    arrow.DataType
		to      arrow.DataType
		allowed bool
	}{
		{"numeric widening", mysql, arrow.PrimitiveTypes.Int32, arrow.PrimitiveTypes.Float64, true},
		{"numeric to string", mysql, arrow.PrimitiveTypes.Int64, arrow.BinaryTypes.String, true},
		{"string to timestamp", mysql, arrow.BinaryTypes.String, arrow.FixedWidthTypes.Timestamp_us, true},
		{"string to bool only on duckdb", duckdb, arrow.BinaryTypes.String, arrow.FixedWidthTypes.Boolean, true},
		{"mysql string to bool", mysql, arrow.BinaryTypes.String, arrow.FixedWidthTypes.Boolean, false},
		{"date to numeric", mysql, arrow.FixedWidthTypes.Date32, arrow.PrimitiveTypes.Int64, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.d.CastAllowed(tt.from, tt.to))
		})
	}

	t.Run("nil types refuse", func(t *testing.T) {
		assert.False(t, mysql.CastAllowed(nil, arrow.PrimitiveTypes.Int64))
		assert.False(t, mysql.CastAllowed(arrow.PrimitiveTypes.Int64, nil))
	})
}

func TestNativeNullsFirst(t *testing.T) {
	t.Run("mysql sorts nulls smallest", func(t *testing.T) {
		d := MySQL()
		assert.True(t, d.NativeNullsFirst(false))
		assert.False(t, d.NativeNullsFirst(true))
	})

	t.Run("duckdb sorts nulls last both ways", func(t *testing.T) {
		// Matches the engine default since 0.8: a bare ORDER BY places
		// nulls last whether the key is ascending or descending.
		d := DuckDB()
		assert.False(t, d.NativeNullsFirst(false))
		assert.False(t, d.NativeNullsFirst(true))
	})
}

func TestFullJoinSupport(t *testing.T) {
	assert.False(t, MySQL().SupportsFullJoin)
	assert.True(t, DuckDB().SupportsFullJoin)
}

func TestSha2Validate(t *testing.T) {
	arg := func(n int64) []plan.Expr {
		return []plan.Expr{
			&plan.Column{Name: "payload"},
			&plan.Literal{Value: n, Type: arrow.PrimitiveTypes.Int64},
		}
	}

	t.Run("mysql accepts standard widths", func(t *testing.T) {
		rule, ok := MySQL().Function("sha2")
		require.True(t, ok)
		for _, n := range []int64{0, 256, 512} {
			assert.True(t, rule.Validate(arg(n)), "width %d", n)
		}
		for _, n := range []int64{224, 384, 1} {
			assert.False(t, rule.Validate(arg(n)), "width %d", n)
		}
	})

	t.Run("duckdb accepts only 256", func(t *testing.T) {
		rule, ok := DuckDB().Function("sha2")
		require.True(t, ok)
		assert.True(t, rule.Validate(arg(256)))
		assert.False(t, rule.Validate(arg(512)))
	})

	t.Run("duckdb renders as sha256", func(t *testing.T) {
		rule, _ := DuckDB().Function("sha2")
		require.NotNil(t, rule.Render)
		assert.Equal(t, "SHA256(`payload`)", rule.Render([]string{"`payload`", "256"}))
	})

	t.Run("non literal width rejected", func(t *testing.T) {
		rule, _ := MySQL().Function("sha2")
		args := []plan.Expr{&plan.Column{Name: "payload"}, &plan.Column{Name: "width"}}
		assert.False(t, rule.Validate(args))
	})
}

func TestConvValidate(t *testing.T) {
	rule, ok := MySQL().Function("conv")
	require.True(t, ok)

	args := func(from, to int64) []plan.Expr {
		return []plan.Expr{
			&plan.Column{Name: "n"},
			&plan.Literal{Value: from, Type: arrow.PrimitiveTypes.Int64},
			&plan.Literal{Value: to, Type: arrow.PrimitiveTypes.Int64},
		}
	}

	assert.True(t, rule.Validate(args(10, 16)))
	assert.True(t, rule.Validate(args(2, 36)))
	assert.True(t, rule.Validate(args(10, -16)))
	assert.False(t, rule.Validate(args(1, 16)))
	assert.False(t, rule.Validate(args(10, 37)))
}
