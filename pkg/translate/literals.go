package translate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/sqlfold/pkg/plan"
)

// literal renders a typed constant so the target dialect infers the type the
// source assigned. Integer literals are plain base-10; doubles use exponent
// notation (both profiles type exponent literals as DOUBLE, while a bare
// decimal point would be read as DECIMAL); exact decimals and narrow floats
// go through an explicit cast. Unsupported literal types are not-total.
func (t *Translator) literal(l *plan.Literal) Result {
	if l.Value == nil {
		return Total("NULL")
	}
	if l.Type == nil {
		return Partial()
	}

	switch l.Type.ID() {
	case arrow.BOOL:
		b, ok := l.Value.(bool)
		if !ok {
			return Partial()
		}
		if b {
			return Total("TRUE")
		}
		return Total("FALSE")

	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		n, ok := asInt64(l.Value)
		if !ok {
			return Partial()
		}
		return Total(strconv.FormatInt(n, 10))

	case arrow.FLOAT64:
		f, ok := asFloat64(l.Value)
		if !ok || !isFinite(f) {
			return Partial()
		}
		return Total(formatDouble(f))

	case arrow.FLOAT32:
		f, ok := asFloat64(l.Value)
		if !ok || !isFinite(f) {
			return Partial()
		}
		target, ok2 := t.d.CastType(arrow.PrimitiveTypes.Float32)
		if !ok2 {
			return Partial()
		}
		return Total("CAST(" + formatDouble(f) + " AS " + target + ")")

	case arrow.DECIMAL128:
		s, ok := asDecimalString(l.Value)
		if !ok {
			return Partial()
		}
		target, ok2 := t.d.CastType(l.Type)
		if !ok2 {
			return Partial()
		}
		return Total("CAST(" + t.quoteString(s) + " AS " + target + ")")

	case arrow.STRING:
		s, ok := l.Value.(string)
		if !ok {
			return Partial()
		}
		return Total(t.quoteString(s))

	case arrow.DATE32:
		s, ok := asTemporalString(l.Value, "2006-01-02")
		if !ok {
			return Partial()
		}
		return Total(fmt.Sprintf(t.d.DateFormat, s))

	case arrow.TIMESTAMP:
		s, ok := asTemporalString(l.Value, "2006-01-02 15:04:05.999999")
		if !ok {
			return Partial()
		}
		return Total(fmt.Sprintf(t.d.TimestampFormat, s))

	default:
		return Partial()
	}
}

// quoteString renders a single-quoted string literal with embedded-quote
// escaping per the dialect.
func (t *Translator) quoteString(s string) string {
	if t.d.EscapeBackslash {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// isFinite reports whether f has a SQL literal form. NaN and the infinities
// have no portable spelling, so they stay local.
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// formatDouble renders a float64 in exponent notation.
func formatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	// FormatFloat writes 1e+06; normalize the exponent sign padding away.
	s = strings.Replace(s, "e+0", "e", 1)
	s = strings.Replace(s, "e-0", "e-", 1)
	s = strings.Replace(s, "e+", "e", 1)
	return s
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat64(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int64:
		return float64(f), true
	case int:
		return float64(f), true
	}
	return 0, false
}

func asDecimalString(v interface{}) (string, bool) {
	switch d := v.(type) {
	case string:
		return d, true
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(d, 10), true
	}
	return "", false
}

func asTemporalString(v interface{}, layout string) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case time.Time:
		return x.UTC().Format(layout), true
	}
	return "", false
}
