// Package dialect holds the capability tables that parameterize translation
// for a target SQL dialect. A dialect is data: function rules, cast pairs,
// literal formats, and null-ordering defaults. Adding a target database
// version means adding a table, not code branches.
package dialect

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/sqlfold/pkg/plan"
)

// FunctionRule describes how one source function maps onto the target
// dialect. A function without a rule is host-opaque and untranslatable.
type FunctionRule struct {
	// Target is the function name emitted; empty means the source name.
	Target string

	// MinArgs/MaxArgs bound the accepted arity; MaxArgs -1 means variadic.
	MinArgs int
	MaxArgs int

	// FoldableArgs lists argument positions that must be literal constants
	// at translation time (e.g. round's scale, substring_index's count).
	FoldableArgs []int

	// Validate rejects concrete argument values the target cannot express
	// (e.g. unsupported digest lengths). nil means no value restriction.
	Validate func(args []plan.Expr) bool

	// Nondeterministic marks functions whose results differ per evaluation;
	// they only translate when the dialect opts in.
	Nondeterministic bool

	// Render overrides the default Target(arg, ...) rendering.
	Render func(args []string) string
}

// WindowRule describes a supported window function kind.
type WindowRule struct {
	Target       string
	MinArgs      int
	MaxArgs      int
	FoldableArgs []int
}

// CastPair keys the supported-cast table by arrow type IDs.
type CastPair struct {
	From arrow.Type
	To   arrow.Type
}

// Dialect is the capability profile of a target database.
type Dialect struct {
	Name string

	// Identifier quoting.
	QuoteChar string

	// EscapeBackslash doubles backslashes inside string literals in
	// addition to doubling the quote character.
	EscapeBackslash bool

	// Literal syntax for temporal values; %s receives the ISO rendering.
	DateFormat      string
	TimestampFormat string

	Functions   map[string]FunctionRule
	Aggregates  map[plan.AggKind]string
	WindowFuncs map[plan.WindowKind]WindowRule

	// CastPairs enumerates the (source type, target type) casts the dialect
	// can express; CastTypes names the target types in CAST syntax.
	CastPairs map[CastPair]struct{}
	CastTypes map[arrow.Type]string

	// SupportsFullJoin reports FULL OUTER JOIN support.
	SupportsFullJoin bool

	// Native null position per sort direction. Only a sort whose null
	// ordering matches the native default for its direction can be pushed,
	// because the profile assumes no NULLS FIRST/LAST clause support.
	AscNullsFirst  bool
	DescNullsFirst bool

	// PushNondeterministic permits pushing non-deterministic functions.
	// Off by default: recomputation would not be result-stable.
	PushNondeterministic bool
}

// Quote renders an identifier with the dialect's quoting, doubling any
// embedded quote characters.
func (d *Dialect) Quote(ident string) string {
	return d.QuoteChar + strings.ReplaceAll(ident, d.QuoteChar, d.QuoteChar+d.QuoteChar) + d.QuoteChar
}

// Function looks up the rule for a source function name, case-insensitively.
func (d *Dialect) Function(name string) (FunctionRule, bool) {
	rule, ok := d.Functions[strings.ToLower(name)]
	return rule, ok
}

// CastType renders the CAST target type name for an arrow type.
func (d *Dialect) CastType(to arrow.DataType) (string, bool) {
	if dec, ok := to.(*arrow.Decimal128Type); ok {
		base, ok := d.CastTypes[arrow.DECIMAL128]
		if !ok {
			return "", false
		}
		return base + "(" + strconv.Itoa(int(dec.Precision)) + "," + strconv.Itoa(int(dec.Scale)) + ")", true
	}
	name, ok := d.CastTypes[to.ID()]
	return name, ok
}

// CastAllowed reports whether the dialect has a syntactic equivalent for the
// (from, to) cast. Behavioral divergence (overflow, rounding) is a documented
// caveat, not a reason to refuse.
func (d *Dialect) CastAllowed(from, to arrow.DataType) bool {
	if from == nil || to == nil {
		return false
	}
	_, ok := d.CastPairs[CastPair{From: from.ID(), To: to.ID()}]
	return ok
}

// NativeNullsFirst returns the native null position for a direction.
func (d *Dialect) NativeNullsFirst(descending bool) bool {
	if descending {
		return d.DescNullsFirst
	}
	return d.AscNullsFirst
}

// castMatrix builds the cross product of from×to into a pair set.
func castMatrix(pairs map[CastPair]struct{}, froms, tos []arrow.Type) map[CastPair]struct{} {
	if pairs == nil {
		pairs = make(map[CastPair]struct{})
	}
	for _, f := range froms {
		for _, t := range tos {
			pairs[CastPair{From: f, To: t}] = struct{}{}
		}
	}
	return pairs
}

var numericTypes = []arrow.Type{
	arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
	arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128,
}
