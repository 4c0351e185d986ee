// Package translate converts scalar expressions into SQL fragments for a
// target dialect. Translation never fails hard: anything the dialect cannot
// express comes back not-total, and the caller degrades to partial pushdown.
package translate

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/sqlfold/pkg/dialect"
	"github.com/TFMV/sqlfold/pkg/plan"
)

// Scope resolves a logical column reference to the SQL identifier that
// denotes it inside the statement under construction.
type Scope interface {
	// ResolveColumn returns the SQL rendering for a column, or ok=false if
	// the column is not visible (or not unambiguous) in this scope.
	ResolveColumn(qualifier, name string) (string, bool)

	// ColumnType returns the column's type when known to the scope.
	ColumnType(qualifier, name string) (arrow.DataType, bool)
}

// sourceType statically determines an expression's type where the plan
// carries one: literals, column references, and casts.
func sourceType(e plan.Expr, scope Scope) arrow.DataType {
	switch x := e.(type) {
	case *plan.Literal:
		return x.Type
	case *plan.Column:
		if dt, ok := scope.ColumnType(x.Qualifier, x.Name); ok {
			return dt
		}
	case *plan.Cast:
		return x.To
	}
	return nil
}

// Result pairs a generated SQL fragment with the total-translation flag.
// A not-total result poisons every enclosing expression.
type Result struct {
	SQL   string
	Total bool
}

// Total wraps a fragment that translated completely.
func Total(sql string) Result {
	return Result{SQL: sql, Total: true}
}

// Partial is the not-total sentinel.
func Partial() Result {
	return Result{}
}

// Translator renders expressions for one dialect profile. It is stateless
// and safe for concurrent use.
type Translator struct {
	d *dialect.Dialect
}

// New creates a translator for the given dialect.
func New(d *dialect.Dialect) *Translator {
	return &Translator{d: d}
}

// Dialect returns the profile this translator renders for.
func (t *Translator) Dialect() *dialect.Dialect {
	return t.d
}

var binaryOps = map[plan.BinaryOp]string{
	plan.OpAdd: "+", plan.OpSub: "-", plan.OpMul: "*", plan.OpDiv: "/", plan.OpMod: "%",
	plan.OpEq: "=", plan.OpNeq: "<>", plan.OpLt: "<", plan.OpLte: "<=",
	plan.OpGt: ">", plan.OpGte: ">=",
	plan.OpAnd: "AND", plan.OpOr: "OR", plan.OpLike: "LIKE",
}

// Translate renders one expression against the given scope. Operands are
// always parenthesized: the source precedence table is never assumed to
// match the target's.
func (t *Translator) Translate(e plan.Expr, scope Scope) Result {
	switch x := e.(type) {
	case *plan.Literal:
		return t.literal(x)

	case *plan.Column:
		ref, ok := scope.ResolveColumn(x.Qualifier, x.Name)
		if !ok {
			return Partial()
		}
		return Total(ref)

	case *plan.Binary:
		op, ok := binaryOps[x.Op]
		if !ok {
			return Partial()
		}
		left := t.Translate(x.Left, scope)
		if !left.Total {
			return Partial()
		}
		right := t.Translate(x.Right, scope)
		if !right.Total {
			return Partial()
		}
		return Total("(" + left.SQL + " " + op + " " + right.SQL + ")")

	case *plan.Unary:
		in := t.Translate(x.Input, scope)
		if !in.Total {
			return Partial()
		}
		switch x.Op {
		case plan.OpNot:
			return Total("(NOT " + in.SQL + ")")
		case plan.OpNeg:
			return Total("(-" + in.SQL + ")")
		case plan.OpIsNull:
			return Total("(" + in.SQL + " IS NULL)")
		case plan.OpIsNotNull:
			return Total("(" + in.SQL + " IS NOT NULL)")
		default:
			return Partial()
		}

	case *plan.Func:
		return t.function(x, scope)

	case *plan.Cast:
		in := t.Translate(x.Input, scope)
		if !in.Total {
			return Partial()
		}
		// The cast-pair table is enforced when the source type is statically
		// known; otherwise only the target spelling gates translation.
		if from := sourceType(x.Input, scope); from != nil && !t.d.CastAllowed(from, x.To) {
			return Partial()
		}
		target, ok := t.d.CastType(x.To)
		if !ok {
			return Partial()
		}
		return Total("CAST(" + in.SQL + " AS " + target + ")")

	default:
		// Host-opaque expression kind.
		return Partial()
	}
}

// function applies a dialect rule: arity bounds, foldable-argument
// positions, value-domain restrictions, then rendering. A missing rule means
// the function is host-opaque for this dialect.
func (t *Translator) function(f *plan.Func, scope Scope) Result {
	rule, ok := t.d.Function(f.Name)
	if !ok {
		return Partial()
	}
	if len(f.Args) < rule.MinArgs {
		return Partial()
	}
	if rule.MaxArgs >= 0 && len(f.Args) > rule.MaxArgs {
		return Partial()
	}
	for _, pos := range rule.FoldableArgs {
		if pos >= len(f.Args) {
			continue
		}
		if _, isLit := f.Args[pos].(*plan.Literal); !isLit {
			return Partial()
		}
	}
	if rule.Validate != nil && !rule.Validate(f.Args) {
		return Partial()
	}
	if rule.Nondeterministic && !t.d.PushNondeterministic {
		return Partial()
	}

	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		r := t.Translate(a, scope)
		if !r.Total {
			return Partial()
		}
		args[i] = r.SQL
	}

	if rule.Render != nil {
		return Total(rule.Render(args))
	}
	name := rule.Target
	if name == "" {
		name = strings.ToUpper(f.Name)
	}
	return Total(name + "(" + strings.Join(args, ", ") + ")")
}

// TranslateAggregate renders an aggregate function application.
func (t *Translator) TranslateAggregate(a plan.AggFunc, scope Scope) Result {
	name, ok := t.d.Aggregates[a.Kind]
	if !ok {
		return Partial()
	}
	if a.Arg == nil {
		// Only a plain COUNT(*) has a nil-argument form.
		if a.Kind != plan.AggCount || a.Distinct {
			return Partial()
		}
		return Total(name + "(*)")
	}
	arg := t.Translate(a.Arg, scope)
	if !arg.Total {
		return Partial()
	}
	if a.Distinct {
		return Total(name + "(DISTINCT " + arg.SQL + ")")
	}
	return Total(name + "(" + arg.SQL + ")")
}

// TranslateSortKey renders one ORDER BY entry. Only the dialect's native
// null position for the key's direction can be expressed, so any other null
// ordering is not-total.
func (t *Translator) TranslateSortKey(k plan.SortKey, scope Scope) Result {
	if k.NullsFirst != t.d.NativeNullsFirst(k.Descending) {
		return Partial()
	}
	expr := t.Translate(k.Expr, scope)
	if !expr.Total {
		return Partial()
	}
	if k.Descending {
		return Total(expr.SQL + " DESC")
	}
	return Total(expr.SQL + " ASC")
}

// TranslateWindow renders fn(args) OVER (PARTITION BY ... ORDER BY ...).
func (t *Translator) TranslateWindow(f plan.WindowFunc, partition []plan.Expr, order []plan.SortKey, scope Scope) Result {
	rule, ok := t.d.WindowFuncs[f.Kind]
	if !ok {
		return Partial()
	}
	if len(f.Args) < rule.MinArgs || len(f.Args) > rule.MaxArgs {
		return Partial()
	}
	for _, pos := range rule.FoldableArgs {
		if pos >= len(f.Args) {
			continue
		}
		if _, isLit := f.Args[pos].(*plan.Literal); !isLit {
			return Partial()
		}
	}

	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		r := t.Translate(a, scope)
		if !r.Total {
			return Partial()
		}
		args[i] = r.SQL
	}

	var spec []string
	if len(partition) > 0 {
		parts := make([]string, len(partition))
		for i, p := range partition {
			r := t.Translate(p, scope)
			if !r.Total {
				return Partial()
			}
			parts[i] = r.SQL
		}
		spec = append(spec, "PARTITION BY "+strings.Join(parts, ", "))
	}
	if len(order) > 0 {
		keys := make([]string, len(order))
		for i, k := range order {
			r := t.TranslateSortKey(k, scope)
			if !r.Total {
				return Partial()
			}
			keys[i] = r.SQL
		}
		spec = append(spec, "ORDER BY "+strings.Join(keys, ", "))
	}

	return Total(rule.Target + "(" + strings.Join(args, ", ") + ") OVER (" + strings.Join(spec, " ") + ")")
}
