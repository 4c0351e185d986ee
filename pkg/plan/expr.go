package plan

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Expr is a scalar expression node. The set of implementations is closed:
// Literal, Column, Binary, Unary, Func, and Cast. All implementations are
// pointer types so Expr values are comparable.
type Expr interface {
	fmt.Stringer
	exprNode()
}

// Literal is a typed constant. A nil Value is the SQL NULL.
type Literal struct {
	Value interface{}    `json:"value"`
	Type  arrow.DataType `json:"-"`
}

// Column references a column of the input relation, optionally qualified by
// the logical relation name it came from.
type Column struct {
	Qualifier string `json:"qualifier,omitempty"`
	Name      string `json:"name"`
}

// BinaryOp identifies a binary operator. Values are the source-side operator
// spellings; the translator owns the dialect rendering.
type BinaryOp string

const (
	OpAdd  BinaryOp = "+"
	OpSub  BinaryOp = "-"
	OpMul  BinaryOp = "*"
	OpDiv  BinaryOp = "/"
	OpMod  BinaryOp = "%"
	OpEq   BinaryOp = "="
	OpNeq  BinaryOp = "<>"
	OpLt   BinaryOp = "<"
	OpLte  BinaryOp = "<="
	OpGt   BinaryOp = ">"
	OpGte  BinaryOp = ">="
	OpAnd  BinaryOp = "AND"
	OpOr   BinaryOp = "OR"
	OpLike BinaryOp = "LIKE"
)

// Binary applies a binary operator to two operands.
type Binary struct {
	Op    BinaryOp `json:"op"`
	Left  Expr     `json:"left"`
	Right Expr     `json:"right"`
}

// UnaryOp identifies a unary operator.
type UnaryOp string

const (
	OpNot       UnaryOp = "NOT"
	OpNeg       UnaryOp = "-"
	OpIsNull    UnaryOp = "IS NULL"
	OpIsNotNull UnaryOp = "IS NOT NULL"
)

// Unary applies a unary operator to one operand.
type Unary struct {
	Op    UnaryOp `json:"op"`
	Input Expr    `json:"input"`
}

// Func applies a named scalar function. Functions without a dialect rule are
// host-opaque and untranslatable.
type Func struct {
	Name string `json:"name"`
	Args []Expr `json:"args,omitempty"`
}

// Cast converts its input to the given type.
type Cast struct {
	Input Expr           `json:"input"`
	To    arrow.DataType `json:"-"`
}

func (*Literal) exprNode() {}
func (*Column) exprNode()  {}
func (*Binary) exprNode()  {}
func (*Unary) exprNode()   {}
func (*Func) exprNode()    {}
func (*Cast) exprNode()    {}

func (l *Literal) String() string {
	if l.Value == nil {
		return "null"
	}
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", l.Value)
}

func (c *Column) String() string {
	if c.Qualifier != "" {
		return c.Qualifier + "." + c.Name
	}
	return c.Name
}

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

func (u *Unary) String() string {
	switch u.Op {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("(%s %s)", u.Input, u.Op)
	default:
		return fmt.Sprintf("(%s %s)", u.Op, u.Input)
	}
}

func (f *Func) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
}

func (c *Cast) String() string {
	return fmt.Sprintf("cast(%s as %s)", c.Input, TypeName(c.To))
}

// NamedExpr is an expression with an output column name and type. Output
// types are assigned by the host planner; the rewriter never infers them.
type NamedExpr struct {
	Name string         `json:"name"`
	Expr Expr           `json:"expr"`
	Type arrow.DataType `json:"-"`
}

// Field returns the schema field this expression produces.
func (n NamedExpr) Field() Field {
	return Field{Name: n.Name, Type: n.Type, Nullable: true}
}

// AggKind enumerates supported aggregate function kinds.
type AggKind string

const (
	AggSum        AggKind = "sum"
	AggCount      AggKind = "count"
	AggAvg        AggKind = "avg"
	AggMin        AggKind = "min"
	AggMax        AggKind = "max"
	AggFirst      AggKind = "first"
	AggLast       AggKind = "last"
	AggVarPop     AggKind = "var_pop"
	AggVarSamp    AggKind = "var_samp"
	AggStddevPop  AggKind = "stddev_pop"
	AggStddevSamp AggKind = "stddev_samp"
)

// AggFunc is an aggregate function application. A nil Arg with AggCount is
// count(*).
type AggFunc struct {
	Kind     AggKind `json:"kind"`
	Arg      Expr    `json:"arg,omitempty"`
	Distinct bool    `json:"distinct,omitempty"`
}

func (a AggFunc) String() string {
	arg := "*"
	if a.Arg != nil {
		arg = a.Arg.String()
	}
	if a.Distinct {
		return fmt.Sprintf("%s(distinct %s)", a.Kind, arg)
	}
	return fmt.Sprintf("%s(%s)", a.Kind, arg)
}

// NamedAgg is an aggregate output with its column name and host-assigned type.
type NamedAgg struct {
	Name string         `json:"name"`
	Agg  AggFunc        `json:"agg"`
	Type arrow.DataType `json:"-"`
}

// WindowKind enumerates supported window function kinds.
type WindowKind string

const (
	WindowRank        WindowKind = "rank"
	WindowDenseRank   WindowKind = "dense_rank"
	WindowRowNumber   WindowKind = "row_number"
	WindowNtile       WindowKind = "ntile"
	WindowPercentRank WindowKind = "percent_rank"
	WindowLag         WindowKind = "lag"
	WindowLead        WindowKind = "lead"
)

// WindowFunc is a window function application. Args feed ntile/lag/lead.
type WindowFunc struct {
	Kind WindowKind `json:"kind"`
	Args []Expr     `json:"args,omitempty"`
}

func (w WindowFunc) String() string {
	args := make([]string, len(w.Args))
	for i, a := range w.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", w.Kind, strings.Join(args, ", "))
}

// NamedWindow is a window output column.
type NamedWindow struct {
	Name string         `json:"name"`
	Fn   WindowFunc     `json:"fn"`
	Type arrow.DataType `json:"-"`
}

// SortKey orders rows by an expression. NullsFirst is always explicit; the
// host's defaults are resolved before the plan reaches the rewriter.
type SortKey struct {
	Expr       Expr `json:"expr"`
	Descending bool `json:"descending,omitempty"`
	NullsFirst bool `json:"nulls_first,omitempty"`
}

func (k SortKey) String() string {
	dir := "asc"
	if k.Descending {
		dir = "desc"
	}
	nulls := "nulls last"
	if k.NullsFirst {
		nulls = "nulls first"
	}
	return fmt.Sprintf("%s %s %s", k.Expr, dir, nulls)
}

// WalkExpr visits e and every descendant expression in pre-order. The walk
// stops early when fn returns false.
func WalkExpr(e Expr, fn func(Expr) bool) bool {
	if e == nil {
		return true
	}
	if !fn(e) {
		return false
	}
	switch t := e.(type) {
	case *Binary:
		return WalkExpr(t.Left, fn) && WalkExpr(t.Right, fn)
	case *Unary:
		return WalkExpr(t.Input, fn)
	case *Func:
		for _, a := range t.Args {
			if !WalkExpr(a, fn) {
				return false
			}
		}
	case *Cast:
		return WalkExpr(t.Input, fn)
	}
	return true
}
