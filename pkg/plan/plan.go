package plan

// Node is one relational operator in a logical plan tree. The set of
// implementations is closed: Scan, Filter, Project, Aggregate, Sort, Limit,
// Join, Window, and Remote.
type Node interface {
	// Children returns the input relations in order.
	Children() []Node
	// Schema returns the ordered output columns.
	Schema() Schema
}

// Scan reads a table from a remote source. It is the only leaf the host
// supplies; Remote leaves are produced by the rewriter.
type Scan struct {
	Table  string `json:"table"`
	Fields Schema `json:"fields"`
	Source Source `json:"source"`
}

func (s *Scan) Children() []Node { return nil }
func (s *Scan) Schema() Schema   { return s.Fields }

// Filter keeps rows satisfying the predicate.
type Filter struct {
	Predicate Expr `json:"predicate"`
	Input     Node `json:"input"`
}

func (f *Filter) Children() []Node { return []Node{f.Input} }
func (f *Filter) Schema() Schema   { return f.Input.Schema() }

// Project computes the output columns.
type Project struct {
	Columns []NamedExpr `json:"columns"`
	Input   Node        `json:"input"`
}

func (p *Project) Children() []Node { return []Node{p.Input} }

func (p *Project) Schema() Schema {
	out := make(Schema, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.Field()
	}
	return out
}

// Aggregate groups by the grouping expressions and computes aggregates. The
// output schema is the grouping columns followed by the aggregate columns.
type Aggregate struct {
	GroupBy    []NamedExpr `json:"group_by,omitempty"`
	Aggregates []NamedAgg  `json:"aggregates"`
	Input      Node        `json:"input"`
}

func (a *Aggregate) Children() []Node { return []Node{a.Input} }

func (a *Aggregate) Schema() Schema {
	out := make(Schema, 0, len(a.GroupBy)+len(a.Aggregates))
	for _, g := range a.GroupBy {
		out = append(out, g.Field())
	}
	for _, agg := range a.Aggregates {
		out = append(out, Field{Name: agg.Name, Type: agg.Type, Nullable: true})
	}
	return out
}

// Sort orders rows by the keys.
type Sort struct {
	Keys  []SortKey `json:"keys"`
	Input Node      `json:"input"`
}

func (s *Sort) Children() []Node { return []Node{s.Input} }
func (s *Sort) Schema() Schema   { return s.Input.Schema() }

// Limit returns at most Count rows, skipping Offset rows first.
type Limit struct {
	Count  int64 `json:"count"`
	Offset int64 `json:"offset,omitempty"`
	Input  Node  `json:"input"`
}

func (l *Limit) Children() []Node { return []Node{l.Input} }
func (l *Limit) Schema() Schema   { return l.Input.Schema() }

// JoinKind enumerates join types.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinCross JoinKind = "cross"
	JoinLeft  JoinKind = "left_outer"
	JoinRight JoinKind = "right_outer"
	JoinFull  JoinKind = "full_outer"
)

// Join combines two relations. On may be nil for cross joins; outer joins
// require a condition.
type Join struct {
	Kind  JoinKind `json:"kind"`
	On    Expr     `json:"on,omitempty"`
	Left  Node     `json:"left"`
	Right Node     `json:"right"`
}

func (j *Join) Children() []Node { return []Node{j.Left, j.Right} }

func (j *Join) Schema() Schema {
	left := j.Left.Schema()
	right := j.Right.Schema()
	out := make(Schema, 0, len(left)+len(right))
	for _, f := range left {
		if j.Kind == JoinRight || j.Kind == JoinFull {
			f.Nullable = true
		}
		out = append(out, f)
	}
	for _, f := range right {
		if j.Kind == JoinLeft || j.Kind == JoinFull {
			f.Nullable = true
		}
		out = append(out, f)
	}
	return out
}

// Window appends window function columns to the input schema.
type Window struct {
	Funcs       []NamedWindow `json:"funcs"`
	PartitionBy []Expr        `json:"partition_by,omitempty"`
	OrderBy     []SortKey     `json:"order_by,omitempty"`
	Input       Node          `json:"input"`
}

func (w *Window) Children() []Node { return []Node{w.Input} }

func (w *Window) Schema() Schema {
	in := w.Input.Schema()
	out := make(Schema, 0, len(in)+len(w.Funcs))
	out = append(out, in...)
	for _, f := range w.Funcs {
		out = append(out, Field{Name: f.Name, Type: f.Type, Nullable: true})
	}
	return out
}

// Remote is an opaque leaf standing in for a fully-or-partially pushed
// subtree. It carries the generated SQL, the output schema, the connection
// identity used for later compatibility checks, and execution hints for the
// host's physical planner.
type Remote struct {
	SQL    string `json:"sql"`
	Fields Schema `json:"fields"`
	Source Source `json:"source"`
	ID     Identity

	// Qualifiers are the logical relation names whose qualified column
	// references still resolve against this relation.
	Qualifiers []string `json:"qualifiers,omitempty"`

	// Ordered reports that the SQL carries a top-level ORDER BY, so rows
	// arrive ordered when read on a single stream.
	Ordered bool `json:"ordered,omitempty"`

	// SinglePartition reports that the relation must be read as one stream
	// to preserve its semantics (e.g. a pushed LIMIT or ORDER BY).
	SinglePartition bool `json:"single_partition,omitempty"`
}

func (r *Remote) Children() []Node { return nil }
func (r *Remote) Schema() Schema   { return r.Fields }
