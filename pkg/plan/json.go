package plan

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// Plans cross the CLI boundary as JSON documents. Every node carries an "op"
// discriminator and every expression an "expr" discriminator; arrow types are
// spelled with TypeName.

type fieldJSON struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

type exprJSON struct {
	Expr      string            `json:"expr"`
	Value     interface{}       `json:"value,omitempty"`
	Type      string            `json:"type,omitempty"`
	Qualifier string            `json:"qualifier,omitempty"`
	Name      string            `json:"name,omitempty"`
	Op        string            `json:"op,omitempty"`
	Left      *exprJSON         `json:"left,omitempty"`
	Right     *exprJSON         `json:"right,omitempty"`
	Input     *exprJSON         `json:"input,omitempty"`
	Args      []*exprJSON       `json:"args,omitempty"`
	IsNull    bool              `json:"is_null,omitempty"`
}

type sortKeyJSON struct {
	Expr       *exprJSON `json:"expr"`
	Descending bool      `json:"descending,omitempty"`
	NullsFirst bool      `json:"nulls_first,omitempty"`
}

type namedExprJSON struct {
	Name string    `json:"name"`
	Type string    `json:"type"`
	Expr *exprJSON `json:"expr"`
}

type aggJSON struct {
	Kind     string    `json:"kind"`
	Arg      *exprJSON `json:"arg,omitempty"`
	Distinct bool      `json:"distinct,omitempty"`
}

type namedAggJSON struct {
	Name string  `json:"name"`
	Type string  `json:"type"`
	Agg  aggJSON `json:"agg"`
}

type windowFnJSON struct {
	Kind string      `json:"kind"`
	Args []*exprJSON `json:"args,omitempty"`
}

type namedWindowJSON struct {
	Name string       `json:"name"`
	Type string       `json:"type"`
	Fn   windowFnJSON `json:"fn"`
}

type nodeJSON struct {
	Op string `json:"op"`

	Table  string      `json:"table,omitempty"`
	Fields []fieldJSON `json:"fields,omitempty"`
	Source *Source     `json:"source,omitempty"`

	Predicate *exprJSON         `json:"predicate,omitempty"`
	Columns   []namedExprJSON   `json:"columns,omitempty"`
	GroupBy   []namedExprJSON   `json:"group_by,omitempty"`
	Aggs      []namedAggJSON    `json:"aggregates,omitempty"`
	Keys      []sortKeyJSON     `json:"keys,omitempty"`
	Count     int64             `json:"count,omitempty"`
	Offset    int64             `json:"offset,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	On        *exprJSON         `json:"on,omitempty"`
	Funcs     []namedWindowJSON `json:"funcs,omitempty"`
	Partition []*exprJSON       `json:"partition_by,omitempty"`
	OrderBy   []sortKeyJSON     `json:"order_by,omitempty"`

	SQL             string   `json:"sql,omitempty"`
	Qualifiers      []string `json:"qualifiers,omitempty"`
	Ordered         bool     `json:"ordered,omitempty"`
	SinglePartition bool     `json:"single_partition,omitempty"`

	Input *nodeJSON `json:"input,omitempty"`
	Left  *nodeJSON `json:"left,omitempty"`
	Right *nodeJSON `json:"right,omitempty"`
}

// MarshalNode encodes a plan tree as JSON.
func MarshalNode(n Node) ([]byte, error) {
	enc, err := encodeNode(n)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(enc, "", "  ")
}

// UnmarshalNode decodes a plan tree from JSON.
func UnmarshalNode(data []byte) (Node, error) {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return decodeNode(&raw)
}

func encodeFields(s Schema) []fieldJSON {
	out := make([]fieldJSON, len(s))
	for i, f := range s {
		out[i] = fieldJSON{Name: f.Name, Type: TypeName(f.Type), Nullable: f.Nullable}
	}
	return out
}

func decodeFields(fs []fieldJSON) (Schema, error) {
	out := make(Schema, len(fs))
	for i, f := range fs {
		dt, err := TypeFromName(f.Type)
		if err != nil {
			return nil, err
		}
		out[i] = Field{Name: f.Name, Type: dt, Nullable: f.Nullable}
	}
	return out, nil
}

func encodeExpr(e Expr) (*exprJSON, error) {
	if e == nil {
		return nil, nil
	}
	switch t := e.(type) {
	case *Literal:
		out := &exprJSON{Expr: "literal", Value: t.Value, Type: TypeName(t.Type)}
		if t.Value == nil {
			out.IsNull = true
		}
		return out, nil
	case *Column:
		return &exprJSON{Expr: "column", Qualifier: t.Qualifier, Name: t.Name}, nil
	case *Binary:
		l, err := encodeExpr(t.Left)
		if err != nil {
			return nil, err
		}
		r, err := encodeExpr(t.Right)
		if err != nil {
			return nil, err
		}
		return &exprJSON{Expr: "binary", Op: string(t.Op), Left: l, Right: r}, nil
	case *Unary:
		in, err := encodeExpr(t.Input)
		if err != nil {
			return nil, err
		}
		return &exprJSON{Expr: "unary", Op: string(t.Op), Input: in}, nil
	case *Func:
		args, err := encodeExprs(t.Args)
		if err != nil {
			return nil, err
		}
		return &exprJSON{Expr: "func", Name: t.Name, Args: args}, nil
	case *Cast:
		in, err := encodeExpr(t.Input)
		if err != nil {
			return nil, err
		}
		return &exprJSON{Expr: "cast", Input: in, Type: TypeName(t.To)}, nil
	default:
		return nil, fmt.Errorf("unknown expression %T", e)
	}
}

func encodeExprs(es []Expr) ([]*exprJSON, error) {
	out := make([]*exprJSON, len(es))
	for i, e := range es {
		enc, err := encodeExpr(e)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

func decodeExpr(raw *exprJSON) (Expr, error) {
	if raw == nil {
		return nil, nil
	}
	switch raw.Expr {
	case "literal":
		dt, err := TypeFromName(raw.Type)
		if err != nil {
			return nil, err
		}
		if raw.IsNull || raw.Value == nil {
			return &Literal{Value: nil, Type: dt}, nil
		}
		return &Literal{Value: coerceLiteral(raw.Value, dt), Type: dt}, nil
	case "column":
		return &Column{Qualifier: raw.Qualifier, Name: raw.Name}, nil
	case "binary":
		l, err := decodeExpr(raw.Left)
		if err != nil {
			return nil, err
		}
		r, err := decodeExpr(raw.Right)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: BinaryOp(raw.Op), Left: l, Right: r}, nil
	case "unary":
		in, err := decodeExpr(raw.Input)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: UnaryOp(raw.Op), Input: in}, nil
	case "func":
		args, err := decodeExprs(raw.Args)
		if err != nil {
			return nil, err
		}
		return &Func{Name: raw.Name, Args: args}, nil
	case "cast":
		in, err := decodeExpr(raw.Input)
		if err != nil {
			return nil, err
		}
		dt, err := TypeFromName(raw.Type)
		if err != nil {
			return nil, err
		}
		return &Cast{Input: in, To: dt}, nil
	default:
		return nil, fmt.Errorf("unknown expression kind %q", raw.Expr)
	}
}

func decodeExprs(raws []*exprJSON) ([]Expr, error) {
	if raws == nil {
		return nil, nil
	}
	out := make([]Expr, len(raws))
	for i, raw := range raws {
		e, err := decodeExpr(raw)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// coerceLiteral narrows encoding/json's generic decoding (numbers become
// float64) to the value shape the declared type expects.
func coerceLiteral(v interface{}, dt arrow.DataType) interface{} {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		if f == math.Trunc(f) {
			return int64(f)
		}
	}
	return f
}

func encodeSortKeys(keys []SortKey) ([]sortKeyJSON, error) {
	out := make([]sortKeyJSON, len(keys))
	for i, k := range keys {
		e, err := encodeExpr(k.Expr)
		if err != nil {
			return nil, err
		}
		out[i] = sortKeyJSON{Expr: e, Descending: k.Descending, NullsFirst: k.NullsFirst}
	}
	return out, nil
}

func decodeSortKeys(raws []sortKeyJSON) ([]SortKey, error) {
	out := make([]SortKey, len(raws))
	for i, raw := range raws {
		e, err := decodeExpr(raw.Expr)
		if err != nil {
			return nil, err
		}
		out[i] = SortKey{Expr: e, Descending: raw.Descending, NullsFirst: raw.NullsFirst}
	}
	return out, nil
}

func encodeNamedExprs(nes []NamedExpr) ([]namedExprJSON, error) {
	out := make([]namedExprJSON, len(nes))
	for i, ne := range nes {
		e, err := encodeExpr(ne.Expr)
		if err != nil {
			return nil, err
		}
		out[i] = namedExprJSON{Name: ne.Name, Type: TypeName(ne.Type), Expr: e}
	}
	return out, nil
}

func decodeNamedExprs(raws []namedExprJSON) ([]NamedExpr, error) {
	if raws == nil {
		return nil, nil
	}
	out := make([]NamedExpr, len(raws))
	for i, raw := range raws {
		e, err := decodeExpr(raw.Expr)
		if err != nil {
			return nil, err
		}
		dt, err := TypeFromName(raw.Type)
		if err != nil {
			return nil, err
		}
		out[i] = NamedExpr{Name: raw.Name, Type: dt, Expr: e}
	}
	return out, nil
}

func encodeNode(n Node) (*nodeJSON, error) {
	switch t := n.(type) {
	case *Scan:
		src := t.Source
		return &nodeJSON{Op: "scan", Table: t.Table, Fields: encodeFields(t.Fields), Source: &src}, nil
	case *Filter:
		pred, err := encodeExpr(t.Predicate)
		if err != nil {
			return nil, err
		}
		in, err := encodeNode(t.Input)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "filter", Predicate: pred, Input: in}, nil
	case *Project:
		cols, err := encodeNamedExprs(t.Columns)
		if err != nil {
			return nil, err
		}
		in, err := encodeNode(t.Input)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "project", Columns: cols, Input: in}, nil
	case *Aggregate:
		groups, err := encodeNamedExprs(t.GroupBy)
		if err != nil {
			return nil, err
		}
		aggs := make([]namedAggJSON, len(t.Aggregates))
		for i, a := range t.Aggregates {
			arg, err := encodeExpr(a.Agg.Arg)
			if err != nil {
				return nil, err
			}
			aggs[i] = namedAggJSON{
				Name: a.Name,
				Type: TypeName(a.Type),
				Agg:  aggJSON{Kind: string(a.Agg.Kind), Arg: arg, Distinct: a.Agg.Distinct},
			}
		}
		in, err := encodeNode(t.Input)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "aggregate", GroupBy: groups, Aggs: aggs, Input: in}, nil
	case *Sort:
		keys, err := encodeSortKeys(t.Keys)
		if err != nil {
			return nil, err
		}
		in, err := encodeNode(t.Input)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "sort", Keys: keys, Input: in}, nil
	case *Limit:
		in, err := encodeNode(t.Input)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "limit", Count: t.Count, Offset: t.Offset, Input: in}, nil
	case *Join:
		on, err := encodeExpr(t.On)
		if err != nil {
			return nil, err
		}
		left, err := encodeNode(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := encodeNode(t.Right)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "join", Kind: string(t.Kind), On: on, Left: left, Right: right}, nil
	case *Window:
		funcs := make([]namedWindowJSON, len(t.Funcs))
		for i, f := range t.Funcs {
			args, err := encodeExprs(f.Fn.Args)
			if err != nil {
				return nil, err
			}
			funcs[i] = namedWindowJSON{
				Name: f.Name,
				Type: TypeName(f.Type),
				Fn:   windowFnJSON{Kind: string(f.Fn.Kind), Args: args},
			}
		}
		parts, err := encodeExprs(t.PartitionBy)
		if err != nil {
			return nil, err
		}
		orderBy, err := encodeSortKeys(t.OrderBy)
		if err != nil {
			return nil, err
		}
		in, err := encodeNode(t.Input)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "window", Funcs: funcs, Partition: parts, OrderBy: orderBy, Input: in}, nil
	case *Remote:
		src := t.Source
		return &nodeJSON{
			Op:              "remote",
			SQL:             t.SQL,
			Fields:          encodeFields(t.Fields),
			Source:          &src,
			Qualifiers:      t.Qualifiers,
			Ordered:         t.Ordered,
			SinglePartition: t.SinglePartition,
		}, nil
	default:
		return nil, fmt.Errorf("unknown plan node %T", n)
	}
}

func decodeNode(raw *nodeJSON) (Node, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing plan node")
	}
	switch raw.Op {
	case "scan":
		fields, err := decodeFields(raw.Fields)
		if err != nil {
			return nil, err
		}
		var src Source
		if raw.Source != nil {
			src = *raw.Source
		}
		return &Scan{Table: raw.Table, Fields: fields, Source: src}, nil
	case "filter":
		pred, err := decodeExpr(raw.Predicate)
		if err != nil {
			return nil, err
		}
		in, err := decodeNode(raw.Input)
		if err != nil {
			return nil, err
		}
		return &Filter{Predicate: pred, Input: in}, nil
	case "project":
		cols, err := decodeNamedExprs(raw.Columns)
		if err != nil {
			return nil, err
		}
		in, err := decodeNode(raw.Input)
		if err != nil {
			return nil, err
		}
		return &Project{Columns: cols, Input: in}, nil
	case "aggregate":
		groups, err := decodeNamedExprs(raw.GroupBy)
		if err != nil {
			return nil, err
		}
		aggs := make([]NamedAgg, len(raw.Aggs))
		for i, a := range raw.Aggs {
			arg, err := decodeExpr(a.Agg.Arg)
			if err != nil {
				return nil, err
			}
			dt, err := TypeFromName(a.Type)
			if err != nil {
				return nil, err
			}
			aggs[i] = NamedAgg{
				Name: a.Name,
				Type: dt,
				Agg:  AggFunc{Kind: AggKind(a.Agg.Kind), Arg: arg, Distinct: a.Agg.Distinct},
			}
		}
		in, err := decodeNode(raw.Input)
		if err != nil {
			return nil, err
		}
		return &Aggregate{GroupBy: groups, Aggregates: aggs, Input: in}, nil
	case "sort":
		keys, err := decodeSortKeys(raw.Keys)
		if err != nil {
			return nil, err
		}
		in, err := decodeNode(raw.Input)
		if err != nil {
			return nil, err
		}
		return &Sort{Keys: keys, Input: in}, nil
	case "limit":
		in, err := decodeNode(raw.Input)
		if err != nil {
			return nil, err
		}
		return &Limit{Count: raw.Count, Offset: raw.Offset, Input: in}, nil
	case "join":
		on, err := decodeExpr(raw.On)
		if err != nil {
			return nil, err
		}
		left, err := decodeNode(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeNode(raw.Right)
		if err != nil {
			return nil, err
		}
		return &Join{Kind: JoinKind(raw.Kind), On: on, Left: left, Right: right}, nil
	case "window":
		funcs := make([]NamedWindow, len(raw.Funcs))
		for i, f := range raw.Funcs {
			args, err := decodeExprs(f.Fn.Args)
			if err != nil {
				return nil, err
			}
			dt, err := TypeFromName(f.Type)
			if err != nil {
				return nil, err
			}
			funcs[i] = NamedWindow{
				Name: f.Name,
				Type: dt,
				Fn:   WindowFunc{Kind: WindowKind(f.Fn.Kind), Args: args},
			}
		}
		parts, err := decodeExprs(raw.Partition)
		if err != nil {
			return nil, err
		}
		orderBy, err := decodeSortKeys(raw.OrderBy)
		if err != nil {
			return nil, err
		}
		in, err := decodeNode(raw.Input)
		if err != nil {
			return nil, err
		}
		return &Window{Funcs: funcs, PartitionBy: parts, OrderBy: orderBy, Input: in}, nil
	case "remote":
		fields, err := decodeFields(raw.Fields)
		if err != nil {
			return nil, err
		}
		var src Source
		if raw.Source != nil {
			src = *raw.Source
		}
		return &Remote{
			SQL:             raw.SQL,
			Fields:          fields,
			Source:          src,
			ID:              ResolveIdentity(src),
			Qualifiers:      raw.Qualifiers,
			Ordered:         raw.Ordered,
			SinglePartition: raw.SinglePartition,
		}, nil
	default:
		return nil, fmt.Errorf("unknown plan op %q", raw.Op)
	}
}
