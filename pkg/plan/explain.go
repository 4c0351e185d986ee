package plan

import (
	"fmt"
	"strings"
)

// Explain renders the plan tree as an indented, human-readable outline.
func Explain(n Node) string {
	var b strings.Builder
	explainNode(&b, n, 0)
	return b.String()
}

func explainNode(b *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	switch t := n.(type) {
	case *Scan:
		fmt.Fprintf(b, "Scan %s %s\n", t.Table, t.Fields)
	case *Filter:
		fmt.Fprintf(b, "Filter %s\n", t.Predicate)
	case *Project:
		names := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			names[i] = fmt.Sprintf("%s AS %s", c.Expr, c.Name)
		}
		fmt.Fprintf(b, "Project [%s]\n", strings.Join(names, ", "))
	case *Aggregate:
		groups := make([]string, len(t.GroupBy))
		for i, g := range t.GroupBy {
			groups[i] = g.Expr.String()
		}
		aggs := make([]string, len(t.Aggregates))
		for i, a := range t.Aggregates {
			aggs[i] = fmt.Sprintf("%s AS %s", a.Agg, a.Name)
		}
		fmt.Fprintf(b, "Aggregate group=[%s] aggs=[%s]\n", strings.Join(groups, ", "), strings.Join(aggs, ", "))
	case *Sort:
		keys := make([]string, len(t.Keys))
		for i, k := range t.Keys {
			keys[i] = k.String()
		}
		fmt.Fprintf(b, "Sort [%s]\n", strings.Join(keys, ", "))
	case *Limit:
		if t.Offset > 0 {
			fmt.Fprintf(b, "Limit %d offset %d\n", t.Count, t.Offset)
		} else {
			fmt.Fprintf(b, "Limit %d\n", t.Count)
		}
	case *Join:
		cond := "<none>"
		if t.On != nil {
			cond = t.On.String()
		}
		fmt.Fprintf(b, "Join %s on %s\n", t.Kind, cond)
	case *Window:
		funcs := make([]string, len(t.Funcs))
		for i, f := range t.Funcs {
			funcs[i] = fmt.Sprintf("%s AS %s", f.Fn, f.Name)
		}
		fmt.Fprintf(b, "Window [%s]\n", strings.Join(funcs, ", "))
	case *Remote:
		flags := ""
		if t.Ordered {
			flags += " ordered"
		}
		if t.SinglePartition {
			flags += " single-partition"
		}
		fmt.Fprintf(b, "Remote(%s)%s: %s\n", t.ID, flags, t.SQL)
	default:
		fmt.Fprintf(b, "%T\n", n)
	}
	for _, c := range n.Children() {
		explainNode(b, c, depth+1)
	}
}
