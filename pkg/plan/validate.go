package plan

import (
	"github.com/TFMV/sqlfold/pkg/errors"
)

// Validate checks the caller contract: every column reference in the tree
// must resolve to a column of the referencing node's input schema. A failure
// here is an upstream planner bug, not a pushdown fallback.
func Validate(root Node) error {
	if root == nil {
		return errors.ErrEmptyPlan
	}
	return validateNode(root)
}

func validateNode(n Node) error {
	for _, c := range n.Children() {
		if c == nil {
			return errors.Newf(errors.CodeInvalidPlan, "%T has a nil child", n)
		}
		if err := validateNode(c); err != nil {
			return err
		}
	}

	visible := childScope(n)

	check := func(e Expr) error {
		var bad *Column
		WalkExpr(e, func(x Expr) bool {
			if col, ok := x.(*Column); ok && !visible.resolves(col) {
				bad = col
				return false
			}
			return true
		})
		if bad != nil {
			return errors.Newf(errors.CodeUnboundColumn, "column %s not visible below %T", bad, n)
		}
		return nil
	}

	switch t := n.(type) {
	case *Scan, *Remote:
		return nil
	case *Filter:
		return check(t.Predicate)
	case *Project:
		for _, c := range t.Columns {
			if err := check(c.Expr); err != nil {
				return err
			}
		}
	case *Aggregate:
		for _, g := range t.GroupBy {
			if err := check(g.Expr); err != nil {
				return err
			}
		}
		for _, a := range t.Aggregates {
			if a.Agg.Arg != nil {
				if err := check(a.Agg.Arg); err != nil {
					return err
				}
			}
		}
	case *Sort:
		for _, k := range t.Keys {
			if err := check(k.Expr); err != nil {
				return err
			}
		}
	case *Limit:
		if t.Count < 0 || t.Offset < 0 {
			return errors.Newf(errors.CodeInvalidPlan, "negative limit %d offset %d", t.Count, t.Offset)
		}
	case *Join:
		if t.On != nil {
			return check(t.On)
		}
	case *Window:
		for _, f := range t.Funcs {
			for _, a := range f.Fn.Args {
				if err := check(a); err != nil {
					return err
				}
			}
		}
		for _, p := range t.PartitionBy {
			if err := check(p); err != nil {
				return err
			}
		}
		for _, k := range t.OrderBy {
			if err := check(k.Expr); err != nil {
				return err
			}
		}
	default:
		return errors.Newf(errors.CodeInvalidPlan, "unknown plan node %T", n)
	}
	return nil
}

// nameScope is the set of (qualifier, name) pairs visible to a node's
// expressions.
type nameScope struct {
	names map[string]struct{}
	quals map[string]struct{}
}

func (s nameScope) resolves(col *Column) bool {
	if _, ok := s.names[col.Name]; !ok {
		return false
	}
	if col.Qualifier == "" {
		return true
	}
	_, ok := s.quals[col.Qualifier]
	return ok
}

func childScope(n Node) nameScope {
	s := nameScope{names: map[string]struct{}{}, quals: map[string]struct{}{}}
	for _, c := range n.Children() {
		for _, f := range c.Schema() {
			s.names[f.Name] = struct{}{}
		}
		for _, q := range Qualifiers(c) {
			s.quals[q] = struct{}{}
		}
	}
	return s
}

// Qualifiers returns the logical relation names a subtree answers to when
// resolving qualified column references.
func Qualifiers(n Node) []string {
	switch t := n.(type) {
	case *Scan:
		return []string{t.Table}
	case *Remote:
		return t.Qualifiers
	case *Join:
		return append(Qualifiers(t.Left), Qualifiers(t.Right)...)
	default:
		children := n.Children()
		if len(children) == 1 {
			return Qualifiers(children[0])
		}
		return nil
	}
}
