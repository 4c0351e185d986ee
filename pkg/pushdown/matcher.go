package pushdown

import (
	"github.com/TFMV/sqlfold/pkg/dialect"
	"github.com/TFMV/sqlfold/pkg/plan"
	"github.com/TFMV/sqlfold/pkg/translate"
)

// Matcher decides whether a plan node, given its children's statements, can
// fold into remote SQL. Every method returns ok=false for anything the
// dialect cannot express; errors are reserved for scope-invariant violations.
type Matcher struct {
	d *dialect.Dialect
	t *translate.Translator
}

// NewMatcher creates a matcher for the dialect.
func NewMatcher(d *dialect.Dialect) *Matcher {
	return &Matcher{d: d, t: translate.New(d)}
}

// Filter folds a predicate into WHERE. A statement that already aggregates,
// windows, orders, or limits is wrapped first so the predicate applies to
// the finished rows.
func (m *Matcher) Filter(f *plan.Filter, child *statement) (*statement, bool, error) {
	st := child.clone()
	if err := st.wrapIf(st.hasAggregate || st.hasWindow || len(st.orderBy) > 0 || st.limit != nil); err != nil {
		return nil, false, err
	}
	r := m.t.Translate(f.Predicate, st.scope)
	if !r.Total {
		return nil, false, nil
	}
	st.addFilter(r.SQL)
	return st, true, nil
}

// Project folds output expressions into the select list. Duplicate output
// names cannot survive composition into a derived table, so they reject the
// shape outright.
func (m *Matcher) Project(p *plan.Project, child *statement) (*statement, bool, error) {
	if p.Schema().HasDuplicateNames() {
		return nil, false, nil
	}
	st := child.clone()
	if err := st.wrapIf(false); err != nil {
		return nil, false, err
	}
	items := make([]selItem, len(p.Columns))
	for i, c := range p.Columns {
		r := m.t.Translate(c.Expr, st.scope)
		if !r.Total {
			return nil, false, nil
		}
		items[i] = selItem{name: c.Name, sql: r.SQL, typ: c.Type}
	}
	st.project(items)
	return st, true, nil
}

// Aggregate folds grouping keys and aggregate calls into GROUP BY plus the
// select list.
func (m *Matcher) Aggregate(a *plan.Aggregate, child *statement) (*statement, bool, error) {
	if a.Schema().HasDuplicateNames() {
		return nil, false, nil
	}
	st := child.clone()
	if err := st.wrapIf(st.hasAggregate || st.hasWindow || len(st.orderBy) > 0 || st.limit != nil); err != nil {
		return nil, false, err
	}

	groups := make([]selItem, len(a.GroupBy))
	for i, g := range a.GroupBy {
		r := m.t.Translate(g.Expr, st.scope)
		if !r.Total {
			return nil, false, nil
		}
		groups[i] = selItem{name: g.Name, sql: r.SQL, typ: g.Type}
	}
	aggs := make([]selItem, len(a.Aggregates))
	for i, agg := range a.Aggregates {
		r := m.t.TranslateAggregate(agg.Agg, st.scope)
		if !r.Total {
			return nil, false, nil
		}
		aggs[i] = selItem{name: agg.Name, sql: r.SQL, typ: agg.Type}
	}
	st.aggregate(groups, aggs)
	return st, true, nil
}

// Sort folds sort keys into ORDER BY. Keys whose null ordering differs from
// the dialect's native default reject the shape inside the translator.
func (m *Matcher) Sort(s *plan.Sort, child *statement) (*statement, bool, error) {
	st := child.clone()
	if err := st.wrapIf(len(st.orderBy) > 0 || st.limit != nil); err != nil {
		return nil, false, err
	}
	keys := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		r := m.t.TranslateSortKey(k, st.scope)
		if !r.Total {
			return nil, false, nil
		}
		keys[i] = r.SQL
	}
	st.sort(keys)
	return st, true, nil
}

// Limit folds LIMIT/OFFSET. A second limit wraps the first rather than
// arithmetically composing with it.
func (m *Matcher) Limit(l *plan.Limit, child *statement) (*statement, bool, error) {
	st := child.clone()
	if err := st.wrapIf(st.limit != nil); err != nil {
		return nil, false, err
	}
	st.limitTo(l.Count, l.Offset)
	return st, true, nil
}

// Join composes two pushed relations. Both sides must resolve to the same
// connection identity; an identity mismatch blocks the composition no matter
// how translatable the condition is. Outer joins without a condition are
// ambiguous and rejected.
func (m *Matcher) Join(j *plan.Join, left, right *statement) (*statement, bool, error) {
	switch j.Kind {
	case plan.JoinInner, plan.JoinLeft, plan.JoinRight:
	case plan.JoinFull:
		if !m.d.SupportsFullJoin {
			return nil, false, nil
		}
	case plan.JoinCross:
		if j.On != nil {
			return nil, false, nil
		}
	default:
		return nil, false, nil
	}
	if j.Kind != plan.JoinInner && j.Kind != plan.JoinCross && j.On == nil {
		return nil, false, nil
	}
	if left.id.Zero() || right.id.Zero() || left.id != right.id {
		return nil, false, nil
	}

	output := j.Schema()
	if output.HasDuplicateNames() {
		return nil, false, nil
	}

	kind := j.Kind
	if kind == plan.JoinInner && j.On == nil {
		// A conditionless inner join is a cross product.
		kind = plan.JoinCross
	}
	st, err := joinStatements(kind, left.clone(), right.clone(), output)
	if err != nil {
		return nil, false, err
	}
	if j.On != nil {
		r := m.t.Translate(j.On, st.scope)
		if !r.Total {
			return nil, false, nil
		}
		st.on(r.SQL)
	}
	return st, true, nil
}

// Window appends window function columns.
func (m *Matcher) Window(w *plan.Window, child *statement) (*statement, bool, error) {
	if w.Schema().HasDuplicateNames() {
		return nil, false, nil
	}
	st := child.clone()
	if err := st.wrapIf(st.limit != nil); err != nil {
		return nil, false, err
	}
	items := make([]selItem, len(w.Funcs))
	for i, f := range w.Funcs {
		r := m.t.TranslateWindow(f.Fn, w.PartitionBy, w.OrderBy, st.scope)
		if !r.Total {
			return nil, false, nil
		}
		items[i] = selItem{name: f.Name, sql: r.SQL, typ: f.Type}
	}
	st.window(items)
	return st, true, nil
}
