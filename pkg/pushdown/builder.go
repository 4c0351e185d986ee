package pushdown

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/sqlfold/pkg/dialect"
	"github.com/TFMV/sqlfold/pkg/plan"
)

// statement is one SQL statement under construction. Matched plan shapes fold
// their clauses onto it; when a clause cannot legally fold (the statement
// already carries a later clause), the statement is wrapped as a derived
// table and composition continues on the wrapper.
type statement struct {
	d       *dialect.Dialect
	scope   *AliasContext
	counter *int

	output plan.Schema
	quals  []string
	source plan.Source
	id     plan.Identity

	// raw holds pre-rendered SQL adopted from an existing remote relation.
	// A raw statement has no clause state; it is wrapped before any merge.
	raw string

	// bareTable marks a statement that is still a plain table reference, so
	// a join can use it in FROM without a derived-table wrapper.
	bareTable bool

	sel     []string
	from    string
	where   []string
	groupBy []string
	orderBy []string
	limit   *int64
	offset  int64

	hasAggregate bool
	hasWindow    bool

	ordered         bool
	singlePartition bool
}

// selItem is one select-list entry extracted by the matcher.
type selItem struct {
	name string
	sql  string
	typ  arrow.DataType
}

// scanStatement starts a statement over a base table.
func scanStatement(d *dialect.Dialect, counter *int, s *plan.Scan, id plan.Identity) (*statement, error) {
	scope := newAliasContext(d, counter)
	if err := scope.AddRelation(s.Table, []string{s.Table}, s.Fields); err != nil {
		return nil, err
	}
	return &statement{
		d:         d,
		scope:     scope,
		counter:   counter,
		output:    s.Fields,
		quals:     []string{s.Table},
		source:    s.Source,
		id:        id,
		bareTable: true,
		from:      d.Quote(s.Table),
	}, nil
}

// remoteStatement adopts an already-pushed relation. Rendering returns its
// SQL verbatim until a merge forces a derived-table wrap, which keeps the
// rewrite idempotent for plans that are already fully pushed.
func remoteStatement(d *dialect.Dialect, counter *int, r *plan.Remote) *statement {
	return &statement{
		d:               d,
		scope:           newAliasContext(d, counter),
		counter:         counter,
		output:          r.Fields,
		quals:           r.Qualifiers,
		source:          r.Source,
		id:              r.ID,
		raw:             r.SQL,
		ordered:         r.Ordered,
		singlePartition: r.SinglePartition,
	}
}

// clone copies the statement so a failed merge leaves the original intact.
// The scope is shared: merges that change bindings install a fresh scope
// rather than mutating the old one.
func (st *statement) clone() *statement {
	c := *st
	c.quals = append([]string(nil), st.quals...)
	c.sel = append([]string(nil), st.sel...)
	c.where = append([]string(nil), st.where...)
	c.groupBy = append([]string(nil), st.groupBy...)
	c.orderBy = append([]string(nil), st.orderBy...)
	if st.limit != nil {
		n := *st.limit
		c.limit = &n
	}
	return &c
}

// wrap renders the statement and restarts it as SELECT over a derived table.
// Ordering inside a derived table is not preserved, so the ordered hint is
// dropped; a pushed LIMIT still pins the relation to a single stream.
func (st *statement) wrap() error {
	sql := st.render()
	alias := st.scope.NextAlias()

	scope := newAliasContext(st.d, st.counter)
	if err := scope.AddRelation(alias, st.quals, st.output); err != nil {
		return err
	}

	st.scope = scope
	st.raw = ""
	st.bareTable = false
	st.sel = nil
	st.from = "(" + sql + ") AS " + st.d.Quote(alias)
	st.where = nil
	st.groupBy = nil
	st.orderBy = nil
	st.limit = nil
	st.offset = 0
	st.hasAggregate = false
	st.hasWindow = false
	st.ordered = false
	return nil
}

func (st *statement) wrapIf(cond bool) error {
	if cond || st.raw != "" {
		return st.wrap()
	}
	return nil
}

// addFilter appends a conjunct to WHERE. Callers wrap first when the
// statement already aggregates, windows, orders, or limits.
func (st *statement) addFilter(sql string) {
	st.bareTable = false
	st.where = append(st.where, sql)
}

// project replaces the select list and rebinds the scope so later clauses
// resolve output names to their defining fragments.
func (st *statement) project(items []selItem) {
	st.bareTable = false
	st.sel = make([]string, len(items))
	scope := newAliasContext(st.d, st.counter)
	out := make(plan.Schema, len(items))
	for i, it := range items {
		st.sel[i] = it.sql + " AS " + st.d.Quote(it.name)
		scope.BindExpr(it.name, it.sql, it.typ, st.quals)
		out[i] = plan.Field{Name: it.name, Type: it.typ, Nullable: true}
	}
	st.scope = scope
	st.output = out
}

// aggregate installs GROUP BY plus an aggregate select list.
func (st *statement) aggregate(groups, aggs []selItem) {
	st.bareTable = false
	st.hasAggregate = true
	st.groupBy = make([]string, len(groups))
	for i, g := range groups {
		st.groupBy[i] = g.sql
	}
	st.project(append(append([]selItem(nil), groups...), aggs...))
}

// sort installs ORDER BY. An ordered result must be read on one stream.
func (st *statement) sort(keys []string) {
	st.bareTable = false
	st.orderBy = keys
	st.ordered = true
	st.singlePartition = true
}

// limitTo installs LIMIT/OFFSET.
func (st *statement) limitTo(count, offset int64) {
	st.bareTable = false
	st.limit = &count
	st.offset = offset
	st.singlePartition = true
}

// window appends window columns to the select list. Existing bindings stay
// valid; only the new names are bound.
func (st *statement) window(items []selItem) {
	st.bareTable = false
	st.hasWindow = true
	if st.sel == nil {
		st.sel = st.defaultSelect()
	}
	for _, it := range items {
		st.sel = append(st.sel, it.sql+" AS "+st.d.Quote(it.name))
		st.scope.BindExpr(it.name, it.sql, it.typ, st.quals)
		st.output = append(st.output, plan.Field{Name: it.name, Type: it.typ, Nullable: true})
	}
}

// joinStatements composes two statements into one FROM clause. Bare tables
// join directly; anything else becomes a derived table with a fresh alias.
// The join condition is translated afterwards against the merged scope and
// attached with on.
func joinStatements(kind plan.JoinKind, left, right *statement, output plan.Schema) (*statement, error) {
	scope := newAliasContext(left.d, left.counter)

	leftRef, err := joinSide(scope, left, right)
	if err != nil {
		return nil, err
	}
	rightRef, err := joinSide(scope, right, left)
	if err != nil {
		return nil, err
	}

	return &statement{
		d:               left.d,
		scope:           scope,
		counter:         left.counter,
		output:          output,
		quals:           append(append([]string(nil), left.quals...), right.quals...),
		source:          left.source,
		id:              left.id,
		from:            leftRef + " " + joinSQL(kind) + " " + rightRef,
		singlePartition: left.singlePartition || right.singlePartition,
	}, nil
}

// joinSide registers one side's columns in the merged scope and returns its
// FROM rendering. A bare table whose name collides with the other side gets
// wrapped so the statement never repeats an unaliased relation.
func joinSide(scope *AliasContext, side, other *statement) (string, error) {
	if side.bareTable && side.quals[0] != firstQual(other) {
		if err := scope.AddRelation(side.quals[0], side.quals, side.output); err != nil {
			return "", err
		}
		return side.from, nil
	}
	sql := side.render()
	alias := scope.NextAlias()
	if err := scope.AddRelation(alias, side.quals, side.output); err != nil {
		return "", err
	}
	return "(" + sql + ") AS " + side.d.Quote(alias), nil
}

func firstQual(st *statement) string {
	if len(st.quals) == 0 {
		return ""
	}
	return st.quals[0]
}

// on attaches the translated join condition.
func (st *statement) on(cond string) {
	st.from += " ON " + cond
}

func joinSQL(kind plan.JoinKind) string {
	switch kind {
	case plan.JoinCross:
		return "CROSS JOIN"
	case plan.JoinLeft:
		return "LEFT OUTER JOIN"
	case plan.JoinRight:
		return "RIGHT OUTER JOIN"
	case plan.JoinFull:
		return "FULL OUTER JOIN"
	default:
		return "INNER JOIN"
	}
}

// defaultSelect renders every output column as ref AS name.
func (st *statement) defaultSelect() []string {
	items := make([]string, len(st.output))
	for i, f := range st.output {
		ref, ok := st.scope.ResolveColumn("", f.Name)
		if !ok {
			// Unambiguous by construction; fall back to the bare name.
			ref = st.d.Quote(f.Name)
		}
		items[i] = ref + " AS " + st.d.Quote(f.Name)
	}
	return items
}

// render emits the statement's SQL text.
func (st *statement) render() string {
	if st.raw != "" {
		return st.raw
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	sel := st.sel
	if sel == nil {
		sel = st.defaultSelect()
	}
	b.WriteString(strings.Join(sel, ", "))

	b.WriteString(" FROM ")
	b.WriteString(st.from)

	if len(st.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(st.where, " AND "))
	}
	if len(st.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(st.groupBy, ", "))
	}
	if len(st.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(st.orderBy, ", "))
	}
	if st.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatInt(*st.limit, 10))
		if st.offset > 0 {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.FormatInt(st.offset, 10))
		}
	}
	return b.String()
}

// remote freezes the statement into an opaque relation node.
func (st *statement) remote() *plan.Remote {
	return &plan.Remote{
		SQL:             st.render(),
		Fields:          st.output,
		Source:          st.source,
		ID:              st.id,
		Qualifiers:      st.quals,
		Ordered:         st.ordered,
		SinglePartition: st.singlePartition,
	}
}
