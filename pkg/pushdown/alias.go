// Package pushdown rewrites logical plans bottom-up, replacing maximal
// pushable subtrees with remote relations that carry generated SQL. Every
// decision is node-local: a node is judged against its already-rewritten
// children, so one post-order pass suffices and no backtracking occurs.
package pushdown

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/sqlfold/pkg/dialect"
	"github.com/TFMV/sqlfold/pkg/errors"
	"github.com/TFMV/sqlfold/pkg/plan"
)

// AliasContext maps logical column identities to the SQL identifiers that
// denote them inside one statement's lexical scope. Two distinct logical
// columns never share a rendering, and the same logical column always renders
// the same way within one statement. Contexts are scoped to a single rewrite
// invocation; the derived-table counter is shared across the statements of
// that invocation so aliases stay unique even after composition.
type AliasContext struct {
	d       *dialect.Dialect
	counter *int
	entries map[string][]scopeEntry
	aliases map[string]struct{}
}

// scopeEntry is one resolvable binding for a column name. Qualifiers hold the
// logical relation names under which a qualified reference still resolves.
type scopeEntry struct {
	qualifiers map[string]struct{}
	ref        string
	typ        arrow.DataType
}

func newAliasContext(d *dialect.Dialect, counter *int) *AliasContext {
	return &AliasContext{
		d:       d,
		counter: counter,
		entries: make(map[string][]scopeEntry),
		aliases: make(map[string]struct{}),
	}
}

// NextAlias allocates a derived-table alias unique within the rewrite
// invocation.
func (a *AliasContext) NextAlias() string {
	alias := "t" + strconv.Itoa(*a.counter)
	*a.counter++
	return alias
}

// AddRelation registers a relation's columns under the given SQL alias. The
// qualifiers are the logical names the relation still answers to. Registering
// the same alias twice in one scope is a contract violation.
func (a *AliasContext) AddRelation(alias string, qualifiers []string, schema plan.Schema) error {
	if _, taken := a.aliases[alias]; taken {
		return errors.Newf(errors.CodeAliasConflict, "relation alias %q already bound in this scope", alias)
	}
	a.aliases[alias] = struct{}{}

	quals := make(map[string]struct{}, len(qualifiers))
	for _, q := range qualifiers {
		quals[q] = struct{}{}
	}
	for _, f := range schema {
		a.entries[f.Name] = append(a.entries[f.Name], scopeEntry{
			qualifiers: quals,
			ref:        a.d.Quote(alias) + "." + a.d.Quote(f.Name),
			typ:        f.Type,
		})
	}
	return nil
}

// BindExpr binds an output column name directly to a rendered expression
// fragment, as after a projection folds into the statement.
func (a *AliasContext) BindExpr(name, sql string, typ arrow.DataType, qualifiers []string) {
	quals := make(map[string]struct{}, len(qualifiers))
	for _, q := range qualifiers {
		quals[q] = struct{}{}
	}
	a.entries[name] = append(a.entries[name], scopeEntry{qualifiers: quals, ref: sql, typ: typ})
}

func (a *AliasContext) lookup(qualifier, name string) (scopeEntry, bool) {
	candidates := a.entries[name]
	if qualifier == "" {
		// An unqualified reference must be unambiguous.
		if len(candidates) != 1 {
			return scopeEntry{}, false
		}
		return candidates[0], true
	}
	var found scopeEntry
	matches := 0
	for _, e := range candidates {
		if _, ok := e.qualifiers[qualifier]; ok {
			found = e
			matches++
		}
	}
	if matches != 1 {
		return scopeEntry{}, false
	}
	return found, true
}

// ResolveColumn implements translate.Scope.
func (a *AliasContext) ResolveColumn(qualifier, name string) (string, bool) {
	e, ok := a.lookup(qualifier, name)
	if !ok {
		return "", false
	}
	return e.ref, true
}

// ColumnType implements translate.Scope.
func (a *AliasContext) ColumnType(qualifier, name string) (arrow.DataType, bool) {
	e, ok := a.lookup(qualifier, name)
	if !ok || e.typ == nil {
		return nil, false
	}
	return e.typ, true
}
