package pushdown

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sqlfold/pkg/dialect"
	"github.com/TFMV/sqlfold/pkg/errors"
	"github.com/TFMV/sqlfold/pkg/plan"
)

func duckdbSource() plan.Source {
	return plan.Source{Driver: "duckdb", DSN: "md:analytics"}
}

func ordersScan() *plan.Scan {
	return &plan.Scan{
		Table: "orders",
		Fields: plan.Schema{
			{Name: "id", Type: arrow.PrimitiveTypes.Int64},
			{Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
			{Name: "region", Type: arrow.BinaryTypes.String, Nullable: true},
		},
		Source: duckdbSource(),
	}
}

func customersScan(src plan.Source) *plan.Scan {
	return &plan.Scan{
		Table: "customers",
		Fields: plan.Schema{
			{Name: "cust_id", Type: arrow.PrimitiveTypes.Int64},
			{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		},
		Source: src,
	}
}

func eq(left, right plan.Expr) plan.Expr {
	return &plan.Binary{Op: plan.OpEq, Left: left, Right: right}
}

func ref(name string) *plan.Column { return &plan.Column{Name: name} }

func num(n int64) *plan.Literal {
	return &plan.Literal{Value: n, Type: arrow.PrimitiveTypes.Int64}
}

const ordersSQL = `SELECT "orders"."id" AS "id", "orders"."amount" AS "amount", "orders"."region" AS "region" FROM "orders"`

func mustRewrite(t *testing.T, r *Rewriter, root plan.Node) plan.Node {
	t.Helper()
	out, err := r.RewritePlan(root)
	require.NoError(t, err)
	return out
}

func asRemote(t *testing.T, n plan.Node) *plan.Remote {
	t.Helper()
	remote, ok := n.(*plan.Remote)
	require.True(t, ok, "expected a remote relation, got %T", n)
	return remote
}

func TestRewriteScan(t *testing.T) {
	r := NewRewriter(dialect.DuckDB())

	t.Run("scan becomes a remote relation", func(t *testing.T) {
		remote := asRemote(t, mustRewrite(t, r, ordersScan()))
		assert.Equal(t, ordersSQL, remote.SQL)
		assert.Equal(t, []string{"orders"}, remote.Qualifiers)
		assert.Equal(t, plan.ResolveIdentity(duckdbSource()), remote.ID)
		assert.False(t, remote.Ordered)
		assert.False(t, remote.SinglePartition)
		assert.True(t, remote.Schema().Equal(ordersScan().Schema()))
	})

	t.Run("duplicate column names stay local", func(t *testing.T) {
		s := &plan.Scan{
			Table: "dup",
			Fields: plan.Schema{
				{Name: "x", Type: arrow.PrimitiveTypes.Int64},
				{Name: "x", Type: arrow.PrimitiveTypes.Int64},
			},
			Source: duckdbSource(),
		}
		out := mustRewrite(t, r, s)
		assert.Same(t, plan.Node(s), out)
	})
}

func TestRewriteFilter(t *testing.T) {
	r := NewRewriter(dialect.DuckDB())

	t.Run("translatable predicate folds into where", func(t *testing.T) {
		root := &plan.Filter{Predicate: eq(ref("id"), num(1)), Input: ordersScan()}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Equal(t, ordersSQL+` WHERE ("orders"."id" = 1)`, remote.SQL)
	})

	t.Run("stacked filters conjoin", func(t *testing.T) {
		root := &plan.Filter{
			Predicate: eq(ref("region"), &plan.Literal{Value: "west", Type: arrow.BinaryTypes.String}),
			Input:     &plan.Filter{Predicate: eq(ref("id"), num(1)), Input: ordersScan()},
		}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Equal(t, ordersSQL+` WHERE ("orders"."id" = 1) AND ("orders"."region" = 'west')`, remote.SQL)
	})

	t.Run("opaque function leaves the filter local", func(t *testing.T) {
		root := &plan.Filter{
			Predicate: &plan.Func{Name: "host_udf", Args: []plan.Expr{ref("region")}},
			Input:     ordersScan(),
		}
		out := mustRewrite(t, r, root)
		filter, ok := out.(*plan.Filter)
		require.True(t, ok)
		child := asRemote(t, filter.Input)
		assert.Equal(t, ordersSQL, child.SQL)
	})
}

func TestRewriteProject(t *testing.T) {
	r := NewRewriter(dialect.DuckDB())

	t.Run("expressions inline into the select list", func(t *testing.T) {
		root := &plan.Project{
			Columns: []plan.NamedExpr{
				{Name: "id", Expr: ref("id"), Type: arrow.PrimitiveTypes.Int64},
				{
					Name: "doubled",
					Expr: &plan.Binary{Op: plan.OpMul, Left: ref("amount"), Right: num(2)},
					Type: arrow.PrimitiveTypes.Float64,
				},
			},
			Input: ordersScan(),
		}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Equal(t,
			`SELECT "orders"."id" AS "id", ("orders"."amount" * 2) AS "doubled" FROM "orders"`,
			remote.SQL)
		assert.Equal(t, "doubled", remote.Fields[1].Name)
	})

	t.Run("later filters see projected names as fragments", func(t *testing.T) {
		root := &plan.Filter{
			Predicate: &plan.Binary{Op: plan.OpGt, Left: ref("doubled"), Right: num(10)},
			Input: &plan.Project{
				Columns: []plan.NamedExpr{
					{
						Name: "doubled",
						Expr: &plan.Binary{Op: plan.OpMul, Left: ref("amount"), Right: num(2)},
						Type: arrow.PrimitiveTypes.Float64,
					},
				},
				Input: ordersScan(),
			},
		}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Equal(t,
			`SELECT ("orders"."amount" * 2) AS "doubled" FROM "orders" WHERE (("orders"."amount" * 2) > 10)`,
			remote.SQL)
	})

	t.Run("duplicate output names stay local", func(t *testing.T) {
		root := &plan.Project{
			Columns: []plan.NamedExpr{
				{Name: "v", Expr: ref("id"), Type: arrow.PrimitiveTypes.Int64},
				{Name: "v", Expr: ref("amount"), Type: arrow.PrimitiveTypes.Float64},
			},
			Input: ordersScan(),
		}
		_, ok := mustRewrite(t, r, root).(*plan.Project)
		assert.True(t, ok)
	})
}

func TestRewriteAggregate(t *testing.T) {
	r := NewRewriter(dialect.DuckDB())

	agg := func(input plan.Node) *plan.Aggregate {
		return &plan.Aggregate{
			GroupBy: []plan.NamedExpr{{Name: "region", Expr: ref("region"), Type: arrow.BinaryTypes.String}},
			Aggregates: []plan.NamedAgg{
				{Name: "total", Agg: plan.AggFunc{Kind: plan.AggSum, Arg: ref("amount")}, Type: arrow.PrimitiveTypes.Float64},
			},
			Input: input,
		}
	}

	const aggSQL = `SELECT "orders"."region" AS "region", SUM("orders"."amount") AS "total" FROM "orders" GROUP BY "orders"."region"`

	t.Run("group by folds", func(t *testing.T) {
		remote := asRemote(t, mustRewrite(t, r, agg(ordersScan())))
		assert.Equal(t, aggSQL, remote.SQL)
	})

	t.Run("filter above an aggregate wraps it", func(t *testing.T) {
		root := &plan.Filter{
			Predicate: &plan.Binary{Op: plan.OpGt, Left: ref("total"), Right: num(100)},
			Input:     agg(ordersScan()),
		}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Equal(t,
			`SELECT "t0"."region" AS "region", "t0"."total" AS "total" FROM (`+aggSQL+`) AS "t0" WHERE ("t0"."total" > 100)`,
			remote.SQL)
	})

	t.Run("unsupported aggregate kind stays local", func(t *testing.T) {
		root := &plan.Aggregate{
			Aggregates: []plan.NamedAgg{
				{Name: "f", Agg: plan.AggFunc{Kind: plan.AggFirst, Arg: ref("amount")}, Type: arrow.PrimitiveTypes.Float64},
			},
			Input: ordersScan(),
		}
		mysqlRewriter := NewRewriter(dialect.MySQL())
		_, ok := mustRewrite(t, mysqlRewriter, root).(*plan.Aggregate)
		assert.True(t, ok)
	})
}

func TestRewriteSortAndLimit(t *testing.T) {
	r := NewRewriter(dialect.DuckDB())

	sortNode := func(input plan.Node) *plan.Sort {
		// Descending nulls-last is DuckDB's native ordering.
		return &plan.Sort{
			Keys:  []plan.SortKey{{Expr: ref("amount"), Descending: true, NullsFirst: false}},
			Input: input,
		}
	}

	t.Run("sort then limit merge into one statement", func(t *testing.T) {
		root := &plan.Limit{Count: 10, Input: sortNode(ordersScan())}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Equal(t, ordersSQL+` ORDER BY "orders"."amount" DESC LIMIT 10`, remote.SQL)
		assert.True(t, remote.Ordered)
		assert.True(t, remote.SinglePartition)
	})

	t.Run("limit with offset", func(t *testing.T) {
		root := &plan.Limit{Count: 10, Offset: 20, Input: ordersScan()}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Equal(t, ordersSQL+` LIMIT 10 OFFSET 20`, remote.SQL)
	})

	t.Run("filter above a limit wraps it and drops the order hint", func(t *testing.T) {
		root := &plan.Filter{
			Predicate: eq(ref("id"), num(1)),
			Input:     &plan.Limit{Count: 5, Input: ordersScan()},
		}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Equal(t,
			`SELECT "t0"."id" AS "id", "t0"."amount" AS "amount", "t0"."region" AS "region" FROM (`+
				ordersSQL+` LIMIT 5) AS "t0" WHERE ("t0"."id" = 1)`,
			remote.SQL)
		assert.False(t, remote.Ordered)
		assert.True(t, remote.SinglePartition)
	})

	t.Run("non native null ordering stays local", func(t *testing.T) {
		root := &plan.Sort{
			Keys:  []plan.SortKey{{Expr: ref("amount"), Descending: true, NullsFirst: true}},
			Input: ordersScan(),
		}
		out := mustRewrite(t, r, root)
		sort, ok := out.(*plan.Sort)
		require.True(t, ok)
		asRemote(t, sort.Input)
	})

	t.Run("nested wraps allocate distinct aliases", func(t *testing.T) {
		root := &plan.Filter{
			Predicate: eq(ref("id"), num(2)),
			Input: &plan.Limit{
				Count: 3,
				Input: &plan.Filter{
					Predicate: eq(ref("id"), num(1)),
					Input:     &plan.Limit{Count: 5, Input: ordersScan()},
				},
			},
		}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Contains(t, remote.SQL, `AS "t0"`)
		assert.Contains(t, remote.SQL, `AS "t1"`)
	})
}

func TestRewriteJoin(t *testing.T) {
	r := NewRewriter(dialect.DuckDB())

	joinOn := eq(
		&plan.Column{Qualifier: "orders", Name: "id"},
		&plan.Column{Qualifier: "customers", Name: "cust_id"},
	)

	t.Run("same identity inner join pushes", func(t *testing.T) {
		root := &plan.Join{
			Kind:  plan.JoinInner,
			On:    joinOn,
			Left:  ordersScan(),
			Right: customersScan(duckdbSource()),
		}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Equal(t,
			`SELECT "orders"."id" AS "id", "orders"."amount" AS "amount", "orders"."region" AS "region", `+
				`"customers"."cust_id" AS "cust_id", "customers"."name" AS "name" `+
				`FROM "orders" INNER JOIN "customers" ON ("orders"."id" = "customers"."cust_id")`,
			remote.SQL)
		assert.ElementsMatch(t, []string{"orders", "customers"}, remote.Qualifiers)
	})

	t.Run("different identities stay local", func(t *testing.T) {
		other := plan.Source{Driver: "duckdb", DSN: "md:billing"}
		root := &plan.Join{
			Kind:  plan.JoinInner,
			On:    joinOn,
			Left:  ordersScan(),
			Right: customersScan(other),
		}
		out := mustRewrite(t, r, root)
		join, ok := out.(*plan.Join)
		require.True(t, ok)
		asRemote(t, join.Left)
		asRemote(t, join.Right)
	})

	t.Run("unresolvable identity blocks the merge", func(t *testing.T) {
		zero := NewRewriter(dialect.DuckDB(), WithIdentityResolver(func(plan.Source) plan.Identity {
			return plan.Identity{}
		}))
		root := &plan.Join{
			Kind:  plan.JoinInner,
			On:    joinOn,
			Left:  ordersScan(),
			Right: customersScan(duckdbSource()),
		}
		_, ok := mustRewrite(t, zero, root).(*plan.Join)
		assert.True(t, ok)
	})

	t.Run("conditionless inner join renders as cross join", func(t *testing.T) {
		root := &plan.Join{
			Kind:  plan.JoinInner,
			Left:  ordersScan(),
			Right: customersScan(duckdbSource()),
		}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Contains(t, remote.SQL, `"orders" CROSS JOIN "customers"`)
	})

	t.Run("full join pushes only where supported", func(t *testing.T) {
		root := &plan.Join{
			Kind:  plan.JoinFull,
			On:    joinOn,
			Left:  ordersScan(),
			Right: customersScan(duckdbSource()),
		}
		remote := asRemote(t, mustRewrite(t, r, root))
		assert.Contains(t, remote.SQL, "FULL OUTER JOIN")

		mysqlRoot := &plan.Join{
			Kind:  plan.JoinFull,
			On:    joinOn,
			Left:  ordersScan(),
			Right: customersScan(duckdbSource()),
		}
		_, ok := mustRewrite(t, NewRewriter(dialect.MySQL()), mysqlRoot).(*plan.Join)
		assert.True(t, ok)
	})

	t.Run("outer join without a condition stays local", func(t *testing.T) {
		root := &plan.Join{
			Kind:  plan.JoinLeft,
			Left:  ordersScan(),
			Right: customersScan(duckdbSource()),
		}
		_, ok := mustRewrite(t, r, root).(*plan.Join)
		assert.True(t, ok)
	})

	t.Run("self join duplicates names and stays local", func(t *testing.T) {
		root := &plan.Join{
			Kind:  plan.JoinInner,
			On:    eq(&plan.Column{Qualifier: "orders", Name: "id"}, &plan.Column{Qualifier: "orders", Name: "id"}),
			Left:  ordersScan(),
			Right: ordersScan(),
		}
		_, ok := mustRewrite(t, r, root).(*plan.Join)
		assert.True(t, ok)
	})
}

func TestRewriteWindow(t *testing.T) {
	r := NewRewriter(dialect.DuckDB())

	root := &plan.Window{
		Funcs: []plan.NamedWindow{
			{Name: "rn", Fn: plan.WindowFunc{Kind: plan.WindowRowNumber}, Type: arrow.PrimitiveTypes.Int64},
		},
		PartitionBy: []plan.Expr{ref("region")},
		OrderBy:     []plan.SortKey{{Expr: ref("amount"), Descending: true, NullsFirst: false}},
		Input:       ordersScan(),
	}

	remote := asRemote(t, mustRewrite(t, r, root))
	assert.Equal(t,
		`SELECT "orders"."id" AS "id", "orders"."amount" AS "amount", "orders"."region" AS "region", `+
			`ROW_NUMBER() OVER (PARTITION BY "orders"."region" ORDER BY "orders"."amount" DESC) AS "rn" FROM "orders"`,
		remote.SQL)
	assert.Equal(t, "rn", remote.Fields[3].Name)
}

func TestRewriteIdempotent(t *testing.T) {
	r := NewRewriter(dialect.DuckDB())

	t.Run("a pushed plan survives a second pass untouched", func(t *testing.T) {
		first := mustRewrite(t, r, &plan.Filter{Predicate: eq(ref("id"), num(1)), Input: ordersScan()})
		second := mustRewrite(t, r, first)
		assert.Same(t, first, second)
	})

	t.Run("composition over an adopted remote wraps its sql", func(t *testing.T) {
		remote := asRemote(t, mustRewrite(t, r, ordersScan()))
		out := asRemote(t, mustRewrite(t, r, &plan.Limit{Count: 3, Input: remote}))
		assert.Equal(t,
			`SELECT "t0"."id" AS "id", "t0"."amount" AS "amount", "t0"."region" AS "region" FROM (`+
				ordersSQL+`) AS "t0" LIMIT 3`,
			out.SQL)
		assert.True(t, out.SinglePartition)
	})
}

func TestRewriteValidation(t *testing.T) {
	r := NewRewriter(dialect.DuckDB())

	t.Run("unbound column is a contract violation", func(t *testing.T) {
		root := &plan.Filter{Predicate: eq(ref("ghost"), num(1)), Input: ordersScan()}
		_, err := r.RewritePlan(root)
		require.Error(t, err)
		assert.Equal(t, errors.CodeUnboundColumn, errors.GetCode(err))
	})

	t.Run("nil plan is rejected", func(t *testing.T) {
		_, err := r.RewritePlan(nil)
		assert.Error(t, err)
	})
}

// fakeMetrics records counter increments for assertion.
type fakeMetrics struct {
	counters map[string][]string
}

func (f *fakeMetrics) IncrementCounter(name string, labels ...string) {
	if f.counters == nil {
		f.counters = make(map[string][]string)
	}
	f.counters[name] = labels
}

func (f *fakeMetrics) StartTimer(string) Timer { return noopTimer{} }

func TestRewriteMetrics(t *testing.T) {
	fm := &fakeMetrics{}
	r := NewRewriter(dialect.DuckDB(), WithMetrics(fm))

	mustRewrite(t, r, &plan.Filter{Predicate: eq(ref("id"), num(1)), Input: ordersScan()})

	assert.Equal(t, []string{"decision", "fully_pushed"}, fm.counters["pushdown_plans_total"])
	assert.Contains(t, fm.counters, "pushdown_nodes_total")
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "not_pushed", NotPushed.String())
	assert.Equal(t, "partially_pushed", PartiallyPushed.String())
	assert.Equal(t, "fully_pushed", FullyPushed.String())
}
