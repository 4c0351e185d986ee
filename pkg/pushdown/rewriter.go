package pushdown

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/TFMV/sqlfold/pkg/dialect"
	"github.com/TFMV/sqlfold/pkg/errors"
	"github.com/TFMV/sqlfold/pkg/plan"
)

// Decision is the terminal pushdown state of one node.
type Decision int

const (
	// NotPushed leaves the node local over local children.
	NotPushed Decision = iota
	// PartiallyPushed leaves the node local over at least one remote child.
	PartiallyPushed
	// FullyPushed replaces the node's subtree with a remote relation.
	FullyPushed
)

func (d Decision) String() string {
	switch d {
	case FullyPushed:
		return "fully_pushed"
	case PartiallyPushed:
		return "partially_pushed"
	default:
		return "not_pushed"
	}
}

// MetricsCollector is the subset of metrics collection the rewriter uses.
type MetricsCollector interface {
	IncrementCounter(name string, labels ...string)
	StartTimer(name string) Timer
}

// Timer measures a duration in seconds.
type Timer interface {
	Stop() float64
}

type noopMetrics struct{}

func (noopMetrics) IncrementCounter(string, ...string) {}
func (noopMetrics) StartTimer(string) Timer            { return noopTimer{} }

type noopTimer struct{}

func (noopTimer) Stop() float64 { return 0 }

// Rewriter is the pushdown driver. It is stateless across invocations and
// safe for concurrent use; each RewritePlan call owns its alias counter and
// statement cache.
type Rewriter struct {
	d        *dialect.Dialect
	matcher  *Matcher
	resolver plan.IdentityResolver
	logger   zerolog.Logger
	metrics  MetricsCollector
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the rewrite logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Rewriter) { r.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(r *Rewriter) { r.metrics = m }
}

// WithIdentityResolver overrides how connection identities are derived from
// source configurations.
func WithIdentityResolver(f plan.IdentityResolver) Option {
	return func(r *Rewriter) { r.resolver = f }
}

// NewRewriter creates a rewriter for the dialect.
func NewRewriter(d *dialect.Dialect, opts ...Option) *Rewriter {
	r := &Rewriter{
		d:        d,
		matcher:  NewMatcher(d),
		resolver: plan.ResolveIdentity,
		logger:   zerolog.Nop(),
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// rewriteCtx is the per-invocation state: the derived-table alias counter and
// the statements behind the remote relations this pass created or adopted.
type rewriteCtx struct {
	counter int
	built   map[*plan.Remote]*statement
}

// RewritePlan walks the plan bottom-up and replaces maximal pushable
// subtrees with remote relations. The returned plan has the same output
// schema. Untranslatable constructs degrade to local execution; only caller
// contract violations error.
func (r *Rewriter) RewritePlan(root plan.Node) (plan.Node, error) {
	timer := r.metrics.StartTimer("pushdown_rewrite_duration_seconds")
	defer timer.Stop()

	if err := plan.Validate(root); err != nil {
		r.metrics.IncrementCounter("pushdown_rewrite_errors_total", "code", errors.GetCode(err))
		return nil, err
	}

	ctx := &rewriteCtx{built: make(map[*plan.Remote]*statement)}
	node, decision, err := r.rewrite(root, ctx)
	if err != nil {
		r.metrics.IncrementCounter("pushdown_rewrite_errors_total", "code", errors.GetCode(err))
		return nil, err
	}

	r.metrics.IncrementCounter("pushdown_plans_total", "decision", decision.String())
	r.logger.Debug().
		Str("dialect", r.d.Name).
		Str("decision", decision.String()).
		Msg("plan rewritten")
	return node, nil
}

func (r *Rewriter) rewrite(n plan.Node, ctx *rewriteCtx) (plan.Node, Decision, error) {
	switch t := n.(type) {
	case *plan.Scan:
		return r.rewriteScan(t, ctx)

	case *plan.Remote:
		// Already pushed upstream: adopt it untouched so repeated rewrites
		// are stable.
		st := remoteStatement(r.d, &ctx.counter, t)
		if st.id.Zero() {
			st.id = r.resolver(t.Source)
		}
		ctx.built[t] = st
		return t, FullyPushed, nil
	}

	children := n.Children()
	rewritten := make([]plan.Node, len(children))
	decisions := make([]Decision, len(children))
	for i, c := range children {
		node, d, err := r.rewrite(c, ctx)
		if err != nil {
			return nil, NotPushed, err
		}
		rewritten[i] = node
		decisions[i] = d
	}

	allFull := true
	anyRemote := false
	for _, d := range decisions {
		if d != FullyPushed {
			allFull = false
		}
		if d != NotPushed {
			anyRemote = true
		}
	}

	if allFull {
		st, ok, err := r.match(n, rewritten, ctx)
		if err != nil {
			return nil, NotPushed, err
		}
		if ok {
			remote := st.remote()
			ctx.built[remote] = st
			r.record(n, FullyPushed)
			return remote, FullyPushed, nil
		}
	}

	decision := NotPushed
	if anyRemote {
		decision = PartiallyPushed
	}
	r.record(n, decision)
	return withChildren(n, rewritten), decision, nil
}

func (r *Rewriter) rewriteScan(s *plan.Scan, ctx *rewriteCtx) (plan.Node, Decision, error) {
	// Repeated column names cannot survive SQL composition.
	if s.Fields.HasDuplicateNames() {
		r.record(s, NotPushed)
		return s, NotPushed, nil
	}
	st, err := scanStatement(r.d, &ctx.counter, s, r.resolver(s.Source))
	if err != nil {
		return nil, NotPushed, err
	}
	remote := st.remote()
	ctx.built[remote] = st
	r.record(s, FullyPushed)
	return remote, FullyPushed, nil
}

// match dispatches a node whose children are all remote to the shape matcher.
func (r *Rewriter) match(n plan.Node, children []plan.Node, ctx *rewriteCtx) (*statement, bool, error) {
	stmts := make([]*statement, len(children))
	for i, c := range children {
		remote, ok := c.(*plan.Remote)
		if !ok {
			return nil, false, nil
		}
		st, ok := ctx.built[remote]
		if !ok {
			return nil, false, errors.Newf(errors.CodeInternal, "remote relation %s has no statement", remote.ID)
		}
		stmts[i] = st
	}

	switch t := n.(type) {
	case *plan.Filter:
		return r.matcher.Filter(t, stmts[0])
	case *plan.Project:
		return r.matcher.Project(t, stmts[0])
	case *plan.Aggregate:
		return r.matcher.Aggregate(t, stmts[0])
	case *plan.Sort:
		return r.matcher.Sort(t, stmts[0])
	case *plan.Limit:
		return r.matcher.Limit(t, stmts[0])
	case *plan.Join:
		return r.matcher.Join(t, stmts[0], stmts[1])
	case *plan.Window:
		return r.matcher.Window(t, stmts[0])
	default:
		return nil, false, nil
	}
}

func (r *Rewriter) record(n plan.Node, d Decision) {
	r.metrics.IncrementCounter("pushdown_nodes_total", "node", nodeName(n), "decision", d.String())
	r.logger.Trace().
		Str("node", nodeName(n)).
		Str("decision", d.String()).
		Msg("node decided")
}

func nodeName(n plan.Node) string {
	switch n.(type) {
	case *plan.Scan:
		return "scan"
	case *plan.Filter:
		return "filter"
	case *plan.Project:
		return "project"
	case *plan.Aggregate:
		return "aggregate"
	case *plan.Sort:
		return "sort"
	case *plan.Limit:
		return "limit"
	case *plan.Join:
		return "join"
	case *plan.Window:
		return "window"
	case *plan.Remote:
		return "remote"
	default:
		return fmt.Sprintf("%T", n)
	}
}

// withChildren rebuilds a node over rewritten children.
func withChildren(n plan.Node, children []plan.Node) plan.Node {
	switch t := n.(type) {
	case *plan.Filter:
		c := *t
		c.Input = children[0]
		return &c
	case *plan.Project:
		c := *t
		c.Input = children[0]
		return &c
	case *plan.Aggregate:
		c := *t
		c.Input = children[0]
		return &c
	case *plan.Sort:
		c := *t
		c.Input = children[0]
		return &c
	case *plan.Limit:
		c := *t
		c.Input = children[0]
		return &c
	case *plan.Join:
		c := *t
		c.Left = children[0]
		c.Right = children[1]
		return &c
	case *plan.Window:
		c := *t
		c.Input = children[0]
		return &c
	default:
		return n
	}
}
