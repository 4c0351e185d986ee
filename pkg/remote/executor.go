// Package remote executes generated SQL against the target database and
// returns results as Arrow record batches. It sits outside the rewrite core:
// the rewriter never does I/O, this package does nothing else.
package remote

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/sqlfold/pkg/plan"
)

// Executor runs the SQL carried by a remote relation.
type Executor interface {
	// Query executes the relation's SQL and returns the result batches.
	Query(ctx context.Context, rel *plan.Remote) (*QueryResult, error)

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

// QueryResult is a fully materialized query result. Records share the
// returned schema; callers release them when done.
type QueryResult struct {
	Schema  *arrow.Schema
	Records []arrow.Record
	Rows    int64
}

// Release frees all record batches.
func (r *QueryResult) Release() {
	for _, rec := range r.Records {
		rec.Release()
	}
	r.Records = nil
}

// MetricsCollector is the subset of metrics collection executors use.
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
