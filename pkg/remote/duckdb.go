package remote

import (
	"context"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/rs/zerolog"

	"github.com/TFMV/sqlfold/pkg/errors"
	"github.com/TFMV/sqlfold/pkg/plan"
)

// defaultBatchSize bounds rows per record batch.
const defaultBatchSize = 4096

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Pool      PoolConfig `json:"pool"`
	BatchSize int        `json:"batch_size"`
}

// sqlExecutor runs remote-relation SQL over a database/sql pool.
type sqlExecutor struct {
	pool      *Pool
	batchSize int
	logger    zerolog.Logger
	metrics   MetricsCollector
}

// NewDuckDBExecutor opens a DuckDB-backed executor. An empty DSN uses an
// in-memory database.
func NewDuckDBExecutor(cfg ExecutorConfig, logger zerolog.Logger, collector MetricsCollector) (Executor, error) {
	return newSQLExecutor("duckdb", cfg, logger, collector)
}

func newSQLExecutor(driver string, cfg ExecutorConfig, logger zerolog.Logger, collector MetricsCollector) (Executor, error) {
	pool, err := NewPool(driver, cfg.Pool, logger)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if collector == nil {
		collector = noopMetrics{}
	}
	return &sqlExecutor{
		pool:      pool,
		batchSize: cfg.BatchSize,
		logger:    logger.With().Str("component", "executor").Str("driver", driver).Logger(),
		metrics:   collector,
	}, nil
}

// Query runs the relation's SQL and materializes the result. The batch
// schema is derived from the result set's column metadata; the relation's
// declared fields only inform logging when they disagree.
func (e *sqlExecutor) Query(ctx context.Context, rel *plan.Remote) (*QueryResult, error) {
	timer := e.metrics.StartTimer("remote_query_duration_seconds")
	defer timer.Stop()

	rows, err := e.pool.DB().QueryContext(ctx, rel.SQL)
	if err != nil {
		e.metrics.IncrementCounter("remote_queries_total", "status", "error")
		return nil, errors.Wrap(err, errors.CodeQueryFailed, "execute remote sql")
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		e.metrics.IncrementCounter("remote_queries_total", "status", "error")
		return nil, errors.Wrap(err, errors.CodeQueryFailed, "read column types")
	}
	resultSchema := SchemaFromColumns(cols)
	if len(rel.Fields) > 0 && len(rel.Fields) != len(resultSchema) {
		e.logger.Warn().
			Int("declared", len(rel.Fields)).
			Int("actual", len(resultSchema)).
			Msg("result width differs from declared schema")
	}

	schema := ArrowSchema(resultSchema)
	records, total, err := readRecords(rows, schema, e.batchSize)
	if err != nil {
		e.metrics.IncrementCounter("remote_queries_total", "status", "error")
		return nil, err
	}

	e.metrics.IncrementCounter("remote_queries_total", "status", "success")
	e.logger.Debug().
		Int64("rows", total).
		Int("batches", len(records)).
		Str("id", rel.ID.String()).
		Msg("remote query complete")
	return &QueryResult{Schema: schema, Records: records, Rows: total}, nil
}

// Ping verifies connectivity.
func (e *sqlExecutor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Close releases the pool.
func (e *sqlExecutor) Close() error {
	return e.pool.Close()
}
