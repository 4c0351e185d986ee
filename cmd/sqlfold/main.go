// Package main provides the sqlfold command: it rewrites logical query plans
// into remote SQL and optionally executes the result against DuckDB.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TFMV/sqlfold/cmd/sqlfold/config"
	"github.com/TFMV/sqlfold/pkg/dialect"
	"github.com/TFMV/sqlfold/pkg/infrastructure/metrics"
	"github.com/TFMV/sqlfold/pkg/plan"
	"github.com/TFMV/sqlfold/pkg/pushdown"
	"github.com/TFMV/sqlfold/pkg/remote"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sqlfold",
	Short: "Query plan pushdown rewriter",
	Long: `sqlfold rewrites logical query plans bottom-up, replacing maximal
pushable subtrees with native SQL for the target database.`,
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [plan.json]",
	Short: "Rewrite a plan and print the result",
	Long: `Rewrite a plan read from a file or stdin and print the rewritten
plan as JSON, or as an indented tree with --explain.

Example:
  sqlfold rewrite plan.json --dialect mysql
  cat plan.json | sqlfold rewrite --explain`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRewrite,
}

var runCmd = &cobra.Command{
	Use:   "run [plan.json]",
	Short: "Rewrite a plan and execute it against DuckDB",
	Long: `Rewrite a plan and execute the generated SQL against a DuckDB
database, printing result batches as JSON.

Example:
  sqlfold run plan.json --database ./analytics.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecute,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("dialect", "duckdb", "target dialect (duckdb, mysql)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")

	rewriteCmd.Flags().Bool("explain", false, "print the rewritten plan as a tree")

	runCmd.Flags().String("database", ":memory:", "DuckDB database path")
	runCmd.Flags().Duration("query-timeout", config.DefaultConfig().QueryTimeout, "query timeout")
	runCmd.Flags().Int("batch-size", config.DefaultConfig().BatchSize, "rows per result batch")
	runCmd.Flags().Bool("metrics", false, "enable Prometheus metrics")
	runCmd.Flags().String("metrics-address", ":9090", "metrics server address")

	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sqlfold\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

// pushdownMetricsAdapter adapts the metrics collector to the rewriter's
// narrower interface.
type pushdownMetricsAdapter struct {
	collector metrics.Collector
}

func (a *pushdownMetricsAdapter) IncrementCounter(name string, labels ...string) {
	a.collector.IncrementCounter(name, labels...)
}

func (a *pushdownMetricsAdapter) StartTimer(name string) pushdown.Timer {
	return a.collector.StartTimer(name)
}

// remoteMetricsAdapter adapts the metrics collector for the executor.
type remoteMetricsAdapter struct {
	collector metrics.Collector
}

func (a *remoteMetricsAdapter) IncrementCounter(name string, labels ...string) {
	a.collector.IncrementCounter(name, labels...)
}

func (a *remoteMetricsAdapter) StartTimer(name string) remote.Timer {
	return a.collector.StartTimer(name)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig binds the command's flags into viper and builds the config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SQLFOLD")
	v.AutomaticEnv()

	bindings := map[string]string{
		"config":          "config",
		"dialect":         "dialect",
		"log_level":       "log-level",
		"database":        "database",
		"query_timeout":   "query-timeout",
		"batch_size":      "batch-size",
		"metrics.enabled": "metrics",
		"metrics.address": "metrics-address",
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return config.FromViper(v)
}

func setupLogger(level string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "sqlfold")

	if logLevel <= zerolog.DebugLevel {
		logger = logger.Caller()
	}
	return logger.Logger()
}

// readPlan loads a plan from the argument path or stdin.
func readPlan(args []string) (plan.Node, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return plan.UnmarshalNode(data)
}

func runRewrite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.LogLevel)

	d, err := dialect.Get(cfg.Dialect)
	if err != nil {
		return err
	}
	root, err := readPlan(args)
	if err != nil {
		return err
	}

	rewriter := pushdown.NewRewriter(d, pushdown.WithLogger(logger))
	rewritten, err := rewriter.RewritePlan(root)
	if err != nil {
		return err
	}

	if explain, _ := cmd.Flags().GetBool("explain"); explain {
		fmt.Println(plan.Explain(rewritten))
		return nil
	}
	out, err := plan.MarshalNode(rewritten)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.LogLevel)

	d, err := dialect.Get(cfg.Dialect)
	if err != nil {
		return err
	}
	root, err := readPlan(args)
	if err != nil {
		return err
	}

	collector := metrics.NewNoOpCollector()
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector()
		metricsServer = metrics.NewServer(cfg.Metrics.Address)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	rewriter := pushdown.NewRewriter(d,
		pushdown.WithLogger(logger),
		pushdown.WithMetrics(&pushdownMetricsAdapter{collector: collector}),
	)
	rewritten, err := rewriter.RewritePlan(root)
	if err != nil {
		return err
	}
	rel, ok := rewritten.(*plan.Remote)
	if !ok {
		fmt.Println(plan.Explain(rewritten))
		return fmt.Errorf("plan was not fully pushed; local operators remain")
	}
	logger.Info().Str("sql", rel.SQL).Msg("executing remote sql")

	executor, err := remote.NewDuckDBExecutor(remote.ExecutorConfig{
		Pool: remote.PoolConfig{
			DSN:                cfg.Database,
			MaxOpenConnections: cfg.ConnectionPool.MaxOpenConnections,
			MaxIdleConnections: cfg.ConnectionPool.MaxIdleConnections,
			ConnMaxLifetime:    cfg.ConnectionPool.ConnMaxLifetime,
			ConnMaxIdleTime:    cfg.ConnectionPool.ConnMaxIdleTime,
			HealthCheckPeriod:  cfg.ConnectionPool.HealthCheckPeriod,
			ConnectionTimeout:  cfg.ConnectionPool.ConnectionTimeout,
		},
		BatchSize: cfg.BatchSize,
	}, logger, &remoteMetricsAdapter{collector: collector})
	if err != nil {
		return err
	}
	defer executor.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := executor.Query(ctx, rel)
	if err != nil {
		return err
	}
	defer result.Release()

	for _, rec := range result.Records {
		if err := array.RecordToJSON(rec, os.Stdout); err != nil {
			return err
		}
	}
	logger.Info().Int64("rows", result.Rows).Msg("query complete")

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
		defer shutdownCancel()
		_ = metricsServer.Stop(shutdownCtx)
	}
	return nil
}
