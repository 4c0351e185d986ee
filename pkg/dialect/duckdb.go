package dialect

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/sqlfold/pkg/plan"
)

// DuckDB returns the DuckDB capability profile. The default null order is
// NULLS LAST in both directions.
func DuckDB() *Dialect {
	d := &Dialect{
		Name:             "duckdb",
		QuoteChar:        `"`,
		DateFormat:       "DATE '%s'",
		TimestampFormat:  "TIMESTAMP '%s'",
		AscNullsFirst:    false,
		DescNullsFirst:   false,
		SupportsFullJoin: true,
		Aggregates: map[plan.AggKind]string{
			plan.AggSum:        "SUM",
			plan.AggCount:      "COUNT",
			plan.AggAvg:        "AVG",
			plan.AggMin:        "MIN",
			plan.AggMax:        "MAX",
			plan.AggFirst:      "FIRST",
			plan.AggLast:       "LAST",
			plan.AggVarPop:     "VAR_POP",
			plan.AggVarSamp:    "VAR_SAMP",
			plan.AggStddevPop:  "STDDEV_POP",
			plan.AggStddevSamp: "STDDEV_SAMP",
		},
		WindowFuncs: map[plan.WindowKind]WindowRule{
			plan.WindowRank:        {Target: "RANK"},
			plan.WindowDenseRank:   {Target: "DENSE_RANK"},
			plan.WindowRowNumber:   {Target: "ROW_NUMBER"},
			plan.WindowPercentRank: {Target: "PERCENT_RANK"},
			plan.WindowNtile:       {Target: "NTILE", MinArgs: 1, MaxArgs: 1, FoldableArgs: []int{0}},
			plan.WindowLag:         {Target: "LAG", MinArgs: 1, MaxArgs: 3, FoldableArgs: []int{1, 2}},
			plan.WindowLead:        {Target: "LEAD", MinArgs: 1, MaxArgs: 3, FoldableArgs: []int{1, 2}},
		},
		CastTypes: map[arrow.Type]string{
			arrow.BOOL:       "BOOLEAN",
			arrow.INT8:       "TINYINT",
			arrow.INT16:      "SMALLINT",
			arrow.INT32:      "INTEGER",
			arrow.INT64:      "BIGINT",
			arrow.FLOAT32:    "FLOAT",
			arrow.FLOAT64:    "DOUBLE",
			arrow.DECIMAL128: "DECIMAL",
			arrow.STRING:     "VARCHAR",
			arrow.BINARY:     "BLOB",
			arrow.DATE32:     "DATE",
			arrow.TIMESTAMP:  "TIMESTAMP",
		},
	}

	d.CastPairs = castMatrix(nil, numericTypes, numericTypes)
	d.CastPairs = castMatrix(d.CastPairs, numericTypes, []arrow.Type{arrow.STRING})
	d.CastPairs = castMatrix(d.CastPairs, []arrow.Type{arrow.STRING},
		[]arrow.Type{arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64, arrow.FLOAT32, arrow.FLOAT64,
			arrow.DECIMAL128, arrow.DATE32, arrow.TIMESTAMP, arrow.BINARY, arrow.BOOL})
	d.CastPairs = castMatrix(d.CastPairs, []arrow.Type{arrow.BOOL},
		[]arrow.Type{arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64, arrow.STRING})
	d.CastPairs = castMatrix(d.CastPairs, []arrow.Type{arrow.DATE32, arrow.TIMESTAMP},
		[]arrow.Type{arrow.STRING, arrow.DATE32, arrow.TIMESTAMP})

	d.Functions = map[string]FunctionRule{
		"abs":   {MinArgs: 1, MaxArgs: 1},
		"ceil":  {MinArgs: 1, MaxArgs: 1},
		"floor": {MinArgs: 1, MaxArgs: 1},
		"sqrt":  {MinArgs: 1, MaxArgs: 1},
		"exp":   {MinArgs: 1, MaxArgs: 1},
		"ln":    {Target: "LN", MinArgs: 1, MaxArgs: 1},
		"log10": {Target: "LOG10", MinArgs: 1, MaxArgs: 1},
		"pow":   {Target: "POW", MinArgs: 2, MaxArgs: 2},
		"sign":  {MinArgs: 1, MaxArgs: 1},
		"round": {MinArgs: 1, MaxArgs: 2, FoldableArgs: []int{1}},
		"rand":  {Target: "RANDOM", MinArgs: 0, MaxArgs: 0, Nondeterministic: true},

		"lower":       {MinArgs: 1, MaxArgs: 1},
		"upper":       {MinArgs: 1, MaxArgs: 1},
		"length":      {MinArgs: 1, MaxArgs: 1},
		"char_length": {Target: "LENGTH", MinArgs: 1, MaxArgs: 1},
		"trim":        {MinArgs: 1, MaxArgs: 1},
		"ltrim":       {MinArgs: 1, MaxArgs: 1},
		"rtrim":       {MinArgs: 1, MaxArgs: 1},
		"reverse":     {MinArgs: 1, MaxArgs: 1},
		"concat":      {MinArgs: 1, MaxArgs: -1},
		"replace":     {MinArgs: 3, MaxArgs: 3},
		"substring":   {MinArgs: 2, MaxArgs: 3},
		"lpad":        {MinArgs: 3, MaxArgs: 3},
		"rpad":        {MinArgs: 3, MaxArgs: 3},

		"md5": {MinArgs: 1, MaxArgs: 1},
		// DuckDB only ships the 256-bit digest; other widths stay local.
		"sha2": {
			MinArgs:      2,
			MaxArgs:      2,
			FoldableArgs: []int{1},
			Validate: func(args []plan.Expr) bool {
				n, ok := literalInt(args[1])
				return ok && n == 256
			},
			Render: func(args []string) string {
				return "SHA256(" + args[0] + ")"
			},
		},

		"coalesce": {MinArgs: 1, MaxArgs: -1},
		"ifnull":   {MinArgs: 2, MaxArgs: 2},
		"nullif":   {MinArgs: 2, MaxArgs: 2},
		"greatest": {MinArgs: 2, MaxArgs: -1},
		"least":    {MinArgs: 2, MaxArgs: -1},

		"year":  {MinArgs: 1, MaxArgs: 1},
		"month": {MinArgs: 1, MaxArgs: 1},
		"day":   {MinArgs: 1, MaxArgs: 1},
		"now":   {MinArgs: 0, MaxArgs: 0, Nondeterministic: true},
	}

	return d
}
