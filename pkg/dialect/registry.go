package dialect

import (
	"strings"

	"github.com/TFMV/sqlfold/pkg/errors"
)

// Get returns the capability profile registered under name.
func Get(name string) (*Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql":
		return MySQL(), nil
	case "duckdb":
		return DuckDB(), nil
	default:
		return nil, errors.Newf(errors.CodeUnknownDialect, "unknown dialect %q", name)
	}
}

// Names lists the registered dialect profiles.
func Names() []string {
	return []string{"duckdb", "mysql"}
}
