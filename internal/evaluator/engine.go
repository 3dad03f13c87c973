package evaluator

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/ashureev/datagym/internal/dataset"
)

// Engine opens private in-memory SQL databases for the query evaluator.
type Engine interface {
	// Name is the identifier used in configuration.
	Name() string
	// Open returns a fresh, empty database. The caller closes it.
	Open(ctx context.Context) (*sql.DB, error)
	// ColumnType returns the DDL type for a dataset column.
	ColumnType(t dataset.ColumnType) string
}

var engines = map[string]func() Engine{
	"sqlite": func() Engine { return SQLiteEngine{} },
	"duckdb": func() Engine { return DuckDBEngine{} },
}

// NewEngine returns the engine registered under name.
func NewEngine(name string) (Engine, error) {
	ctor, ok := engines[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown query engine %q (available: %s)", name, strings.Join(EngineNames(), ", "))
	}
	return ctor(), nil
}

// EngineNames lists the registered engines in sorted order.
func EngineNames() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// quoteIdent double-quotes an identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
