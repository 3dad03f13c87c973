package evaluator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ashureev/datagym/internal/dataset"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// DuckDBEngine runs queries against an in-memory DuckDB database.
type DuckDBEngine struct{}

// Name implements Engine.
func (DuckDBEngine) Name() string { return "duckdb" }

// Open implements Engine.
func (DuckDBEngine) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// ColumnType implements Engine.
func (DuckDBEngine) ColumnType(t dataset.ColumnType) string {
	switch t {
	case dataset.Integer:
		return "BIGINT"
	case dataset.Real:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}
