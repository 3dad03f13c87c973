package evaluator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ashureev/datagym/internal/dataset"

	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteEngine runs queries against an in-memory SQLite database.
type SQLiteEngine struct{}

// Name implements Engine.
func (SQLiteEngine) Name() string { return "sqlite" }

// Open implements Engine. An in-memory SQLite database lives on a single
// connection, so the pool is pinned to one.
func (SQLiteEngine) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// ColumnType implements Engine.
func (SQLiteEngine) ColumnType(t dataset.ColumnType) string {
	return t.String()
}
