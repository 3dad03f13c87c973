// Package evaluator runs learner code: SQL queries against a registered
// dataset and Starlark scripts. Both evaluators report failures as typed
// errors carrying the engine diagnostic verbatim.
package evaluator

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ashureev/datagym/internal/dataset"
)

// QueryEvaluator runs SQL against a dataset loaded into a private
// in-memory database. It holds no per-call state and is safe for
// concurrent use.
type QueryEvaluator struct {
	engine Engine
}

// NewQueryEvaluator creates a query evaluator. A nil engine selects SQLite.
func NewQueryEvaluator(engine Engine) *QueryEvaluator {
	if engine == nil {
		engine = SQLiteEngine{}
	}
	return &QueryEvaluator{engine: engine}
}

// Engine returns the configured engine.
func (e *QueryEvaluator) Engine() Engine {
	return e.engine
}

// Run loads ds as tableName into a fresh database, executes query and
// returns the result set in the order the engine produced it. The database
// is discarded before Run returns.
func (e *QueryEvaluator) Run(ctx context.Context, query string, ds *dataset.Dataset, tableName string) (result *dataset.Dataset, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("query engine panic", "engine", e.engine.Name(), "panic", r)
			result = nil
			err = &QueryError{Message: fmt.Sprintf("%v", r)}
		}
	}()

	if ds == nil || len(ds.Columns) == 0 {
		return nil, &QueryError{Message: "no dataset loaded"}
	}

	db, err := e.engine.Open(ctx)
	if err != nil {
		return nil, &QueryError{Message: err.Error(), Err: err}
	}
	defer func() { _ = db.Close() }()

	if err := e.load(ctx, db, ds, tableName); err != nil {
		return nil, &QueryError{Message: err.Error(), Err: err}
	}

	result, err = collect(ctx, db, query)
	if err != nil {
		return nil, &QueryError{Message: err.Error(), Err: err}
	}
	return result, nil
}

func (e *QueryEvaluator) load(ctx context.Context, db *sql.DB, ds *dataset.Dataset, tableName string) error {
	table := quoteIdent(tableName)
	defs := make([]string, len(ds.Columns))
	names := make([]string, len(ds.Columns))
	marks := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		names[i] = quoteIdent(c.Name)
		defs[i] = names[i] + " " + e.engine.ColumnType(c.Type)
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return err
	}
	if len(ds.Rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(names, ", "), strings.Join(marks, ", ")))
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, row := range ds.Rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func collect(ctx context.Context, db *sql.DB, query string) (*dataset.Dataset, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	if len(colTypes) == 0 {
		return nil, fmt.Errorf("statement does not return rows")
	}

	var values [][]any
	for rows.Next() {
		raw := make([]any, len(colTypes))
		ptrs := make([]any, len(colTypes))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(raw))
		for i, v := range raw {
			row[i] = cellValue(v)
		}
		values = append(values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	columns := make([]dataset.Column, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = dataset.Column{
			Name: ct.Name(),
			Type: resolveType(ct.DatabaseTypeName(), values, i),
		}
	}
	return dataset.New(columns, values)
}

// cellValue reduces a scanned driver value to int64, float64, string or nil.
func cellValue(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case int64:
		return n
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
		return float64(n)
	case float32:
		return finiteOrNil(float64(n))
	case float64:
		return finiteOrNil(n)
	case bool:
		if n {
			return "true"
		}
		return "false"
	case string:
		return n
	case []byte:
		return string(n)
	case time.Time:
		if n.Hour() == 0 && n.Minute() == 0 && n.Second() == 0 && n.Nanosecond() == 0 {
			return n.Format(time.DateOnly)
		}
		return n.Format(time.DateTime)
	case *big.Int:
		if n.IsInt64() {
			return n.Int64()
		}
		return n.String()
	case interface{ Float64() float64 }:
		return n.Float64()
	default:
		return fmt.Sprint(n)
	}
}

func finiteOrNil(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return f
}

// resolveType maps the engine's declared column type, falling back to the
// values when the declaration is missing or does not fit them.
func resolveType(declared string, rows [][]any, col int) dataset.ColumnType {
	inferred, seen := inferColumn(rows, col)
	d := strings.ToUpper(declared)
	switch {
	case strings.Contains(d, "INT"):
		if inferred == dataset.Integer || !seen {
			return dataset.Integer
		}
	case strings.Contains(d, "REAL"), strings.Contains(d, "DOUB"), strings.Contains(d, "FLOA"),
		strings.Contains(d, "DECIMAL"), strings.Contains(d, "NUMERIC"):
		if inferred != dataset.Text || !seen {
			return dataset.Real
		}
	case strings.Contains(d, "CHAR"), strings.Contains(d, "TEXT"), strings.Contains(d, "CLOB"),
		strings.Contains(d, "STRING"):
		return dataset.Text
	}
	return inferred
}

// inferColumn types a column from its values. seen is false when every
// value is nil.
func inferColumn(rows [][]any, col int) (t dataset.ColumnType, seen bool) {
	isInt := true
	for _, row := range rows {
		switch row[col].(type) {
		case nil:
			continue
		case int64:
		case float64:
			isInt = false
		default:
			return dataset.Text, true
		}
		seen = true
	}
	switch {
	case !seen:
		return dataset.Text, false
	case isInt:
		return dataset.Integer, true
	default:
		return dataset.Real, true
	}
}
