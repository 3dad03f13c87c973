// Package dataset provides the in-memory tabular model used by the lab, along
// with file parsing and table registration.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ColumnType is the storage class of a dataset column.
type ColumnType int

const (
	// Text columns hold string values.
	Text ColumnType = iota
	// Integer columns hold int64 values.
	Integer
	// Real columns hold float64 values.
	Real
)

// String returns the SQL type name used when the column is materialized.
func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ColumnType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Column is a named, typed dataset column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Dataset is an ordered set of columns and an ordered sequence of rows.
// Cell values are int64, float64, string or nil.
type Dataset struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// New builds a dataset, normalizing cell values to the column types.
func New(columns []Column, rows [][]any) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(columns))
		}
		norm := make([]any, len(row))
		for j, v := range row {
			nv, err := normalize(v, columns[j].Type)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, columns[j].Name, err)
			}
			norm[j] = nv
		}
		out[i] = norm
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Dataset{Columns: cols, Rows: out}, nil
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Head returns a dataset holding at most the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 {
		n = 0
	}
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	rows := make([][]any, n)
	copy(rows, d.Rows[:n])
	return &Dataset{Columns: d.Columns, Rows: rows}
}

// Equal reports whether two datasets have the same columns and rows.
func (d *Dataset) Equal(o *Dataset) bool {
	if d == nil || o == nil {
		return d == o
	}
	if len(d.Columns) != len(o.Columns) || len(d.Rows) != len(o.Rows) {
		return false
	}
	for i := range d.Columns {
		if d.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range d.Rows {
		if len(d.Rows[i]) != len(o.Rows[i]) {
			return false
		}
		for j := range d.Rows[i] {
			if d.Rows[i][j] != o.Rows[i][j] {
				return false
			}
		}
	}
	return true
}

// normalize coerces v to the Go type of t. Infinite and NaN floats become
// NULL: they have no JSON encoding.
func normalize(v any, t ColumnType) (any, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if !isFinite(n) {
			return nil, nil
		}
	case float32:
		if !isFinite(float64(n)) {
			return nil, nil
		}
	}
	switch t {
	case Integer:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case bool:
			if n {
				return int64(1), nil
			}
			return int64(0), nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return i, nil
			}
		}
	case Real:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err == nil && isFinite(f) {
				return f, nil
			}
			if err == nil {
				return nil, nil
			}
		}
	default:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		default:
			return fmt.Sprint(s), nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) is not %s", v, v, t)
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
