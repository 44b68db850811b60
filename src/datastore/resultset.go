package datastore

import (
	"database/sql"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// ResultSet is a query result with its column order preserved.
type ResultSet struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

func (r *ResultSet) HasColumn(name string) bool {
	if r == nil {
		return false
	}
	for _, c := range r.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MissingColumns returns the names not present in the result, in argument order.
func (r *ResultSet) MissingColumns(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !r.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// Head returns at most n rows.
func (r *ResultSet) Head(n int) []map[string]any {
	if r == nil {
		return []map[string]any{}
	}
	if n > len(r.Rows) {
		n = len(r.Rows)
	}
	out := make([]map[string]any, n)
	copy(out, r.Rows[:n])
	return out
}

// Column returns every value of one column.
func (r *ResultSet) Column(name string) []any {
	if r == nil {
		return nil
	}
	out := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row[name]
	}
	return out
}

// Records returns the rows, never nil.
func (r *ResultSet) Records() []map[string]any {
	if r == nil || r.Rows == nil {
		return []map[string]any{}
	}
	return r.Rows
}

// scanResultSet reads every row into maps. Byte slices become strings so the
// result serializes the same way for every driver.
func scanResultSet(rows *sql.Rows) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var records []map[string]any
	if err := sqlscan.ScanAll(&records, rows); err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", err)
	}

	for _, rec := range records {
		for k, v := range rec {
			if b, ok := v.([]byte); ok {
				rec[k] = string(b)
			}
		}
	}
	if records == nil {
		records = []map[string]any{}
	}

	return &ResultSet{Columns: cols, Rows: records}, nil
}
