package executor

import (
	"github.com/secsim/go-kql/kql"
)

// RowSet is the intermediate result threaded between operators: an
// ordered sequence of rows with the schema they conform to. Operators
// never mutate a row-set in place; each returns a fresh one.
type RowSet struct {
	Schema kql.Schema
	Rows   []kql.Row
}

// NewRowSet creates a row-set over the given schema.
func NewRowSet(schema kql.Schema, rows []kql.Row) *RowSet {
	return &RowSet{Schema: schema, Rows: rows}
}

// Len returns the row count.
func (rs *RowSet) Len() int {
	return len(rs.Rows)
}

// Maps renders the rows as name→value maps in schema order, the shape
// the result envelope carries.
func (rs *RowSet) Maps() []map[string]kql.Value {
	out := make([]map[string]kql.Value, len(rs.Rows))
	for i, row := range rs.Rows {
		m := make(map[string]kql.Value, len(rs.Schema))
		for j, col := range rs.Schema {
			m[col.Name] = row[j]
		}
		out[i] = m
	}
	return out
}
