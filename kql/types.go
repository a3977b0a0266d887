package kql

import (
	"fmt"
	"strings"
)

// Type identifies the scalar type of a column. Cells of any column may
// additionally be null; null is a per-cell marker, not a column type.
type Type int

const (
	TypeNull Type = iota
	TypeInt
	TypeReal
	TypeBool
	TypeString
	TypeDateTime
	TypeTimespan
)

// String returns the type name as it appears in error messages.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeInt:
		return "int"
	case TypeReal:
		return "real"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeDateTime:
		return "datetime"
	case TypeTimespan:
		return "timespan"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// IsNumeric reports whether the type participates in arithmetic promotion.
func (t Type) IsNumeric() bool {
	return t == TypeInt || t == TypeReal
}

// Column is a named, typed slot in a schema.
type Column struct {
	Name string
	Type Type
}

// Schema is an ordered set of columns. Column names are unique and
// case-sensitive within a schema.
type Schema []Column

// IndexOf returns the position of the named column, or -1.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Contains reports whether the named column exists.
func (s Schema) Contains(name string) bool {
	return s.IndexOf(name) >= 0
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Clone returns an independent copy of the schema.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// String renders the schema as "Name:type, ..." for error messages.
func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.Name + ":" + c.Type.String()
	}
	return strings.Join(parts, ", ")
}

// Row is a positionally aligned sequence of cells. A row is never
// shorter than the schema it belongs to.
type Row []Value

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Table is a named schema plus a row buffer. Registered tables are
// immutable for the lifetime of the engine.
type Table struct {
	Name   string
	Schema Schema
	Rows   []Row
}

// NewTable builds a table from a schema and rows.
func NewTable(name string, schema Schema, rows []Row) *Table {
	return &Table{Name: name, Schema: schema, Rows: rows}
}

// Clone deep-copies the table so callers cannot mutate registered data.
func (t *Table) Clone() *Table {
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Clone()
	}
	return &Table{Name: t.Name, Schema: t.Schema.Clone(), Rows: rows}
}
