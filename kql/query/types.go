// Package query defines the AST produced by the parser: a source, a
// sequence of pipeline operators, and the expression trees they carry.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is a parsed pipeline: a source followed by operators applied
// in order.
type Query struct {
	Source    Source
	Operators []Operator
}

// String renders the query in pipeline form.
func (q *Query) String() string {
	parts := []string{q.Source.String()}
	for _, op := range q.Operators {
		parts = append(parts, op.String())
	}
	return strings.Join(parts, " | ")
}

// Source is the first pipeline stage: a table reference or a union of
// table references.
type Source interface {
	sourceNode()
	String() string
}

// TableSource references a single registered table.
type TableSource struct {
	Name string
}

func (TableSource) sourceNode()      {}
func (s TableSource) String() string { return s.Name }

// UnionSource concatenates one or more tables, aligning columns by name.
type UnionSource struct {
	Tables []string
}

func (UnionSource) sourceNode() {}
func (s UnionSource) String() string {
	return "union " + strings.Join(s.Tables, ", ")
}

// Operator is one pipeline stage after the source.
type Operator interface {
	operatorNode()
	// Name returns the operator keyword, used in errors and timings.
	Name() string
	String() string
}

// Where retains rows whose predicate evaluates to true.
type Where struct {
	Predicate Expression
}

func (Where) operatorNode()    {}
func (Where) Name() string     { return "where" }
func (w Where) String() string { return "where " + w.Predicate.String() }

// ProjectItem is one output column of a project: either a bare column
// reference or an alias bound to an expression.
type ProjectItem struct {
	Alias string
	Expr  Expression
}

func (p ProjectItem) String() string {
	if ref, ok := p.Expr.(ColumnRef); ok && ref.Name == p.Alias {
		return p.Alias
	}
	return p.Alias + " = " + p.Expr.String()
}

// Project selects, reorders, and optionally renames columns; columns
// not listed are dropped.
type Project struct {
	Items []ProjectItem
}

func (Project) operatorNode() {}
func (Project) Name() string  { return "project" }
func (p Project) String() string {
	parts := make([]string, len(p.Items))
	for i, item := range p.Items {
		parts[i] = item.String()
	}
	return "project " + strings.Join(parts, ", ")
}

// Assignment binds a computed expression to a column name.
type Assignment struct {
	Name string
	Expr Expression
}

func (a Assignment) String() string { return a.Name + " = " + a.Expr.String() }

// Extend appends or overwrites computed columns left-to-right; later
// assignments see columns added by earlier ones.
type Extend struct {
	Assignments []Assignment
}

func (Extend) operatorNode() {}
func (Extend) Name() string  { return "extend" }
func (e Extend) String() string {
	parts := make([]string, len(e.Assignments))
	for i, a := range e.Assignments {
		parts[i] = a.String()
	}
	return "extend " + strings.Join(parts, ", ")
}

// Aggregation is a single summarize output: an aggregate function over
// a column (empty for count()) bound to an alias.
type Aggregation struct {
	Alias  string
	Fn     string
	Column string
}

func (a Aggregation) String() string {
	call := a.Fn + "(" + a.Column + ")"
	return a.Alias + " = " + call
}

// Summarize groups rows by the By keys (or all rows when absent) and
// computes each aggregation per group.
type Summarize struct {
	Aggregations []Aggregation
	By           []string
}

func (Summarize) operatorNode() {}
func (Summarize) Name() string  { return "summarize" }
func (s Summarize) String() string {
	parts := make([]string, len(s.Aggregations))
	for i, a := range s.Aggregations {
		parts[i] = a.String()
	}
	out := "summarize " + strings.Join(parts, ", ")
	if len(s.By) > 0 {
		out += " by " + strings.Join(s.By, ", ")
	}
	return out
}

// SortKey is one ordering key with its direction.
type SortKey struct {
	Column     string
	Descending bool
}

func (k SortKey) String() string {
	if k.Descending {
		return k.Column + " desc"
	}
	return k.Column + " asc"
}

// Sort is a multi-key stable sort (order by / sort by).
type Sort struct {
	Keys []SortKey
}

func (Sort) operatorNode() {}
func (Sort) Name() string  { return "order by" }
func (s Sort) String() string {
	parts := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		parts[i] = k.String()
	}
	return "order by " + strings.Join(parts, ", ")
}

// Take truncates the row-set to its first N rows.
type Take struct {
	N int64
}

func (Take) operatorNode()    {}
func (Take) Name() string     { return "take" }
func (t Take) String() string { return "take " + strconv.FormatInt(t.N, 10) }

// Top is order-by-one-key then take; direction defaults to descending.
type Top struct {
	N   int64
	Key SortKey
}

func (Top) operatorNode() {}
func (Top) Name() string  { return "top" }
func (t Top) String() string {
	return fmt.Sprintf("top %d by %s", t.N, t.Key.String())
}

// Count replaces the row-set with a single row holding the row count.
type Count struct{}

func (Count) operatorNode()  {}
func (Count) Name() string   { return "count" }
func (Count) String() string { return "count" }

// Distinct projects to the listed columns and deduplicates, keeping
// first occurrences in order.
type Distinct struct {
	Columns []string
}

func (Distinct) operatorNode() {}
func (Distinct) Name() string  { return "distinct" }
func (d Distinct) String() string {
	return "distinct " + strings.Join(d.Columns, ", ")
}
