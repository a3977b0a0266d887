// Package planner validates a parsed query against the registry and
// produces a typed plan. Every column and function reference is
// resolved against the schema in effect at its pipeline position;
// nothing is evaluated here.
package planner

import (
	"fmt"
	"strings"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/query"
)

// Step is one validated pipeline stage: the operator plus the schema
// of its output row-set.
type Step struct {
	Op     query.Operator
	Schema kql.Schema
}

// Plan is the validated form of a query, ready for evaluation. Tables
// holds the resolved source tables (one entry per union member).
type Plan struct {
	Tables       []*kql.Table
	SourceSchema kql.Schema
	Steps        []Step
}

// Schema returns the schema of the plan's final row-set.
func (p *Plan) Schema() kql.Schema {
	if len(p.Steps) == 0 {
		return p.SourceSchema
	}
	return p.Steps[len(p.Steps)-1].Schema
}

// Planner resolves queries against a registry.
type Planner struct {
	Registry *kql.Registry
}

// New creates a planner over the given registry.
func New(registry *kql.Registry) *Planner {
	return &Planner{Registry: registry}
}

// Plan validates q and returns its typed plan.
func (p *Planner) Plan(q *query.Query) (*Plan, error) {
	plan := &Plan{}

	switch src := q.Source.(type) {
	case query.TableSource:
		t, ok := p.Registry.Get(src.Name)
		if !ok {
			return nil, kql.ErrUnknownTable.New(src.Name, p.Registry.Available())
		}
		plan.Tables = []*kql.Table{t}
		plan.SourceSchema = t.Schema.Clone()
	case query.UnionSource:
		for _, name := range src.Tables {
			t, ok := p.Registry.Get(name)
			if !ok {
				return nil, kql.ErrUnknownTable.New(name, p.Registry.Available())
			}
			plan.Tables = append(plan.Tables, t)
		}
		schema, err := unionSchema(plan.Tables)
		if err != nil {
			return nil, err
		}
		plan.SourceSchema = schema
	default:
		return nil, kql.ErrInternal.New(fmt.Sprintf("unhandled source node %T", q.Source))
	}

	schema := plan.SourceSchema
	for _, op := range q.Operators {
		next, err := p.planOperator(op, schema)
		if err != nil {
			return nil, err
		}
		plan.Steps = append(plan.Steps, Step{Op: op, Schema: next})
		schema = next
	}
	return plan, nil
}

// unionSchema aligns member tables by column name. Column order is
// first-table order, then columns newly introduced by later members.
// Identical types keep their type, int and real promote to real, and
// any other mix rejects the plan.
func unionSchema(tables []*kql.Table) (kql.Schema, error) {
	var out kql.Schema
	for _, t := range tables {
		for _, col := range t.Schema {
			idx := out.IndexOf(col.Name)
			if idx < 0 {
				out = append(out, col)
				continue
			}
			merged, ok := promoteTypes(out[idx].Type, col.Type)
			if !ok {
				return nil, kql.ErrSemantic.New(fmt.Sprintf(
					"union column %q has incompatible types %s and %s",
					col.Name, out[idx].Type, col.Type))
			}
			out[idx].Type = merged
		}
	}
	return out, nil
}

func promoteTypes(a, b kql.Type) (kql.Type, bool) {
	if a == b {
		return a, true
	}
	if a.IsNumeric() && b.IsNumeric() {
		return kql.TypeReal, true
	}
	return kql.TypeNull, false
}

func (p *Planner) planOperator(op query.Operator, schema kql.Schema) (kql.Schema, error) {
	switch node := op.(type) {
	case query.Where:
		t, err := inferType(node.Predicate, schema)
		if err != nil {
			return nil, err
		}
		if t != kql.TypeBool {
			return nil, kql.ErrSemantic.New(fmt.Sprintf("where predicate must be bool, got %s", t))
		}
		return schema, nil

	case query.Project:
		out := make(kql.Schema, 0, len(node.Items))
		for _, item := range node.Items {
			if out.Contains(item.Alias) {
				return nil, kql.ErrSemantic.New(fmt.Sprintf("duplicate projection name %q", item.Alias))
			}
			t, err := inferType(item.Expr, schema)
			if err != nil {
				return nil, err
			}
			out = append(out, kql.Column{Name: item.Alias, Type: t})
		}
		return out, nil

	case query.Extend:
		out := schema.Clone()
		for _, a := range node.Assignments {
			t, err := inferType(a.Expr, out)
			if err != nil {
				return nil, err
			}
			if idx := out.IndexOf(a.Name); idx >= 0 {
				out[idx].Type = t
			} else {
				out = append(out, kql.Column{Name: a.Name, Type: t})
			}
		}
		return out, nil

	case query.Summarize:
		return p.planSummarize(node, schema)

	case query.Sort:
		for _, key := range node.Keys {
			if !schema.Contains(key.Column) {
				return nil, unknownColumn(key.Column, schema)
			}
		}
		return schema, nil

	case query.Take:
		if node.N < 0 {
			return nil, kql.ErrSemantic.New(fmt.Sprintf("take requires a non-negative row count, got %d", node.N))
		}
		return schema, nil

	case query.Top:
		if node.N < 0 {
			return nil, kql.ErrSemantic.New(fmt.Sprintf("top requires a non-negative row count, got %d", node.N))
		}
		if !schema.Contains(node.Key.Column) {
			return nil, unknownColumn(node.Key.Column, schema)
		}
		return schema, nil

	case query.Count:
		return kql.Schema{{Name: "Count", Type: kql.TypeInt}}, nil

	case query.Distinct:
		out := make(kql.Schema, 0, len(node.Columns))
		for _, name := range node.Columns {
			idx := schema.IndexOf(name)
			if idx < 0 {
				return nil, unknownColumn(name, schema)
			}
			if out.Contains(name) {
				return nil, kql.ErrSemantic.New(fmt.Sprintf("duplicate column %q in distinct", name))
			}
			out = append(out, schema[idx])
		}
		return out, nil
	}
	return nil, kql.ErrInternal.New(fmt.Sprintf("unhandled operator node %T", op))
}

func (p *Planner) planSummarize(node query.Summarize, schema kql.Schema) (kql.Schema, error) {
	out := make(kql.Schema, 0, len(node.By)+len(node.Aggregations))
	for _, name := range node.By {
		idx := schema.IndexOf(name)
		if idx < 0 {
			return nil, unknownColumn(name, schema)
		}
		if out.Contains(name) {
			return nil, kql.ErrSemantic.New(fmt.Sprintf("duplicate grouping key %q", name))
		}
		out = append(out, schema[idx])
	}

	for _, agg := range node.Aggregations {
		if out.Contains(agg.Alias) {
			return nil, kql.ErrSemantic.New(fmt.Sprintf("duplicate summarize output %q", agg.Alias))
		}
		t, err := aggregateType(agg, schema)
		if err != nil {
			return nil, err
		}
		out = append(out, kql.Column{Name: agg.Alias, Type: t})
	}
	return out, nil
}

// aggregateType resolves the output type of one aggregation.
// count and dcount yield int; sum and avg require a numeric input and
// keep its type; min and max additionally accept datetime, timespan,
// and string inputs; make_list joins string renderings.
func aggregateType(agg query.Aggregation, schema kql.Schema) (kql.Type, error) {
	if agg.Fn == "count" {
		return kql.TypeInt, nil
	}

	idx := schema.IndexOf(agg.Column)
	if idx < 0 {
		return kql.TypeNull, unknownColumn(agg.Column, schema)
	}
	in := schema[idx].Type

	switch agg.Fn {
	case "dcount":
		return kql.TypeInt, nil
	case "sum", "avg":
		if !in.IsNumeric() {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("%s requires a numeric column, %s is %s", agg.Fn, agg.Column, in))
		}
		return in, nil
	case "min", "max":
		switch in {
		case kql.TypeInt, kql.TypeReal, kql.TypeDateTime, kql.TypeTimespan, kql.TypeString:
			return in, nil
		}
		return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("%s cannot aggregate %s column %s", agg.Fn, in, agg.Column))
	case "make_list":
		return kql.TypeString, nil
	}
	return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("unknown aggregation function %q", agg.Fn))
}

func unknownColumn(name string, schema kql.Schema) error {
	return kql.ErrSemantic.New(fmt.Sprintf("unknown column %q (available: %s)", name, strings.Join(schema.Names(), ", ")))
}
