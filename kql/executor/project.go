package executor

import (
	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/query"
)

// applyProject builds a new row-set with exactly the listed columns,
// in the listed order.
func (e *Executor) applyProject(ctx *evalContext, node query.Project, schema kql.Schema, rs *RowSet) (*RowSet, error) {
	out := make([]kql.Row, len(rs.Rows))
	for i, row := range rs.Rows {
		ctx.bind(rs.Schema, row)
		projected := make(kql.Row, len(node.Items))
		for j, item := range node.Items {
			v, err := e.evalExpr(ctx, item.Expr)
			if err != nil {
				return nil, err
			}
			projected[j] = v
		}
		out[i] = projected
	}
	return NewRowSet(schema, out), nil
}

// applyExtend appends or overwrites one column per assignment,
// left-to-right; each assignment is evaluated against the schema as
// extended by the ones before it. The planner already typed the final
// schema; only column positions matter here.
func (e *Executor) applyExtend(ctx *evalContext, node query.Extend, schema kql.Schema, rs *RowSet) (*RowSet, error) {
	working := rs.Schema.Clone()
	rows := make([]kql.Row, len(rs.Rows))
	for i, row := range rs.Rows {
		rows[i] = row.Clone()
	}

	for _, assign := range node.Assignments {
		idx := working.IndexOf(assign.Name)
		for i := range rows {
			ctx.bind(working, rows[i])
			v, err := e.evalExpr(ctx, assign.Expr)
			if err != nil {
				return nil, err
			}
			if idx >= 0 {
				rows[i][idx] = v
			} else {
				rows[i] = append(rows[i], v)
			}
		}
		if idx < 0 {
			working = append(working, kql.Column{Name: assign.Name})
		}
	}
	return NewRowSet(schema, rows), nil
}

// applyDistinct projects to the listed columns and keeps the first
// occurrence of each distinct tuple.
func (e *Executor) applyDistinct(node query.Distinct, schema kql.Schema, rs *RowSet) (*RowSet, error) {
	indices := make([]int, len(node.Columns))
	for i, name := range node.Columns {
		indices[i] = rs.Schema.IndexOf(name)
	}

	seen := make(map[uint64]struct{})
	var out []kql.Row
	for _, row := range rs.Rows {
		projected := make(kql.Row, len(indices))
		for i, idx := range indices {
			projected[i] = row[idx]
		}
		h, err := hashKey(projected)
		if err != nil {
			return nil, kql.ErrEval.New(err.Error())
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, projected)
	}
	return NewRowSet(schema, out), nil
}
