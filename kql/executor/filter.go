package executor

import (
	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/query"
)

// applyWhere retains the rows whose predicate evaluates to true. A
// null predicate result means the row is dropped.
func (e *Executor) applyWhere(ctx *evalContext, node query.Where, rs *RowSet) (*RowSet, error) {
	out := make([]kql.Row, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		ctx.bind(rs.Schema, row)
		v, err := e.evalExpr(ctx, node.Predicate)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			out = append(out, row)
		}
	}
	return NewRowSet(rs.Schema, out), nil
}

// truthy maps a cell to its boolean-context value: true only for the
// bool true. Null is false.
func truthy(v kql.Value) bool {
	b, ok := v.(bool)
	return ok && b
}
