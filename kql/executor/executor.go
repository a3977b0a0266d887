// Package executor evaluates typed plans over in-memory row-sets. Each
// operator is a pure function from (row-set, args) to row-set; the only
// per-query state is the captured now() instant, the regex cache, and
// the annotation collector.
package executor

import (
	"fmt"
	"time"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/annotations"
	"github.com/secsim/go-kql/kql/planner"
	"github.com/secsim/go-kql/kql/query"
)

// Options configures execution.
type Options struct {
	// MaxRows caps every intermediate row-set; zero means unbounded.
	MaxRows int64
	// Handler receives per-operator timing events; nil disables
	// collection entirely.
	Handler annotations.Handler
}

// Executor evaluates plans. It holds no per-query state and is safe
// for concurrent use.
type Executor struct {
	opts Options
}

// New creates an executor with the given options.
func New(opts Options) *Executor {
	return &Executor{opts: opts}
}

// Execute walks the plan and returns the final row-set. The now
// argument is the instant captured at query start; every now() and
// ago() in the query observes it.
func (e *Executor) Execute(plan *planner.Plan, now time.Time) (*RowSet, error) {
	collector := annotations.NewCollector(e.opts.Handler)
	ctx := newEvalContext(now)

	rs, err := e.materializeSource(plan)
	if err != nil {
		return nil, err
	}
	if err := e.checkLimit(rs.Len()); err != nil {
		return nil, err
	}

	for _, step := range plan.Steps {
		start := time.Now()
		next, err := e.applyOperator(ctx, step, rs)
		if err != nil {
			return nil, err
		}

		data := collector.GetDataMap()
		data["operator"] = step.Op.Name()
		data["rows_in"] = rs.Len()
		data["rows_out"] = next.Len()
		collector.AddTiming(annotations.OperatorApplied, start, data)

		if err := e.checkLimit(next.Len()); err != nil {
			return nil, err
		}
		rs = next
	}
	return rs, nil
}

// materializeSource builds the initial row-set. Union members are
// aligned by name against the plan's source schema: missing columns
// fill with null, int cells promote to real where the merged column
// type says so.
func (e *Executor) materializeSource(plan *planner.Plan) (*RowSet, error) {
	if len(plan.Tables) == 1 && len(plan.Tables[0].Schema) == len(plan.SourceSchema) {
		t := plan.Tables[0]
		rows := make([]kql.Row, len(t.Rows))
		copy(rows, t.Rows)
		return NewRowSet(plan.SourceSchema, rows), nil
	}

	var rows []kql.Row
	for _, t := range plan.Tables {
		indices := make([]int, len(plan.SourceSchema))
		for i, col := range plan.SourceSchema {
			indices[i] = t.Schema.IndexOf(col.Name)
		}
		for _, src := range t.Rows {
			row := make(kql.Row, len(plan.SourceSchema))
			for i, idx := range indices {
				if idx < 0 {
					continue
				}
				v := src[idx]
				if n, ok := v.(int64); ok && plan.SourceSchema[i].Type == kql.TypeReal {
					row[i] = float64(n)
				} else {
					row[i] = v
				}
			}
			rows = append(rows, row)
		}
	}
	return NewRowSet(plan.SourceSchema, rows), nil
}

func (e *Executor) applyOperator(ctx *evalContext, step planner.Step, rs *RowSet) (*RowSet, error) {
	switch node := step.Op.(type) {
	case query.Where:
		return e.applyWhere(ctx, node, rs)
	case query.Project:
		return e.applyProject(ctx, node, step.Schema, rs)
	case query.Extend:
		return e.applyExtend(ctx, node, step.Schema, rs)
	case query.Summarize:
		return e.applySummarize(node, step.Schema, rs)
	case query.Sort:
		return applySort(node.Keys, rs), nil
	case query.Take:
		return applyTake(node.N, rs), nil
	case query.Top:
		sorted := applySort([]query.SortKey{node.Key}, rs)
		return applyTake(node.N, sorted), nil
	case query.Count:
		row := kql.Row{int64(rs.Len())}
		return NewRowSet(step.Schema, []kql.Row{row}), nil
	case query.Distinct:
		return e.applyDistinct(node, step.Schema, rs)
	}
	return nil, kql.ErrInternal.New(fmt.Sprintf("unhandled operator node %T", step.Op))
}

func (e *Executor) checkLimit(n int) error {
	if e.opts.MaxRows > 0 && int64(n) > e.opts.MaxRows {
		return kql.ErrResourceLimit.New(n, e.opts.MaxRows)
	}
	return nil
}
