package executor

import (
	"strings"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/query"
)

// applySummarize groups rows by the By keys and folds each aggregation
// over its group. Groups appear in the output in first-seen order.
// Without By keys there is exactly one group, present even for an
// empty input.
func (e *Executor) applySummarize(node query.Summarize, schema kql.Schema, rs *RowSet) (*RowSet, error) {
	keyIndices := make([]int, len(node.By))
	for i, name := range node.By {
		keyIndices[i] = rs.Schema.IndexOf(name)
	}
	colIndices := make([]int, len(node.Aggregations))
	for i, agg := range node.Aggregations {
		colIndices[i] = -1
		if agg.Column != "" {
			colIndices[i] = rs.Schema.IndexOf(agg.Column)
		}
	}

	type group struct {
		key  kql.Row
		accs []accumulator
	}
	newGroup := func(key kql.Row) *group {
		accs := make([]accumulator, len(node.Aggregations))
		for i, agg := range node.Aggregations {
			accs[i] = newAccumulator(agg.Fn, schema[len(node.By)+i].Type)
		}
		return &group{key: key, accs: accs}
	}

	groups := make(map[uint64]*group)
	var order []uint64

	if len(node.By) == 0 {
		groups[0] = newGroup(nil)
		order = append(order, 0)
	}

	for _, row := range rs.Rows {
		var h uint64
		if len(node.By) > 0 {
			key := make(kql.Row, len(keyIndices))
			for i, idx := range keyIndices {
				key[i] = row[idx]
			}
			var err error
			h, err = hashKey(key)
			if err != nil {
				return nil, kql.ErrEval.New(err.Error())
			}
			if _, ok := groups[h]; !ok {
				groups[h] = newGroup(key)
				order = append(order, h)
			}
		}

		g := groups[h]
		for i, acc := range g.accs {
			if colIndices[i] < 0 {
				acc.add(nil)
				continue
			}
			acc.add(row[colIndices[i]])
		}
	}

	out := make([]kql.Row, 0, len(order))
	for _, h := range order {
		g := groups[h]
		row := make(kql.Row, 0, len(schema))
		row = append(row, g.key...)
		for _, acc := range g.accs {
			v, err := acc.result()
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		out = append(out, row)
	}
	return NewRowSet(schema, out), nil
}

// accumulator folds one aggregation over the rows of a group.
type accumulator interface {
	add(v kql.Value)
	result() (kql.Value, error)
}

func newAccumulator(fn string, out kql.Type) accumulator {
	switch fn {
	case "count":
		return &countAcc{}
	case "sum":
		return &sumAcc{real: out == kql.TypeReal}
	case "avg":
		return &avgAcc{real: out == kql.TypeReal}
	case "min":
		return &extremeAcc{want: -1}
	case "max":
		return &extremeAcc{want: 1}
	case "dcount":
		return &dcountAcc{seen: make(map[uint64]struct{})}
	case "make_list":
		return &makeListAcc{}
	}
	return &countAcc{}
}

// countAcc counts rows, nulls included.
type countAcc struct {
	n int64
}

func (a *countAcc) add(kql.Value)              { a.n++ }
func (a *countAcc) result() (kql.Value, error) { return a.n, nil }

// sumAcc sums non-null cells; an all-null group yields null.
type sumAcc struct {
	real bool
	i    int64
	f    float64
	seen bool
}

func (a *sumAcc) add(v kql.Value) {
	switch n := v.(type) {
	case int64:
		a.i += n
		a.f += float64(n)
		a.seen = true
	case float64:
		a.f += n
		a.seen = true
	}
}

func (a *sumAcc) result() (kql.Value, error) {
	if !a.seen {
		return nil, nil
	}
	if a.real {
		return a.f, nil
	}
	return a.i, nil
}

// avgAcc averages non-null cells, keeping the input's numeric type.
type avgAcc struct {
	real bool
	i    int64
	f    float64
	n    int64
}

func (a *avgAcc) add(v kql.Value) {
	switch val := v.(type) {
	case int64:
		a.i += val
		a.f += float64(val)
		a.n++
	case float64:
		a.f += val
		a.n++
	}
}

func (a *avgAcc) result() (kql.Value, error) {
	if a.n == 0 {
		return nil, nil
	}
	if a.real {
		return a.f / float64(a.n), nil
	}
	return a.i / a.n, nil
}

// extremeAcc keeps the smallest (want == -1) or largest (want == 1)
// non-null cell.
type extremeAcc struct {
	want int
	best kql.Value
}

func (a *extremeAcc) add(v kql.Value) {
	if v == nil {
		return
	}
	if a.best == nil {
		a.best = v
		return
	}
	c, err := kql.CompareValues(v, a.best)
	if err != nil {
		return
	}
	if (a.want < 0 && c < 0) || (a.want > 0 && c > 0) {
		a.best = v
	}
}

func (a *extremeAcc) result() (kql.Value, error) { return a.best, nil }

// dcountAcc counts distinct non-null cells.
type dcountAcc struct {
	seen map[uint64]struct{}
	err  error
}

func (a *dcountAcc) add(v kql.Value) {
	if v == nil || a.err != nil {
		return
	}
	h, err := hashValue(v)
	if err != nil {
		a.err = kql.ErrEval.New(err.Error())
		return
	}
	a.seen[h] = struct{}{}
}

func (a *dcountAcc) result() (kql.Value, error) {
	if a.err != nil {
		return nil, a.err
	}
	return int64(len(a.seen)), nil
}

// makeListAcc joins the string renderings of non-null cells.
type makeListAcc struct {
	items []string
}

func (a *makeListAcc) add(v kql.Value) {
	if v == nil {
		return
	}
	a.items = append(a.items, kql.FormatValue(v))
}

func (a *makeListAcc) result() (kql.Value, error) {
	return strings.Join(a.items, ", "), nil
}
