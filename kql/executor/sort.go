package executor

import (
	"sort"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/query"
)

// applySort is a multi-key stable sort. Nulls sort after every
// non-null value in both directions. Rows comparing equal keep their
// input order.
func applySort(keys []query.SortKey, rs *RowSet) *RowSet {
	indices := make([]int, len(keys))
	for i, key := range keys {
		indices[i] = rs.Schema.IndexOf(key.Column)
	}

	rows := make([]kql.Row, len(rs.Rows))
	copy(rows, rs.Rows)

	sort.SliceStable(rows, func(a, b int) bool {
		for i, key := range keys {
			av := rows[a][indices[i]]
			bv := rows[b][indices[i]]
			if av == nil && bv == nil {
				continue
			}
			if av == nil {
				return false
			}
			if bv == nil {
				return true
			}
			c, err := kql.CompareValues(av, bv)
			if err != nil || c == 0 {
				continue
			}
			if key.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return NewRowSet(rs.Schema, rows)
}

// applyTake truncates to the first n rows. Negative counts are
// rejected at plan time.
func applyTake(n int64, rs *RowSet) *RowSet {
	if n >= int64(len(rs.Rows)) {
		return NewRowSet(rs.Schema, rs.Rows)
	}
	return NewRowSet(rs.Schema, rs.Rows[:n])
}
