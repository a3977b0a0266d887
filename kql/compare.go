package kql

import (
	"fmt"
	"strings"
	"time"
)

// CompareValues compares two non-null cells and returns:
//
//	-1 if left < right
//	 0 if left == right
//	 1 if left > right
//
// int and real compare across each other; all other cross-type
// comparisons are an error. Null ordering is the caller's concern
// (sorting places nulls last, predicates treat null as false).
func CompareValues(left, right Value) (int, error) {
	switch l := left.(type) {
	case int64:
		switch r := right.(type) {
		case int64:
			return compareInt64s(l, r), nil
		case float64:
			return compareFloats(float64(l), r), nil
		}
	case float64:
		switch r := right.(type) {
		case int64:
			return compareFloats(l, float64(r)), nil
		case float64:
			return compareFloats(l, r), nil
		}
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r), nil
		}
	case bool:
		if r, ok := right.(bool); ok {
			if !l && r {
				return -1, nil
			} else if l && !r {
				return 1, nil
			}
			return 0, nil
		}
	case time.Time:
		if r, ok := right.(time.Time); ok {
			if l.Before(r) {
				return -1, nil
			} else if l.After(r) {
				return 1, nil
			}
			return 0, nil
		}
	case time.Duration:
		if r, ok := right.(time.Duration); ok {
			return compareInt64s(int64(l), int64(r)), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %s to %s", TypeOf(left), TypeOf(right))
}

// ValuesEqual reports equality of two cells. Nulls are equal only to
// each other; cross-type inequality is not an error here because
// grouping and distinct need a total equality check.
func ValuesEqual(a, b Value) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	c, err := CompareValues(a, b)
	if err != nil {
		return false
	}
	return c == 0
}

func compareInt64s(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
