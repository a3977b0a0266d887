package kql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompareValues(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		left  Value
		right Value
		want  int
	}{
		{"int lt", int64(1), int64(2), -1},
		{"int eq", int64(5), int64(5), 0},
		{"int gt", int64(9), int64(2), 1},
		{"int vs real", int64(2), 1.5, 1},
		{"real vs int", 1.5, int64(2), -1},
		{"string", "abc", "abd", -1},
		{"string eq", "x", "x", 0},
		{"bool", false, true, -1},
		{"datetime", t1, t2, -1},
		{"datetime eq", t1, t1, 0},
		{"timespan", time.Hour, 2 * time.Hour, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CompareValues(tc.left, tc.right)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCompareValuesTypeMismatch(t *testing.T) {
	_, err := CompareValues("abc", int64(1))
	require.Error(t, err)

	_, err = CompareValues(time.Hour, time.Now())
	require.Error(t, err)

	_, err = CompareValues(true, int64(1))
	require.Error(t, err)
}

func TestValuesEqual(t *testing.T) {
	require.True(t, ValuesEqual(nil, nil))
	require.False(t, ValuesEqual(nil, int64(0)))
	require.True(t, ValuesEqual(int64(3), int64(3)))
	require.True(t, ValuesEqual(int64(3), 3.0))
	require.False(t, ValuesEqual("a", "b"))
	require.False(t, ValuesEqual("a", int64(1)))
}
