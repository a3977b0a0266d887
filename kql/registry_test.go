package kql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testTable(name string) *Table {
	return NewTable(name,
		Schema{{Name: "Name", Type: TypeString}, {Name: "Age", Type: TypeInt}},
		[]Row{{"alice", int64(30)}, {"bob", int64(25)}},
	)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("People", testTable("People")))

	got, ok := reg.Get("People")
	require.True(t, ok)
	require.Equal(t, "People", got.Name)
	require.Len(t, got.Rows, 2)

	_, ok = reg.Get("people")
	require.False(t, ok, "lookup is case-sensitive")
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("People", testTable("People")))

	err := reg.Register("People", testTable("People"))
	require.Error(t, err)
	require.True(t, ErrDuplicateTable.Is(err))
	require.Contains(t, err.Error(), "DuplicateTable")
}

func TestRegistryListOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"C", "A", "B"} {
		require.NoError(t, reg.Register(name, testTable(name)))
	}
	require.Equal(t, []string{"C", "A", "B"}, reg.List())
}

func TestRegistryCopiesOnRegister(t *testing.T) {
	reg := NewRegistry()
	src := testTable("People")
	require.NoError(t, reg.Register("People", src))

	// Mutating the caller's table must not affect the registered copy.
	src.Rows[0][0] = "mallory"
	src.Rows = src.Rows[:1]

	got, ok := reg.Get("People")
	require.True(t, ok)
	require.Len(t, got.Rows, 2)
	require.Equal(t, "alice", got.Rows[0][0])
}
