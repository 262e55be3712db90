package lib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoundMapEvictsOldest(t *testing.T) {
	m := NewBoundMap[int](3)
	m.Put("first", 1)
	m.Put("second", 2)
	m.Put("third", 3)
	m.Put("fourth", 4)

	require.Equal(t, 3, m.Len())
	_, ok := m.Get("first")
	require.False(t, ok)
	require.Equal(t, []string{"second", "third", "fourth"}, m.Keys())
}

func TestBoundMapReplaceKeepsOrder(t *testing.T) {
	m := NewBoundMap[int](2)
	m.Put("a", 1)
	m.Put("b", 2)
	m.Put("a", 10)

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 10, v)
	require.Equal(t, []string{"a", "b"}, m.Keys())
}

func TestSet(t *testing.T) {
	s := NewSet("x", "y")
	s.Add("y", "z")
	require.Equal(t, 3, s.Len())
	require.True(t, s.Contains("z"))
	require.True(t, s.Remove("x"))
	require.False(t, s.Remove("x"))
	require.False(t, s.Contains("x"))
}
