package list

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndLen(t *testing.T) {
	l := New[int]()
	assert.Equal(t, 0, l.Len())

	l.Append(1)
	l.Append(2)
	l.Append(3)

	assert.Equal(t, 3, l.Len())

	var got []int
	l.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestDetach(t *testing.T) {
	l := New[string]()
	l.Append("a")
	b := l.Append("b")
	l.Append("c")

	l.Detach(b)
	require.Equal(t, 2, l.Len())

	var got []string
	l.Each(func(v string) { got = append(got, v) })
	assert.Equal(t, []string{"a", "c"}, got)

	// detaching an already-detached element is a no-op
	l.Detach(b)
	assert.Equal(t, 2, l.Len())
}

func TestDetachHeadAndTail(t *testing.T) {
	l := New[int]()
	a := l.Append(1)
	l.Append(2)
	c := l.Append(3)

	l.Detach(a)
	require.Equal(t, 2, l.Len())
	assert.Equal(t, 2, l.Head().Value)

	l.Detach(c)
	require.Equal(t, 1, l.Len())

	var got []int
	l.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{2}, got)
}

func TestRemoveItem(t *testing.T) {
	l := New[int]()
	l.Append(1)
	l.Append(2)
	l.Append(3)

	var deleted int
	removed := RemoveItem(l, 2, func(a, b int) bool { return a == b }, func(v int) { deleted = v })
	require.True(t, removed)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 2, l.Len())

	removed = RemoveItem(l, 99, func(a, b int) bool { return a == b }, nil)
	assert.False(t, removed)
}

func TestFindItemAndCursor(t *testing.T) {
	l := New[int]()
	l.Append(10)
	l.Append(20)
	l.Append(30)

	found := l.FindItem(func(v int) bool { return v == 20 })
	require.NotNil(t, found)
	assert.Equal(t, 20, found.Value)
	assert.Same(t, found, l.Current())

	next := l.NextFromCurrent()
	require.NotNil(t, next)
	assert.Equal(t, 30, next.Value)

	notFound := l.FindItem(func(v int) bool { return v == 999 })
	assert.Nil(t, notFound)
	assert.Nil(t, l.Current())
}
