package iterator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingIterator struct {
	served int
	failAt int
}

func (f *failingIterator) HasNext() (bool, error) { return true, nil }

func (f *failingIterator) Next() (int, error) {
	if f.served == f.failAt {
		return 0, errors.New("boom")
	}
	f.served++
	return f.served, nil
}

func TestSliceIterator(t *testing.T) {
	it := NewSliceIterator([]int{1, 2, 3})
	assert.Equal(t, 3, it.Len())

	v, err := it.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	all, err := Collect[int](it)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, all)
	assert.Equal(t, 0, it.Remaining())

	_, err = it.Next()
	assert.Error(t, err)

	require.NoError(t, it.Rewind())
	all, err = Collect[int](it)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTakeStopsEarly(t *testing.T) {
	it := NewSliceIterator([]int{1, 2, 3, 4})
	got, err := Take[int](it, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 2, it.Remaining())

	got, err = Take[int](it, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Take[int](it, -1)
	assert.Error(t, err)
}

func TestErrorsPropagate(t *testing.T) {
	_, err := Collect[int](&failingIterator{failAt: 2})
	assert.EqualError(t, err, "boom")

	stop := errors.New("stop")
	err = ForEach[int](NewSliceIterator([]int{1, 2}), func(int) error { return stop })
	assert.ErrorIs(t, err, stop)
}
