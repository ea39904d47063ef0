package iterator

import "fmt"

// SliceIterator iterates over materialized data held in a slice. Table
// scanners step through each fetched block with it.
//
// It needs no lifecycle management and is not safe for concurrent use.
type SliceIterator[T any] struct {
	data         []T
	currentIndex int
}

// NewSliceIterator creates an iterator over data. The slice is not copied.
func NewSliceIterator[T any](data []T) *SliceIterator[T] {
	return &SliceIterator[T]{data: data}
}

// HasNext reports whether at least one element remains. It never fails.
func (it *SliceIterator[T]) HasNext() (bool, error) {
	return it.currentIndex < len(it.data), nil
}

// Next returns the next element and advances the position.
func (it *SliceIterator[T]) Next() (T, error) {
	var zero T
	if it.currentIndex >= len(it.data) {
		return zero, fmt.Errorf("no more elements in slice iterator")
	}
	element := it.data[it.currentIndex]
	it.currentIndex++
	return element, nil
}

// Peek returns the next element without advancing.
func (it *SliceIterator[T]) Peek() (T, error) {
	var zero T
	if it.currentIndex >= len(it.data) {
		return zero, fmt.Errorf("no more elements in slice iterator")
	}
	return it.data[it.currentIndex], nil
}

// Rewind resets the read position to the beginning of the slice.
func (it *SliceIterator[T]) Rewind() error {
	it.currentIndex = 0
	return nil
}

// Len returns the total number of elements.
func (it *SliceIterator[T]) Len() int {
	return len(it.data)
}

// Remaining returns the number of elements left to iterate.
func (it *SliceIterator[T]) Remaining() int {
	return len(it.data) - it.currentIndex
}
