package iterator

import "spilljoin/pkg/tuple"

// Iterator is the pull contract shared by every row source in the engine:
// table scans, spill partition readers and drained join containers.
//
// HasNext must be called before each Next. Once HasNext reports false, or
// any method returns an error, the iterator is finished.
type Iterator[T any] interface {
	// HasNext checks if there are more elements available without consuming them.
	HasNext() (bool, error)

	// Next retrieves and returns the next element.
	Next() (T, error)
}

// TupleIterator is an Iterator over rows.
type TupleIterator = Iterator[*tuple.Tuple]

// DbIterator is a TupleIterator over a source with a declared schema and
// resources that must be released.
type DbIterator interface {
	TupleIterator

	// Open prepares the iterator. Calling it twice is a no-op.
	Open() error

	// Rewind restarts the sequence from its first row.
	Rewind() error

	// Close releases resources. It is safe to call on a closed iterator.
	Close() error

	// GetTupleDesc returns the schema of the rows produced by Next.
	GetTupleDesc() *tuple.TupleDescription
}
