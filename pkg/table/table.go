// Package table defines the row sources the join engine reads and the sinks
// it writes. Implementations live outside the engine; this package ships an
// in-memory table and a CSV adapter.
package table

import (
	"spilljoin/pkg/tuple"
)

// Table is a read-only, block-addressable row source.
//
// ReadBlock returns up to n rows starting at offset. Rows should carry their
// position as Offset; Scanner assigns it regardless. A short or empty result
// means the end of the table.
// Implementations must be safe for concurrent ReadBlock calls.
type Table interface {
	Schema() *tuple.TupleDescription
	RowCount() int64
	ReadBlock(offset int64, n int) ([]*tuple.Tuple, error)
}

// Builder is a sink that accumulates rows and produces a Table.
type Builder interface {
	AddRow(t *tuple.Tuple) error
	Build() (Table, error)
}

// BuilderFactory creates a sink for rows of the given schema.
type BuilderFactory func(td *tuple.TupleDescription) Builder

// NewMemBuilderFactory returns the default BuilderFactory, which collects
// rows in memory.
func NewMemBuilderFactory() BuilderFactory {
	return func(td *tuple.TupleDescription) Builder {
		return NewMemBuilder(td)
	}
}
