package table

import (
	"fmt"
	"sync"

	"spilljoin/pkg/tuple"
)

// MemTable is a Table backed by a slice.
type MemTable struct {
	td   *tuple.TupleDescription
	rows []*tuple.Tuple
}

// NewMemTable builds a table from rows. Each row is cloned and given its
// position as offset; schemas must agree with td.
func NewMemTable(td *tuple.TupleDescription, rows []*tuple.Tuple) (*MemTable, error) {
	b := NewMemBuilder(td)
	for _, r := range rows {
		if err := b.AddRow(r); err != nil {
			return nil, err
		}
	}
	return b.table(), nil
}

func (m *MemTable) Schema() *tuple.TupleDescription { return m.td }

func (m *MemTable) RowCount() int64 { return int64(len(m.rows)) }

func (m *MemTable) ReadBlock(offset int64, n int) ([]*tuple.Tuple, error) {
	if offset < 0 || n < 0 {
		return nil, fmt.Errorf("invalid block request offset=%d n=%d", offset, n)
	}
	if offset >= int64(len(m.rows)) {
		return nil, nil
	}
	end := min(offset+int64(n), int64(len(m.rows)))

	out := make([]*tuple.Tuple, 0, end-offset)
	for _, r := range m.rows[offset:end] {
		out = append(out, r.Clone())
	}
	return out, nil
}

// Row returns the row at offset i. It panics when i is out of range.
func (m *MemTable) Row(i int) *tuple.Tuple {
	return m.rows[i]
}

// MemBuilder collects rows into a MemTable. AddRow is safe for concurrent use.
type MemBuilder struct {
	mu    sync.Mutex
	td    *tuple.TupleDescription
	rows  []*tuple.Tuple
	built bool
}

func NewMemBuilder(td *tuple.TupleDescription) *MemBuilder {
	return &MemBuilder{td: td}
}

func (b *MemBuilder) AddRow(t *tuple.Tuple) error {
	if !b.td.Equals(t.TupleDesc) {
		return fmt.Errorf("row schema %v does not match table schema %v", t.TupleDesc, b.td)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return fmt.Errorf("builder already built")
	}
	row := t.Clone()
	row.TupleDesc = b.td
	row.Offset = int64(len(b.rows))
	b.rows = append(b.rows, row)
	return nil
}

func (b *MemBuilder) Build() (Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return nil, fmt.Errorf("builder already built")
	}
	b.built = true
	return &MemTable{td: b.td, rows: b.rows}, nil
}

func (b *MemBuilder) table() *MemTable {
	return &MemTable{td: b.td, rows: b.rows}
}
