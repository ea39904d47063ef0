package table

import (
	"fmt"

	"spilljoin/pkg/iterator"
	"spilljoin/pkg/tuple"
)

// DefaultBlockSize is the number of rows fetched per ReadBlock call.
const DefaultBlockSize = 1024

// Scanner iterates a Table sequentially, fetching one block at a time.
// Every row it returns carries its position in the table as Offset, whatever
// the table itself reported.
type Scanner struct {
	table     Table
	blockSize int
	next      int64
	block     *iterator.SliceIterator[*tuple.Tuple]
	done      bool
	opened    bool
}

var _ iterator.DbIterator = (*Scanner)(nil)

// Rows returns an opened sequential iterator over t.
func Rows(t Table, blockSize int) *Scanner {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Scanner{table: t, blockSize: blockSize, opened: true}
}

func (s *Scanner) Open() error {
	s.opened = true
	return nil
}

func (s *Scanner) Rewind() error {
	s.next, s.block, s.done = 0, nil, false
	return nil
}

func (s *Scanner) Close() error {
	s.opened = false
	s.block = nil
	return nil
}

func (s *Scanner) GetTupleDesc() *tuple.TupleDescription {
	return s.table.Schema()
}

// HasNext fetches the next block when the current one is exhausted.
func (s *Scanner) HasNext() (bool, error) {
	if !s.opened {
		return false, fmt.Errorf("scanner not opened")
	}
	if s.block != nil && s.block.Remaining() > 0 {
		return true, nil
	}
	if s.done {
		return false, nil
	}

	block, err := s.table.ReadBlock(s.next, s.blockSize)
	if err != nil {
		return false, fmt.Errorf("read block at offset %d: %w", s.next, err)
	}
	for i, row := range block {
		if pos := s.next + int64(i); row.Offset != pos {
			block[i] = row.Clone()
			block[i].Offset = pos
		}
	}
	s.block = iterator.NewSliceIterator(block)
	s.next += int64(len(block))
	if len(block) < s.blockSize {
		s.done = true
	}
	return len(block) > 0, nil
}

func (s *Scanner) Next() (*tuple.Tuple, error) {
	if s.block == nil {
		return nil, fmt.Errorf("no more rows")
	}
	return s.block.Next()
}
