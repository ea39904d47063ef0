package join

import (
	"errors"
	"fmt"
	"sync"

	"spilljoin/pkg/table"
	"spilljoin/pkg/tuple"

	"github.com/google/btree"
)

// JoinContainer collects join output as the engine produces it. All Add
// methods are safe for concurrent use. Drain finishes the output tables and
// may be called once.
type JoinContainer interface {
	AddMatch(left, right *tuple.Tuple) error
	AddLeftOuter(left *tuple.Tuple) error
	AddRightOuter(right *tuple.Tuple) error
	Drain() (*Tables, error)
}

// Tables holds the finished output. Combined output fills only Combined;
// split output fills the tables whose rows were retained.
type Tables struct {
	Combined   table.Table
	Matches    table.Table
	LeftOuter  table.Table
	RightOuter table.Table
}

type rowKind uint8

const (
	kindMatch rowKind = iota
	kindLeft
	kindRight
)

// sink formats rows for one output shape and writes them to builders.
type sink interface {
	emit(kind rowKind, left, right *tuple.Tuple) error
	finish() (*Tables, error)
}

// NewJoinContainer returns the container variant for the specification's
// output order and the requested output shape.
func NewJoinContainer(spec *Specification, split bool, hashed Side, newBuilder table.BuilderFactory) JoinContainer {
	if newBuilder == nil {
		newBuilder = table.NewMemBuilderFactory()
	}

	var s sink
	if split {
		s = newSplitSink(spec, newBuilder)
	} else {
		s = newCombinedSink(spec, newBuilder)
	}

	if spec.OutputOrder() == OrderArbitrary {
		return &unsortedContainer{sink: s}
	}
	return &sortedContainer{
		sink:   s,
		order:  spec.OutputOrder(),
		hashed: hashed,
		tree:   btree.New(32),
	}
}

// ==================== Unsorted ====================

// unsortedContainer writes rows through in arrival order.
type unsortedContainer struct {
	mu      sync.Mutex
	sink    sink
	drained bool
}

func (c *unsortedContainer) add(kind rowKind, left, right *tuple.Tuple) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drained {
		return errDrained
	}
	return c.sink.emit(kind, left, right)
}

func (c *unsortedContainer) AddMatch(left, right *tuple.Tuple) error {
	return c.add(kindMatch, left, right)
}

func (c *unsortedContainer) AddLeftOuter(left *tuple.Tuple) error {
	return c.add(kindLeft, left, nil)
}

func (c *unsortedContainer) AddRightOuter(right *tuple.Tuple) error {
	return c.add(kindRight, nil, right)
}

func (c *unsortedContainer) Drain() (*Tables, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drained {
		return nil, errDrained
	}
	c.drained = true
	return c.sink.finish()
}

var errDrained = errors.New("join container already drained")

// ==================== Sorted ====================

// orderedRow is a buffered output row. Rows sort by group, then by the
// primary and secondary source offsets; seq breaks remaining ties in
// arrival order.
type orderedRow struct {
	group     int
	primary   int64
	secondary int64
	seq       uint64

	kind        rowKind
	left, right *tuple.Tuple
}

func (r *orderedRow) Less(than btree.Item) bool {
	o := than.(*orderedRow)
	switch {
	case r.group != o.group:
		return r.group < o.group
	case r.primary != o.primary:
		return r.primary < o.primary
	case r.secondary != o.secondary:
		return r.secondary < o.secondary
	default:
		return r.seq < o.seq
	}
}

// sortedContainer buffers rows in a B-tree and writes them in order on Drain.
//
// LEFT_RIGHT: rows with a left part by (left offset, right offset), then
// right-only rows by right offset.
// PROBE_HASH: rows with a streamed part by (streamed offset, hashed
// offset), then hashed-only rows by hashed offset.
type sortedContainer struct {
	mu      sync.Mutex
	sink    sink
	order   OutputOrder
	hashed  Side
	tree    *btree.BTree
	seq     uint64
	drained bool
}

func (c *sortedContainer) add(kind rowKind, left, right *tuple.Tuple) error {
	first, second := left, right
	if c.order == OrderProbeHash && c.hashed == SideLeft {
		first, second = right, left
	}

	row := &orderedRow{kind: kind, left: left, right: right, secondary: tuple.NoOffset}
	if first != nil {
		row.primary = first.Offset
		if second != nil {
			row.secondary = second.Offset
		}
	} else {
		row.group = 1
		row.primary = second.Offset
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drained {
		return errDrained
	}
	row.seq = c.seq
	c.seq++
	c.tree.ReplaceOrInsert(row)
	return nil
}

func (c *sortedContainer) AddMatch(left, right *tuple.Tuple) error {
	return c.add(kindMatch, left, right)
}

func (c *sortedContainer) AddLeftOuter(left *tuple.Tuple) error {
	return c.add(kindLeft, left, nil)
}

func (c *sortedContainer) AddRightOuter(right *tuple.Tuple) error {
	return c.add(kindRight, nil, right)
}

func (c *sortedContainer) Drain() (*Tables, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drained {
		return nil, errDrained
	}
	c.drained = true

	var err error
	c.tree.Ascend(func(i btree.Item) bool {
		r := i.(*orderedRow)
		err = c.sink.emit(r.kind, r.left, r.right)
		return err == nil
	})
	c.tree.Clear(false)
	if err != nil {
		return nil, err
	}
	return c.sink.finish()
}

// ==================== Sinks ====================

// output is one result table under construction.
type output struct {
	builder table.Builder
	next    int64
}

func newOutput(td *tuple.TupleDescription, newBuilder table.BuilderFactory) *output {
	return &output{builder: newBuilder(td)}
}

// add writes row, numbering its key when sequence keys are requested.
func (o *output) add(row *tuple.Tuple, sequence bool) error {
	if sequence {
		row.Key = fmt.Sprintf("Row%d", o.next)
	}
	o.next++
	row.Offset = tuple.NoOffset
	return o.builder.AddRow(row)
}

func (o *output) build() (table.Table, error) {
	if o == nil {
		return nil, nil
	}
	return o.builder.Build()
}

type combinedSink struct {
	spec *Specification
	out  *output
}

func newCombinedSink(spec *Specification, newBuilder table.BuilderFactory) *combinedSink {
	return &combinedSink{spec: spec, out: newOutput(spec.TranslateOutputSpec(), newBuilder)}
}

func (s *combinedSink) emit(kind rowKind, left, right *tuple.Tuple) error {
	var (
		row *tuple.Tuple
		err error
	)
	switch kind {
	case kindMatch:
		row, err = s.spec.JoinRows(left, right)
	case kindLeft:
		row, err = s.spec.LeftToSingleTableFormat(left)
	default:
		row, err = s.spec.RightToSingleTableFormat(right)
	}
	if err != nil {
		return err
	}
	return s.out.add(row, s.spec.RowKeys() == RowKeysSequence)
}

func (s *combinedSink) finish() (*Tables, error) {
	t, err := s.out.build()
	if err != nil {
		return nil, err
	}
	return &Tables{Combined: t}, nil
}

type splitSink struct {
	spec       *Specification
	matches    *output
	leftOuter  *output
	rightOuter *output
}

func newSplitSink(spec *Specification, newBuilder table.BuilderFactory) *splitSink {
	s := &splitSink{spec: spec}
	if spec.RetainMatches() {
		s.matches = newOutput(spec.TranslateOutputSpec(), newBuilder)
	}
	if spec.RetainLeftUnmatched() {
		s.leftOuter = newOutput(spec.LeftSchema(), newBuilder)
	}
	if spec.RetainRightUnmatched() {
		s.rightOuter = newOutput(spec.RightSchema(), newBuilder)
	}
	return s
}

func (s *splitSink) emit(kind rowKind, left, right *tuple.Tuple) error {
	var (
		out *output
		row *tuple.Tuple
		err error
	)
	switch kind {
	case kindMatch:
		out = s.matches
		row, err = s.spec.JoinRows(left, right)
	case kindLeft:
		out = s.leftOuter
		row, err = s.spec.ProjectUnmatched(SideLeft, left)
	default:
		out = s.rightOuter
		row, err = s.spec.ProjectUnmatched(SideRight, right)
	}
	if err != nil {
		return err
	}
	if out == nil {
		return fmt.Errorf("row kind %d is not retained", kind)
	}
	return out.add(row, kind == kindMatch && s.spec.RowKeys() == RowKeysSequence)
}

func (s *splitSink) finish() (*Tables, error) {
	var (
		tables Tables
		err    error
	)
	if tables.Matches, err = s.matches.build(); err != nil {
		return nil, err
	}
	if tables.LeftOuter, err = s.leftOuter.build(); err != nil {
		return nil, err
	}
	if tables.RightOuter, err = s.rightOuter.build(); err != nil {
		return nil, err
	}
	return &tables, nil
}
