package join

import (
	"fmt"
	"strings"

	dberror "spilljoin/pkg/error"
	"spilljoin/pkg/execution/join/internal/hashindex"
	"spilljoin/pkg/tuple"
	"spilljoin/pkg/types"
)

const (
	DefaultRowKeySeparator = "_"
	DefaultColumnSuffix    = " (right)"
	missingKey             = "?"
)

// Specification is a validated, immutable join definition. It owns the
// output layout: which input columns land in which output slot, and how
// rows of either side are padded to that layout.
type Specification struct {
	left, right *TableSettings

	retainMatches bool
	retainLeft    bool
	retainRight   bool
	merge         bool
	comparison    types.ComparisonMode
	order         OutputOrder
	rowKeys       RowKeyMode
	separator     string
	suffix        string

	combined    *tuple.TupleDescription
	leftSlots   []int   // left source column of each left output slot
	mergeFrom   [][]int // right source columns merged into each left slot
	rightSlots  []int   // right source column of each right output slot
	leftSchema  *tuple.TupleDescription
	rightSchema *tuple.TupleDescription
}

// Builder assembles a Specification. Setters may be called in any order;
// Build validates the result.
type Builder struct {
	spec Specification
}

// NewBuilder starts a specification for an inner join with arbitrary output
// order, separate join columns and concatenated row keys.
func NewBuilder(left, right *TableSettings) *Builder {
	return &Builder{spec: Specification{
		left:          left,
		right:         right,
		retainMatches: true,
		order:         OrderArbitrary,
		rowKeys:       RowKeysConcat,
		separator:     DefaultRowKeySeparator,
		suffix:        DefaultColumnSuffix,
	}}
}

// MergeJoinColumns collapses each left join column and its right partners
// into one output column.
func (b *Builder) MergeJoinColumns(merge bool) *Builder {
	b.spec.merge = merge
	return b
}

// ComparisonMode sets when two join-column cells count as equal. Modes other
// than strict also allow join columns of differing types.
func (b *Builder) ComparisonMode(m types.ComparisonMode) *Builder {
	b.spec.comparison = m
	return b
}

func (b *Builder) OutputOrder(o OutputOrder) *Builder {
	b.spec.order = o
	return b
}

// Retain sets which kinds of rows the join outputs.
func (b *Builder) Retain(matches, leftUnmatched, rightUnmatched bool) *Builder {
	b.spec.retainMatches = matches
	b.spec.retainLeft = leftUnmatched
	b.spec.retainRight = rightUnmatched
	return b
}

// Mode sets the retain flags of a named join mode.
func (b *Builder) Mode(m JoinMode) *Builder {
	return b.Retain(m.Flags())
}

func (b *Builder) RowKeys(mode RowKeyMode) *Builder {
	b.spec.rowKeys = mode
	return b
}

func (b *Builder) RowKeySeparator(sep string) *Builder {
	b.spec.separator = sep
	return b
}

// ColumnSuffix is appended to right column names that clash with a name
// already in the output, as often as needed.
func (b *Builder) ColumnSuffix(suffix string) *Builder {
	b.spec.suffix = suffix
	return b
}

// Build validates the settings and computes the output layout.
func (b *Builder) Build() (*Specification, error) {
	s := b.spec
	if s.left == nil || s.right == nil {
		return nil, dberror.InvalidSpecification("both table settings are required")
	}
	if len(s.left.joinIndices) != len(s.right.joinIndices) {
		return nil, dberror.InvalidSpecification("join column arity mismatch: left has %d, right has %d",
			len(s.left.joinIndices), len(s.right.joinIndices))
	}
	if !s.comparison.IsValid() {
		return nil, dberror.InvalidSpecification("unknown comparison mode %v", s.comparison)
	}
	for i := range s.left.joinIndices {
		lt, rt := s.left.joinKeyType(i), s.right.joinKeyType(i)
		if !s.comparison.Comparable(lt, rt) {
			return nil, dberror.InvalidSpecification("join columns %q and %q have incompatible types %v and %v under %v comparison",
				s.left.joinColumns[i], s.right.joinColumns[i], lt, rt, s.comparison)
		}
	}
	if !s.retainMatches && !s.retainLeft && !s.retainRight {
		return nil, dberror.InvalidSpecification("a join must retain matches or unmatched rows of at least one side")
	}
	if s.order < OrderArbitrary || s.order > OrderLeftRight {
		return nil, dberror.InvalidSpecification("unknown output order %v", s.order)
	}
	if s.rowKeys < RowKeysConcat || s.rowKeys > RowKeysRetain {
		return nil, dberror.InvalidSpecification("unknown row key mode %d", s.rowKeys)
	}
	if s.suffix == "" {
		return nil, dberror.InvalidSpecification("column suffix must not be empty")
	}

	if err := s.layout(); err != nil {
		return nil, err
	}
	return &s, nil
}

// layout computes the combined schema and the slot mappings.
func (s *Specification) layout() error {
	ltd, rtd := s.left.Schema(), s.right.Schema()

	partners := make(map[int][]int)
	mergedRight := make(map[int]bool)
	if s.merge {
		for i, lc := range s.left.joinIndices {
			rc := s.right.joinIndices[i]
			if lc == hashindex.RowKeyColumn || rc == hashindex.RowKeyColumn {
				continue
			}
			if !containsInt(partners[lc], rc) {
				partners[lc] = append(partners[lc], rc)
			}
			mergedRight[rc] = true
		}
	}

	s.leftSlots = append([]int(nil), s.left.includeIndices...)
	if s.merge {
		for _, lc := range s.left.joinIndices {
			if lc == hashindex.RowKeyColumn || containsInt(s.leftSlots, lc) {
				continue
			}
			for _, rc := range partners[lc] {
				if s.right.isIncluded(rc) {
					s.leftSlots = append(s.leftSlots, lc)
					break
				}
			}
		}
	}
	s.mergeFrom = make([][]int, len(s.leftSlots))
	for i, lc := range s.leftSlots {
		s.mergeFrom[i] = partners[lc]
	}

	for _, rc := range s.right.includeIndices {
		if !mergedRight[rc] {
			s.rightSlots = append(s.rightSlots, rc)
		}
	}

	taken := make(map[string]bool)
	n := len(s.leftSlots) + len(s.rightSlots)
	fieldTypes := make([]types.Type, 0, n)
	fieldNames := make([]string, 0, n)
	for i, lc := range s.leftSlots {
		slotType := ltd.Types[lc]
		for _, rc := range s.mergeFrom[i] {
			slotType = types.CommonType(slotType, rtd.Types[rc])
		}
		fieldTypes = append(fieldTypes, slotType)
		fieldNames = append(fieldNames, s.disambiguate(s.mergedName(ltd.FieldNames[lc], s.mergeFrom[i]), taken))
	}
	for _, rc := range s.rightSlots {
		fieldTypes = append(fieldTypes, rtd.Types[rc])
		fieldNames = append(fieldNames, s.disambiguate(rtd.FieldNames[rc], taken))
	}

	var err error
	if s.combined, err = tuple.NewTupleDesc(fieldTypes, fieldNames); err != nil {
		return dberror.InvalidSpecification("combined schema: %v", err)
	}
	if s.leftSchema, err = ltd.Project(s.left.includeIndices); err != nil {
		return dberror.InvalidSpecification("left schema: %v", err)
	}
	if s.rightSchema, err = rtd.Project(s.right.includeIndices); err != nil {
		return dberror.InvalidSpecification("right schema: %v", err)
	}
	return nil
}

// mergedName keeps the left name when a partner shares it, else "L=R1=R2".
func (s *Specification) mergedName(leftName string, from []int) string {
	if len(from) == 0 {
		return leftName
	}
	names := make([]string, 0, len(from)+1)
	names = append(names, leftName)
	for _, rc := range from {
		rn := s.right.Schema().FieldNames[rc]
		if rn == leftName {
			return leftName
		}
		names = append(names, rn)
	}
	return strings.Join(names, "=")
}

func (s *Specification) disambiguate(name string, taken map[string]bool) string {
	for taken[name] {
		name += s.suffix
	}
	taken[name] = true
	return name
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func (s *Specification) Left() *TableSettings  { return s.left }
func (s *Specification) Right() *TableSettings { return s.right }
func (s *Specification) Settings(side Side) *TableSettings {
	if side == SideLeft {
		return s.left
	}
	return s.right
}

func (s *Specification) RetainMatches() bool                  { return s.retainMatches }
func (s *Specification) RetainLeftUnmatched() bool            { return s.retainLeft }
func (s *Specification) RetainRightUnmatched() bool           { return s.retainRight }
func (s *Specification) MergeJoinColumns() bool               { return s.merge }
func (s *Specification) ComparisonMode() types.ComparisonMode { return s.comparison }
func (s *Specification) OutputOrder() OutputOrder             { return s.order }
func (s *Specification) RowKeys() RowKeyMode                  { return s.rowKeys }

func (s *Specification) retainUnmatched(side Side) bool {
	if side == SideLeft {
		return s.retainLeft
	}
	return s.retainRight
}

// Mode reports the named join mode of the retain flags. ok is false for
// combinations without a name, which still run with each flag applied
// independently.
func (s *Specification) Mode() (m JoinMode, ok bool) {
	return modeOf(s.retainMatches, s.retainLeft, s.retainRight)
}

// TranslateOutputSpec returns the schema of the combined output, which is
// also the schema of the Matches table of split output.
func (s *Specification) TranslateOutputSpec() *tuple.TupleDescription {
	return s.combined
}

// LeftSchema returns the schema of the LeftOuter table of split output.
func (s *Specification) LeftSchema() *tuple.TupleDescription { return s.leftSchema }

// RightSchema returns the schema of the RightOuter table of split output.
func (s *Specification) RightSchema() *tuple.TupleDescription { return s.rightSchema }

// IsMergeColumn reports whether the combined-output column at outputIndex
// holds a merged join column pair.
func (s *Specification) IsMergeColumn(outputIndex int) bool {
	return outputIndex >= 0 && outputIndex < len(s.leftSlots) && len(s.mergeFrom[outputIndex]) > 0
}

// JoinRows forms the combined-output row of a matching pair.
func (s *Specification) JoinRows(left, right *tuple.Tuple) (*tuple.Tuple, error) {
	out := tuple.NewTuple(s.combined)
	out.Key = s.outputKey(left, right)
	if err := s.fillLeft(out, left); err != nil {
		return nil, err
	}
	if err := s.fillRight(out, right); err != nil {
		return nil, err
	}
	return out, nil
}

// LeftToSingleTableFormat pads an unmatched left input row to the combined
// layout. Every right slot is missing.
func (s *Specification) LeftToSingleTableFormat(left *tuple.Tuple) (*tuple.Tuple, error) {
	out := tuple.NewTuple(s.combined)
	out.Key = s.outputKey(left, nil)
	if err := s.fillLeft(out, left); err != nil {
		return nil, err
	}
	return out, nil
}

// RightToSingleTableFormat pads an unmatched right input row to the combined
// layout. Merged slots take the row's own join values; when several right
// columns merge into one slot and disagree, the slot is missing. All other
// left slots are missing.
func (s *Specification) RightToSingleTableFormat(right *tuple.Tuple) (*tuple.Tuple, error) {
	out := tuple.NewTuple(s.combined)
	out.Key = s.outputKey(nil, right)
	for i, from := range s.mergeFrom {
		if len(from) == 0 {
			continue
		}
		f, err := consensus(right, from, s.combined.Types[i])
		if err != nil {
			return nil, err
		}
		if f != nil {
			if err := out.SetField(i, f); err != nil {
				return nil, fmt.Errorf("merged slot %d: %w", i, err)
			}
		}
	}
	if err := s.fillRight(out, right); err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectUnmatched projects an unmatched row of side to that side's
// included columns, keeping its key.
func (s *Specification) ProjectUnmatched(side Side, row *tuple.Tuple) (*tuple.Tuple, error) {
	if side == SideLeft {
		return row.Project(s.leftSchema, s.left.includeIndices)
	}
	return row.Project(s.rightSchema, s.right.includeIndices)
}

func (s *Specification) fillLeft(out, left *tuple.Tuple) error {
	for i, lc := range s.leftSlots {
		f, err := left.GetField(lc)
		if err != nil {
			return fmt.Errorf("left row %q: %w", left.Key, err)
		}
		if f, err = types.Convert(f, s.combined.Types[i]); err != nil {
			return fmt.Errorf("left row %q: %w", left.Key, err)
		}
		if err := out.SetField(i, f); err != nil {
			return fmt.Errorf("left row %q: %w", left.Key, err)
		}
	}
	return nil
}

func (s *Specification) fillRight(out, right *tuple.Tuple) error {
	base := len(s.leftSlots)
	for i, rc := range s.rightSlots {
		f, err := right.GetField(rc)
		if err != nil {
			return fmt.Errorf("right row %q: %w", right.Key, err)
		}
		if err := out.SetField(base+i, f); err != nil {
			return fmt.Errorf("right row %q: %w", right.Key, err)
		}
	}
	return nil
}

// consensus returns the common value of cols in row as a cell of type t, or
// nil when any of them is missing or they disagree.
func consensus(row *tuple.Tuple, cols []int, t types.Type) (types.Field, error) {
	var agreed types.Field
	for _, c := range cols {
		f, err := row.GetField(c)
		if err != nil {
			return nil, fmt.Errorf("right row %q: %w", row.Key, err)
		}
		if f.IsMissing() {
			return nil, nil
		}
		if f, err = types.Convert(f, t); err != nil {
			return nil, fmt.Errorf("right row %q: %w", row.Key, err)
		}
		if agreed == nil {
			agreed = f
		} else if !agreed.Equals(f) {
			return nil, nil
		}
	}
	return agreed, nil
}

// outputKey builds the row key of a combined row; nil marks the absent side.
// Sequence keys are assigned when rows reach their output table.
func (s *Specification) outputKey(left, right *tuple.Tuple) string {
	switch s.rowKeys {
	case RowKeysRetain:
		if left != nil {
			return left.Key
		}
		return right.Key
	case RowKeysSequence:
		return ""
	default:
		lk, rk := missingKey, missingKey
		if left != nil {
			lk = left.Key
		}
		if right != nil {
			rk = right.Key
		}
		return lk + s.separator + rk
	}
}
