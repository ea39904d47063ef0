package join

import (
	dberror "spilljoin/pkg/error"
	"spilljoin/pkg/execution/join/internal/hashindex"
	"spilljoin/pkg/table"
	"spilljoin/pkg/tuple"
	"spilljoin/pkg/types"
)

// RowKeyColumn can be used as a join column name to join on row keys.
const RowKeyColumn = "<row key>"

// TableSettings describes one join input: which columns form the join key,
// which columns are carried into the output, and where rows come from.
// It is immutable; WithRowCountEstimate returns a copy.
type TableSettings struct {
	table          table.Table
	joinColumns    []string
	joinIndices    []int
	includeColumns []string
	includeIndices []int
	rowCount       int64
}

// NewTableSettings validates column names against the table schema.
// joinColumns must be non-empty; a column may appear more than once to pair
// it with several columns of the other side. includeColumns may be empty and
// may overlap joinColumns, but must not repeat a column.
func NewTableSettings(t table.Table, joinColumns, includeColumns []string) (*TableSettings, error) {
	if t == nil {
		return nil, dberror.InvalidSpecification("table is nil")
	}
	if len(joinColumns) == 0 {
		return nil, dberror.InvalidSpecification("at least one join column is required")
	}

	td := t.Schema()
	joinIndices := make([]int, len(joinColumns))
	for i, name := range joinColumns {
		if name == RowKeyColumn {
			joinIndices[i] = hashindex.RowKeyColumn
			continue
		}
		idx, err := td.FindFieldIndex(name)
		if err != nil {
			return nil, dberror.InvalidSpecification("join column %q not found in table schema %v", name, td)
		}
		joinIndices[i] = idx
	}

	includeIndices := make([]int, len(includeColumns))
	included := make(map[string]bool, len(includeColumns))
	for i, name := range includeColumns {
		if included[name] {
			return nil, dberror.InvalidSpecification("include column %q listed twice", name)
		}
		included[name] = true

		idx, err := td.FindFieldIndex(name)
		if err != nil {
			return nil, dberror.InvalidSpecification("include column %q not found in table schema %v", name, td)
		}
		includeIndices[i] = idx
	}

	return &TableSettings{
		table:          t,
		joinColumns:    append([]string(nil), joinColumns...),
		joinIndices:    joinIndices,
		includeColumns: append([]string(nil), includeColumns...),
		includeIndices: includeIndices,
		rowCount:       t.RowCount(),
	}, nil
}

// WithRowCountEstimate returns a copy using n as the row-count estimate for
// choosing the hashed side.
func (s *TableSettings) WithRowCountEstimate(n int64) *TableSettings {
	c := *s
	c.rowCount = n
	return &c
}

func (s *TableSettings) Table() table.Table              { return s.table }
func (s *TableSettings) Schema() *tuple.TupleDescription { return s.table.Schema() }
func (s *TableSettings) JoinColumns() []string           { return append([]string(nil), s.joinColumns...) }
func (s *TableSettings) IncludeColumns() []string        { return append([]string(nil), s.includeColumns...) }
func (s *TableSettings) RowCountEstimate() int64         { return s.rowCount }

// joinKeyType returns the type of the i-th join column.
func (s *TableSettings) joinKeyType(i int) types.Type {
	if s.joinIndices[i] == hashindex.RowKeyColumn {
		return types.StringType
	}
	return s.table.Schema().Types[s.joinIndices[i]]
}

func (s *TableSettings) isIncluded(col int) bool {
	for _, c := range s.includeIndices {
		if c == col {
			return true
		}
	}
	return false
}
