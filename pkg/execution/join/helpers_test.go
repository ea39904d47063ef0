package join

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"spilljoin/pkg/iterator"
	"spilljoin/pkg/table"
	"spilljoin/pkg/tuple"
	"spilljoin/pkg/types"

	"github.com/stretchr/testify/require"
)

// newTable builds an in-memory table with keys Row0, Row1, ... Cells are
// given as Go values; nil is a missing cell.
func newTable(t *testing.T, td *tuple.TupleDescription, rows ...[]any) *table.MemTable {
	t.Helper()
	out := make([]*tuple.Tuple, len(rows))
	for i, cells := range rows {
		b := tuple.NewBuilder(td).WithKey(fmt.Sprintf("Row%d", i))
		for _, c := range cells {
			switch v := c.(type) {
			case nil:
				b.AddMissing()
			case int:
				b.AddInt(int64(v))
			case string:
				b.AddString(v)
			case float64:
				b.AddFloat(v)
			case bool:
				b.AddBool(v)
			default:
				t.Fatalf("unsupported cell %T", c)
			}
		}
		row, err := b.Build()
		require.NoError(t, err)
		out[i] = row
	}
	tbl, err := table.NewMemTable(td, out)
	require.NoError(t, err)
	return tbl
}

func kvDesc(key, value string) *tuple.TupleDescription {
	return tuple.MustTupleDesc([]types.Type{types.IntType, types.StringType}, []string{key, value})
}

// exampleTables returns L = {(1,a), (2,b)} and R = {(1,x), (1,y), (3,z)}.
func exampleTables(t *testing.T) (*table.MemTable, *table.MemTable) {
	left := newTable(t, kvDesc("k", "v"), []any{1, "a"}, []any{2, "b"})
	right := newTable(t, kvDesc("k", "w"), []any{1, "x"}, []any{1, "y"}, []any{3, "z"})
	return left, right
}

func settings(t *testing.T, tbl table.Table, join, include []string) *TableSettings {
	t.Helper()
	s, err := NewTableSettings(tbl, join, include)
	require.NoError(t, err)
	return s
}

// exampleSpec joins the example tables on k with merged join columns.
func exampleSpec(t *testing.T, mode JoinMode, order OutputOrder) *Specification {
	t.Helper()
	left, right := exampleTables(t)
	spec, err := NewBuilder(
		settings(t, left, []string{"k"}, []string{"k", "v"}),
		settings(t, right, []string{"k"}, []string{"k", "w"}),
	).MergeJoinColumns(true).Mode(mode).OutputOrder(order).Build()
	require.NoError(t, err)
	return spec
}

func readAll(t *testing.T, tbl table.Table) []*tuple.Tuple {
	t.Helper()
	if tbl == nil {
		return nil
	}
	rows, err := iterator.Collect[*tuple.Tuple](table.Rows(tbl, 0))
	require.NoError(t, err)
	return rows
}

// render formats a row as "key|cell|cell".
func render(row *tuple.Tuple) string {
	parts := []string{row.Key}
	for i := range row.NumFields() {
		parts = append(parts, row.Field(i).String())
	}
	return strings.Join(parts, "|")
}

func renderAll(t *testing.T, tbl table.Table) []string {
	t.Helper()
	rows := readAll(t, tbl)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = render(r)
	}
	return out
}

func sorted(xs []string) []string {
	out := append([]string(nil), xs...)
	sort.Strings(out)
	return out
}
