package table

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"spilljoin/pkg/iterator"
	"spilljoin/pkg/tuple"
	"spilljoin/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intDesc() *tuple.TupleDescription {
	return tuple.MustTupleDesc([]types.Type{types.IntType}, []string{"v"})
}

func intTable(t *testing.T, n int) *MemTable {
	t.Helper()
	rows := make([]*tuple.Tuple, n)
	for i := range rows {
		rows[i] = tuple.NewBuilder(intDesc()).WithKey(fmt.Sprintf("Row%d", i)).AddInt(int64(i)).MustBuild()
	}
	tbl, err := NewMemTable(intDesc(), rows)
	require.NoError(t, err)
	return tbl
}

type brokenTable struct{ *MemTable }

func (brokenTable) ReadBlock(int64, int) ([]*tuple.Tuple, error) {
	return nil, errors.New("disk gone")
}

func TestReadBlockAssignsOffsets(t *testing.T) {
	tbl := intTable(t, 5)

	block, err := tbl.ReadBlock(3, 10)
	require.NoError(t, err)
	require.Len(t, block, 2)
	assert.Equal(t, int64(3), block[0].Offset)
	assert.Equal(t, "Row4", block[1].Key)

	block, err = tbl.ReadBlock(5, 1)
	require.NoError(t, err)
	assert.Empty(t, block)

	_, err = tbl.ReadBlock(-1, 1)
	assert.Error(t, err)
}

func TestScannerCrossesBlocks(t *testing.T) {
	tbl := intTable(t, 7)

	for _, blockSize := range []int{1, 3, 7, 100} {
		rows, err := iterator.Collect[*tuple.Tuple](Rows(tbl, blockSize))
		require.NoError(t, err)
		require.Len(t, rows, 7, "block size %d", blockSize)
		for i, r := range rows {
			assert.Equal(t, int64(i), r.Offset)
		}
	}

	s := Rows(tbl, 2)
	_, err := iterator.Take[*tuple.Tuple](s, 5)
	require.NoError(t, err)
	require.NoError(t, s.Rewind())
	all, err := iterator.Collect[*tuple.Tuple](s)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

// offsetlessTable reports every row without a source position.
type offsetlessTable struct{ *MemTable }

func (o offsetlessTable) ReadBlock(offset int64, n int) ([]*tuple.Tuple, error) {
	rows, err := o.MemTable.ReadBlock(offset, n)
	for _, r := range rows {
		r.Offset = tuple.NoOffset
	}
	return rows, err
}

// sharedRowsTable hands out its stored rows without copying them.
type sharedRowsTable struct {
	*MemTable
	rows []*tuple.Tuple
}

func (s sharedRowsTable) ReadBlock(offset int64, n int) ([]*tuple.Tuple, error) {
	end := min(offset+int64(n), int64(len(s.rows)))
	if offset >= end {
		return nil, nil
	}
	return append([]*tuple.Tuple(nil), s.rows[offset:end]...), nil
}

func TestScannerStampsOffsets(t *testing.T) {
	base := intTable(t, 5)
	shared := make([]*tuple.Tuple, 5)
	for i := range shared {
		shared[i] = base.Row(i).Clone()
		shared[i].Offset = 42
	}

	tests := []struct {
		name string
		tbl  Table
	}{
		{"no offsets", offsetlessTable{base}},
		{"wrong offsets", sharedRowsTable{MemTable: base, rows: shared}},
		{"correct offsets", base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := iterator.Collect[*tuple.Tuple](Rows(tt.tbl, 2))
			require.NoError(t, err)
			require.Len(t, rows, 5)
			for i, r := range rows {
				assert.Equal(t, int64(i), r.Offset)
				assert.Equal(t, fmt.Sprintf("Row%d", i), r.Key)
			}
		})
	}

	for _, r := range shared {
		assert.Equal(t, int64(42), r.Offset, "source rows are not modified")
	}
}

func TestScannerPropagatesReadErrors(t *testing.T) {
	_, err := iterator.Collect[*tuple.Tuple](Rows(brokenTable{intTable(t, 1)}, 4))
	assert.ErrorContains(t, err, "disk gone")
}

func TestMemBuilder(t *testing.T) {
	b := NewMemBuilder(intDesc())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.AddRow(tuple.NewBuilder(intDesc()).WithKey(fmt.Sprint(i)).AddInt(int64(i)).MustBuild()))
		}()
	}
	wg.Wait()

	other := tuple.MustTupleDesc([]types.Type{types.StringType}, nil)
	assert.Error(t, b.AddRow(tuple.NewTuple(other)))

	tbl, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, int64(20), tbl.RowCount())

	_, err = b.Build()
	assert.Error(t, err)
	assert.Error(t, b.AddRow(tuple.NewTuple(intDesc())))
}

func TestCSVRoundTrip(t *testing.T) {
	input := "id,k:int,name,score:float\n" +
		"a,1,x,1.5\n" +
		"b,?,y,\n"

	tbl, err := ReadCSV(strings.NewReader(input), CSVOptions{KeyColumn: "id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"k", "name", "score"}, tbl.Schema().FieldNames)
	assert.Equal(t, []types.Type{types.IntType, types.StringType, types.FloatType}, tbl.Schema().Types)
	require.Equal(t, int64(2), tbl.RowCount())

	second := tbl.Row(1)
	assert.Equal(t, "b", second.Key)
	assert.True(t, second.Field(0).IsMissing())
	assert.Equal(t, types.IntType, second.Field(0).Type())
	assert.True(t, second.Field(2).IsMissing())

	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, tbl, "id"))
	assert.Equal(t, "id,k:int,name:string,score:float\na,1,x,1.5\nb,?,y,?\n", out.String())

	again, err := ReadCSV(&out, CSVOptions{KeyColumn: "id"})
	require.NoError(t, err)
	assert.True(t, tbl.Row(0).Equals(again.Row(0)))
	assert.True(t, tbl.Row(1).Equals(again.Row(1)))
}

func TestCSVGeneratedKeysAndErrors(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("v:int\n4\n5\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Row1", tbl.Row(1).Key)

	_, err = ReadCSV(strings.NewReader("v:int\nnope\n"), CSVOptions{})
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadCSV(strings.NewReader("v:decimal\n"), CSVOptions{})
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("v\n1\n"), CSVOptions{KeyColumn: "id"})
	assert.Error(t, err)
}
