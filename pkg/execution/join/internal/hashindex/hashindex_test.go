package hashindex

import (
	"fmt"
	"testing"

	"spilljoin/pkg/tuple"
	"spilljoin/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func desc() *tuple.TupleDescription {
	return tuple.MustTupleDesc([]types.Type{types.IntType, types.StringType}, []string{"k", "v"})
}

func row(offset int64, k int64, v string) *tuple.Tuple {
	return tuple.NewBuilder(desc()).WithKey(fmt.Sprintf("Row%d", offset)).WithOffset(offset).
		AddInt(k).AddString(v).MustBuild()
}

func TestAppendKey(t *testing.T) {
	a, ok, err := AppendKey(nil, row(0, 1, "x"), []int{0, 1}, types.CompareStrict)
	require.NoError(t, err)
	require.True(t, ok)

	b, ok, err := AppendKey(nil, row(9, 1, "x"), []int{0, 1}, types.CompareStrict)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, b)

	c, _, err := AppendKey(nil, row(0, 1, "y"), []int{0, 1}, types.CompareStrict)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	missing := tuple.NewBuilder(desc()).WithKey("m").AddInt(1).AddMissing().MustBuild()
	_, ok, err = AppendKey(nil, missing, []int{0, 1}, types.CompareStrict)
	require.NoError(t, err)
	assert.False(t, ok)

	byKey, ok, err := AppendKey(nil, row(3, 1, "x"), []int{RowKeyColumn}, types.CompareStrict)
	require.NoError(t, err)
	assert.True(t, ok)
	viaField, _ := types.AppendKey(nil, types.NewStringField("Row3"))
	assert.Equal(t, viaField, byKey)

	_, _, err = AppendKey(nil, row(0, 1, "x"), []int{5}, types.CompareStrict)
	assert.Error(t, err)
}

func TestPartitionerIsDeterministicAndLevelSeeded(t *testing.T) {
	p0 := NewPartitioner(0, 16)
	p0b := NewPartitioner(0, 16)
	p1 := NewPartitioner(1, 16)

	moved := 0
	counts := make([]int, 16)
	for i := range 1000 {
		key, _, err := AppendKey(nil, row(int64(i), int64(i), "v"), []int{0}, types.CompareStrict)
		require.NoError(t, err)
		b := p0.Bucket(key)
		require.Equal(t, b, p0b.Bucket(key))
		require.GreaterOrEqual(t, b, 0)
		require.Less(t, b, 16)
		counts[b]++
		if p1.Bucket(key) != b {
			moved++
		}
	}
	assert.Greater(t, moved, 500, "a new level should reshuffle most keys")
	for b, n := range counts {
		assert.Greater(t, n, 20, "bucket %d is nearly empty", b)
	}
}

func TestIndexInsertLookupEvict(t *testing.T) {
	ix := New(4)
	p := NewPartitioner(0, 4)

	rows := []*tuple.Tuple{row(0, 1, "a"), row(1, 1, "b"), row(2, 2, "c")}
	for _, r := range rows {
		key, _, err := AppendKey(nil, r, []int{0}, types.CompareStrict)
		require.NoError(t, err)
		require.NoError(t, ix.Insert(p.Bucket(key), key, r, EstimateSize(r)))
	}

	key1, _, _ := AppendKey(nil, row(9, 1, ""), []int{0}, types.CompareStrict)
	b1 := p.Bucket(key1)
	got := ix.Lookup(b1, key1)
	require.Len(t, got, 2)
	assert.Equal(t, "Row0", got[0].Key)
	assert.Equal(t, "Row1", got[1].Key)

	before := ix.Bytes()
	evicted, freed := ix.Evict(b1)
	assert.GreaterOrEqual(t, len(evicted), 2)
	assert.Equal(t, before-freed, ix.Bytes())
	assert.True(t, ix.IsEvicted(b1))
	assert.Equal(t, 3, ix.Resident())
	assert.Empty(t, ix.Lookup(b1, key1))
	assert.Error(t, ix.Insert(b1, key1, rows[0], 1))

	again, freedAgain := ix.Evict(b1)
	assert.Nil(t, again)
	assert.Zero(t, freedAgain)
}

func TestHighestResident(t *testing.T) {
	ix := New(3)
	b, ok := ix.HighestResident()
	require.True(t, ok)
	assert.Equal(t, 2, b)

	ix.Evict(2)
	b, _ = ix.HighestResident()
	assert.Equal(t, 1, b)

	ix.Evict(1)
	ix.Evict(0)
	_, ok = ix.HighestResident()
	assert.False(t, ok)
}

func TestUnmatchedTracking(t *testing.T) {
	ix := New(1)
	for i := range int64(4) {
		r := row(i, i, "v")
		key, _, _ := AppendKey(nil, r, []int{0}, types.CompareStrict)
		require.NoError(t, ix.Insert(0, key, r, EstimateSize(r)))
	}
	ix.MarkMatched(1)
	ix.MarkMatched(1)
	ix.MarkMatched(3)
	assert.Equal(t, uint64(2), ix.MatchedCount())

	var offsets []int64
	require.NoError(t, ix.ForEachUnmatched(func(r *tuple.Tuple) error {
		offsets = append(offsets, r.Offset)
		return nil
	}))
	assert.Equal(t, []int64{0, 2}, offsets)
}

func TestEstimateSizeGrowsWithStrings(t *testing.T) {
	assert.Greater(t, EstimateSize(row(0, 1, "a long string value")), EstimateSize(row(0, 1, "")))
}
