package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseHashedSide(t *testing.T) {
	left, right := exampleTables(t)
	ls := settings(t, left, []string{"k"}, nil)
	rs := settings(t, right, []string{"k"}, nil)
	ce := NewCostEstimator(0)

	tests := []struct {
		name     string
		left     *TableSettings
		right    *TableSettings
		override HashSide
		want     Side
	}{
		{name: "smaller left", left: ls, right: rs, want: SideLeft},
		{name: "smaller right", left: ls.WithRowCountEstimate(10), right: rs, want: SideRight},
		{name: "tie hashes right", left: ls.WithRowCountEstimate(3), right: rs, want: SideRight},
		{name: "override right", left: ls, right: rs, override: HashSideRight, want: SideRight},
		{name: "override left", left: ls.WithRowCountEstimate(10), right: rs, override: HashSideLeft, want: SideLeft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ce.ChooseHashedSide(tt.left, tt.right, tt.override))
		})
	}
}

func TestPlanPredictsSpill(t *testing.T) {
	left, right := randomTables(t, 9, 500, 100)
	spec := randomSpec(t, left, right, Inner, false, OrderArbitrary)

	plan, err := NewCostEstimator(1<<30).Plan(spec, HashSideAuto)
	require.NoError(t, err)
	assert.Equal(t, SideRight, plan.HashedSide)
	assert.Equal(t, int64(100), plan.Hashed.Rows)
	assert.Positive(t, plan.Hashed.BytesPerRow)
	assert.False(t, plan.ExpectSpill)

	plan, err = NewCostEstimator(1<<10).Plan(spec, HashSideAuto)
	require.NoError(t, err)
	assert.True(t, plan.ExpectSpill)
	assert.Greater(t, plan.Hashed.Bytes(), int64(1<<10))
}

func TestEstimateEmptyInput(t *testing.T) {
	empty := newTable(t, kvDesc("k", "v"))
	est, err := NewCostEstimator(0).EstimateInput(settings(t, empty, []string{"k"}, nil))
	require.NoError(t, err)
	assert.Zero(t, est.Rows)
	assert.Equal(t, int64(defaultRowBytes), est.BytesPerRow)
}
