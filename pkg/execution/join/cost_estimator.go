package join

import (
	"spilljoin/pkg/execution/join/internal/hashindex"
	"spilljoin/pkg/iterator"
	"spilljoin/pkg/table"
	"spilljoin/pkg/tuple"
)

const (
	// sampleRows is how many leading rows are read to estimate row size.
	sampleRows = 256
	// defaultRowBytes is used when a table yields no sample.
	defaultRowBytes = 128
)

// InputEstimate is the predicted in-memory footprint of one input.
type InputEstimate struct {
	Rows        int64
	BytesPerRow int64
}

// Bytes returns the predicted size of indexing the whole input.
func (e InputEstimate) Bytes() int64 {
	return e.Rows * e.BytesPerRow
}

// Plan is the up-front decision for one invocation.
type Plan struct {
	HashedSide Side
	Hashed     InputEstimate
	Streamed   InputEstimate
	// ExpectSpill is true when the hashed input is predicted not to fit the
	// memory budget.
	ExpectSpill bool
}

// CostEstimator chooses the hashed side and predicts whether the join will
// spill.
type CostEstimator struct {
	budget int64
}

// NewCostEstimator creates an estimator for the given memory budget.
func NewCostEstimator(budget int64) *CostEstimator {
	return &CostEstimator{budget: budget}
}

// EstimateInput samples the first rows of the input to predict its size.
func (ce *CostEstimator) EstimateInput(s *TableSettings) (InputEstimate, error) {
	est := InputEstimate{Rows: max(s.RowCountEstimate(), 0), BytesPerRow: defaultRowBytes}

	scan := table.Rows(s.Table(), sampleRows)
	defer scan.Close()
	rows, err := iterator.Take[*tuple.Tuple](scan, sampleRows)
	if err != nil {
		return est, err
	}
	if len(rows) == 0 {
		return est, nil
	}

	var total int64
	for _, r := range rows {
		total += hashindex.EstimateSize(r)
	}
	est.BytesPerRow = total / int64(len(rows))
	return est, nil
}

// ChooseHashedSide picks the input with the smaller row-count estimate
// unless override names a side. Ties hash the right input.
func (ce *CostEstimator) ChooseHashedSide(left, right *TableSettings, override HashSide) Side {
	switch override {
	case HashSideLeft:
		return SideLeft
	case HashSideRight:
		return SideRight
	}
	if left.RowCountEstimate() < right.RowCountEstimate() {
		return SideLeft
	}
	return SideRight
}

// Plan estimates both inputs and decides the hashed side.
func (ce *CostEstimator) Plan(spec *Specification, override HashSide) (*Plan, error) {
	hashed := ce.ChooseHashedSide(spec.Left(), spec.Right(), override)

	h, err := ce.EstimateInput(spec.Settings(hashed))
	if err != nil {
		return nil, err
	}
	s, err := ce.EstimateInput(spec.Settings(hashed.Other()))
	if err != nil {
		return nil, err
	}

	return &Plan{
		HashedSide:  hashed,
		Hashed:      h,
		Streamed:    s,
		ExpectSpill: ce.budget > 0 && h.Bytes() > ce.budget,
	}, nil
}
