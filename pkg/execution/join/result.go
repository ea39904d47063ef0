package join

import (
	"time"

	"spilljoin/pkg/table"
)

// OutputCombined is the single-table result shape.
type OutputCombined struct {
	Table table.Table
}

// OutputSplit is the three-table result shape. A table is nil when its rows
// were not retained.
type OutputSplit struct {
	Matches    table.Table
	LeftOuter  table.Table
	RightOuter table.Table
}

// JoinResult is the output of one join invocation together with what the
// engine did to produce it.
type JoinResult[T OutputCombined | OutputSplit] struct {
	Output     T
	Statistics Statistics
}

// Statistics describes one join invocation.
type Statistics struct {
	JoinID     string
	Mode       ExecutionMode
	HashedSide Side

	// Partitions counts spilled partition pairs joined at any level.
	Partitions   int64
	MaxLevel     int
	SpilledBytes int64
	SpillFiles   int64

	LeftRows       int64
	RightRows      int64
	Matches        int64
	LeftUnmatched  int64
	RightUnmatched int64

	// PeakMemory is the highest estimated size of indexed rows.
	PeakMemory int64
	// SkewFallbacks counts partitions joined in memory past the budget
	// because the recursion limit was reached.
	SkewFallbacks int64
	Duration      time.Duration
}
