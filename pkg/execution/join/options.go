package join

import (
	"fmt"
	"strings"

	dberror "spilljoin/pkg/error"
	"spilljoin/pkg/execution/join/internal/spill"
	"spilljoin/pkg/fs"
	"spilljoin/pkg/table"
)

const (
	DefaultNumPartitions     = 16
	DefaultMaxRecursionDepth = 4
	DefaultMemoryBudget      = 256 << 20
	DefaultSpillBlockSize    = 64 << 10
	maxNumPartitions         = 1 << 12
)

// Compression selects the codec for spill files.
type Compression int

const (
	CompressionLZ4 Compression = iota
	CompressionNone
	CompressionSnappy
	CompressionZstd
)

func (c Compression) String() string {
	return c.codec().String()
}

func (c Compression) codec() spill.Compression {
	switch c {
	case CompressionNone:
		return spill.CompressionNone
	case CompressionSnappy:
		return spill.CompressionSnappy
	case CompressionZstd:
		return spill.CompressionZstd
	default:
		return spill.CompressionLZ4
	}
}

// ParseCompression accepts "none", "lz4", "snappy" or "zstd".
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "lz4", "":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// Options tunes one join invocation. The zero value of each field selects
// its default; see DefaultOptions.
type Options struct {
	// NumPartitions is the bucket count of every partition pass.
	NumPartitions int
	// MaxRecursionDepth bounds repartitioning. A partition at this level is
	// joined in memory regardless of the budget.
	MaxRecursionDepth int
	// Parallelism is the number of spilled partitions joined concurrently.
	Parallelism int

	// MemoryBudgetBytes caps the estimated size of indexed rows.
	MemoryBudgetBytes int64
	// AssumeMemoryLow spills every bucket from the start.
	AssumeMemoryLow bool
	HashSide        HashSide

	// SpillDir is the parent of the per-invocation spill directory;
	// os.TempDir() if empty.
	SpillDir         string
	SpillFS          fs.FileSystem
	Compression      Compression
	SpillBlockSize   int
	SpillBytesPerSec int64

	// BlockSize is the number of rows fetched per input read.
	BlockSize int
	// NewBuilder creates the output sinks; in-memory tables if nil.
	NewBuilder table.BuilderFactory
	// Monitor receives progress and is polled for cancellation. If nil, the
	// context passed to the join is used.
	Monitor ExecutionMonitor
}

// DefaultOptions returns the options used for zero-valued fields.
func DefaultOptions() Options {
	return Options{
		NumPartitions:     DefaultNumPartitions,
		MaxRecursionDepth: DefaultMaxRecursionDepth,
		Parallelism:       1,
		MemoryBudgetBytes: DefaultMemoryBudget,
		SpillFS:           fs.Default,
		Compression:       CompressionLZ4,
		SpillBlockSize:    DefaultSpillBlockSize,
		BlockSize:         table.DefaultBlockSize,
		NewBuilder:        table.NewMemBuilderFactory(),
	}
}

// withDefaults fills zero fields and rejects negative ones.
func (o Options) withDefaults() (Options, error) {
	d := DefaultOptions()
	switch {
	case o.NumPartitions < 0 || o.NumPartitions > maxNumPartitions:
		return o, dberror.InvalidSpecification("partition count %d outside [1, %d]", o.NumPartitions, maxNumPartitions)
	case o.MaxRecursionDepth < 0:
		return o, dberror.InvalidSpecification("negative recursion depth %d", o.MaxRecursionDepth)
	case o.Parallelism < 0:
		return o, dberror.InvalidSpecification("negative parallelism %d", o.Parallelism)
	case o.MemoryBudgetBytes < 0:
		return o, dberror.InvalidSpecification("negative memory budget %d", o.MemoryBudgetBytes)
	case o.SpillBlockSize < 0 || o.BlockSize < 0 || o.SpillBytesPerSec < 0:
		return o, dberror.InvalidSpecification("block sizes and spill rate must not be negative")
	case o.HashSide < HashSideAuto || o.HashSide > HashSideRight:
		return o, dberror.InvalidSpecification("unknown hash side %d", o.HashSide)
	case o.Compression < CompressionLZ4 || o.Compression > CompressionZstd:
		return o, dberror.InvalidSpecification("unknown compression %d", o.Compression)
	}

	if o.NumPartitions == 0 {
		o.NumPartitions = d.NumPartitions
	}
	if o.MaxRecursionDepth == 0 {
		o.MaxRecursionDepth = d.MaxRecursionDepth
	}
	if o.Parallelism == 0 {
		o.Parallelism = d.Parallelism
	}
	if o.MemoryBudgetBytes == 0 {
		o.MemoryBudgetBytes = d.MemoryBudgetBytes
	}
	if o.SpillFS == nil {
		o.SpillFS = d.SpillFS
	}
	if o.SpillBlockSize == 0 {
		o.SpillBlockSize = d.SpillBlockSize
	}
	if o.BlockSize == 0 {
		o.BlockSize = d.BlockSize
	}
	if o.NewBuilder == nil {
		o.NewBuilder = d.NewBuilder
	}
	return o, nil
}
