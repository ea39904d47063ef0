// Package hashindex holds the in-memory side of the hash join: join-key
// encoding, bucket assignment and the bucketed hash table itself.
package hashindex

import (
	"encoding/binary"
	"fmt"

	"spilljoin/pkg/tuple"
	"spilljoin/pkg/types"

	"github.com/cespare/xxhash/v2"
)

// RowKeyColumn in a column list selects the row key instead of a cell.
const RowKeyColumn = -1

// AppendKey appends the composite join key of row over cols to dst, with
// cells encoded under mode. ok is false when any key cell is missing; such
// rows never match.
func AppendKey(dst []byte, row *tuple.Tuple, cols []int, mode types.ComparisonMode) (key []byte, ok bool, err error) {
	for _, c := range cols {
		var f types.Field
		if c == RowKeyColumn {
			f = types.NewStringField(row.Key)
		} else {
			if f, err = row.GetField(c); err != nil {
				return dst, false, err
			}
		}
		if f.IsMissing() {
			return dst, false, nil
		}
		if dst, err = types.AppendKeyAs(dst, f, mode); err != nil {
			return dst, false, fmt.Errorf("key column %d: %w", c, err)
		}
	}
	return dst, true, nil
}

// Partitioner assigns encoded keys to buckets. Each recursion level uses a
// different seed so a bucket that overflowed at one level is split at the next.
// A Partitioner is not safe for concurrent use.
type Partitioner struct {
	seed    [8]byte
	buckets uint64
	digest  *xxhash.Digest
}

// NewPartitioner creates a partitioner over n buckets for recursion level.
func NewPartitioner(level, n int) *Partitioner {
	p := &Partitioner{buckets: uint64(max(n, 1)), digest: xxhash.New()}          // #nosec G115
	binary.LittleEndian.PutUint64(p.seed[:], uint64(level)*0x9E3779B97F4A7C15+1) // #nosec G115
	return p
}

// Bucket returns the bucket of an encoded key.
func (p *Partitioner) Bucket(key []byte) int {
	p.digest.Reset()
	_, _ = p.digest.Write(p.seed[:])
	_, _ = p.digest.Write(key)
	return int(p.digest.Sum64() % p.buckets) // #nosec G115
}

// rowOverhead approximates the fixed cost of a resident row: the tuple
// header, its field slice and the index slot pointing at it.
const rowOverhead = 96

// EstimateSize approximates the heap footprint of an indexed row.
func EstimateSize(row *tuple.Tuple) int64 {
	size := int64(rowOverhead + len(row.Key))
	for i := range row.NumFields() {
		size += row.Field(i).MemSize()
	}
	return size
}
