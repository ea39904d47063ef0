package hashindex

import (
	"fmt"

	"spilljoin/pkg/tuple"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

type bucket struct {
	entries map[string][]*tuple.Tuple
	rows    []*tuple.Tuple
	bytes   int64
	evicted bool
}

// Index maps encoded join keys to the hashed-side rows carrying them,
// grouped into buckets that can be evicted independently.
//
// An Index belongs to one partition pass and is not safe for concurrent use.
// Once the build phase ends only the matched set changes.
type Index struct {
	buckets  []bucket
	resident int
	bytes    int64
	matched  *roaring64.Bitmap
}

// New creates an empty index with n buckets, all resident.
func New(n int) *Index {
	ix := &Index{buckets: make([]bucket, max(n, 1)), matched: roaring64.New()}
	for i := range ix.buckets {
		ix.buckets[i].entries = make(map[string][]*tuple.Tuple)
	}
	ix.resident = len(ix.buckets)
	return ix
}

// NumBuckets returns the bucket count.
func (ix *Index) NumBuckets() int { return len(ix.buckets) }

// Bytes returns the estimated footprint of resident rows.
func (ix *Index) Bytes() int64 { return ix.bytes }

// Resident returns how many buckets are still in memory.
func (ix *Index) Resident() int { return ix.resident }

// IsEvicted reports whether bucket b lives on disk.
func (ix *Index) IsEvicted(b int) bool { return ix.buckets[b].evicted }

// Insert adds row under key in bucket b. size is the row's reserved estimate.
func (ix *Index) Insert(b int, key []byte, row *tuple.Tuple, size int64) error {
	bk := &ix.buckets[b]
	if bk.evicted {
		return fmt.Errorf("insert into evicted bucket %d", b)
	}
	k := string(key)
	bk.entries[k] = append(bk.entries[k], row)
	bk.rows = append(bk.rows, row)
	bk.bytes += size
	ix.bytes += size
	return nil
}

// Lookup returns the rows stored under key in bucket b.
func (ix *Index) Lookup(b int, key []byte) []*tuple.Tuple {
	return ix.buckets[b].entries[string(key)]
}

// HighestResident returns the highest-numbered bucket still in memory.
func (ix *Index) HighestResident() (int, bool) {
	for b := len(ix.buckets) - 1; b >= 0; b-- {
		if !ix.buckets[b].evicted {
			return b, true
		}
	}
	return 0, false
}

// Evict drops bucket b from memory and hands back its rows in insertion
// order together with the bytes they had reserved.
func (ix *Index) Evict(b int) ([]*tuple.Tuple, int64) {
	bk := &ix.buckets[b]
	if bk.evicted {
		return nil, 0
	}
	rows, freed := bk.rows, bk.bytes
	*bk = bucket{evicted: true}
	ix.bytes -= freed
	ix.resident--
	return rows, freed
}

// MarkMatched records that the hashed row at offset found a partner.
func (ix *Index) MarkMatched(offset int64) {
	ix.matched.Add(uint64(offset)) // #nosec G115
}

// IsMatched reports whether the hashed row at offset found a partner.
func (ix *Index) IsMatched(offset int64) bool {
	return ix.matched.Contains(uint64(offset)) // #nosec G115
}

// MatchedCount returns the number of distinct matched hashed rows.
func (ix *Index) MatchedCount() uint64 { return ix.matched.GetCardinality() }

// ForEachUnmatched visits resident rows that never matched, bucket by
// bucket in insertion order.
func (ix *Index) ForEachUnmatched(fn func(*tuple.Tuple) error) error {
	for b := range ix.buckets {
		for _, row := range ix.buckets[b].rows {
			if ix.IsMatched(row.Offset) {
				continue
			}
			if err := fn(row); err != nil {
				return err
			}
		}
	}
	return nil
}
