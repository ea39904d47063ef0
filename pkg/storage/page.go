package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"spilljoin/pkg/tuple"

	"github.com/golang/snappy"
)

const (
	// PageSize is the uncompressed size at which a page is sealed.
	PageSize = 32 << 10
	// maxPageRows bounds a page of very small rows.
	maxPageRows = 4096
)

// pageEntry locates one sealed page.
type pageEntry struct {
	offset   int64 // position in the file
	length   int   // compressed length
	firstRow int64
	rows     int
}

// pageBuffer accumulates the encoded rows of the page being filled.
type pageBuffer struct {
	buf  bytes.Buffer
	rows int
}

func (p *pageBuffer) add(t *tuple.Tuple) error {
	if err := tuple.Encode(&p.buf, t); err != nil {
		return err
	}
	p.rows++
	return nil
}

func (p *pageBuffer) full() bool {
	return p.buf.Len() >= PageSize || p.rows >= maxPageRows
}

// seal returns the on-disk form of the page: uvarint(rows) followed by the
// snappy-compressed rows, and resets the buffer.
func (p *pageBuffer) seal() []byte {
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(p.rows))

	out := make([]byte, n, n+snappy.MaxEncodedLen(p.buf.Len()))
	copy(out, hdr[:n])
	out = append(out, snappy.Encode(nil, p.buf.Bytes())...)

	p.buf.Reset()
	p.rows = 0
	return out
}

// decodePage reverses seal. Rows get offsets starting at firstRow.
func decodePage(data []byte, td *tuple.TupleDescription, firstRow int64) ([]*tuple.Tuple, error) {
	rows, n := binary.Uvarint(data)
	if n <= 0 || rows > maxPageRows {
		return nil, fmt.Errorf("corrupt page header")
	}
	raw, err := snappy.Decode(nil, data[n:])
	if err != nil {
		return nil, fmt.Errorf("decompress page: %w", err)
	}

	r := bytes.NewReader(raw)
	out := make([]*tuple.Tuple, rows)
	for i := range out {
		t, err := tuple.Decode(r, td)
		if err != nil {
			return nil, fmt.Errorf("decode row %d of page: %w", i, err)
		}
		t.Offset = firstRow + int64(i)
		out[i] = t
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("page has %d trailing bytes", r.Len())
	}
	return out, nil
}
