package tuple

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"spilljoin/pkg/types"
)

const (
	cellMissing byte = 0
	cellPresent byte = 1
)

// maxKeyLength bounds decoded row keys to catch corrupt input early.
const maxKeyLength = 1 << 20

// Encode appends the binary form of t to buf. The schema is not written;
// Decode needs the same TupleDescription.
//
// Layout: uvarint(offset+1), uvarint(len(key)), key bytes, then per cell a
// presence byte followed by the field serialization when present.
func Encode(buf *bytes.Buffer, t *Tuple) error {
	var scratch [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(scratch[:], uint64(t.Offset+1)) // #nosec G115
	buf.Write(scratch[:n])
	n = binary.PutUvarint(scratch[:], uint64(len(t.Key)))
	buf.Write(scratch[:n])
	buf.WriteString(t.Key)

	for i, f := range t.fields {
		if f.IsMissing() {
			buf.WriteByte(cellMissing)
			continue
		}
		buf.WriteByte(cellPresent)
		if err := f.Serialize(buf); err != nil {
			return fmt.Errorf("encode field %d: %w", i, err)
		}
	}
	return nil
}

// ByteReader is what Decode reads from; *bytes.Reader and *bufio.Reader qualify.
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// Decode reads one tuple written by Encode. It returns io.EOF when r is
// exhausted before the first byte of a tuple.
func Decode(r ByteReader, td *TupleDescription) (*Tuple, error) {
	offsetPlusOne, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}

	keyLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, unexpected(err)
	}
	if keyLen > maxKeyLength {
		return nil, fmt.Errorf("row key length %d exceeds limit", keyLen)
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, unexpected(err)
	}

	t := &Tuple{
		TupleDesc: td,
		Key:       string(key),
		Offset:    int64(offsetPlusOne) - 1, // #nosec G115
		fields:    make([]types.Field, td.NumFields()),
	}

	for i, typ := range td.Types {
		presence, err := r.ReadByte()
		if err != nil {
			return nil, unexpected(err)
		}

		switch presence {
		case cellMissing:
			t.fields[i] = types.NewMissingField(typ)
		case cellPresent:
			f, err := types.ParseField(r, typ)
			if err != nil {
				return nil, fmt.Errorf("decode field %d: %w", i, unexpected(err))
			}
			t.fields[i] = f
		default:
			return nil, fmt.Errorf("decode field %d: invalid presence byte %#x", i, presence)
		}
	}
	return t, nil
}

// unexpected turns an EOF in the middle of a tuple into ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
