package spill

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block codec of spill files.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionSnappy
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a codec name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown spill compression %q", name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Block layout: [uncompressed uint32][compressed uint32][payload].
// A compressed size of 0 means the payload is stored raw.
const blockHeaderSize = 8

// maxBlockSize bounds decoded headers to reject corrupt files early.
const maxBlockSize = 64 << 20

var errCorruptBlock = errors.New("corrupt spill block")

// encodeBlock appends the framed form of data to dst.
func encodeBlock(dst, data []byte, codec Compression) ([]byte, error) {
	compressed, err := compress(data, codec)
	if err != nil {
		return nil, err
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(data))) // #nosec G115
	if compressed == nil || len(compressed) >= len(data) {
		binary.LittleEndian.PutUint32(hdr[4:], 0)
		dst = append(dst, hdr[:]...)
		return append(dst, data...), nil
	}
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(compressed))) // #nosec G115
	dst = append(dst, hdr[:]...)
	return append(dst, compressed...), nil
}

// compress returns nil when the codec is none or the data is incompressible.
func compress(data []byte, codec Compression) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return nil, nil
	case CompressionLZ4:
		out := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, out, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		return out[:n], nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unsupported spill compression %v", codec)
	}
}

// decompress expands payload into a buffer of exactly size bytes.
func decompress(payload []byte, size int, codec Compression) ([]byte, error) {
	switch codec {
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, fmt.Errorf("%w: lz4 size mismatch", errCorruptBlock)
		}
		return out, nil
	case CompressionSnappy:
		out, err := snappy.Decode(make([]byte, size), payload)
		if err != nil {
			return nil, err
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: snappy size mismatch", errCorruptBlock)
		}
		return out, nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, err
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: zstd size mismatch", errCorruptBlock)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: compressed payload with codec %v", errCorruptBlock, codec)
	}
}
