package spill

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultBlockSize is the uncompressed size at which a block is flushed.
const DefaultBlockSize = 64 << 10

// blockWriter buffers bytes and emits them as framed compressed blocks.
type blockWriter struct {
	codec     Compression
	blockSize int
	buffer    bytes.Buffer
	frame     []byte
	flush     func(frame []byte) error
	written   int64
}

func newBlockWriter(codec Compression, blockSize int, flush func([]byte) error) *blockWriter {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	w := &blockWriter{codec: codec, blockSize: blockSize, flush: flush}
	w.buffer.Grow(blockSize)
	return w
}

// Write buffers p and flushes whole blocks. Records may straddle blocks.
func (w *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := w.blockSize - w.buffer.Len()
		if space <= 0 {
			if err := w.Flush(); err != nil {
				return total, err
			}
			space = w.blockSize
		}
		n := min(len(p), space)
		w.buffer.Write(p[:n])
		total += n
		p = p[n:]
	}
	return total, nil
}

// Flush frames and hands off the buffered bytes, if any.
func (w *blockWriter) Flush() error {
	if w.buffer.Len() == 0 {
		return nil
	}
	frame, err := encodeBlock(w.frame[:0], w.buffer.Bytes(), w.codec)
	if err != nil {
		return err
	}
	w.frame = frame
	if err := w.flush(frame); err != nil {
		return err
	}
	w.written += int64(len(frame))
	w.buffer.Reset()
	return nil
}

// blockReader decodes framed blocks and exposes their concatenated
// content as a byte stream.
type blockReader struct {
	r       *bufio.Reader
	codec   Compression
	block   []byte
	pos     int
	payload []byte
}

func newBlockReader(r io.Reader, codec Compression) *blockReader {
	return &blockReader{r: bufio.NewReaderSize(r, 32<<10), codec: codec}
}

// next loads the following block. It returns io.EOF only at a frame boundary.
func (b *blockReader) next() error {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(b.r, hdr[:]); err != nil {
		return err
	}
	size := binary.LittleEndian.Uint32(hdr[0:])
	compressed := binary.LittleEndian.Uint32(hdr[4:])
	if size == 0 || size > maxBlockSize || compressed > maxBlockSize {
		return fmt.Errorf("%w: header sizes %d/%d", errCorruptBlock, size, compressed)
	}

	if compressed == 0 {
		if cap(b.block) < int(size) {
			b.block = make([]byte, size)
		}
		b.block = b.block[:size]
		if _, err := io.ReadFull(b.r, b.block); err != nil {
			return unexpected(err)
		}
		b.pos = 0
		return nil
	}

	if cap(b.payload) < int(compressed) {
		b.payload = make([]byte, compressed)
	}
	b.payload = b.payload[:compressed]
	if _, err := io.ReadFull(b.r, b.payload); err != nil {
		return unexpected(err)
	}
	block, err := decompress(b.payload, int(size), b.codec)
	if err != nil {
		return err
	}
	b.block, b.pos = block, 0
	return nil
}

func (b *blockReader) ReadByte() (byte, error) {
	for b.pos >= len(b.block) {
		if err := b.next(); err != nil {
			return 0, err
		}
	}
	c := b.block[b.pos]
	b.pos++
	return c, nil
}

func (b *blockReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for b.pos >= len(b.block) {
		if err := b.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, b.block[b.pos:])
	b.pos += n
	return n, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
