package spill

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	dberror "spilljoin/pkg/error"
	"spilljoin/pkg/fs"
	"spilljoin/pkg/tuple"
)

// Writer appends rows to one partition file.
type Writer struct {
	dir    *Dir
	name   string
	path   string
	td     *tuple.TupleDescription
	file   fs.File
	blocks *blockWriter
	ctx    context.Context
	row    bytes.Buffer
	rows   int64
	done   bool
}

// Append encodes t into the partition. Row key and source offset are kept.
func (w *Writer) Append(t *tuple.Tuple) error {
	if w.done {
		return fmt.Errorf("partition %s already closed", w.name)
	}
	w.row.Reset()
	if err := tuple.Encode(&w.row, t); err != nil {
		return err
	}
	if _, err := w.blocks.Write(w.row.Bytes()); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows returns the number of rows appended so far.
func (w *Writer) Rows() int64 { return w.rows }

func (w *Writer) writeFrame(frame []byte) error {
	if err := w.dir.cfg.Controller.AcquireIO(w.ctx, len(frame)); err != nil {
		return err
	}
	if _, err := w.file.Write(frame); err != nil {
		return dberror.StorageFailure(err, fmt.Sprintf("write partition %s", w.name))
	}
	w.dir.bytesWritten.Add(int64(len(frame)))
	return nil
}

// Finish flushes and closes the file, returning a handle to read it back.
func (w *Writer) Finish() (*Partition, error) {
	if w.done {
		return nil, fmt.Errorf("partition %s already closed", w.name)
	}
	w.done = true
	defer w.dir.forget(w)

	if err := w.blocks.Flush(); err != nil {
		_ = w.file.Close()
		return nil, err
	}
	if err := w.file.Close(); err != nil {
		return nil, dberror.StorageFailure(err, fmt.Sprintf("close partition %s", w.name))
	}
	return &Partition{
		dir:   w.dir,
		name:  w.name,
		path:  w.path,
		td:    w.td,
		rows:  w.rows,
		bytes: w.blocks.written,
	}, nil
}

// Partition is a finished, readable partition file.
type Partition struct {
	dir   *Dir
	name  string
	path  string
	td    *tuple.TupleDescription
	rows  int64
	bytes int64
}

func (p *Partition) Name() string                    { return p.name }
func (p *Partition) Rows() int64                     { return p.rows }
func (p *Partition) Bytes() int64                    { return p.bytes }
func (p *Partition) Schema() *tuple.TupleDescription { return p.td }

// Open returns a sequential reader over the partition rows.
func (p *Partition) Open(ctx context.Context) (*Reader, error) {
	file, err := p.dir.cfg.FS.OpenFile(p.path, os.O_RDONLY, 0)
	if err != nil {
		return nil, dberror.StorageFailure(err, fmt.Sprintf("open partition %s", p.name))
	}
	r := &Reader{partition: p, file: file, ctx: ctx}
	r.blocks = newBlockReader(&throttledReader{r: file, ctx: ctx, p: p}, p.dir.cfg.Compression)
	return r, nil
}

// Remove deletes the partition file once it has been consumed.
func (p *Partition) Remove() error {
	if err := p.dir.cfg.FS.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type throttledReader struct {
	r   io.Reader
	ctx context.Context
	p   *Partition
}

func (t *throttledReader) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if n > 0 {
		if werr := t.p.dir.cfg.Controller.AcquireIO(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// Reader iterates the rows of a partition in the order they were appended.
type Reader struct {
	partition *Partition
	file      fs.File
	blocks    *blockReader
	ctx       context.Context
	next      *tuple.Tuple
	read      int64
	done      bool
}

// HasNext decodes the following row ahead of Next.
func (r *Reader) HasNext() (bool, error) {
	if r.next != nil {
		return true, nil
	}
	if r.done {
		return false, nil
	}

	t, err := tuple.Decode(r.blocks, r.partition.td)
	if err == io.EOF {
		r.done = true
		if r.read != r.partition.rows {
			return false, dberror.StorageFailure(io.ErrUnexpectedEOF,
				fmt.Sprintf("partition %s: read %d of %d rows", r.partition.name, r.read, r.partition.rows))
		}
		return false, nil
	}
	if err != nil {
		r.done = true
		return false, dberror.StorageFailure(err, fmt.Sprintf("read partition %s", r.partition.name))
	}
	r.next = t
	r.read++
	return true, nil
}

func (r *Reader) Next() (*tuple.Tuple, error) {
	if r.next == nil {
		return nil, fmt.Errorf("no more rows in partition %s", r.partition.name)
	}
	t := r.next
	r.next = nil
	return t, nil
}

// Close releases the file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
