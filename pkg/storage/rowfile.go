package storage

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"spilljoin/pkg/fs"
	"spilljoin/pkg/table"
	"spilljoin/pkg/tuple"
)

// FileBuilder writes rows to a row file. It implements table.Builder and is
// safe for concurrent AddRow calls; rows are stored in call order.
type FileBuilder struct {
	mu    sync.Mutex
	fs    fs.FileSystem
	path  string
	file  fs.File
	td    *tuple.TupleDescription
	page  pageBuffer
	pages []pageEntry
	size  int64
	rows  int64
	built bool
	err   error

	onBuild func(*FileTable)
}

// NewFileBuilder creates (or truncates) the row file at path.
//
// Parameters:
//   - fsys: file system to create the file on; fs.Default if nil
//   - path: location of the row file
//   - td: schema every added row must carry
func NewFileBuilder(fsys fs.FileSystem, path string, td *tuple.TupleDescription) (*FileBuilder, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create row file: %w", err)
	}
	return &FileBuilder{fs: fsys, path: path, file: f, td: td}, nil
}

// AddRow appends t. Its offset is ignored; rows are numbered by position.
func (b *FileBuilder) AddRow(t *tuple.Tuple) error {
	if !b.td.Equals(t.TupleDesc) {
		return fmt.Errorf("row schema %v does not match table schema %v", t.TupleDesc, b.td)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return fmt.Errorf("builder already built")
	}
	if b.err != nil {
		return b.err
	}
	if err := b.page.add(t); err != nil {
		return err
	}
	b.rows++
	if b.page.full() {
		b.err = b.flush()
	}
	return b.err
}

// flush seals the current page and appends it to the file.
func (b *FileBuilder) flush() error {
	if b.page.rows == 0 {
		return nil
	}
	entry := pageEntry{offset: b.size, firstRow: b.rows - int64(b.page.rows), rows: b.page.rows}
	data := b.page.seal()
	if _, err := b.file.Write(data); err != nil {
		return fmt.Errorf("write page %d of %s: %w", len(b.pages), b.path, err)
	}
	entry.length = len(data)
	b.size += int64(len(data))
	b.pages = append(b.pages, entry)
	return nil
}

// Build seals the last page and returns the file as a table. On failure the
// file is removed.
func (b *FileBuilder) Build() (table.Table, error) {
	t, err := b.build()
	if err != nil {
		return nil, err
	}
	if b.onBuild != nil {
		b.onBuild(t)
	}
	return t, nil
}

func (b *FileBuilder) build() (*FileTable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return nil, fmt.Errorf("builder already built")
	}
	b.built = true

	if b.err != nil {
		return nil, errors.Join(b.err, b.discard())
	}
	if err := b.flush(); err != nil {
		return nil, errors.Join(err, b.discard())
	}
	if err := b.file.Sync(); err != nil {
		return nil, errors.Join(fmt.Errorf("sync row file: %w", err), b.discard())
	}
	return &FileTable{
		fs:     b.fs,
		path:   b.path,
		file:   b.file,
		td:     b.td,
		pages:  b.pages,
		rows:   b.rows,
		size:   b.size,
		cached: -1,
	}, nil
}

// Close abandons an unbuilt builder and removes its file. It does nothing
// after Build.
func (b *FileBuilder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return nil
	}
	b.built = true
	return b.discard()
}

func (b *FileBuilder) discard() error {
	return errors.Join(b.file.Close(), b.fs.Remove(b.path))
}

// FileTable is a sealed row file. ReadBlock is safe for concurrent use.
type FileTable struct {
	fs    fs.FileSystem
	path  string
	file  fs.File
	td    *tuple.TupleDescription
	pages []pageEntry
	rows  int64
	size  int64

	mu     sync.Mutex
	cached int
	cache  []*tuple.Tuple
	closed bool
}

func (t *FileTable) Schema() *tuple.TupleDescription { return t.td }

func (t *FileTable) RowCount() int64 { return t.rows }

// Path is the location of the row file.
func (t *FileTable) Path() string { return t.path }

// Size is the number of bytes on disk.
func (t *FileTable) Size() int64 { return t.size }

// Pages is the number of sealed pages.
func (t *FileTable) Pages() int { return len(t.pages) }

// ReadBlock returns up to n rows starting at offset.
func (t *FileTable) ReadBlock(offset int64, n int) ([]*tuple.Tuple, error) {
	if offset < 0 || n < 0 {
		return nil, fmt.Errorf("invalid block request offset=%d n=%d", offset, n)
	}
	if offset >= t.rows || n == 0 {
		return nil, nil
	}

	out := make([]*tuple.Tuple, 0, min(int64(n), t.rows-offset))
	idx := sort.Search(len(t.pages), func(i int) bool {
		p := t.pages[i]
		return p.firstRow+int64(p.rows) > offset
	})
	for ; idx < len(t.pages) && len(out) < n; idx++ {
		rows, err := t.page(idx)
		if err != nil {
			return nil, err
		}
		start := offset + int64(len(out)) - t.pages[idx].firstRow
		for _, r := range rows[start:] {
			if len(out) == n {
				break
			}
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// page returns the decoded rows of page idx, keeping the last page read.
func (t *FileTable) page(idx int) ([]*tuple.Tuple, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("row file %s is closed", t.path)
	}
	if t.cached == idx {
		rows := t.cache
		t.mu.Unlock()
		return rows, nil
	}
	t.mu.Unlock()

	entry := t.pages[idx]
	data := make([]byte, entry.length)
	if _, err := t.file.ReadAt(data, entry.offset); err != nil {
		return nil, fmt.Errorf("read page %d of %s: %w", idx, t.path, err)
	}
	rows, err := decodePage(data, t.td, entry.firstRow)
	if err != nil {
		return nil, fmt.Errorf("page %d of %s: %w", idx, t.path, err)
	}
	if len(rows) != entry.rows {
		return nil, fmt.Errorf("page %d of %s: expected %d rows, found %d", idx, t.path, entry.rows, len(rows))
	}

	t.mu.Lock()
	t.cached, t.cache = idx, rows
	t.mu.Unlock()
	return rows, nil
}

// Close releases the file handle. The file stays on disk.
func (t *FileTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.cache = nil
	return t.file.Close()
}

// Remove closes the table and deletes its file.
func (t *FileTable) Remove() error {
	return errors.Join(t.Close(), t.fs.Remove(t.path))
}
