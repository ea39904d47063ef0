// Package spill stores join partitions on disk as block-compressed row files.
//
// A Dir is owned by one join invocation. Every file the invocation creates
// lives under it, and Close removes the whole tree.
package spill

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	dberror "spilljoin/pkg/error"
	"spilljoin/pkg/fs"
	"spilljoin/pkg/resource"
	"spilljoin/pkg/tuple"
)

// Config describes where and how partitions are written.
type Config struct {
	FS          fs.FileSystem
	Parent      string // Parent directory; os.TempDir() if empty
	Name        string // Directory name under Parent, unique per invocation
	Compression Compression
	BlockSize   int
	Controller  *resource.Controller // Throttles spill IO; may be nil
}

// Dir is the per-invocation spill directory.
type Dir struct {
	cfg  Config
	path string

	mu     sync.Mutex
	closed bool
	open   map[*Writer]struct{}

	bytesWritten atomic.Int64
	files        atomic.Int64
}

// NewDir creates the spill directory.
func NewDir(cfg Config) (*Dir, error) {
	if cfg.FS == nil {
		cfg.FS = fs.Default
	}
	if cfg.Parent == "" {
		cfg.Parent = os.TempDir()
	}
	if cfg.Name == "" {
		return nil, errors.New("spill directory name is required")
	}

	path := filepath.Join(cfg.Parent, cfg.Name)
	if err := cfg.FS.MkdirAll(path, 0o750); err != nil {
		return nil, dberror.StorageFailure(err, fmt.Sprintf("create spill directory %s", path))
	}
	return &Dir{cfg: cfg, path: path, open: make(map[*Writer]struct{})}, nil
}

// Path returns the directory location.
func (d *Dir) Path() string { return d.path }

// BytesWritten returns the framed bytes written to all partitions so far.
func (d *Dir) BytesWritten() int64 { return d.bytesWritten.Load() }

// Files returns how many partition files were created.
func (d *Dir) Files() int64 { return d.files.Load() }

// Create opens a new partition file. name must be unique within the Dir.
func (d *Dir) Create(ctx context.Context, name string, td *tuple.TupleDescription) (*Writer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("spill directory %s is closed", d.path)
	}

	path := filepath.Join(d.path, name)
	file, err := d.cfg.FS.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, dberror.StorageFailure(err, fmt.Sprintf("create partition %s", name))
	}
	d.files.Add(1)

	w := &Writer{dir: d, name: name, path: path, td: td, file: file, ctx: ctx}
	w.blocks = newBlockWriter(d.cfg.Compression, d.cfg.BlockSize, w.writeFrame)
	d.open[w] = struct{}{}
	return w, nil
}

// Close closes writers left open by an aborted join and removes the
// directory with everything in it. It is safe to call more than once.
func (d *Dir) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	writers := make([]*Writer, 0, len(d.open))
	for w := range d.open {
		writers = append(writers, w)
	}
	d.open = nil
	d.mu.Unlock()

	var errs []error
	for _, w := range writers {
		if err := w.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.cfg.FS.RemoveAll(d.path); err != nil {
		errs = append(errs, fmt.Errorf("remove spill directory %s: %w", d.path, err))
	}
	return errors.Join(errs...)
}

func (d *Dir) forget(w *Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.open, w)
}
