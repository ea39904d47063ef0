package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"spilljoin/pkg/fs"
	"spilljoin/pkg/table"
	"spilljoin/pkg/tuple"

	"github.com/google/uuid"
)

// Store is a directory of row files that lives for one run.
type Store struct {
	fs  fs.FileSystem
	dir string

	mu       sync.Mutex
	seq      int
	builders []*FileBuilder
	tables   []*FileTable
	closed   bool
}

// NewStore creates a fresh directory under parent (os.TempDir() if empty).
func NewStore(fsys fs.FileSystem, parent string) (*Store, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, "storemy-tables-"+uuid.NewString())
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create table store: %w", err)
	}
	return &Store{fs: fsys, dir: dir}, nil
}

// Dir is the directory holding the row files.
func (s *Store) Dir() string { return s.dir }

// NewBuilder starts a new row file. The builder, and the table it builds,
// are closed by Close.
func (s *Store) NewBuilder(td *tuple.TupleDescription) (*FileBuilder, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("table store is closed")
	}
	s.seq++
	path := filepath.Join(s.dir, fmt.Sprintf("table-%04d.rows", s.seq))
	s.mu.Unlock()

	b, err := NewFileBuilder(s.fs, path, td)
	if err != nil {
		return nil, err
	}
	b.onBuild = s.track

	s.mu.Lock()
	s.builders = append(s.builders, b)
	s.mu.Unlock()
	return b, nil
}

// Factory adapts NewBuilder to table.BuilderFactory. A builder that could
// not be created reports the error from AddRow and Build.
func (s *Store) Factory() table.BuilderFactory {
	return func(td *tuple.TupleDescription) table.Builder {
		b, err := s.NewBuilder(td)
		if err != nil {
			return failedBuilder{err: err}
		}
		return b
	}
}

func (s *Store) track(t *FileTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append(s.tables, t)
}

// Close closes every table built through the store and removes the
// directory.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, b := range s.builders {
		errs = append(errs, b.Close())
	}
	for _, t := range s.tables {
		errs = append(errs, t.Close())
	}
	s.builders, s.tables = nil, nil
	errs = append(errs, s.fs.RemoveAll(s.dir))
	return errors.Join(errs...)
}

type failedBuilder struct {
	err error
}

func (b failedBuilder) AddRow(*tuple.Tuple) error   { return b.err }
func (b failedBuilder) Build() (table.Table, error) { return nil, b.err }
