package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "subdir")
	require.NoError(t, lfs.MkdirAll(dir, 0o750))

	fpath := filepath.Join(dir, "part-0")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	require.NoError(t, f.Close())

	entries, err := lfs.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, lfs.RemoveAll(dir))
	_, err = lfs.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFSWriteLimit(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("bad", Fault{FailAfterBytes: 4})
	tmp := t.TempDir()

	f, err := ffs.OpenFile(filepath.Join(tmp, "bad-1"), os.O_CREATE|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = f.Write([]byte("de"))
	assert.ErrorIs(t, err, ErrInjected)
	require.NoError(t, f.Close())

	good, err := ffs.OpenFile(filepath.Join(tmp, "good"), os.O_CREATE|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = good.Write(make([]byte, 64))
	assert.NoError(t, err)
	require.NoError(t, good.Close())
	assert.Equal(t, 2, ffs.Opens())
}

func TestFaultyFSOpenReadClose(t *testing.T) {
	boom := errors.New("boom")
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule("noopen", Fault{FailOnOpen: true, Err: boom})
	ffs.AddRule("noread", Fault{FailAfterBytes: -1, FailOnRead: true, FailOnClose: true})
	tmp := t.TempDir()

	_, err := ffs.OpenFile(filepath.Join(tmp, "noopen"), os.O_CREATE|os.O_WRONLY, 0o600)
	assert.ErrorIs(t, err, boom)

	f, err := ffs.OpenFile(filepath.Join(tmp, "noread"), os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	_, err = io.ReadAll(f)
	assert.ErrorIs(t, err, ErrInjected)
	assert.ErrorIs(t, f.Close(), ErrInjected)
}
