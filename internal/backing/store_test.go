package backing_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ushineko/seekpipe/internal/backing"
)

func TestAllocate_NameShape(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "sp")

	s, err := backing.Allocate(prefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.True(t, strings.HasPrefix(s.Path, prefix))
	assert.Len(t, strings.TrimPrefix(s.Path, prefix), backing.SuffixLen)

	info, err := os.Stat(s.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Zero(t, info.Size())
}

func TestAllocate_DirectoryPrefix(t *testing.T) {
	dir := t.TempDir() + string(os.PathSeparator)

	s, err := backing.Allocate(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, filepath.Clean(dir), filepath.Dir(s.Path))
	assert.Len(t, filepath.Base(s.Path), backing.SuffixLen)
}

func TestAllocate_UniqueNames(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "sp")

	seen := make(map[string]bool)
	for range 200 {
		s, err := backing.Allocate(prefix)
		require.NoError(t, err)
		assert.False(t, seen[s.Path], "duplicate name %s", s.Path)
		seen[s.Path] = true
		// Keep names in place so later allocations have to avoid them.
		require.NoError(t, s.CloseWriter())
		require.NoError(t, s.CloseReader())
	}
}

func TestAllocate_ReaderSeesWrites(t *testing.T) {
	s, err := backing.Allocate(filepath.Join(t.TempDir(), "sp"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Writer.Write([]byte("hello, backing store"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWriter())

	got, err := io.ReadAll(s.Reader)
	require.NoError(t, err)
	assert.Equal(t, "hello, backing store", string(got))

	// The reader is a real file: seeking back works.
	_, err = s.Reader.Seek(7, io.SeekStart)
	require.NoError(t, err)
	got, err = io.ReadAll(s.Reader)
	require.NoError(t, err)
	assert.Equal(t, "backing store", string(got))
}

func TestAllocate_ReaderIsReadOnly(t *testing.T) {
	s, err := backing.Allocate(filepath.Join(t.TempDir(), "sp"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Reader.Write([]byte("x"))
	assert.Error(t, err)
}

func TestAllocate_UnwritableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	_, err := backing.Allocate(filepath.Join(dir, "sp"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestAllocate_MissingDirectory(t *testing.T) {
	_, err := backing.Allocate(filepath.Join(t.TempDir(), "nope", "sp"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "spXXXXXX")
}

func TestStore_UnlinkKeepsData(t *testing.T) {
	dir := t.TempDir()
	s, err := backing.Allocate(filepath.Join(dir, "sp"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Unlink())
	assert.True(t, s.Unlinked())
	_, err = os.Stat(s.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Second unlink is a no-op.
	require.NoError(t, s.Unlink())

	_, err = s.Writer.Write([]byte("still here"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWriter())

	got, err := io.ReadAll(s.Reader)
	require.NoError(t, err)
	assert.Equal(t, "still here", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := backing.Allocate(filepath.Join(dir, "sp"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Nil(t, s.Writer)
	assert.Nil(t, s.Reader)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "close must remove the name")
}

func TestStore_ReleaseReader(t *testing.T) {
	s, err := backing.Allocate(filepath.Join(t.TempDir(), "sp"))
	require.NoError(t, err)

	r := s.ReleaseReader()
	require.NotNil(t, r)
	assert.Nil(t, s.Reader)
	require.NoError(t, s.Close())

	// Released handle survives Close.
	_, err = r.Stat()
	require.NoError(t, err)
	require.NoError(t, r.Close())
}
