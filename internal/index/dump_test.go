package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpRequiresFinalize(t *testing.T) {
	ix := New()
	_, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)

	dir := t.TempDir()
	err = ix.Dump(filepath.Join(dir, "out.csx"))
	assert.Error(t, err)
}

func TestDumpRemovesPartialFileOnError(t *testing.T) {
	dir := t.TempDir()
	// A path inside a nonexistent directory can't be created, which
	// exercises the write-failure path without a partial file ever
	// existing to begin with.
	bad := filepath.Join(dir, "missing-subdir", "out.csx")

	ix := New()
	_, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	err = ix.Dump(bad)
	assert.Error(t, err)
	_, statErr := os.Stat(bad)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csx")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrFormatMismatch)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csx")
	require.NoError(t, os.WriteFile(path, []byte("NOTCSX1"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrFormatMismatch)
}

func TestLoadMultiTreeMultiFileRoundTrip(t *testing.T) {
	ix := New()
	alpha, err := ix.OpenTree("alpha", "v1", map[string]string{"remote": "example/alpha"})
	require.NoError(t, err)
	beta, err := ix.OpenTree("beta", "v2", nil)
	require.NoError(t, err)

	_, err = ix.IndexFile(alpha, "a.txt", []byte("one\ntwo\n"))
	require.NoError(t, err)
	_, err = ix.IndexFile(beta, "b.txt", []byte("two\nthree\n"))
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	dir := t.TempDir()
	path := filepath.Join(dir, "out.csx")
	require.NoError(t, ix.Dump(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, loaded.cat.numFiles())
	gotAlpha := loaded.cat.tree(TreeID(0))
	require.NotNil(t, gotAlpha)
	assert.Equal(t, "alpha", gotAlpha.Name)
	assert.Equal(t, "example/alpha", gotAlpha.Metadata["remote"])
}
