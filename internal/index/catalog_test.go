package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogOpenTreeIdempotent(t *testing.T) {
	c := newCatalog()
	t1 := c.openTree("repo", "v1", map[string]string{"a": "1"})
	t2 := c.openTree("repo", "v1", map[string]string{"a": "2"})
	assert.Same(t, t1, t2, "opening the same name@version twice must return the same Tree")

	t3 := c.openTree("repo", "v2", nil)
	assert.NotEqual(t, t1.ID, t3.ID)
}

func TestCatalogAddFileDenseSequence(t *testing.T) {
	c := newCatalog()
	tree := c.openTree("repo", "v1", nil)

	f1 := c.addFile(tree.ID, "a.txt", ContentHandle{})
	f2 := c.addFile(tree.ID, "b.txt", ContentHandle{})

	assert.Equal(t, 0, f1.Seq)
	assert.Equal(t, 1, f2.Seq)
	assert.Equal(t, FileID(0), f1.ID)
	assert.Equal(t, FileID(1), f2.ID)
	assert.Equal(t, 2, c.numFiles())
}

func TestCatalogLookupsAndBoundsChecks(t *testing.T) {
	c := newCatalog()
	tree := c.openTree("repo", "v1", nil)
	f := c.addFile(tree.ID, "a.txt", ContentHandle{})

	require.NotNil(t, c.tree(tree.ID))
	require.NotNil(t, c.file(f.ID))
	assert.Nil(t, c.tree(TreeID(99)))
	assert.Nil(t, c.file(FileID(99)))
	assert.Nil(t, c.tree(TreeID(-1)))
}

func TestCatalogSnapshotsAreCopies(t *testing.T) {
	c := newCatalog()
	tree := c.openTree("repo", "v1", nil)
	c.addFile(tree.ID, "a.txt", ContentHandle{})

	files := c.allFiles()
	files[0] = nil // mutating the returned slice must not affect the catalog

	assert.NotNil(t, c.file(FileID(0)))
}
