package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkAppendAndBounds(t *testing.T) {
	c := newChunk(0, 64)

	off1, data1 := c.appendLine([]byte("foo"))
	assert.Equal(t, int32(0), off1)
	assert.Equal(t, "foo", string(data1))

	off2, data2 := c.appendLine([]byte("bar"))
	assert.Equal(t, int32(4), off2)
	assert.Equal(t, "bar", string(data2))

	start, end := c.lineBounds(off1)
	assert.Equal(t, int32(0), start)
	assert.Equal(t, int32(3), end)

	start, end = c.lineBounds(off2)
	assert.Equal(t, int32(4), start)
	assert.Equal(t, int32(7), end)
}

func TestChunkFitsAndRemaining(t *testing.T) {
	c := newChunk(0, 8)
	assert.True(t, c.fits(7))
	assert.False(t, c.fits(8))

	c.appendLine([]byte("abcdef")) // 6 bytes + newline = 7
	assert.Equal(t, int32(1), c.Remaining())
	assert.False(t, c.fits(1))
}

func TestAppendLinePanicsOnOverflow(t *testing.T) {
	c := newChunk(0, 4)
	assert.Panics(t, func() {
		c.appendLine([]byte("way too long for this chunk"))
	})
}

func TestExtendChunkFilePanicsWithoutRecord(t *testing.T) {
	c := newChunk(0, 64)
	assert.Panics(t, func() {
		c.extendChunkFile(0, FileID(1))
	})
}

func TestChunkOwnersAt(t *testing.T) {
	c := newChunk(0, 64)

	off1, _ := c.appendLine([]byte("foo"))
	c.openChunkFile(off1, off1+3, FileID(0))
	c.extendChunkFile(off1, FileID(1)) // two files share the deduped line

	off2, _ := c.appendLine([]byte("bar"))
	c.openChunkFile(off2, off2+3, FileID(2))

	owners := c.ownersAt(off1, off1+3)
	require.Len(t, owners, 2)
	assert.ElementsMatch(t, []FileID{0, 1}, owners)

	owners = c.ownersAt(off2, off2+3)
	require.Len(t, owners, 1)
	assert.Equal(t, FileID(2), owners[0])

	owners = c.ownersAt(1000, 1010)
	assert.Empty(t, owners)
}

func TestChunkSeal(t *testing.T) {
	c := newChunk(0, 8)
	assert.False(t, c.sealed)
	c.seal()
	assert.True(t, c.sealed)
}
