package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapAllocatorLazyFirstChunk(t *testing.T) {
	a := NewHeapAllocator(32)
	assert.Empty(t, a.Chunks())

	c := a.CurrentChunk()
	require.NotNil(t, c)
	assert.Len(t, a.Chunks(), 1)
	assert.Same(t, c, a.CurrentChunk(), "repeated CurrentChunk calls must not allocate")
}

func TestHeapAllocatorNewChunkSealsPrevious(t *testing.T) {
	a := NewHeapAllocator(32)
	first := a.CurrentChunk()
	assert.False(t, first.sealed)

	second := a.NewChunk()
	assert.True(t, first.sealed)
	assert.False(t, second.sealed)
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestHeapAllocatorDefaultCapacity(t *testing.T) {
	a := NewHeapAllocator(0)
	assert.Equal(t, int32(DefaultChunkCapacity), a.capacity)
}

func TestHeapAllocatorFinalizeAllBuildsOnlyMissingSuffixArrays(t *testing.T) {
	a := NewHeapAllocator(64)
	c := a.CurrentChunk()
	c.appendLine([]byte("hello"))

	require.NoError(t, a.FinalizeAll())
	assert.NotNil(t, c.Suffix)
	assert.True(t, c.sealed)

	existing := c.Suffix
	require.NoError(t, a.FinalizeAll())
	assert.Same(t, &existing[0], &c.Suffix[0], "finalize must not rebuild an existing suffix array")
}

func TestMmapAllocatorRejectsWrites(t *testing.T) {
	a := &MmapAllocator{}
	assert.Panics(t, func() { a.CurrentChunk() })
	assert.Panics(t, func() { a.NewChunk() })
	assert.NoError(t, a.FinalizeAll())
}

func TestMmapAllocatorCloseWithoutCloserIsNoop(t *testing.T) {
	a := &MmapAllocator{}
	assert.NoError(t, a.Close())
}
