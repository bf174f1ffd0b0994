package index

import "fmt"

// ChunkAllocator is the capability set shared by the heap-backed
// (build-time) and mmap-backed (load-time) chunk stores. There is no
// inheritance depth beyond this single split between the two
// implementations.
type ChunkAllocator interface {
	// CurrentChunk returns the chunk new lines should be appended to,
	// allocating the first chunk lazily.
	CurrentChunk() *Chunk
	// NewChunk seals the current chunk (if any) and opens a fresh one,
	// becoming the new CurrentChunk.
	NewChunk() *Chunk
	// Chunks returns every chunk owned by this allocator, in creation
	// order. The slice must not be mutated by callers.
	Chunks() []*Chunk
	// FinalizeAll builds suffix arrays for every chunk that doesn't
	// already have one and seals them. Idempotent.
	FinalizeAll() error
}

// HeapAllocator allocates each chunk from the process heap. Used
// during build (ingest + finalize).
type HeapAllocator struct {
	capacity int32
	chunks   []*Chunk
}

// NewHeapAllocator creates an allocator whose chunks have the given
// byte capacity.
func NewHeapAllocator(capacity int32) *HeapAllocator {
	if capacity <= 0 {
		capacity = DefaultChunkCapacity
	}
	return &HeapAllocator{capacity: capacity}
}

func (a *HeapAllocator) CurrentChunk() *Chunk {
	if len(a.chunks) == 0 {
		return a.NewChunk()
	}
	return a.chunks[len(a.chunks)-1]
}

func (a *HeapAllocator) NewChunk() *Chunk {
	if len(a.chunks) > 0 {
		a.chunks[len(a.chunks)-1].seal()
	}
	c := newChunk(ChunkID(len(a.chunks)), a.capacity)
	a.chunks = append(a.chunks, c)
	return c
}

func (a *HeapAllocator) Chunks() []*Chunk { return a.chunks }

// FinalizeAll builds the suffix array for every chunk that lacks one,
// sequentially. Index.Finalize does not call it: chunks are
// independent, so Finalize builds them in parallel itself
// (finalizeParallel in exec.go).
func (a *HeapAllocator) FinalizeAll() error {
	for _, c := range a.chunks {
		if c.Suffix == nil {
			sa, err := BuildSuffixArray(c.Data[:c.Size])
			if err != nil {
				return fmt.Errorf("index: building suffix array for chunk %d: %w", c.id, err)
			}
			c.Suffix = sa
		}
		c.seal()
	}
	return nil
}

// MmapAllocator backs chunks with a read-only memory mapping produced
// by Load. FinalizeAll is a no-op: suffix arrays are already present
// in the mapped file.
type MmapAllocator struct {
	chunks []*Chunk
	closer func() error
}

func (a *MmapAllocator) CurrentChunk() *Chunk {
	panic("index: MmapAllocator is read-only, ingest is not supported")
}

func (a *MmapAllocator) NewChunk() *Chunk {
	panic("index: MmapAllocator is read-only, ingest is not supported")
}

func (a *MmapAllocator) Chunks() []*Chunk { return a.chunks }

func (a *MmapAllocator) FinalizeAll() error { return nil }

// Close unmaps the backing file, if any.
func (a *MmapAllocator) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}
