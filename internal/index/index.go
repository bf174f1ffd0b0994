// Package index is the in-memory, regex-driven source-code search
// engine: the chunk store, suffix-array index, query executor and
// persistence format.
package index

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/codesearch/internal/obs"
)

// ContextLines is the default number of context lines gathered before
// and after a match.
const ContextLines = 3

// Index is the top-level handle ingest and query calls are made
// against. One Index owns one ChunkAllocator for its lifetime.
type Index struct {
	mu sync.Mutex // serializes ingest; dedup table is single-writer

	alloc ChunkAllocator
	dedup *dedupTable
	cat   *catalog

	finalized atomic.Bool

	assertHandler *assert.AssertHandler
	logger        zerolog.Logger

	workers      int
	contextLines int
}

// Option configures a new Index using the functional-options pattern.
type Option func(*Index)

// WithChunkCapacity sets the byte capacity of each heap-backed chunk.
func WithChunkCapacity(n int32) Option {
	return func(ix *Index) { ix.alloc = NewHeapAllocator(n) }
}

// WithWorkers sets the worker pool size used by Finalize and Match.
// The zero value (default) means runtime.NumCPU, capped at 32 (see
// defaultWorkers).
func WithWorkers(n int) Option {
	return func(ix *Index) { ix.workers = n }
}

// WithContextLines overrides the default number of context lines
// gathered around each match.
func WithContextLines(k int) Option {
	return func(ix *Index) { ix.contextLines = k }
}

// WithLogger injects a structured logger, overriding obs.Logger().
func WithLogger(l zerolog.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// New creates an empty, writable Index ready for OpenTree/IndexFile.
func New(opts ...Option) *Index {
	ix := &Index{
		alloc:         NewHeapAllocator(DefaultChunkCapacity),
		dedup:         newDedupTable(),
		cat:           newCatalog(),
		assertHandler: assert.NewAssertHandler(),
		logger:        obs.Logger(),
		contextLines:  ContextLines,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// OpenTree registers name@version idempotently.
func (ix *Index) OpenTree(name, version string, metadata map[string]string) (*Tree, error) {
	if ix.finalized.Load() {
		return nil, ErrAlreadyFinalized
	}
	return ix.cat.openTree(name, version, metadata), nil
}

// Metadata summarizes the index's size, for front-ends that want to
// report it to a client without walking the catalog themselves.
type Metadata struct {
	Trees  int
	Files  int
	Chunks int
}

// Metadata reports the number of trees, files and chunks in the index.
func (ix *Index) Metadata() Metadata {
	return Metadata{
		Trees:  len(ix.cat.allTrees()),
		Files:  ix.cat.numFiles(),
		Chunks: len(ix.alloc.Chunks()),
	}
}

// IndexFile splits text at '\n' and packs each line into the current
// chunk, deduplicating against lines already seen.
func (ix *Index) IndexFile(tree *Tree, path string, text []byte) (*File, error) {
	if ix.finalized.Load() {
		return nil, ErrAlreadyFinalized
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	lines := splitLines(text)
	handle := ContentHandle{Spans: make([]LineSpan, len(lines))}

	file := ix.cat.addFile(tree.ID, path, ContentHandle{})
	fileID := file.ID

	for i, line := range lines {
		span := ix.ingestLine(line, fileID)
		handle.Spans[i] = span
	}
	file.Content = handle

	ix.assertHandler.Assert(context.Background(), len(file.Content.Spans) == len(lines), "index: content handle line count must match input line count")
	return file, nil
}

// ingestLine does a dedup lookup, then either extends an existing
// chunk-file record or appends into the current chunk (opening a new
// one if needed) and opens a fresh chunk-file record.
func (ix *Index) ingestLine(line []byte, file FileID) LineSpan {
	if span, ok := ix.dedup.lookup(line); ok {
		ix.alloc.Chunks()[span.Chunk].extendChunkFile(span.Offset, file)
		return span
	}

	cur := ix.alloc.CurrentChunk()
	if !cur.fits(int32(len(line))) {
		cur = ix.alloc.NewChunk()
	}
	offset, data := cur.appendLine(line)
	span := LineSpan{Chunk: cur.ID(), Offset: offset, Length: int32(len(line))}
	cur.openChunkFile(offset, offset+int32(len(line)), file)
	ix.dedup.insert(line, span, data)
	return span
}

// splitLines splits text on '\n'. A trailing newline does not produce
// a spurious empty trailing line; a file with no trailing newline is
// decomposed identically; whether the original had a trailing newline
// is not preserved, callers must track that distinction themselves if
// they care.
func splitLines(text []byte) [][]byte {
	if len(text) == 0 {
		return nil
	}
	trimmed := text
	if trimmed[len(trimmed)-1] == '\n' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		return [][]byte{{}}
	}
	return bytes.Split(trimmed, []byte{'\n'})
}

// Finalize seals the index: builds every chunk's suffix array (in
// parallel, see exec.go) and marks ingest calls as errors from here
// on.
func (ix *Index) Finalize() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.finalized.Load() {
		return nil
	}

	if err := ix.finalizeParallel(); err != nil {
		return fmt.Errorf("index: finalize: %w", err)
	}

	ix.checkInvariants()
	ix.finalized.Store(true)
	return nil
}

// checkInvariants spot-checks the post-finalize invariants via the
// assert handler, since a violation here is a build-time programmer
// error, not a recoverable query-time condition.
func (ix *Index) checkInvariants() {
	ctx := context.Background()
	for _, c := range ix.alloc.Chunks() {
		ix.assertHandler.Assert(ctx, len(c.Suffix) == int(c.Size), "index: suffix array length must equal chunk size")
		if len(c.files) > 0 {
			ix.assertHandler.Assert(ctx, c.files[0].Left == 0 || c.Size == 0, "index: chunk-file coverage must start at byte 0")
		}
	}
	files := ix.cat.allFiles()
	for i, f := range files {
		ix.assertHandler.Assert(ctx, f.Seq == i, "index: file sequence numbers must be dense and monotone")
	}
}

func (ix *Index) numWorkers() int {
	if ix.workers > 0 {
		return ix.workers
	}
	return defaultWorkers()
}
