package index

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// defaultWorkers picks a worker count for CPU-bound scan work: one
// goroutine per core, capped, since regex evaluation saturates a core
// and adding more workers than cores just adds scheduling overhead.
func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > 32 {
		n = 32
	}
	return n
}

// finalizeParallel builds each chunk's suffix array concurrently,
// since chunks are independent. Uses its own pool distinct from the
// query executor's: it runs once, to completion, with no cancellation
// or exit-reason bookkeeping.
func (ix *Index) finalizeParallel() error {
	chunks := ix.alloc.Chunks()
	p := pool.New().WithMaxGoroutines(ix.numWorkers()).WithErrors()
	for _, c := range chunks {
		c := c
		p.Go(func() error {
			if c.Suffix != nil {
				return nil
			}
			sa, err := BuildSuffixArray(c.Data[:c.Size])
			if err != nil {
				return fmt.Errorf("chunk %d: %w", c.id, err)
			}
			c.Suffix = sa
			c.seal()
			return nil
		})
	}
	return p.Wait()
}

// searchJob is the shared state one Match call's worker pool operates
// on: the plan, the atomic match counter, the shared exit reason, and
// the chunk work queue (here, just the chunk slice handed to the pool
// directly rather than a literal channel, which avoids an extra
// goroutine just to feed the queue).
type searchJob struct {
	ix           *Index
	plan         *plan
	onResult     func(MatchResult) bool
	matched      chunkCounter
	exit         exitCell
	seen         *seenSet
	patternCache *patternCache

	indexNanos   atomic.Int64 // suffix-array probing
	regexNanos   atomic.Int64
	analyzeNanos atomic.Int64 // owner lookup, line numbering, context
}

// runParallel distributes chunks across a worker pool, invoking
// onResult for every match found, in whatever order workers produce
// them; no cross-chunk ordering is guaranteed. Within one chunk,
// scanChunk emits matches in increasing line-number order.
func (j *searchJob) runParallel(ctx context.Context, chunks []*Chunk) error {
	p := pool.New().WithMaxGoroutines(j.ix.numWorkers()).WithContext(ctx)
	for _, c := range chunks {
		c := c
		p.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				j.exit.setIfUnset(ExitTimeout)
				return nil
			default:
			}
			return j.scanChunk(ctx, c)
		})
	}
	return p.Wait()
}
