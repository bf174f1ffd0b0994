package index

import (
	"context"
	"sync"
	"time"
)

// Match plans q, scans every chunk in parallel, invoking onResult
// once per match, then returns. Calls to onResult are serialized under
// a lock, never concurrent. statsOut, if
// non-nil, is filled in with phase timings and the terminating exit
// reason. Match may be called concurrently with other Match calls;
// it never mutates the index.
func (ix *Index) Match(ctx context.Context, q Query, onResult func(MatchResult) bool, statsOut *Stats) error {
	if !ix.finalized.Load() {
		return ErrNotFinalized
	}

	start := time.Now()
	pl, err := newPlan(q)
	if err != nil {
		return err
	}
	planTime := time.Since(start)

	var emitMu sync.Mutex
	job := &searchJob{
		ix:   ix,
		plan: pl,
		onResult: func(m MatchResult) bool {
			emitMu.Lock()
			defer emitMu.Unlock()
			return onResult(m)
		},
		seen:         newSeenSet(),
		patternCache: newPatternCache(),
	}

	err = job.runParallel(ctx, ix.alloc.Chunks())

	if statsOut != nil {
		*statsOut = Stats{
			IndexTimeNanos:   job.indexNanos.Load(),
			AnalyzeTimeNanos: job.analyzeNanos.Load(),
			RegexTimeNanos:   job.regexNanos.Load(),
			SortTimeNanos:    planTime.Nanoseconds(),
			ExitReason:       job.exit.get(),
			MatchCount:       job.matched.value(),
		}
	}
	return err
}
