package index

import (
	"sync"
	"sync/atomic"
)

// chunkCounter is the shared atomic match counter a query's worker
// pool increments as results are found.
type chunkCounter struct {
	n atomic.Int64
}

// addAndCheck increments by one and reports whether the running total
// has reached limit (limit <= 0 means unbounded).
func (c *chunkCounter) addAndCheck(limit int) bool {
	v := c.n.Add(1)
	return limit > 0 && int(v) >= limit
}

func (c *chunkCounter) value() int { return int(c.n.Load()) }

// exitCell is the shared exit-reason cell a query's workers race to
// set: whichever worker notices a terminating condition first wins.
// ExitNone, the zero value, means "finished normally".
type exitCell struct {
	v atomic.Int32
}

func (e *exitCell) setIfUnset(r ExitReason) {
	e.v.CompareAndSwap(int32(ExitNone), int32(r))
}

func (e *exitCell) get() ExitReason { return ExitReason(e.v.Load()) }

// seenKey identifies a (file, line) pair for the "no duplicate match"
// rule: at most one result is emitted per file/line-number pair.
type seenKey struct {
	file FileID
	line int
}

// seenSet enforces that rule per query: at most one match is emitted
// per (file, line_number), the leftmost on that line. Guarded by a
// plain mutex since contention is low relative to the regex work each
// candidate line already costs.
type seenSet struct {
	mu   sync.Mutex
	seen map[seenKey]bool
}

func newSeenSet() *seenSet {
	return &seenSet{seen: make(map[seenKey]bool)}
}

// checkAndMark reports whether (file, line) was already seen, and
// marks it seen as a side effect. The first call for a given pair
// returns false (not a duplicate); every later call returns true.
func (s *seenSet) checkAndMark(file FileID, line int) bool {
	k := seenKey{file, line}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[k] {
		return true
	}
	s.seen[k] = true
	return false
}
