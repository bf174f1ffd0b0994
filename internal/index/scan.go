package index

import (
	"context"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
)

// scanChunk locates candidate lines via the suffix array (or a full
// scan), resolves owning files, applies the file/tree filters, runs
// the line regex, translates to a line number per occurrence, gathers
// context, and emits through onResult.
func (j *searchJob) scanChunk(ctx context.Context, c *Chunk) error {
	t0 := time.Now()
	candidates := j.candidateLineStarts(c)
	j.indexNanos.Add(time.Since(t0).Nanoseconds())

	for _, ls := range candidates {
		select {
		case <-ctx.Done():
			j.exit.setIfUnset(ExitTimeout)
			return nil
		default:
		}
		if j.exit.get() != ExitNone {
			return nil
		}

		ta := time.Now()
		_, le := c.lineBounds(ls)
		owners := c.ownersAt(ls, le)
		// file/tree filters run before the regex so a line owned only by
		// filtered-out files never costs a regex evaluation.
		allowed := owners[:0:0]
		for _, fid := range owners {
			if f := j.ix.cat.file(fid); f != nil && j.fileAllowed(f) {
				allowed = append(allowed, fid)
			}
		}
		j.analyzeNanos.Add(time.Since(ta).Nanoseconds())
		if len(allowed) == 0 {
			continue
		}

		tr := time.Now()
		loc, failed := j.safeFindIndex(c.Data[ls:le])
		j.regexNanos.Add(time.Since(tr).Nanoseconds())
		if failed || loc == nil {
			continue
		}
		lineText := string(c.Data[ls:le])

		for _, fid := range allowed {
			f := j.ix.cat.file(fid)
			for _, idx := range occurrenceIndices(f, c.ID(), ls) {
				lineNumber := idx + 1
				if j.seen.checkAndMark(fid, lineNumber) {
					continue
				}

				tc := time.Now()
				before, after := j.gatherContext(f, idx)
				j.analyzeNanos.Add(time.Since(tc).Nanoseconds())
				res := MatchResult{
					File:          f,
					Tree:          j.ix.cat.tree(f.Tree),
					LineNumber:    lineNumber,
					LineText:      lineText,
					MatchLeft:     loc[0],
					MatchRight:    loc[1],
					ContextBefore: before,
					ContextAfter:  after,
				}

				limitHit := j.matched.addAndCheck(j.plan.maxMatches)
				if !j.onResult(res) {
					j.exit.setIfUnset(ExitMatchLimit)
					return nil
				}
				if limitHit {
					j.exit.setIfUnset(ExitMatchLimit)
					return nil
				}
			}
		}
	}
	return nil
}

// safeFindIndex runs the line regex over data, recovering from a panic
// inside the regexp engine so one pathological line cannot abort the
// whole scan. Go's RE2-derived regexp package does not itself return
// per-call errors, so a recovered panic is logged at Warn and the line
// is treated as a non-match rather than propagated.
func (j *searchJob) safeFindIndex(data []byte) (loc []int, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			j.ix.logger.Warn().
				Interface("panic", r).
				Int("line_len", len(data)).
				Msg("index: line regex engine failed, skipping line")
			loc, failed = nil, true
		}
	}()
	return j.plan.lineRe.FindIndex(data), false
}

// candidateLineStarts probes the suffix array for each required
// literal (or falls back to every line in the chunk), then dedupes by
// line start since multiple probes, or multiple occurrences of a
// literal on one line, can reach the same line. Dedup uses a roaring
// bitmap of line-start offsets rather than a map: offsets are dense,
// non-negative integers, and ToArray() comes back sorted, which also
// removes a separate sort.Slice pass.
func (j *searchJob) candidateLineStarts(c *Chunk) []int32 {
	if j.plan.fullScan {
		return allLineStarts(c)
	}
	if len(c.Suffix) == 0 {
		return nil
	}

	seen := roaring.New()
	for _, p := range j.plan.probes {
		lo, hi := probeRange(c.Data[:c.Size], c.Suffix, p.literal)
		for i := lo; i < hi; i++ {
			o := c.Suffix[i]
			ls, _ := c.lineBounds(o)
			seen.Add(uint32(ls))
		}
	}

	arr := seen.ToArray()
	starts := make([]int32, len(arr))
	for i, v := range arr {
		starts[i] = int32(v)
	}
	return starts
}

// allLineStarts enumerates every line start in the chunk, used by the
// full-scan fallback plan, used when no literal of sufficient length
// could be extracted from the regex.
func allLineStarts(c *Chunk) []int32 {
	if c.Size == 0 {
		return nil
	}
	starts := []int32{0}
	for i := int32(0); i < c.Size; i++ {
		if c.Data[i] == '\n' && i+1 < c.Size {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// occurrenceIndices returns every span index in f's content handle
// that refers to the same (chunk, offset) as ls. A deduplicated line
// that repeats within one file ("foo\nbar\nfoo\n") appears at more
// than one index, each a distinct line number sharing the same
// physical bytes.
func occurrenceIndices(f *File, chunk ChunkID, offset int32) []int {
	var out []int
	for i, s := range f.Content.Spans {
		if s.Chunk == chunk && s.Offset == offset {
			out = append(out, i)
		}
	}
	return out
}

// gatherContext collects up to K lines before and after span index idx
// in f's content handle, clipped at file boundaries, crossing chunk
// boundaries by following each neighboring span to its own chunk and
// materializing its text as a string for the caller.
func (j *searchJob) gatherContext(f *File, idx int) (before, after []string) {
	k := j.ix.contextLines
	spans := f.Content.Spans

	lo := idx - k
	if lo < 0 {
		lo = 0
	}
	for i := lo; i < idx; i++ {
		before = append(before, j.spanText(spans[i]))
	}

	hi := idx + k + 1
	if hi > len(spans) {
		hi = len(spans)
	}
	for i := idx + 1; i < hi; i++ {
		after = append(after, j.spanText(spans[i]))
	}
	return before, after
}

func (j *searchJob) spanText(s LineSpan) string {
	chunks := j.ix.alloc.Chunks()
	if int(s.Chunk) >= len(chunks) {
		return ""
	}
	c := chunks[s.Chunk]
	return string(c.Data[s.Offset : s.Offset+s.Length])
}

// fileAllowed applies file_pattern/tree_pattern, caching the decision
// per file for the lifetime of one query.
func (j *searchJob) fileAllowed(f *File) bool {
	if j.plan.fileRe == nil && j.plan.treeRe == nil {
		return true
	}
	return j.patternCache.decide(f, j.ix, j.plan)
}

// patternCache memoizes fileAllowed decisions across chunks, since the
// same file can be reached from many chunks within one query. When the
// file/tree pattern reduces to a literal prefix, it also memoizes the
// radix-index lookup that lets most files be rejected without ever
// invoking the regex engine.
type patternCache struct {
	mu      sync.Mutex
	allowed map[FileID]bool

	prefixOnce   sync.Once
	fileByPrefix map[FileID]bool
	treeByPrefix map[TreeID]bool
}

func newPatternCache() *patternCache {
	return &patternCache{allowed: make(map[FileID]bool)}
}

// ensurePrefixSets walks the catalog's radix trees once, on first use,
// to build the set of file/tree IDs whose path/name carries the
// pattern's required literal prefix. A file or tree missing from these
// sets cannot match pl.fileRe/pl.treeRe and is rejected without a
// regex call; a hit still falls through to the full regex, since a
// literal prefix alone does not guarantee the rest of the pattern
// matches.
func (p *patternCache) ensurePrefixSets(ix *Index, pl *plan) {
	p.prefixOnce.Do(func() {
		if pl.filePrefix != "" {
			p.fileByPrefix = make(map[FileID]bool)
			for _, t := range ix.cat.allTrees() {
				for _, fid := range ix.cat.filesWithPrefix(t.ID, pl.filePrefix) {
					p.fileByPrefix[fid] = true
				}
			}
		}
		if pl.treePrefix != "" {
			p.treeByPrefix = make(map[TreeID]bool)
			for _, tid := range ix.cat.treesWithPrefix(pl.treePrefix) {
				p.treeByPrefix[tid] = true
			}
		}
	})
}

func (p *patternCache) decide(f *File, ix *Index, pl *plan) bool {
	p.mu.Lock()
	if v, ok := p.allowed[f.ID]; ok {
		p.mu.Unlock()
		return v
	}
	p.mu.Unlock()

	p.ensurePrefixSets(ix, pl)

	ok := true
	if pl.fileRe != nil {
		if pl.filePrefix != "" && !p.fileByPrefix[f.ID] {
			ok = false
		} else if !pl.fileRe.MatchString(f.Path) {
			ok = false
		}
	}
	if ok && pl.treeRe != nil {
		t := ix.cat.tree(f.Tree)
		if t == nil {
			ok = false
		} else if pl.treePrefix != "" && !p.treeByPrefix[t.ID] {
			ok = false
		} else if !pl.treeRe.MatchString(t.Name) {
			ok = false
		}
	}

	p.mu.Lock()
	p.allowed[f.ID] = ok
	p.mu.Unlock()
	return ok
}
