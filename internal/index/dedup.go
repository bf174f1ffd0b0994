package index

import "hash/fnv"

// dedupKey identifies a line by content hash plus length, so lines of
// different lengths never share a bucket; lookup still compares bytes
// against every entry in the bucket, so a hash collision never yields
// a false match.
type dedupKey struct {
	hash uint64
	n    int
}

// dedupEntry is a first-occurrence span plus the bytes it points at,
// kept alongside the span so lookup can resolve a hash collision by
// comparing bytes without dereferencing back into chunk memory (the
// allocator backing a span may be read-only mmap during reload, but
// the dedup table itself is build-only and never consulted then).
type dedupEntry struct {
	span LineSpan
	data []byte
}

// dedupTable canonicalizes identical line content to a single
// first-occurrence span. Single-writer: only ever touched during
// build, never during query.
type dedupTable struct {
	buckets map[dedupKey][]dedupEntry
}

func newDedupTable() *dedupTable {
	return &dedupTable{buckets: make(map[dedupKey][]dedupEntry)}
}

func hashLine(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}

// lookup returns the existing span for line, if any identical line was
// already written.
func (d *dedupTable) lookup(line []byte) (LineSpan, bool) {
	key := dedupKey{hash: hashLine(line), n: len(line)}
	for _, e := range d.buckets[key] {
		if bytesEqual(e.data, line) {
			return e.span, true
		}
	}
	return LineSpan{}, false
}

// insert records line as first-seen at span. data must alias the bytes
// already committed into the chunk at span (not a copy), so later
// collision checks compare against the real stored content.
func (d *dedupTable) insert(line []byte, span LineSpan, data []byte) {
	key := dedupKey{hash: hashLine(line), n: len(line)}
	d.buckets[key] = append(d.buckets[key], dedupEntry{span: span, data: data})
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
