package index

import "sort"

// BuildSuffixArray builds SA such that data[SA[i]:] < data[SA[i+1]:]
// lexicographically (unsigned byte comparison) for all adjacent i.
// Newlines participate in ordering like any other byte.
//
// Uses prefix doubling: after round k, rank[i] orders suffixes by
// their first 2^k bytes. O(n log^2 n) comparisons, which is fine for
// the few-megabyte chunks this index uses; a linear-time DC3/SA-IS
// pass would only pay for itself on far larger buffers.
func BuildSuffixArray(data []byte) ([]int32, error) {
	n := len(data)
	sa := make([]int32, n)
	if n == 0 {
		return sa, nil
	}
	rank := make([]int32, n)
	for i := 0; i < n; i++ {
		sa[i] = int32(i)
		rank[i] = int32(data[i])
	}
	tmp := make([]int32, n)
	rankAt := func(i int32) int32 {
		if int(i) >= n {
			return -1
		}
		return rank[i]
	}
	for k := 1; ; k *= 2 {
		kk := int32(k)
		cmp := func(a, b int) bool {
			i, j := sa[a], sa[b]
			if rank[i] != rank[j] {
				return rank[i] < rank[j]
			}
			return rankAt(i+kk) < rankAt(j+kk)
		}
		sort.Slice(sa, cmp)

		tmp[sa[0]] = 0
		for i := 1; i < n; i++ {
			tmp[sa[i]] = tmp[sa[i-1]]
			prevI, curI := sa[i-1], sa[i]
			if rank[prevI] != rank[curI] || rankAt(prevI+kk) != rankAt(curI+kk) {
				tmp[sa[i]]++
			}
		}
		copy(rank, tmp)

		if rank[sa[n-1]] == int32(n-1) || k >= n {
			break
		}
	}
	return sa, nil
}

// probeRange returns [lo, hi) such that sa[lo:hi] are exactly the
// suffixes of data beginning with literal. Used by the chunk scanner
// to turn a required-literal probe into a set of candidate offsets.
func probeRange(data []byte, sa []int32, literal []byte) (lo, hi int) {
	n := len(sa)
	lo = sort.Search(n, func(i int) bool {
		return compareSuffixPrefix(data, sa[i], literal) >= 0
	})
	hi = sort.Search(n, func(i int) bool {
		return compareSuffixPrefix(data, sa[i], literal) > 0
	})
	return lo, hi
}

// compareSuffixPrefix compares data[off:] against literal, truncating
// the suffix to len(literal) bytes, returning <0, 0, >0 like
// bytes.Compare.
func compareSuffixPrefix(data []byte, off int32, literal []byte) int {
	suffix := data[off:]
	if len(suffix) > len(literal) {
		suffix = suffix[:len(literal)]
	}
	n := len(suffix)
	if n > len(literal) {
		n = len(literal)
	}
	for i := 0; i < n; i++ {
		if suffix[i] != literal[i] {
			if suffix[i] < literal[i] {
				return -1
			}
			return 1
		}
	}
	if len(suffix) < len(literal) {
		return -1
	}
	return 0
}
