package index

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSuffixArraySoundness(t *testing.T) {
	cases := []string{
		"",
		"a",
		"banana",
		"abracadabra",
		"foo\nbar\nfoo\n",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	}
	for _, data := range cases {
		t.Run(data, func(t *testing.T) {
			sa, err := BuildSuffixArray([]byte(data))
			require.NoError(t, err)
			require.Len(t, sa, len(data))

			seen := make(map[int32]bool, len(sa))
			for _, off := range sa {
				assert.False(t, seen[off], "suffix array must be a permutation")
				seen[off] = true
			}

			b := []byte(data)
			for i := 0; i+1 < len(sa); i++ {
				cmp := bytes.Compare(b[sa[i]:], b[sa[i+1]:])
				assert.LessOrEqual(t, cmp, 0, "SA[%d] must sort <= SA[%d]", i, i+1)
			}
		})
	}
}

func TestProbeRange(t *testing.T) {
	data := []byte("banana")
	sa, err := BuildSuffixArray(data)
	require.NoError(t, err)

	lo, hi := probeRange(data, sa, []byte("ana"))
	require.Equal(t, 2, hi-lo)
	for i := lo; i < hi; i++ {
		off := sa[i]
		assert.True(t, bytes.HasPrefix(data[off:], []byte("ana")))
	}

	lo, hi = probeRange(data, sa, []byte("xyz"))
	assert.Equal(t, 0, hi-lo)
}

func TestCompareSuffixPrefix(t *testing.T) {
	data := []byte("hello")
	assert.Equal(t, 0, compareSuffixPrefix(data, 0, []byte("he")))
	assert.Less(t, compareSuffixPrefix(data, 0, []byte("hz")), 0)
	assert.Greater(t, compareSuffixPrefix(data, 0, []byte("ha")), 0)
	assert.Equal(t, -1, compareSuffixPrefix(data, 3, []byte("lob")))
}
