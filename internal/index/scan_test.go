package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherContextClipsAtFileBoundaries(t *testing.T) {
	ix := New(WithContextLines(3))
	tree, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	_, err = ix.IndexFile(tree, "a.txt", []byte("l1\nl2\nMATCH\nl4\n"))
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	var results []MatchResult
	err = ix.Match(context.Background(), Query{LinePattern: "MATCH"}, func(m MatchResult) bool {
		results = append(results, m)
		return true
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	m := results[0]
	assert.Equal(t, []string{"l1", "l2"}, m.ContextBefore, "before-context is clipped, not padded, at the file start")
	assert.Equal(t, []string{"l4"}, m.ContextAfter, "after-context is clipped at the file end")
}

func TestFullScanFallbackForShortPattern(t *testing.T) {
	ix := New()
	tree, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	_, err = ix.IndexFile(tree, "a.txt", []byte("ab\ncd\nab\n"))
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	var results []MatchResult
	err = ix.Match(context.Background(), Query{LinePattern: "ab"}, func(m MatchResult) bool {
		results = append(results, m)
		return true
	}, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2, "a pattern shorter than the minimum literal length must still match via full scan")
}

func TestAllLineStartsEmptyChunk(t *testing.T) {
	c := newChunk(0, 16)
	assert.Empty(t, allLineStarts(c))
}

func TestOccurrenceIndicesMultipleMatchesOneFile(t *testing.T) {
	ix := New()
	tree, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	f, err := ix.IndexFile(tree, "a.txt", []byte("x\nx\nx\n"))
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	idxs := occurrenceIndices(f, f.Content.Spans[0].Chunk, f.Content.Spans[0].Offset)
	assert.Equal(t, []int{0, 1, 2}, idxs)
}
