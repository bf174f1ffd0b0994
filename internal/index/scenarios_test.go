package index

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectMatches(t *testing.T, ix *Index, q Query) ([]MatchResult, Stats) {
	t.Helper()
	var results []MatchResult
	var stats Stats
	err := ix.Match(context.Background(), q, func(m MatchResult) bool {
		results = append(results, m)
		return true
	}, &stats)
	require.NoError(t, err)
	return results, stats
}

// Scenario 1: a single file with a repeated line reports two distinct
// line numbers sharing one chunk span (dedup).
func TestScenarioRepeatedLineInOneFile(t *testing.T) {
	ix := New()
	tree, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	_, err = ix.IndexFile(tree, "a.txt", []byte("foo\nbar\nfoo\n"))
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	results, stats := collectMatches(t, ix, Query{LinePattern: "foo"})
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []int{1, 3}, []int{results[0].LineNumber, results[1].LineNumber})
	for _, r := range results {
		assert.Equal(t, "foo", r.LineText)
		assert.Equal(t, 0, r.MatchLeft)
		assert.Equal(t, 3, r.MatchRight)
	}
	assert.Equal(t, ExitNone, stats.ExitReason)
}

// Scenario 2: two files sharing an identical line each produce one
// match, both backed by the same deduplicated span.
func TestScenarioSharedLineAcrossFiles(t *testing.T) {
	ix := New()
	tree, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	fa, err := ix.IndexFile(tree, "a.txt", []byte("hello\n"))
	require.NoError(t, err)
	fb, err := ix.IndexFile(tree, "b.txt", []byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	assert.Equal(t, fa.Content.Spans[0], fb.Content.Spans[0], "identical lines must share one span")

	results, _ := collectMatches(t, ix, Query{LinePattern: "hello"})
	require.Len(t, results, 2)
	files := map[string]bool{}
	for _, r := range results {
		files[r.File.Path] = true
		assert.Equal(t, 1, r.LineNumber)
	}
	assert.True(t, files["a.txt"] && files["b.txt"])
}

// Scenario 3: context lines K=1 around a single match.
func TestScenarioContextLines(t *testing.T) {
	ix := New(WithContextLines(1))
	tree, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	_, err = ix.IndexFile(tree, "a.txt", []byte("line1\nMATCH_HERE\nline3\n"))
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	results, _ := collectMatches(t, ix, Query{LinePattern: "MATCH_HERE"})
	require.Len(t, results, 1)
	m := results[0]
	assert.Equal(t, 2, m.LineNumber)
	assert.Equal(t, []string{"line1"}, m.ContextBefore)
	assert.Equal(t, []string{"line3"}, m.ContextAfter)
}

// Scenario 4: no matches, exit_reason=none.
func TestScenarioNoMatches(t *testing.T) {
	ix := New()
	tree, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	_, err = ix.IndexFile(tree, "a.txt", []byte("foo\nbar\nfoo\n"))
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	results, stats := collectMatches(t, ix, Query{LinePattern: "never"})
	assert.Empty(t, results)
	assert.Equal(t, ExitNone, stats.ExitReason)
}

// Scenario 5: max_matches caps the result count and reports
// exit_reason=match_limit when the corpus has more matches available.
func TestScenarioMaxMatchesCap(t *testing.T) {
	ix := New()
	tree, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		path := filepath.Join("pkg", "file", string(rune('a'+i%26)), strconv.Itoa(i)+".go")
		_, err := ix.IndexFile(tree, path, []byte("needle "+strconv.Itoa(i)+"\n"))
		require.NoError(t, err)
	}
	require.NoError(t, ix.Finalize())

	results, stats := collectMatches(t, ix, Query{LinePattern: "needle", MaxMatches: 10})
	assert.Len(t, results, 10)
	assert.Equal(t, ExitMatchLimit, stats.ExitReason)
}

// Scenario 6: dump then reload reproduces byte-identical results.
func TestScenarioDumpLoadIdempotence(t *testing.T) {
	ix := New()
	tree, err := ix.OpenTree("t1", "v1", nil)
	require.NoError(t, err)
	_, err = ix.IndexFile(tree, "a.txt", []byte("foo\nbar\nfoo\n"))
	require.NoError(t, err)
	require.NoError(t, ix.Finalize())

	before, statsBefore := collectMatches(t, ix, Query{LinePattern: "foo"})

	dir := t.TempDir()
	dumpPath := filepath.Join(dir, "index.csx")
	require.NoError(t, ix.Dump(dumpPath))

	loaded, err := Load(dumpPath)
	require.NoError(t, err)

	after, statsAfter := collectMatches(t, loaded, Query{LinePattern: "foo"})

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].LineNumber, after[i].LineNumber)
		assert.Equal(t, before[i].LineText, after[i].LineText)
		assert.Equal(t, before[i].MatchLeft, after[i].MatchLeft)
		assert.Equal(t, before[i].MatchRight, after[i].MatchRight)
		assert.Equal(t, before[i].File.Path, after[i].File.Path)
	}
	assert.Equal(t, statsBefore.ExitReason, statsAfter.ExitReason)

	_, statErr := os.Stat(dumpPath)
	require.NoError(t, statErr)
}
