package index

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkCounter(t *testing.T) {
	var c chunkCounter
	assert.False(t, c.addAndCheck(0)) // unbounded never reports limit hit
	assert.False(t, c.addAndCheck(0))
	assert.Equal(t, 2, c.value())

	var bounded chunkCounter
	assert.False(t, bounded.addAndCheck(2))
	assert.True(t, bounded.addAndCheck(2))
}

func TestExitCellFirstWriteWins(t *testing.T) {
	var e exitCell
	assert.Equal(t, ExitNone, e.get())
	e.setIfUnset(ExitMatchLimit)
	e.setIfUnset(ExitTimeout)
	assert.Equal(t, ExitMatchLimit, e.get(), "the first non-none write must stick")
}

func TestSeenSetCheckAndMark(t *testing.T) {
	s := newSeenSet()
	assert.False(t, s.checkAndMark(1, 10))
	assert.True(t, s.checkAndMark(1, 10))
	assert.False(t, s.checkAndMark(1, 11))
	assert.False(t, s.checkAndMark(2, 10))
}

func TestSeenSetConcurrentMarksExactlyOneWinner(t *testing.T) {
	s := newSeenSet()
	const n = 64
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.checkAndMark(7, 1)
		}(i)
	}
	wg.Wait()

	firstCount := 0
	for _, dup := range results {
		if !dup {
			firstCount++
		}
	}
	assert.Equal(t, 1, firstCount, "exactly one goroutine must observe the non-duplicate result")
}
