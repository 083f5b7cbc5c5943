package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScoring = NWScoring{Match: 2, Mismatch: -4, RowGap: -3, ColumnGap: -4}

func alignStrings(t *testing.T, nw *NeedlemanWunsch, a, b string) *NWResult {
	t.Helper()
	result, err := nw.Align(len(a), len(b), func(i, j int) bool { return a[i] == b[j] })
	require.NoError(t, err)
	return result
}

func TestAlignIdentical(t *testing.T) {
	result := alignStrings(t, NewNeedlemanWunsch(testScoring), "CDEF", "CDEF")

	require.Len(t, result.Path, 4)
	for k, p := range result.Path {
		assert.Equal(t, StepDiagonal, p.Step)
		assert.Equal(t, k, p.Row)
		assert.Equal(t, k, p.Col)
		assert.True(t, p.Matched)
	}
	assert.Equal(t, 8.0, result.Score)

	rows, cols := result.ScoreMatrix.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 5, cols)
}

func TestAlignInsertionBecomesLeftStep(t *testing.T) {
	result := alignStrings(t, NewNeedlemanWunsch(testScoring), "CDEF", "CDXEF")

	steps := make([]NWStep, len(result.Path))
	for k, p := range result.Path {
		steps[k] = p.Step
	}
	assert.Equal(t, []NWStep{StepDiagonal, StepDiagonal, StepLeft, StepDiagonal, StepDiagonal}, steps)
	assert.Equal(t, -1, result.Path[2].Row)
	assert.Equal(t, 2, result.Path[2].Col)
}

func TestAlignDeletionBecomesUpStep(t *testing.T) {
	result := alignStrings(t, NewNeedlemanWunsch(testScoring), "CDEFG", "CDEF")

	last := result.Path[len(result.Path)-1]
	assert.Equal(t, StepUp, last.Step)
	assert.Equal(t, 4, last.Row)
	assert.Equal(t, -1, last.Col)
}

func TestAlignTiePrefersDiagonal(t *testing.T) {
	// diagonal mismatch, up+left and left+up all cost -2
	nw := NewNeedlemanWunsch(NWScoring{Match: 2, Mismatch: -2, RowGap: -1, ColumnGap: -1})
	result := alignStrings(t, nw, "A", "B")

	require.Len(t, result.Path, 1)
	assert.Equal(t, StepDiagonal, result.Path[0].Step)
	assert.False(t, result.Path[0].Matched)
}

func TestAlignTiePrefersUpOverLeft(t *testing.T) {
	// a mismatch costs more than two gaps; up-then-left and left-then-up both cost -2
	nw := NewNeedlemanWunsch(NWScoring{Match: 2, Mismatch: -10, RowGap: -1, ColumnGap: -1})
	result := alignStrings(t, nw, "A", "B")

	// traceback takes the up move first, so it ends the chronological path
	require.Len(t, result.Path, 2)
	assert.Equal(t, StepLeft, result.Path[0].Step)
	assert.Equal(t, -1, result.Path[0].Row)
	assert.Equal(t, 0, result.Path[0].Col)
	assert.Equal(t, StepUp, result.Path[1].Step)
	assert.Equal(t, 0, result.Path[1].Row)
	assert.Equal(t, -1, result.Path[1].Col)
	assert.Equal(t, -2.0, result.Score)
}

func TestAlignPathIsMonotonic(t *testing.T) {
	result := alignStrings(t, NewNeedlemanWunsch(testScoring), "ABCABDAB", "BACDBAB")

	lastRow, lastCol := -1, -1
	rowsSeen, colsSeen := 0, 0
	for _, p := range result.Path {
		if p.Row >= 0 {
			assert.Greater(t, p.Row, lastRow)
			lastRow = p.Row
			rowsSeen++
		}
		if p.Col >= 0 {
			assert.Greater(t, p.Col, lastCol)
			lastCol = p.Col
			colsSeen++
		}
		assert.False(t, p.Row < 0 && p.Col < 0)
	}
	assert.Equal(t, 8, rowsSeen)
	assert.Equal(t, 7, colsSeen)
}

func TestAlignEmpty(t *testing.T) {
	_, err := NewNeedlemanWunsch(testScoring).Align(0, 3, func(i, j int) bool { return true })
	assert.True(t, errors.Is(err, ErrEmptySequence))
}
