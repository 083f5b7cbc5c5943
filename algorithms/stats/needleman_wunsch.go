package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrEmptySequence is returned when either sequence has no elements
var ErrEmptySequence = errors.New("empty sequences provided")

// NWScoring is the scoring scheme of a Needleman-Wunsch alignment.
// RowGap is charged when a row element is left unaligned (an "up" move),
// ColumnGap when a column element is (a "left" move).
type NWScoring struct {
	Match     float64 `json:"match"`
	Mismatch  float64 `json:"mismatch"`
	RowGap    float64 `json:"row_gap"`
	ColumnGap float64 `json:"column_gap"`
}

// NWStep is the traceback move that produced a path point
type NWStep int

const (
	StepDiagonal NWStep = iota
	StepUp
	StepLeft
)

func (s NWStep) String() string {
	switch s {
	case StepDiagonal:
		return "diagonal"
	case StepUp:
		return "up"
	case StepLeft:
		return "left"
	default:
		return "unknown"
	}
}

// NWPoint is one step of the alignment path in chronological order.
// Row or Col is -1 when that side is a gap.
type NWPoint struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Step    NWStep `json:"step"`
	Matched bool   `json:"matched"` // Diagonal step scored as a match
}

// NWResult contains the alignment path and the filled score matrix
type NWResult struct {
	Path        []NWPoint  `json:"path"`
	Score       float64    `json:"score"`
	ScoreMatrix *mat.Dense `json:"-"`
}

// MatchFunc reports whether row element i and column element j match
type MatchFunc func(i, j int) bool

// NeedlemanWunsch computes global, order-preserving alignments.
//
// Reference: Needleman, S.B., Wunsch, C.D. (1970). "A general method
// applicable to the search for similarities in the amino acid sequence
// of two proteins"
//
// Traceback prefers diagonal over up over left when candidate scores tie,
// so identical input always yields an identical path.
type NeedlemanWunsch struct {
	scoring NWScoring
}

// NewNeedlemanWunsch creates an aligner with the given scoring scheme
func NewNeedlemanWunsch(scoring NWScoring) *NeedlemanWunsch {
	return &NeedlemanWunsch{scoring: scoring}
}

// Align aligns rows elements against cols elements
func (nw *NeedlemanWunsch) Align(rows, cols int, matches MatchFunc) (*NWResult, error) {
	if rows == 0 || cols == 0 {
		return nil, ErrEmptySequence
	}

	// match decisions are made exactly once per cell so traceback agrees with fill
	matched := make([]bool, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			matched[i*cols+j] = matches(i, j)
		}
	}
	pairScore := func(i, j int) float64 {
		if matched[(i-1)*cols+(j-1)] {
			return nw.scoring.Match
		}
		return nw.scoring.Mismatch
	}

	score := mat.NewDense(rows+1, cols+1, nil)
	for i := 1; i <= rows; i++ {
		score.Set(i, 0, nw.scoring.RowGap*float64(i))
	}
	for j := 1; j <= cols; j++ {
		score.Set(0, j, nw.scoring.ColumnGap*float64(j))
	}

	for i := 1; i <= rows; i++ {
		for j := 1; j <= cols; j++ {
			diag := score.At(i-1, j-1) + pairScore(i, j)
			up := score.At(i-1, j) + nw.scoring.RowGap
			left := score.At(i, j-1) + nw.scoring.ColumnGap
			score.Set(i, j, math.Max(diag, math.Max(up, left)))
		}
	}

	path := make([]NWPoint, 0, rows+cols)
	i, j := rows, cols
	for i > 0 || j > 0 {
		diag, up, left := math.Inf(-1), math.Inf(-1), math.Inf(-1)
		if i > 0 && j > 0 {
			diag = score.At(i-1, j-1) + pairScore(i, j)
		}
		if i > 0 {
			up = score.At(i-1, j) + nw.scoring.RowGap
		}
		if j > 0 {
			left = score.At(i, j-1) + nw.scoring.ColumnGap
		}

		switch {
		case diag >= up && diag >= left:
			path = append(path, NWPoint{Row: i - 1, Col: j - 1, Step: StepDiagonal, Matched: matched[(i-1)*cols+(j-1)]})
			i--
			j--
		case up >= left:
			path = append(path, NWPoint{Row: i - 1, Col: -1, Step: StepUp})
			i--
		default:
			path = append(path, NWPoint{Row: -1, Col: j - 1, Step: StepLeft})
			j--
		}
	}

	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}

	return &NWResult{
		Path:        path,
		Score:       score.At(rows, cols),
		ScoreMatrix: score,
	}, nil
}
