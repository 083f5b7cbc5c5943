package comparison

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-maestro/algorithms/stats"
	"github.com/RyanBlaney/sonido-maestro/grading/config"
	"github.com/RyanBlaney/sonido-maestro/grading/notes"
	"github.com/RyanBlaney/sonido-maestro/logging"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyInput is returned when either note sequence is empty
var ErrEmptyInput = errors.New("empty input")

// Diagnostics receives intermediate alignment artifacts. Either hook may be nil.
type Diagnostics struct {
	ScoreMatrix func(m mat.Matrix)
	Alignment   func(pairs []notes.AlignedPair)
}

// Aligner computes the global alignment of an ideal and an actual note
// sequence. The diagonal decision is the confidence model's Matches, so
// both outcomes of a diagonal move consume one note from each side; only
// up (missing) and left (extra) moves leave a note unpaired.
type Aligner struct {
	nw          *stats.NeedlemanWunsch
	model       *ConfidenceModel
	diagnostics Diagnostics
	logger      logging.Logger
}

// NewAligner creates an aligner
func NewAligner(scores config.AlignmentScores, model *ConfidenceModel) *Aligner {
	return &Aligner{
		nw: stats.NewNeedlemanWunsch(stats.NWScoring{
			Match:     scores.Match,
			Mismatch:  scores.Mismatch,
			RowGap:    scores.Missing,
			ColumnGap: scores.Extra,
		}),
		model: model,
		logger: logging.WithFields(logging.Fields{
			"component": "aligner",
		}),
	}
}

// WithDiagnostics returns a copy of the aligner that reports to d
func (a *Aligner) WithDiagnostics(d Diagnostics) *Aligner {
	cp := *a
	cp.diagnostics = d
	return &cp
}

// Align returns the alignment in chronological order
func (a *Aligner) Align(ideal, actual []notes.Note) ([]notes.AlignedPair, error) {
	switch {
	case len(ideal) == 0 && len(actual) == 0:
		return nil, fmt.Errorf("%w: no ideal or actual notes", ErrEmptyInput)
	case len(ideal) == 0:
		return nil, fmt.Errorf("%w: no ideal notes", ErrEmptyInput)
	case len(actual) == 0:
		return nil, fmt.Errorf("%w: no actual notes", ErrEmptyInput)
	}

	result, err := a.nw.Align(len(ideal), len(actual), func(i, j int) bool {
		return a.model.Matches(ideal[i], actual[j])
	})
	if err != nil {
		return nil, fmt.Errorf("failed to align notes: %w", err)
	}

	if a.diagnostics.ScoreMatrix != nil {
		a.diagnostics.ScoreMatrix(result.ScoreMatrix)
	}

	pairs := make([]notes.AlignedPair, len(result.Path))
	matched := 0
	for k, p := range result.Path {
		pair := notes.AlignedPair{IdealIdx: p.Row, ActualIdx: p.Col, Matched: p.Matched}
		if p.Row >= 0 {
			n := ideal[p.Row]
			pair.Ideal = &n
		}
		if p.Col >= 0 {
			n := actual[p.Col]
			pair.Actual = &n
		}
		if p.Matched {
			matched++
		}
		pairs[k] = pair
	}

	if a.diagnostics.Alignment != nil {
		a.diagnostics.Alignment(pairs)
	}

	a.logger.Debug("notes aligned", logging.Fields{
		"ideal":   len(ideal),
		"actual":  len(actual),
		"pairs":   len(pairs),
		"matched": matched,
		"score":   result.Score,
	})

	return pairs, nil
}
