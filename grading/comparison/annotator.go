package comparison

import (
	"github.com/RyanBlaney/sonido-maestro/grading/notes"
)

// DiffAnnotator lists the localized differences of an alignment
type DiffAnnotator struct {
	model *ConfidenceModel
}

// NewDiffAnnotator creates a diff annotator
func NewDiffAnnotator(model *ConfidenceModel) *DiffAnnotator {
	return &DiffAnnotator{model: model}
}

// Annotate walks pairs in order. info, when non-nil, is indexed by ideal
// note and attached to context notes.
//
// Paired notes yield one difference per failing attribute. A missing note
// carries itself as context. An extra note carries the nearest matched
// ideal notes around it: "After" the preceding one, "Before" the following
// one, or "Between" both.
func (da *DiffAnnotator) Annotate(pairs []notes.AlignedPair, info []notes.NoteInfo) []notes.Difference {
	diffs := []notes.Difference{}

	idealIdx, actualIdx := 0, 0
	for k, p := range pairs {
		switch p.Kind() {
		case notes.PairBoth:
			owner := []notes.ContextNote{contextNote(idealIdx, *p.Ideal, info)}
			for _, diffType := range da.model.Check(*p.Ideal, *p.Actual).Failing() {
				diffs = append(diffs, notes.Difference{
					IdealIdx:     intPtr(idealIdx),
					IdealVal:     notePtr(*p.Ideal),
					ActualIdx:    intPtr(actualIdx),
					ActualVal:    notePtr(*p.Actual),
					DiffType:     diffType,
					ContextNotes: owner,
				})
			}
			idealIdx++
			actualIdx++

		case notes.PairMissing:
			diffs = append(diffs, notes.Difference{
				IdealIdx:     intPtr(idealIdx),
				IdealVal:     notePtr(*p.Ideal),
				DiffType:     notes.DiffMissing,
				ContextNotes: []notes.ContextNote{contextNote(idealIdx, *p.Ideal, info)},
			})
			idealIdx++

		case notes.PairExtra:
			d := notes.Difference{
				ActualIdx: intPtr(actualIdx),
				ActualVal: notePtr(*p.Actual),
				DiffType:  notes.DiffExtra,
			}
			d.ContextNotes, d.ContextLabel = extraContext(pairs, k, info)
			diffs = append(diffs, d)
			actualIdx++
		}
	}

	return diffs
}

// extraContext finds the nearest matched pairs on either side of pairs[k]
func extraContext(pairs []notes.AlignedPair, k int, info []notes.NoteInfo) ([]notes.ContextNote, notes.ContextLabel) {
	var before, after *notes.ContextNote

	for i := k - 1; i >= 0; i-- {
		if pairs[i].Matched {
			c := contextNote(pairs[i].IdealIdx, *pairs[i].Ideal, info)
			before = &c
			break
		}
	}
	for i := k + 1; i < len(pairs); i++ {
		if pairs[i].Matched {
			c := contextNote(pairs[i].IdealIdx, *pairs[i].Ideal, info)
			after = &c
			break
		}
	}

	switch {
	case before != nil && after != nil:
		return []notes.ContextNote{*before, *after}, notes.ContextBetween
	case before != nil:
		return []notes.ContextNote{*before}, notes.ContextAfter
	case after != nil:
		return []notes.ContextNote{*after}, notes.ContextBefore
	default:
		return nil, notes.ContextNone
	}
}

func contextNote(idx int, n notes.Note, info []notes.NoteInfo) notes.ContextNote {
	c := notes.ContextNote{IdealIdx: idx, Note: n}
	if idx >= 0 && idx < len(info) {
		meta := info[idx]
		c.Info = &meta
	}
	return c
}

func intPtr(v int) *int {
	return &v
}

func notePtr(n notes.Note) *notes.Note {
	return &n
}
