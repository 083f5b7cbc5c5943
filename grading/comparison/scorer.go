package comparison

import (
	"github.com/RyanBlaney/sonido-maestro/algorithms/common"
	"github.com/RyanBlaney/sonido-maestro/grading/notes"
)

const accuracyPrecision = 2

// Scorer turns an alignment into tuning, dynamics and tempo accuracies
type Scorer struct {
	model *ConfidenceModel
}

// NewScorer creates a scorer
func NewScorer(model *ConfidenceModel) *Scorer {
	return &Scorer{model: model}
}

// Score computes the accuracy triple. Every pair with an ideal note counts
// toward the denominator; a paired ideal note earns each metric whose
// attribute check passes (tempo needs both start and end). Tuning loses
// ExtraNotePenalty points per extra note. With no ideal notes in the
// alignment all three accuracies are nil.
func (s *Scorer) Score(pairs []notes.AlignedPair) notes.AccuracyTriple {
	var denominator, extra, tuning, dynamics, tempo int

	for _, p := range pairs {
		switch p.Kind() {
		case notes.PairBoth:
			denominator++
			checks := s.model.Check(*p.Ideal, *p.Actual)
			if checks.Pitch {
				tuning++
			}
			if checks.Velocity {
				dynamics++
			}
			if checks.Timing() {
				tempo++
			}
		case notes.PairMissing:
			denominator++
		case notes.PairExtra:
			extra++
		}
	}

	if denominator == 0 {
		return notes.AccuracyTriple{}
	}

	percent := func(count int, penalty float64) *float64 {
		v := float64(count)/float64(denominator)*100 - penalty
		v = common.RoundTo(common.Clamp(v, 0, 100), accuracyPrecision)
		return &v
	}

	return notes.AccuracyTriple{
		Tuning:   percent(tuning, s.model.cfg.ExtraNotePenalty*float64(extra)),
		Dynamics: percent(dynamics, 0),
		Tempo:    percent(tempo, 0),
	}
}
