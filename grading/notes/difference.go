package notes

import "fmt"

// DiffType classifies a Difference
type DiffType string

const (
	DiffPitch    DiffType = "pitch"
	DiffVelocity DiffType = "velocity"
	DiffStart    DiffType = "start"
	DiffEnd      DiffType = "end"
	DiffMissing  DiffType = "missing"
	DiffExtra    DiffType = "extra"
)

// ContextLabel says where an extra note sits relative to the matched ideal
// notes attached to it
type ContextLabel string

const (
	ContextNone    ContextLabel = ""
	ContextAfter   ContextLabel = "After"
	ContextBefore  ContextLabel = "Before"
	ContextBetween ContextLabel = "Between"
)

// NoteInfo is presentation metadata for an ideal note, produced by the score
// parser alongside the ideal sequence (one entry per ideal note).
type NoteInfo struct {
	Element  string `json:"element"` // "note" or "rest"
	Name     string `json:"name"`    // e.g. "C4"
	Type     string `json:"type"`    // e.g. "quarter", "eighth."
	Measure  int    `json:"measure"`
	Position int    `json:"position"` // 1-based position within the measure
}

// ContextNote is an ideal note attached to a Difference for presentation
type ContextNote struct {
	IdealIdx int       `json:"ideal_idx"`
	Note     Note      `json:"note"`
	Info     *NoteInfo `json:"info,omitempty"`
}

// Difference is one localized, typed discrepancy between the ideal and the
// actual performance. Index and value fields are nil on the side that does
// not exist (ideal side of an extra note, actual side of a missing note).
type Difference struct {
	IdealIdx     *int          `json:"ideal_idx"`
	IdealVal     *Note         `json:"ideal_val"`
	ActualIdx    *int          `json:"actual_idx"`
	ActualVal    *Note         `json:"actual_val"`
	DiffType     DiffType      `json:"diff_type"`
	ContextNotes []ContextNote `json:"context_notes,omitempty"`
	ContextLabel ContextLabel  `json:"context_label,omitempty"`
}

func (d Difference) String() string {
	idx := func(p *int) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprintf("%d", *p)
	}
	return fmt.Sprintf("%s ideal=%s actual=%s", d.DiffType, idx(d.IdealIdx), idx(d.ActualIdx))
}

// PairKind classifies an AlignedPair
type PairKind int

const (
	PairBoth    PairKind = iota // ideal and actual aligned on the diagonal
	PairMissing                 // ideal note with nothing played
	PairExtra                   // played note with no ideal counterpart
)

// AlignedPair is one step of the alignment. Exactly one of Ideal/Actual may
// be nil; the corresponding index is then -1.
type AlignedPair struct {
	Ideal     *Note `json:"ideal"`
	Actual    *Note `json:"actual"`
	IdealIdx  int   `json:"ideal_idx"`
	ActualIdx int   `json:"actual_idx"`
	// Matched is set on diagonal pairs whose weighted confidence passed
	Matched bool `json:"matched"`
}

// Kind classifies the pair
func (p AlignedPair) Kind() PairKind {
	switch {
	case p.Ideal == nil:
		return PairExtra
	case p.Actual == nil:
		return PairMissing
	default:
		return PairBoth
	}
}

// AccuracyTriple holds the three percentage accuracies. A nil field means
// the accuracy is undefined because no ideal note took part in the alignment.
type AccuracyTriple struct {
	Tuning   *float64 `json:"tuning"`
	Dynamics *float64 `json:"dynamics"`
	Tempo    *float64 `json:"tempo"`
}

// Defined reports whether all three accuracies were computed
func (a AccuracyTriple) Defined() bool {
	return a.Tuning != nil && a.Dynamics != nil && a.Tempo != nil
}
