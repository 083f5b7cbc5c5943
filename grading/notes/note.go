package notes

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-maestro/algorithms/common"
)

// MaxVelocity is the loudest velocity a Note may carry
const MaxVelocity = 127

// ErrMalformedNote is returned when a note violates its invariants
var ErrMalformedNote = errors.New("malformed note")

// Note is a single discrete note event. Pitch is in Hz; rests carry
// Rest=true and Pitch=0. Start and End are seconds from the start of the
// sequence. Notes are values: build them with NewNote or NewRest and never
// mutate them after they have been placed in a sequence.
type Note struct {
	Pitch    float64 `json:"pitch"`
	Velocity int     `json:"velocity"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Rest     bool    `json:"rest,omitempty"`
}

// NewNote builds a pitched note, validating its invariants
func NewNote(pitch float64, velocity int, start, end float64) (Note, error) {
	n := Note{Pitch: pitch, Velocity: velocity, Start: start, End: end}
	if err := n.Validate(); err != nil {
		return Note{}, err
	}
	return n, nil
}

// NewRest builds a rest spanning [start, end]
func NewRest(start, end float64) (Note, error) {
	n := Note{Rest: true, Start: start, End: end}
	if err := n.Validate(); err != nil {
		return Note{}, err
	}
	return n, nil
}

// Validate reports whether the note satisfies its invariants
func (n Note) Validate() error {
	fields := [...]struct {
		name  string
		value float64
	}{{"pitch", n.Pitch}, {"start", n.Start}, {"end", n.End}}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrMalformedNote, f.name)
		}
	}

	switch {
	case n.End < n.Start:
		return fmt.Errorf("%w: end %.3fs before start %.3fs", ErrMalformedNote, n.End, n.Start)
	case n.Start < 0:
		return fmt.Errorf("%w: negative start %.3fs", ErrMalformedNote, n.Start)
	case n.Velocity < 0 || n.Velocity > MaxVelocity:
		return fmt.Errorf("%w: velocity %d outside 0..%d", ErrMalformedNote, n.Velocity, MaxVelocity)
	case n.Rest && n.Pitch != 0:
		return fmt.Errorf("%w: rest with pitch %.2f Hz", ErrMalformedNote, n.Pitch)
	case !n.Rest && n.Pitch <= 0:
		return fmt.Errorf("%w: pitch %.2f Hz must be positive", ErrMalformedNote, n.Pitch)
	}

	return nil
}

// Duration returns End - Start
func (n Note) Duration() float64 {
	return n.End - n.Start
}

// Shifted returns a copy moved earlier by offset seconds
func (n Note) Shifted(offset float64) Note {
	n.Start -= offset
	n.End -= offset
	return n
}

// AttributesEqual reports exact equality of every attribute. It exists for
// tests and determinism checks; grading never compares notes this way.
func AttributesEqual(a, b Note) bool {
	return a.Pitch == b.Pitch &&
		a.Velocity == b.Velocity &&
		a.Start == b.Start &&
		a.End == b.End &&
		a.Rest == b.Rest
}

// String renders the note with its nearest MIDI key for debugging output
func (n Note) String() string {
	if n.Rest {
		return fmt.Sprintf("Rest [%.2fs, %.2fs]", n.Start, n.End)
	}
	return fmt.Sprintf("%.2f Hz (key %.0f) vel %d [%.2fs, %.2fs]",
		n.Pitch, math.Round(common.FrequencyToMIDI(n.Pitch)), n.Velocity, n.Start, n.End)
}

// ValidateSequence validates every note and reports the first offending index
func ValidateSequence(seq []Note) error {
	for i, n := range seq {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
	}
	return nil
}
