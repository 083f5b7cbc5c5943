package comparison

import (
	"math"

	"github.com/RyanBlaney/sonido-maestro/algorithms/common"
	"github.com/RyanBlaney/sonido-maestro/grading/config"
	"github.com/RyanBlaney/sonido-maestro/grading/notes"
)

// ConfidenceModel scores how similar two notes are. Every confidence is in
// [0, 1]; notes are never compared for equality.
type ConfidenceModel struct {
	cfg config.ScoringConfig
}

// NewConfidenceModel creates a confidence model. cfg is copied.
func NewConfidenceModel(cfg config.ScoringConfig) *ConfidenceModel {
	return &ConfidenceModel{cfg: cfg}
}

// Config returns the scoring configuration in use
func (m *ConfidenceModel) Config() config.ScoringConfig {
	return m.cfg
}

func linear(distance, tolerance float64) float64 {
	return math.Max(0, 1-distance/tolerance)
}

// PitchConfidence falls linearly with the cents distance. A rest only
// matches another rest.
func (m *ConfidenceModel) PitchConfidence(a, b notes.Note) float64 {
	if a.Rest || b.Rest {
		if a.Rest && b.Rest {
			return 1
		}
		return 0
	}
	return linear(common.AbsCents(a.Pitch, b.Pitch), m.cfg.PitchTolerance)
}

func (m *ConfidenceModel) VelocityConfidence(a, b notes.Note) float64 {
	return linear(math.Abs(float64(a.Velocity-b.Velocity)), m.cfg.VelocityTolerance)
}

func (m *ConfidenceModel) StartConfidence(a, b notes.Note) float64 {
	return linear(math.Abs(a.Start-b.Start), m.cfg.StartTolerance)
}

func (m *ConfidenceModel) EndConfidence(a, b notes.Note) float64 {
	return linear(math.Abs(a.End-b.End), m.cfg.EndTolerance)
}

// Confidence is the weighted combination of the four attribute confidences
func (m *ConfidenceModel) Confidence(a, b notes.Note) float64 {
	return m.cfg.PitchWeight*m.PitchConfidence(a, b) +
		m.cfg.VelocityWeight*m.VelocityConfidence(a, b) +
		m.cfg.StartWeight*m.StartConfidence(a, b) +
		m.cfg.EndWeight*m.EndConfidence(a, b)
}

// Matches reports whether the weighted confidence clears the pass threshold
func (m *ConfidenceModel) Matches(a, b notes.Note) bool {
	return m.Confidence(a, b) >= m.cfg.MatchPassConfidence
}

// AttributeChecks records which attributes individually pass
type AttributeChecks struct {
	Pitch    bool
	Velocity bool
	Start    bool
	End      bool
}

// Check evaluates every attribute against AttributePassConfidence
func (m *ConfidenceModel) Check(ideal, actual notes.Note) AttributeChecks {
	pass := m.cfg.AttributePassConfidence
	return AttributeChecks{
		Pitch:    m.PitchConfidence(ideal, actual) >= pass,
		Velocity: m.VelocityConfidence(ideal, actual) >= pass,
		Start:    m.StartConfidence(ideal, actual) >= pass,
		End:      m.EndConfidence(ideal, actual) >= pass,
	}
}

// Timing reports whether both onset and release pass
func (c AttributeChecks) Timing() bool {
	return c.Start && c.End
}

// Failing lists the failing attributes in pitch, velocity, start, end order
func (c AttributeChecks) Failing() []notes.DiffType {
	var failing []notes.DiffType
	if !c.Pitch {
		failing = append(failing, notes.DiffPitch)
	}
	if !c.Velocity {
		failing = append(failing, notes.DiffVelocity)
	}
	if !c.Start {
		failing = append(failing, notes.DiffStart)
	}
	if !c.End {
		failing = append(failing, notes.DiffEnd)
	}
	return failing
}
