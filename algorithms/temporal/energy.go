package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-maestro/algorithms/common"
)

// MaxVelocity is the top of the MIDI-style loudness scale
const MaxVelocity = 127

// Energy computes short-time energy over overlapping frames
type Energy struct {
	frameSize int
	hopSize   int
}

// NewEnergy creates a new energy calculator
func NewEnergy(frameSize, hopSize int) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// ComputeShortTimeEnergy calculates RMS energy for each full frame of signal
func (e *Energy) ComputeShortTimeEnergy(signal []float64) []float64 {
	if len(signal) < e.frameSize || e.hopSize <= 0 || e.frameSize <= 0 {
		return []float64{}
	}

	numFrames := (len(signal)-e.frameSize)/e.hopSize + 1
	energies := make([]float64, numFrames)

	for i := 0; i < numFrames; i++ {
		start := i * e.hopSize
		energies[i] = common.RMS(signal[start : start+e.frameSize])
	}

	return energies
}

// LoudnessScale maps RMS amplitude onto a bounded 0..127 velocity.
//
// The scale is logarithmic and anchored: ReferenceRMS lands on
// ReferenceVelocity regardless of how loud the rest of the recording is,
// and every DynamicRangeDB decibels below the reference removes
// ReferenceVelocity steps. Amplitudes more than DynamicRangeDB under the
// reference map to 0.
type LoudnessScale struct {
	ReferenceRMS      float64 `json:"reference_rms"`
	ReferenceVelocity int     `json:"reference_velocity"`
	DynamicRangeDB    float64 `json:"dynamic_range_db"`
}

// DefaultLoudnessScale anchors mezzo-forte (velocity 80) at an RMS of 0.058209
func DefaultLoudnessScale() LoudnessScale {
	return LoudnessScale{
		ReferenceRMS:      0.058209,
		ReferenceVelocity: 80,
		DynamicRangeDB:    60.0,
	}
}

// Decibels returns the level of rms relative to the reference, -Inf for silence
func (s LoudnessScale) Decibels(rms float64) float64 {
	if rms <= 0 || s.ReferenceRMS <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(rms/s.ReferenceRMS)
}

// Velocity converts an RMS amplitude to the 0..127 scale
func (s LoudnessScale) Velocity(rms float64) int {
	db := s.Decibels(rms)
	if math.IsInf(db, -1) || s.DynamicRangeDB <= 0 {
		return 0
	}

	steps := float64(s.ReferenceVelocity) / s.DynamicRangeDB
	v := math.Round(float64(s.ReferenceVelocity) + db*steps)
	return common.ClampInt(int(v), 0, MaxVelocity)
}
