package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/RyanBlaney/sonido-maestro/algorithms/temporal"
	"gonum.org/v1/gonum/floats"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid grading config")

const weightEpsilon = 1e-9

// GradingConfig bundles every tunable of the grading pipeline. Values are
// copied into components at construction; nothing mutates them afterwards.
type GradingConfig struct {
	Extraction   ExtractionConfig   `json:"extraction"`
	Segmentation SegmentationConfig `json:"segmentation"`
	Scoring      ScoringConfig      `json:"scoring"`
	Alignment    AlignmentScores    `json:"alignment"`
}

// ExtractionConfig configures frame-level pitch and loudness tracking
type ExtractionConfig struct {
	WindowSeconds float64 `json:"window_seconds"`
	HopSeconds    float64 `json:"hop_seconds"`

	// Detection range, C2..C7 by default
	MinFrequency float64 `json:"min_frequency"`
	MaxFrequency float64 `json:"max_frequency"`

	YinThreshold float64 `json:"yin_threshold"`
	SilenceRMS   float64 `json:"silence_rms"` // frames below this are unvoiced

	Loudness temporal.LoudnessScale `json:"loudness"`

	// Parallelism
	ChunkFrames int `json:"chunk_frames"`
	Workers     int `json:"workers"` // 0 = GOMAXPROCS
}

// SegmentationConfig configures how frames collapse into notes
type SegmentationConfig struct {
	CentsTolerance float64 `json:"cents_tolerance"`

	// Minimum note duration at ReferenceTempoBPM; scaled inversely by the declared tempo
	MinNoteDuration   float64 `json:"min_note_duration"`
	ReferenceTempoBPM float64 `json:"reference_tempo_bpm"`

	DecayTailVelocityDrop int     `json:"decay_tail_velocity_drop"`
	DecayTailMaxGap       float64 `json:"decay_tail_max_gap"`
}

// ScoringConfig holds tolerances, weights and thresholds for note comparison
type ScoringConfig struct {
	PitchTolerance    float64 `json:"pitch_tolerance"` // cents
	VelocityTolerance float64 `json:"velocity_tolerance"`
	StartTolerance    float64 `json:"start_tolerance"` // seconds
	EndTolerance      float64 `json:"end_tolerance"`   // seconds

	PitchWeight    float64 `json:"pitch_weight"`
	VelocityWeight float64 `json:"velocity_weight"`
	StartWeight    float64 `json:"start_weight"`
	EndWeight      float64 `json:"end_weight"`

	// Weighted confidence at or above which two notes match
	MatchPassConfidence float64 `json:"match_pass_confidence"`
	// Single-attribute confidence at or above which that attribute passes
	AttributePassConfidence float64 `json:"attribute_pass_confidence"`

	// Percentage points taken off tuning per extra note
	ExtraNotePenalty float64 `json:"extra_note_penalty"`
}

// AlignmentScores is the Needleman-Wunsch scoring scheme
type AlignmentScores struct {
	Match    float64 `json:"match"`
	Mismatch float64 `json:"mismatch"`
	Missing  float64 `json:"missing"` // ideal note left unaligned
	Extra    float64 `json:"extra"`   // actual note left unaligned
}

// DefaultGradingConfig returns the production defaults
func DefaultGradingConfig() GradingConfig {
	return GradingConfig{
		Extraction:   DefaultExtractionConfig(),
		Segmentation: DefaultSegmentationConfig(),
		Scoring:      DefaultScoringConfig(),
		Alignment:    DefaultAlignmentScores(),
	}
}

func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		WindowSeconds: 0.046,
		HopSeconds:    0.01,
		MinFrequency:  65.41,  // C2
		MaxFrequency:  2093.0, // C7
		YinThreshold:  0.15,
		SilenceRMS:    1e-3,
		Loudness:      temporal.DefaultLoudnessScale(),
		ChunkFrames:   512,
		Workers:       0,
	}
}

func DefaultSegmentationConfig() SegmentationConfig {
	return SegmentationConfig{
		CentsTolerance:        50,
		MinNoteDuration:       0.15,
		ReferenceTempoBPM:     100,
		DecayTailVelocityDrop: 20,
		DecayTailMaxGap:       0.1,
	}
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		PitchTolerance:          50,
		VelocityTolerance:       30,
		StartTolerance:          0.25,
		EndTolerance:            0.5,
		PitchWeight:             0.70,
		StartWeight:             0.20,
		EndWeight:               0.05,
		VelocityWeight:          0.05,
		MatchPassConfidence:     0.7,
		AttributePassConfidence: 0.5,
		ExtraNotePenalty:        5.0,
	}
}

func DefaultAlignmentScores() AlignmentScores {
	return AlignmentScores{
		Match:    2,
		Mismatch: -4,
		Missing:  -3,
		Extra:    -4,
	}
}

// WorkerCount resolves Workers, falling back to GOMAXPROCS
func (e ExtractionConfig) WorkerCount() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// MinDuration returns the minimum note duration for the declared tempo.
// A non-positive tempo uses MinNoteDuration unscaled.
func (s SegmentationConfig) MinDuration(tempoBPM float64) float64 {
	if tempoBPM <= 0 || s.ReferenceTempoBPM <= 0 {
		return s.MinNoteDuration
	}
	return s.MinNoteDuration * s.ReferenceTempoBPM / tempoBPM
}

// Validate checks every section
func (c GradingConfig) Validate() error {
	if err := c.Extraction.Validate(); err != nil {
		return err
	}
	if err := c.Segmentation.Validate(); err != nil {
		return err
	}
	if err := c.Alignment.Validate(); err != nil {
		return err
	}
	return c.Scoring.Validate()
}

// Validate requires a match to outscore a mismatch and gaps to cost something
func (a AlignmentScores) Validate() error {
	if a.Match <= a.Mismatch {
		return fmt.Errorf("%w: match score %.2f must exceed mismatch %.2f", ErrInvalidConfig, a.Match, a.Mismatch)
	}
	if a.Missing > 0 || a.Extra > 0 {
		return fmt.Errorf("%w: gap scores must not be positive", ErrInvalidConfig)
	}
	return nil
}

func (e ExtractionConfig) Validate() error {
	switch {
	case e.WindowSeconds <= 0 || e.HopSeconds <= 0:
		return fmt.Errorf("%w: window and hop must be positive", ErrInvalidConfig)
	case e.MinFrequency <= 0 || e.MaxFrequency <= e.MinFrequency:
		return fmt.Errorf("%w: frequency range [%.2f, %.2f]", ErrInvalidConfig, e.MinFrequency, e.MaxFrequency)
	case e.ChunkFrames <= 0:
		return fmt.Errorf("%w: chunk_frames must be positive", ErrInvalidConfig)
	case e.Loudness.ReferenceRMS <= 0 || e.Loudness.DynamicRangeDB <= 0:
		return fmt.Errorf("%w: loudness scale must be positive", ErrInvalidConfig)
	}
	return nil
}

func (s SegmentationConfig) Validate() error {
	if s.CentsTolerance <= 0 {
		return fmt.Errorf("%w: cents_tolerance must be positive", ErrInvalidConfig)
	}
	if s.MinNoteDuration < 0 || s.DecayTailMaxGap < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (s ScoringConfig) Validate() error {
	tolerances := []float64{s.PitchTolerance, s.VelocityTolerance, s.StartTolerance, s.EndTolerance}
	if floats.Min(tolerances) <= 0 {
		return fmt.Errorf("%w: tolerances must be positive", ErrInvalidConfig)
	}

	weights := []float64{s.PitchWeight, s.VelocityWeight, s.StartWeight, s.EndWeight}
	if floats.Min(weights) < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidConfig)
	}
	if sum := floats.Sum(weights); math.Abs(sum-1) > weightEpsilon {
		return fmt.Errorf("%w: weights sum to %.6f, want 1", ErrInvalidConfig, sum)
	}

	if s.MatchPassConfidence < 0 || s.MatchPassConfidence > 1 ||
		s.AttributePassConfidence < 0 || s.AttributePassConfidence > 1 {
		return fmt.Errorf("%w: pass confidences must be within [0, 1]", ErrInvalidConfig)
	}
	if s.ExtraNotePenalty < 0 {
		return fmt.Errorf("%w: extra_note_penalty must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadFile reads a JSON file and overlays it onto the defaults, so a file
// only needs the keys it changes.
func LoadFile(path string) (GradingConfig, error) {
	cfg := DefaultGradingConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
