package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-maestro/grading/comparison"
	"github.com/RyanBlaney/sonido-maestro/grading/config"
	"github.com/RyanBlaney/sonido-maestro/grading/extractors"
	"github.com/RyanBlaney/sonido-maestro/grading/notes"
	"github.com/RyanBlaney/sonido-maestro/grading/score"
	"github.com/RyanBlaney/sonido-maestro/logging"
	"github.com/google/uuid"
)

// Grader runs the full pipeline: recording -> frames -> notes -> alignment
// -> accuracies and differences. It holds no per-call state and may be
// shared between goroutines.
type Grader struct {
	cfg       config.GradingConfig
	extractor *extractors.FeatureExtractor
	segmenter *extractors.NoteSegmenter
	aligner   *comparison.Aligner
	scorer    *comparison.Scorer
	annotator *comparison.DiffAnnotator
	logger    logging.Logger
}

// NewGrader validates cfg and wires the pipeline stages
func NewGrader(cfg config.GradingConfig) (*Grader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model := comparison.NewConfidenceModel(cfg.Scoring)
	return &Grader{
		cfg:       cfg,
		extractor: extractors.NewFeatureExtractor(cfg.Extraction),
		segmenter: extractors.NewNoteSegmenter(cfg.Segmentation),
		aligner:   comparison.NewAligner(cfg.Alignment, model),
		scorer:    comparison.NewScorer(model),
		annotator: comparison.NewDiffAnnotator(model),
		logger: logging.WithFields(logging.Fields{
			"component": "grader",
		}),
	}, nil
}

// Config returns the configuration the grader was built with
func (g *Grader) Config() config.GradingConfig {
	return g.cfg
}

// WithDiagnostics returns a copy of the grader whose aligner reports to d
func (g *Grader) WithDiagnostics(d comparison.Diagnostics) *Grader {
	cp := *g
	cp.aligner = g.aligner.WithDiagnostics(d)
	return &cp
}

// Transcribe converts a mono recording into notes
func (g *Grader) Transcribe(ctx context.Context, samples []float64, sampleRate int, tempoBPM float64) ([]notes.Note, error) {
	series, err := g.extractor.Extract(ctx, samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to extract features: %w", err)
	}
	return g.segmenter.Segment(series, tempoBPM), nil
}

// Compare grades an actual note sequence against an ideal one. info, when
// given, must line up with ideal and is attached to differences as context.
func (g *Grader) Compare(ideal, actual []notes.Note, info []notes.NoteInfo) (*Report, error) {
	if err := notes.ValidateSequence(ideal); err != nil {
		return nil, fmt.Errorf("ideal notes: %w", err)
	}
	if err := notes.ValidateSequence(actual); err != nil {
		return nil, fmt.Errorf("actual notes: %w", err)
	}
	if len(info) > 0 && len(info) != len(ideal) {
		return nil, fmt.Errorf("note_info has %d entries for %d ideal notes", len(info), len(ideal))
	}

	pairs, err := g.aligner.Align(ideal, actual)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Accuracy:    g.scorer.Score(pairs),
		Differences: g.annotator.Annotate(pairs, info),
		Alignment:   pairs,
	}

	g.logger.Debug("comparison complete", logging.Fields{
		"report_id":   report.ID,
		"ideal":       len(ideal),
		"actual":      len(actual),
		"differences": len(report.Differences),
	})

	return report, nil
}

// Grade transcribes a recording and compares it against s. A non-positive
// tempoBPM falls back to the score's tempo.
func (g *Grader) Grade(ctx context.Context, s *score.Score, samples []float64, sampleRate int, tempoBPM float64) (*Report, error) {
	if s == nil {
		return nil, fmt.Errorf("score is nil")
	}
	if tempoBPM <= 0 {
		tempoBPM = s.Tempo
	}

	start := time.Now()
	actual, err := g.Transcribe(ctx, samples, sampleRate, tempoBPM)
	if err != nil {
		return nil, err
	}

	report, err := g.Compare(s.Notes, actual, s.NoteInfo)
	if err != nil {
		return nil, err
	}
	report.ActualNotes = actual

	g.logger.WithContext(ctx).Info("recording graded", logging.Fields{
		"report_id":    report.ID,
		"tempo":        tempoBPM,
		"actual_notes": len(actual),
		"elapsed":      time.Since(start).Seconds(),
	})

	return report, nil
}
