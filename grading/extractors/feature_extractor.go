package extractors

import (
	"context"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-maestro/algorithms/common"
	"github.com/RyanBlaney/sonido-maestro/algorithms/temporal"
	"github.com/RyanBlaney/sonido-maestro/algorithms/tonal"
	"github.com/RyanBlaney/sonido-maestro/grading/config"
	"github.com/RyanBlaney/sonido-maestro/logging"
	"golang.org/x/sync/errgroup"
)

// Frame is the pitch and loudness estimate of one analysis window.
// Unvoiced frames carry Frequency=0.
type Frame struct {
	Time       float64 `json:"time"` // window start, seconds
	Frequency  float64 `json:"frequency"`
	Voiced     bool    `json:"voiced"`
	Confidence float64 `json:"confidence"`
	Velocity   int     `json:"velocity"`
	RMS        float64 `json:"rms"`
}

// FrameSeries is the output of the FeatureExtractor
type FrameSeries struct {
	Frames     []Frame `json:"frames"`
	SampleRate int     `json:"sample_rate"`
	HopSamples int     `json:"hop_samples"`
	Hop        float64 `json:"hop"` // seconds
}

// FeatureExtractor turns a mono sample buffer into a FrameSeries.
//
// Long buffers are split into chunks of ChunkFrames frames that are
// analyzed in parallel, each worker seeing only its chunk's samples. A
// frame whose window runs past the end of its chunk cannot be analyzed
// there; it is flagged as a seam frame and analyzed against the full
// buffer once all chunks have merged. The result is identical to a
// serial pass.
type FeatureExtractor struct {
	cfg    config.ExtractionConfig
	logger logging.Logger
}

// NewFeatureExtractor creates a feature extractor
func NewFeatureExtractor(cfg config.ExtractionConfig) *FeatureExtractor {
	return &FeatureExtractor{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
	}
}

// frameGeometry holds the per-call sample-domain parameters
type frameGeometry struct {
	sampleRate int
	window     int
	hop        int
}

func (g frameGeometry) time(k int) float64 {
	return float64(k*g.hop) / float64(g.sampleRate)
}

// Extract analyzes samples. A silent buffer yields an all-unvoiced series,
// an empty buffer an empty one. ctx only allows the caller to abandon the run.
func (fe *FeatureExtractor) Extract(ctx context.Context, samples []float64, sampleRate int) (*FrameSeries, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	geom := frameGeometry{
		sampleRate: sampleRate,
		window:     int(math.Round(fe.cfg.WindowSeconds * float64(sampleRate))),
		hop:        max(1, int(math.Round(fe.cfg.HopSeconds*float64(sampleRate)))),
	}

	detector, err := tonal.NewPitchDetectorWithParams(tonal.PitchDetectionParams{
		SampleRate:   sampleRate,
		WindowSize:   geom.window,
		MinFreq:      fe.cfg.MinFrequency,
		MaxFreq:      fe.cfg.MaxFrequency,
		YinThreshold: fe.cfg.YinThreshold,
		SilenceRMS:   fe.cfg.SilenceRMS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pitch detector: %w", err)
	}

	series := &FrameSeries{
		SampleRate: sampleRate,
		HopSamples: geom.hop,
		Hop:        float64(geom.hop) / float64(sampleRate),
	}

	if len(samples) == 0 {
		return series, nil
	}

	if len(samples) < geom.window {
		padded := make([]float64, geom.window)
		copy(padded, samples)
		frame, err := fe.analyzeFrame(detector, geom, padded, common.RMS(padded), 0)
		if err != nil {
			return nil, err
		}
		series.Frames = []Frame{frame}
		return series, nil
	}

	numFrames := (len(samples)-geom.window)/geom.hop + 1
	frames := make([]Frame, numFrames)
	seam := make([]bool, numFrames)

	chunkFrames := max(1, fe.cfg.ChunkFrames)
	workers := fe.cfg.WorkerCount()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	chunks := 0
	for first := 0; first < numFrames; first += chunkFrames {
		last := min(first+chunkFrames, numFrames)
		chunks++

		first := first
		g.Go(func() error {
			return fe.analyzeChunk(gctx, detector, geom, samples, first, last, numFrames, frames, seam)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to extract features: %w", err)
	}

	seamFrames := 0
	for k := range frames {
		if !seam[k] {
			continue
		}
		seamFrames++

		window := samples[k*geom.hop : k*geom.hop+geom.window]
		frame, err := fe.analyzeFrame(detector, geom, window, common.RMS(window), k)
		if err != nil {
			return nil, err
		}
		frames[k] = frame
	}

	fe.logger.Debug("frames analyzed", logging.Fields{
		"frames":      numFrames,
		"chunks":      chunks,
		"workers":     workers,
		"seam_frames": seamFrames,
		"sample_rate": sampleRate,
	})

	series.Frames = frames
	return series, nil
}

// analyzeChunk fills frames [first, last) that fit entirely inside the
// chunk's own samples and flags the rest as seam frames.
func (fe *FeatureExtractor) analyzeChunk(ctx context.Context, detector *tonal.PitchDetector, geom frameGeometry,
	samples []float64, first, last, numFrames int, frames []Frame, seam []bool) error {

	start := first * geom.hop
	end := last * geom.hop
	if last == numFrames {
		end = len(samples)
	}
	local := samples[start:end]

	energies := temporal.NewEnergy(geom.window, geom.hop).ComputeShortTimeEnergy(local)

	for k := first; k < last; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		i := k - first
		if i >= len(energies) {
			seam[k] = true
			continue
		}

		frame, err := fe.analyzeFrame(detector, geom, local[i*geom.hop:i*geom.hop+geom.window], energies[i], k)
		if err != nil {
			return err
		}
		frames[k] = frame
	}

	return nil
}

func (fe *FeatureExtractor) analyzeFrame(detector *tonal.PitchDetector, geom frameGeometry, window []float64, rms float64, k int) (Frame, error) {
	pitch, err := detector.DetectPitch(window)
	if err != nil {
		return Frame{}, fmt.Errorf("frame %d: %w", k, err)
	}

	return Frame{
		Time:       geom.time(k),
		Frequency:  pitch.Pitch,
		Voiced:     pitch.Voiced,
		Confidence: pitch.Confidence,
		Velocity:   fe.cfg.Loudness.Velocity(rms),
		RMS:        rms,
	}, nil
}
