package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-maestro/algorithms/common"
	"github.com/RyanBlaney/sonido-maestro/algorithms/spectral"
)

// PitchDetectionResult is the outcome of analyzing a single frame.
// Unvoiced frames have Voiced=false and Pitch=0, never NaN.
type PitchDetectionResult struct {
	Pitch      float64 `json:"pitch"`      // Fundamental estimate (Hz), 0 when unvoiced
	Confidence float64 `json:"confidence"` // 1 - CMNDF at the chosen lag (0-1)
	Voiced     bool    `json:"voiced"`
	RMS        float64 `json:"rms"` // Frame RMS amplitude
}

// PitchDetectionParams contains parameters for pitch detection
type PitchDetectionParams struct {
	SampleRate int `json:"sample_rate"`
	WindowSize int `json:"window_size"`

	// Frequency range constraints
	MinFreq float64 `json:"min_freq"` // Minimum frequency (Hz)
	MaxFreq float64 `json:"max_freq"` // Maximum frequency (Hz)

	YinThreshold float64 `json:"yin_threshold"` // YIN threshold (0.1-0.5)
	SilenceRMS   float64 `json:"silence_rms"`   // Frames quieter than this are unvoiced
}

// DefaultPitchDetectionParams covers C2..C7 with a ~46 ms window
func DefaultPitchDetectionParams(sampleRate int) PitchDetectionParams {
	return PitchDetectionParams{
		SampleRate:   sampleRate,
		WindowSize:   int(math.Round(0.046 * float64(sampleRate))),
		MinFreq:      65.41,
		MaxFreq:      2093.0,
		YinThreshold: 0.15,
		SilenceRMS:   1e-3,
	}
}

// PitchDetector estimates the fundamental frequency of a frame with YIN.
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music"
//
// The difference function is computed from an FFT cross-correlation and
// prefix sums of squares instead of the quadratic direct sum.
type PitchDetector struct {
	params  PitchDetectionParams
	fft     *spectral.FFT
	fftSize int
	tauMin  int
	tauMax  int
}

// NewPitchDetector creates a new pitch detector with default parameters
func NewPitchDetector(sampleRate int) (*PitchDetector, error) {
	return NewPitchDetectorWithParams(DefaultPitchDetectionParams(sampleRate))
}

// NewPitchDetectorWithParams creates a pitch detector with custom parameters
func NewPitchDetectorWithParams(params PitchDetectionParams) (*PitchDetector, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", params.SampleRate)
	}
	if params.MinFreq <= 0 || params.MaxFreq <= params.MinFreq {
		return nil, fmt.Errorf("invalid frequency range [%.2f, %.2f]", params.MinFreq, params.MaxFreq)
	}

	half := params.WindowSize / 2
	tauMin := max(2, int(math.Floor(float64(params.SampleRate)/params.MaxFreq)))
	tauMax := int(math.Ceil(float64(params.SampleRate) / params.MinFreq))
	if tauMax >= half-1 {
		return nil, fmt.Errorf("window size %d too short for %.2f Hz at %d Hz (need > %d samples)",
			params.WindowSize, params.MinFreq, params.SampleRate, 2*(tauMax+1))
	}
	if tauMin >= tauMax {
		return nil, fmt.Errorf("empty lag range [%d, %d]", tauMin, tauMax)
	}

	return &PitchDetector{
		params:  params,
		fft:     spectral.NewFFT(),
		fftSize: common.NextPowerOf2(params.WindowSize),
		tauMin:  tauMin,
		tauMax:  tauMax,
	}, nil
}

// Params returns the detector's parameters
func (pd *PitchDetector) Params() PitchDetectionParams {
	return pd.params
}

// DetectPitch detects pitch in a single audio frame
func (pd *PitchDetector) DetectPitch(audioFrame []float64) (*PitchDetectionResult, error) {
	if len(audioFrame) != pd.params.WindowSize {
		return nil, fmt.Errorf("audio frame size (%d) doesn't match window size (%d)", len(audioFrame), pd.params.WindowSize)
	}

	result := &PitchDetectionResult{RMS: common.RMS(audioFrame)}
	if result.RMS < pd.params.SilenceRMS {
		return result, nil
	}

	cmndf := pd.cumulativeMeanNormalizedDifference(audioFrame)

	tau := -1
	for t := pd.tauMin; t <= pd.tauMax; t++ {
		if cmndf[t] < pd.params.YinThreshold {
			// walk down to the bottom of this dip
			for t+1 <= pd.tauMax && cmndf[t+1] < cmndf[t] {
				t++
			}
			tau = t
			break
		}
	}
	if tau < 0 {
		return result, nil
	}

	period := parabolicInterpolation(cmndf, tau)
	if period <= 0 {
		return result, nil
	}

	frequency := float64(pd.params.SampleRate) / period
	if frequency < pd.params.MinFreq || frequency > pd.params.MaxFreq || math.IsNaN(frequency) {
		return result, nil
	}

	result.Pitch = frequency
	result.Confidence = common.Clamp(1.0-cmndf[tau], 0, 1)
	result.Voiced = true

	return result, nil
}

// cumulativeMeanNormalizedDifference returns CMNDF for lags [0, tauMax+1]
func (pd *PitchDetector) cumulativeMeanNormalizedDifference(frame []float64) []float64 {
	half := len(frame) / 2
	lags := pd.tauMax + 2

	prefix := make([]float64, len(frame)+1)
	for i, v := range frame {
		prefix[i+1] = prefix[i] + v*v
	}

	corr := pd.fft.CrossCorrelate(frame[:half], frame, lags, pd.fftSize)
	e0 := prefix[half]

	cmndf := make([]float64, lags)
	cmndf[0] = 1.0

	runningSum := 0.0
	for tau := 1; tau < lags; tau++ {
		eTau := prefix[tau+half] - prefix[tau]
		d := math.Max(0, e0+eTau-2*corr[tau])
		runningSum += d
		if runningSum > 0 {
			cmndf[tau] = d * float64(tau) / runningSum
		} else {
			cmndf[tau] = 1.0
		}
	}

	return cmndf
}

// parabolicInterpolation refines a minimum location to sub-sample accuracy
func parabolicInterpolation(data []float64, idx int) float64 {
	if idx <= 0 || idx >= len(data)-1 {
		return float64(idx)
	}

	y1 := data[idx-1]
	y2 := data[idx]
	y3 := data[idx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(idx)
	}

	offset := -b / (2 * a)
	if math.Abs(offset) > 1 {
		return float64(idx)
	}

	return float64(idx) + offset
}
