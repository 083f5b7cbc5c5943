package filters

import (
	"math"
)

// DCBlocker is a one-pole high-pass filter that strips the constant offset
// some recording chains add. Without it the offset inflates frame RMS and
// with it every velocity estimate.
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
type DCBlocker struct {
	pole float64 // R, 0 < R < 1

	x1 float64
	y1 float64
}

// NewDCBlocker creates a blocker with the given -3dB cutoff
func NewDCBlocker(sampleRate int, cutoffHz float64) *DCBlocker {
	dc := &DCBlocker{pole: 0.995}
	if sampleRate > 0 && cutoffHz > 0 {
		// R = 1 - 2*pi*fc/fs (small angle approximation)
		dc.pole = 1.0 - (2.0 * math.Pi * cutoffHz / float64(sampleRate))
		dc.pole = math.Min(math.Max(dc.pole, 0.001), 0.999)
	}
	return dc
}

// Process filters one sample
func (dc *DCBlocker) Process(input float64) float64 {
	output := input - dc.x1 + dc.pole*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessBuffer filters samples in place and returns them
func (dc *DCBlocker) ProcessBuffer(samples []float64) []float64 {
	for i, sample := range samples {
		samples[i] = dc.Process(sample)
	}
	return samples
}

// Reset clears the filter state
func (dc *DCBlocker) Reset() {
	dc.x1, dc.y1 = 0, 0
}

// CutoffFrequency returns the approximate -3dB cutoff: fc ≈ (1-R)*fs/(2*pi)
func (dc *DCBlocker) CutoffFrequency(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return (1.0 - dc.pole) * float64(sampleRate) / (2.0 * math.Pi)
}

// Magnitude is |H(e^jw)| at frequency, where H = (1 - e^-jw) / (1 - R*e^-jw)
func (dc *DCBlocker) Magnitude(frequency float64, sampleRate int) float64 {
	w := 2.0 * math.Pi * frequency / float64(sampleRate)

	numReal, numImag := 1.0-math.Cos(w), math.Sin(w)
	denReal, denImag := 1.0-dc.pole*math.Cos(w), dc.pole*math.Sin(w)

	return math.Sqrt((numReal*numReal + numImag*numImag) / (denReal*denReal + denImag*denImag))
}
