package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp so callers deal in real-valued slices
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the forward transform of a real signal
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputeInverseReal computes the inverse transform and keeps the real part
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))
	for i, val := range result {
		realResult[i] = real(val)
	}

	return realResult
}

// CrossCorrelate returns c[lag] = sum_j a[j]*b[j+lag] for lag in [0, maxLag).
// size is the transform length and must be >= len(b) and >= len(a)+maxLag-1
// so no circular wrap reaches the requested lags.
func (f *FFT) CrossCorrelate(a, b []float64, maxLag, size int) []float64 {
	if len(a) == 0 || len(b) == 0 || maxLag <= 0 {
		return []float64{}
	}

	pa := make([]float64, size)
	pb := make([]float64, size)
	copy(pa, a)
	copy(pb, b)

	specA := f.Compute(pa)
	specB := f.Compute(pb)

	product := make([]complex128, size)
	for i := range product {
		ra, ia := real(specA[i]), imag(specA[i])
		product[i] = complex(ra, -ia) * specB[i]
	}

	corr := f.ComputeInverseReal(product)
	if maxLag > len(corr) {
		maxLag = len(corr)
	}
	return corr[:maxLag]
}
