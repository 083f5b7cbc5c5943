package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// A4 tuning reference used for MIDI key conversion
const (
	A4Frequency = 440.0
	A4MIDIKey   = 69
)

// Median returns the middle element of data, or the mean of the two middle
// elements for an even count. data is not modified.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	// Empirical picks the lower middle element when the count is even
	lower := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if len(sorted)%2 == 1 {
		return lower
	}
	return (lower + sorted[len(sorted)/2]) / 2
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// Cents returns the signed pitch distance 1200*log2(f1/f2).
// Non-positive inputs yield +Inf so callers treat them as maximally distant.
func Cents(f1, f2 float64) float64 {
	if f1 <= 0 || f2 <= 0 {
		return math.Inf(1)
	}
	return 1200.0 * math.Log2(f1/f2)
}

// AbsCents is the unsigned form of Cents
func AbsCents(f1, f2 float64) float64 {
	return math.Abs(Cents(f1, f2))
}

// MIDIToFrequency converts a MIDI key number to Hz (equal temperament, A4 = 440 Hz)
func MIDIToFrequency(key float64) float64 {
	return A4Frequency * math.Pow(2, (key-A4MIDIKey)/12.0)
}

// FrequencyToMIDI converts Hz to a fractional MIDI key number
func FrequencyToMIDI(freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	return A4MIDIKey + 12.0*math.Log2(freq/A4Frequency)
}

// RoundTo rounds x to the given number of decimal places
func RoundTo(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}

// Clamp limits x to [lo, hi]
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// ClampInt limits x to [lo, hi]
func ClampInt(x, lo, hi int) int {
	return max(lo, min(hi, x))
}

// NextPowerOf2 returns the smallest power of two >= n
func NextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
