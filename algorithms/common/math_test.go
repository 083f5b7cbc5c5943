package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCents(t *testing.T) {
	assert.InDelta(t, 1200.0, Cents(880, 440), 1e-9)
	assert.InDelta(t, -1200.0, Cents(220, 440), 1e-9)
	assert.InDelta(t, 100.0, AbsCents(MIDIToFrequency(61), MIDIToFrequency(60)), 1e-9)
	assert.True(t, math.IsInf(Cents(0, 440), 1))
}

func TestMIDIConversion(t *testing.T) {
	assert.InDelta(t, 261.6256, MIDIToFrequency(60), 1e-3)
	assert.InDelta(t, 69.0, FrequencyToMIDI(440), 1e-9)
}

func TestMedianDoesNotMutate(t *testing.T) {
	data := []float64{5, 1, 3}
	assert.InDelta(t, 3.0, Median(data), 1e-9)
	assert.Equal(t, []float64{5, 1, 3}, data)
	assert.Equal(t, 0.0, Median(nil))
}

func TestMedianPicksMiddle(t *testing.T) {
	assert.Equal(t, 3.0, Median([]float64{1, 3, 5}))
	assert.Equal(t, 440.0, Median([]float64{450, 430, 440}))
	assert.Equal(t, 7.0, Median([]float64{7}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 440.0, Median([]float64{438, 442}))
}

func TestRoundAndClamp(t *testing.T) {
	assert.Equal(t, 66.67, RoundTo(200.0/3.0, 2))
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.Equal(t, 127, ClampInt(300, 0, 127))
	assert.Equal(t, 1024, NextPowerOf2(1000))
	assert.InDelta(t, 1.0, RMS([]float64{1, -1, 1, -1}), 1e-12)
}
