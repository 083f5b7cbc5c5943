package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDCBlockerRemovesOffset(t *testing.T) {
	const sampleRate = 16000
	dc := NewDCBlocker(sampleRate, 10)

	signal := make([]float64, sampleRate)
	for i := range signal {
		signal[i] = 0.2 + 0.3*math.Sin(2*math.Pi*440*float64(i)/sampleRate)
	}
	out := dc.ProcessBuffer(signal)

	// mean over the last 100ms, long after the filter settles
	tail := out[len(out)-sampleRate/10:]
	var sum float64
	for _, v := range tail {
		sum += v
	}
	assert.InDelta(t, 0, sum/float64(len(tail)), 1e-3)
}

func TestDCBlockerResponse(t *testing.T) {
	dc := NewDCBlocker(16000, 10)

	assert.InDelta(t, 10, dc.CutoffFrequency(16000), 1e-9)
	assert.InDelta(t, 0, dc.Magnitude(0, 16000), 1e-12)
	assert.InDelta(t, 1, dc.Magnitude(440, 16000), 0.01)
	assert.InDelta(t, 1/math.Sqrt2, dc.Magnitude(10, 16000), 0.01)
}

func TestDCBlockerReset(t *testing.T) {
	dc := NewDCBlocker(16000, 10)
	first := dc.Process(1)
	dc.Process(1)
	dc.Reset()
	assert.Equal(t, first, dc.Process(1))
}
