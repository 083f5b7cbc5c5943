package extractors

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-maestro/algorithms/common"
	"github.com/RyanBlaney/sonido-maestro/grading/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 16000

func sine(freq, amplitude, seconds float64) []float64 {
	n := int(seconds * testSampleRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}
	return out
}

func silence(seconds float64) []float64 {
	return make([]float64, int(seconds*testSampleRate))
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestExtractSineIsVoicedAndInTune(t *testing.T) {
	fe := NewFeatureExtractor(config.DefaultExtractionConfig())

	series, err := fe.Extract(context.Background(), sine(440, 0.5, 1.0), testSampleRate)
	require.NoError(t, err)
	require.NotEmpty(t, series.Frames)

	assert.Equal(t, 160, series.HopSamples)
	assert.InDelta(t, 0.01, series.Hop, 1e-12)

	for k, f := range series.Frames {
		require.True(t, f.Voiced, "frame %d unvoiced", k)
		assert.Less(t, common.AbsCents(f.Frequency, 440), 5.0, "frame %d at %.2f Hz", k, f.Frequency)
		assert.InDelta(t, float64(k)*0.01, f.Time, 1e-9)
		assert.Greater(t, f.Velocity, 80)
	}
}

func TestExtractSilenceIsUnvoiced(t *testing.T) {
	fe := NewFeatureExtractor(config.DefaultExtractionConfig())

	series, err := fe.Extract(context.Background(), silence(0.5), testSampleRate)
	require.NoError(t, err)
	require.NotEmpty(t, series.Frames)

	for _, f := range series.Frames {
		assert.False(t, f.Voiced)
		assert.Equal(t, 0.0, f.Frequency)
		assert.False(t, math.IsNaN(f.Frequency))
		assert.Equal(t, 0, f.Velocity)
	}
}

func TestExtractParallelMatchesSerial(t *testing.T) {
	signal := concat(sine(261.63, 0.4, 0.3), silence(0.1), sine(392.0, 0.2, 0.3), sine(523.25, 0.3, 0.2))

	serialCfg := config.DefaultExtractionConfig()
	serialCfg.Workers = 1
	serialCfg.ChunkFrames = 1 << 20

	parallelCfg := config.DefaultExtractionConfig()
	parallelCfg.Workers = 4
	parallelCfg.ChunkFrames = 7

	serial, err := NewFeatureExtractor(serialCfg).Extract(context.Background(), signal, testSampleRate)
	require.NoError(t, err)
	parallel, err := NewFeatureExtractor(parallelCfg).Extract(context.Background(), signal, testSampleRate)
	require.NoError(t, err)

	assert.Equal(t, serial.Frames, parallel.Frames)
}

func TestExtractEdgeCases(t *testing.T) {
	fe := NewFeatureExtractor(config.DefaultExtractionConfig())

	t.Run("empty buffer", func(t *testing.T) {
		series, err := fe.Extract(context.Background(), nil, testSampleRate)
		require.NoError(t, err)
		assert.Empty(t, series.Frames)
	})

	t.Run("shorter than one window", func(t *testing.T) {
		series, err := fe.Extract(context.Background(), sine(440, 0.5, 0.01), testSampleRate)
		require.NoError(t, err)
		assert.Len(t, series.Frames, 1)
	})

	t.Run("invalid sample rate", func(t *testing.T) {
		_, err := fe.Extract(context.Background(), sine(440, 0.5, 0.1), 0)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := fe.Extract(ctx, sine(440, 0.5, 1.0), testSampleRate)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestExtractAndSegmentMelody(t *testing.T) {
	melody := []float64{261.63, 329.63, 392.0}
	signal := concat(
		silence(0.2),
		sine(melody[0], 0.3, 0.4), silence(0.1),
		sine(melody[1], 0.3, 0.4), silence(0.1),
		sine(melody[2], 0.3, 0.4), silence(0.2),
	)

	cfg := config.DefaultGradingConfig()
	series, err := NewFeatureExtractor(cfg.Extraction).Extract(context.Background(), signal, testSampleRate)
	require.NoError(t, err)

	got := NewNoteSegmenter(cfg.Segmentation).Segment(series, 100)
	require.Len(t, got, len(melody))

	assert.Equal(t, 0.0, got[0].Start)
	for i, n := range got {
		assert.Less(t, common.AbsCents(n.Pitch, melody[i]), 20.0, "note %d at %.2f Hz", i, n.Pitch)
		assert.InDelta(t, 0.4, n.Duration(), 0.08, "note %d", i)
		assert.InDelta(t, 0.5*float64(i), n.Start, 0.05, "note %d", i)
	}
}
