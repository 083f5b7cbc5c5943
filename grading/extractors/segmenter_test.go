package extractors

import (
	"testing"

	"github.com/RyanBlaney/sonido-maestro/grading/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHop = 0.01

// run is a stretch of identical frames; frequency 0 means unvoiced
type run struct {
	frequency float64
	velocity  int
	frames    int
}

func buildSeries(runs ...run) *FrameSeries {
	series := &FrameSeries{SampleRate: 16000, HopSamples: 160, Hop: testHop}
	k := 0
	for _, r := range runs {
		for n := 0; n < r.frames; n++ {
			series.Frames = append(series.Frames, Frame{
				Time:      float64(k) * testHop,
				Frequency: r.frequency,
				Voiced:    r.frequency > 0,
				Velocity:  r.velocity,
			})
			k++
		}
	}
	return series
}

func newTestSegmenter() *NoteSegmenter {
	return NewNoteSegmenter(config.DefaultSegmentationConfig())
}

func TestSegmentShiftsFirstNoteToZero(t *testing.T) {
	series := buildSeries(
		run{0, 0, 10},
		run{440, 80, 30},
		run{0, 0, 30},
		run{523.25, 70, 30},
	)

	got := newTestSegmenter().Segment(series, 100)
	require.Len(t, got, 2)

	assert.Equal(t, 440.0, got[0].Pitch)
	assert.Equal(t, 80, got[0].Velocity)
	assert.InDelta(t, 0.0, got[0].Start, 1e-9)
	assert.InDelta(t, 0.30, got[0].End, 1e-9)

	assert.Equal(t, 523.25, got[1].Pitch)
	assert.Equal(t, 70, got[1].Velocity)
	assert.InDelta(t, 0.60, got[1].Start, 1e-9)
	assert.InDelta(t, 0.90, got[1].End, 1e-9)
}

func TestSegmentVelocityIsMaxOfSpan(t *testing.T) {
	series := buildSeries(run{440, 95, 3}, run{440, 60, 27})

	got := newTestSegmenter().Segment(series, 100)
	require.Len(t, got, 1)
	assert.Equal(t, 95, got[0].Velocity)
}

func TestSegmentShortNoteAbsorbedIntoPrevious(t *testing.T) {
	series := buildSeries(
		run{440, 80, 30},
		run{600, 80, 5},
		run{330, 80, 30},
	)

	got := newTestSegmenter().Segment(series, 100)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.35, got[0].End, 1e-9)
	assert.InDelta(t, 0.35, got[1].Start, 1e-9)
	assert.Equal(t, 330.0, got[1].Pitch)
}

func TestSegmentTrailingFragmentNotAbsorbed(t *testing.T) {
	series := buildSeries(
		run{440, 80, 30},
		run{0, 0, 5},
		run{600, 80, 5},
	)

	got := newTestSegmenter().Segment(series, 100)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.30, got[0].End, 1e-9)
}

func TestSegmentMinimumDurationScalesWithTempo(t *testing.T) {
	series := buildSeries(
		run{330, 80, 30},
		run{0, 0, 1},
		run{440, 80, 12},
	)

	assert.Len(t, newTestSegmenter().Segment(series, 100), 1)
	assert.Len(t, newTestSegmenter().Segment(series, 200), 2)
}

func TestSegmentMergesSamePitchAcrossAbsorbedBlip(t *testing.T) {
	series := buildSeries(
		run{440, 80, 30},
		run{600, 80, 3},
		run{440, 80, 30},
	)

	got := newTestSegmenter().Segment(series, 100)
	require.Len(t, got, 1)
	assert.Equal(t, 440.0, got[0].Pitch)
	assert.InDelta(t, 0.63, got[0].End, 1e-9)
}

func TestSegmentDecayTailMerge(t *testing.T) {
	t.Run("large drop merges", func(t *testing.T) {
		series := buildSeries(
			run{440, 90, 30},
			run{0, 0, 2},
			run{440, 60, 30},
		)

		got := newTestSegmenter().Segment(series, 100)
		require.Len(t, got, 1)
		assert.Equal(t, 90, got[0].Velocity)
		assert.InDelta(t, 0.62, got[0].End, 1e-9)
	})

	t.Run("small drop is a repeated note", func(t *testing.T) {
		series := buildSeries(
			run{440, 90, 30},
			run{0, 0, 2},
			run{440, 75, 30},
		)

		assert.Len(t, newTestSegmenter().Segment(series, 100), 2)
	})

	t.Run("long gap is a repeated note", func(t *testing.T) {
		series := buildSeries(
			run{440, 90, 30},
			run{0, 0, 20},
			run{440, 60, 30},
		)

		assert.Len(t, newTestSegmenter().Segment(series, 100), 2)
	})
}

func TestSegmentSilentAndEmptyInput(t *testing.T) {
	got := newTestSegmenter().Segment(buildSeries(run{0, 0, 100}), 100)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, newTestSegmenter().Segment(&FrameSeries{Hop: testHop}, 100))
	assert.Empty(t, newTestSegmenter().Segment(nil, 100))
}

func TestSegmentPitchIsMedianOfFrames(t *testing.T) {
	// skewed sharp: the mean sits near 442.6 Hz, the median on 440
	odd := buildSeries(
		run{438, 80, 10},
		run{440, 80, 11},
		run{450, 80, 10},
	)
	got := newTestSegmenter().Segment(odd, 100)
	require.Len(t, got, 1)
	assert.Equal(t, 440.0, got[0].Pitch)

	even := buildSeries(
		run{438, 80, 15},
		run{442, 80, 15},
	)
	got = newTestSegmenter().Segment(even, 100)
	require.Len(t, got, 1)
	assert.Equal(t, 440.0, got[0].Pitch)
}
