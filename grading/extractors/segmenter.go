package extractors

import (
	"math"

	"github.com/RyanBlaney/sonido-maestro/algorithms/common"
	"github.com/RyanBlaney/sonido-maestro/grading/config"
	"github.com/RyanBlaney/sonido-maestro/grading/notes"
	"github.com/RyanBlaney/sonido-maestro/logging"
)

// timeEpsilon absorbs rounding in frame times when comparing gaps
const timeEpsilon = 1e-9

// segment is a note in progress. Frame values are kept so merges can
// recompute the median pitch over the combined span.
type segment struct {
	freqs    []float64
	velocity int
	start    float64
	end      float64
}

func (s *segment) pitch() float64 {
	return common.Median(s.freqs)
}

func (s *segment) absorb(o *segment) {
	s.freqs = append(s.freqs, o.freqs...)
	s.velocity = max(s.velocity, o.velocity)
	s.end = math.Max(s.end, o.end)
}

// NoteSegmenter collapses a FrameSeries into discrete notes
type NoteSegmenter struct {
	cfg    config.SegmentationConfig
	logger logging.Logger
}

// NewNoteSegmenter creates a note segmenter
func NewNoteSegmenter(cfg config.SegmentationConfig) *NoteSegmenter {
	return &NoteSegmenter{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "note_segmenter",
		}),
	}
}

// Segment converts frames into time-ordered notes. tempoBPM scales the
// minimum note duration; the first note of the result starts at 0.
func (ns *NoteSegmenter) Segment(series *FrameSeries, tempoBPM float64) []notes.Note {
	if series == nil || len(series.Frames) == 0 {
		return []notes.Note{}
	}

	raw := ns.group(series)
	retained := ns.dropShort(raw, ns.cfg.MinDuration(tempoBPM))
	retained = ns.mergeGaps(retained, series.Hop)
	retained = ns.mergeDecayTails(retained)

	result := make([]notes.Note, 0, len(retained))
	if len(retained) == 0 {
		ns.logger.Debug("no notes retained", logging.Fields{"segments": len(raw)})
		return result
	}

	offset := retained[0].start
	for _, s := range retained {
		n, err := notes.NewNote(s.pitch(), common.ClampInt(s.velocity, 0, notes.MaxVelocity), s.start, s.end)
		if err != nil {
			ns.logger.Warn("discarding segment", logging.Fields{"error": err.Error(), "start": s.start})
			continue
		}
		result = append(result, n.Shifted(offset))
	}

	ns.logger.Debug("segmentation complete", logging.Fields{
		"segments": len(raw),
		"notes":    len(result),
		"tempo":    tempoBPM,
	})

	return result
}

// group splits voiced runs whenever a frame strays from the log-mean pitch
// of the note in progress by more than the cents tolerance.
func (ns *NoteSegmenter) group(series *FrameSeries) []*segment {
	var (
		segments []*segment
		current  *segment
		logSum   float64
	)

	closeCurrent := func() {
		if current != nil {
			segments = append(segments, current)
			current = nil
		}
	}

	for _, f := range series.Frames {
		if !f.Voiced || f.Frequency <= 0 {
			closeCurrent()
			continue
		}

		if current != nil {
			ref := math.Exp(logSum / float64(len(current.freqs)))
			if common.AbsCents(f.Frequency, ref) > ns.cfg.CentsTolerance {
				closeCurrent()
			}
		}

		if current == nil {
			current = &segment{start: f.Time}
			logSum = 0
		}

		current.freqs = append(current.freqs, f.Frequency)
		current.velocity = max(current.velocity, f.Velocity)
		current.end = f.Time + series.Hop
		logSum += math.Log(f.Frequency)
	}
	closeCurrent()

	return segments
}

// dropShort discards segments shorter than minDur. The span of a dropped
// segment is handed to the preceding retained note, but only once a later
// note is retained: fragments trailing the last note are simply dropped.
func (ns *NoteSegmenter) dropShort(segments []*segment, minDur float64) []*segment {
	retained := make([]*segment, 0, len(segments))
	pendingEnd := math.Inf(-1)

	for _, s := range segments {
		if s.end-s.start+timeEpsilon < minDur {
			if len(retained) > 0 {
				pendingEnd = math.Max(pendingEnd, s.end)
			}
			continue
		}

		if len(retained) > 0 {
			prev := retained[len(retained)-1]
			prev.end = math.Max(prev.end, pendingEnd)
		}
		pendingEnd = math.Inf(-1)
		retained = append(retained, s)
	}

	return retained
}

// mergeGaps joins neighbours of the same pitch split by less than one hop
func (ns *NoteSegmenter) mergeGaps(segments []*segment, hop float64) []*segment {
	return ns.mergeWhere(segments, func(prev, next *segment) bool {
		return next.start-prev.end < hop-timeEpsilon
	})
}

// mergeDecayTails folds a much quieter same-pitch continuation into the
// louder attack that precedes it
func (ns *NoteSegmenter) mergeDecayTails(segments []*segment) []*segment {
	return ns.mergeWhere(segments, func(prev, next *segment) bool {
		return prev.velocity-next.velocity >= ns.cfg.DecayTailVelocityDrop &&
			next.start-prev.end <= ns.cfg.DecayTailMaxGap+timeEpsilon
	})
}

func (ns *NoteSegmenter) mergeWhere(segments []*segment, adjacent func(prev, next *segment) bool) []*segment {
	if len(segments) == 0 {
		return segments
	}

	merged := []*segment{segments[0]}
	for _, next := range segments[1:] {
		prev := merged[len(merged)-1]
		if common.AbsCents(prev.pitch(), next.pitch()) <= ns.cfg.CentsTolerance && adjacent(prev, next) {
			prev.absorb(next)
			continue
		}
		merged = append(merged, next)
	}

	return merged
}
