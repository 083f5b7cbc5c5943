package score

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-maestro/algorithms/common"
	"github.com/RyanBlaney/sonido-maestro/grading/notes"
	"gitlab.com/gomidi/midi/v2/smf"
)

const beatsPerMeasure = 4

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// note value in quarters -> name
var noteTypes = map[float64]string{
	4: "whole", 3: "half.", 2: "half", 1.5: "quarter.", 1: "quarter",
	0.75: "eighth.", 0.5: "eighth", 0.25: "16th", 0.125: "32nd",
}

type midiNote struct {
	key      uint8
	velocity uint8
	onTicks  int64
	offTicks int64
	onMicros int64
	offMicro int64
}

// ReadMIDI builds a score from a Standard MIDI File. Every track is read,
// the tempo map is honoured and the result is shifted so the first note
// starts at 0.
func ReadMIDI(r io.Reader) (s *Score, err error) {
	dat, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read midi: %w", err)
	}

	// smf can panic on malformed input
	defer func() {
		if rec := recover(); rec != nil {
			s, err = nil, fmt.Errorf("failed to parse midi: %v", rec)
		}
	}()

	file, err := smf.ReadFrom(bytes.NewReader(dat))
	if err != nil {
		return nil, fmt.Errorf("failed to parse midi: %w", err)
	}

	collected, tempo := collectNotes(file)
	if len(collected) == 0 {
		return nil, errors.New("midi file contains no notes")
	}

	sort.SliceStable(collected, func(i, j int) bool {
		if collected[i].onTicks != collected[j].onTicks {
			return collected[i].onTicks < collected[j].onTicks
		}
		return collected[i].key < collected[j].key
	})

	var ticksPerQuarter float64
	if mt, ok := file.TimeFormat.(smf.MetricTicks); ok {
		ticksPerQuarter = float64(mt)
	}

	offset := collected[0].onMicros
	result := &Score{Tempo: tempo}
	positions := map[int]int{}

	for _, mn := range collected {
		n, err := notes.NewNote(
			common.MIDIToFrequency(float64(mn.key)),
			int(mn.velocity),
			float64(mn.onMicros-offset)/1e6,
			float64(mn.offMicro-offset)/1e6,
		)
		if err != nil {
			return nil, fmt.Errorf("note %s at tick %d: %w", keyName(mn.key), mn.onTicks, err)
		}
		result.Notes = append(result.Notes, n)

		info := notes.NoteInfo{Element: "note", Name: keyName(mn.key)}
		if ticksPerQuarter > 0 {
			quarters := float64(mn.onTicks) / ticksPerQuarter
			info.Measure = int(quarters/beatsPerMeasure) + 1
			info.Type = noteTypes[float64(mn.offTicks-mn.onTicks)/ticksPerQuarter]
		}
		positions[info.Measure]++
		info.Position = positions[info.Measure]
		result.NoteInfo = append(result.NoteInfo, info)
	}

	result.Size = len(result.Notes)
	return result, nil
}

// collectNotes pairs note-ons with their note-offs across all tracks.
// A note-on with velocity 0 is a note-off.
func collectNotes(file *smf.SMF) ([]midiNote, float64) {
	var (
		collected []midiNote
		tempo     float64
	)

	for _, track := range file.Tracks {
		var absTicks int64
		open := map[uint8]*midiNote{}

		release := func(key uint8) {
			if mn, ok := open[key]; ok {
				mn.offTicks = absTicks
				mn.offMicro = file.TimeAt(absTicks)
				collected = append(collected, *mn)
				delete(open, key)
			}
		}

		for _, event := range track {
			absTicks += int64(event.Delta)

			var channel, key, velocity uint8
			var bpm float64
			switch {
			case event.Message.GetMetaTempo(&bpm):
				if tempo == 0 {
					tempo = math.Round(bpm*100) / 100
				}
			case event.Message.GetNoteOn(&channel, &key, &velocity):
				release(key)
				if velocity > 0 {
					open[key] = &midiNote{
						key:      key,
						velocity: min(velocity, notes.MaxVelocity),
						onTicks:  absTicks,
						onMicros: file.TimeAt(absTicks),
					}
				}
			case event.Message.GetNoteOff(&channel, &key, &velocity):
				release(key)
			}
		}

		// unterminated notes end with the track
		keys := make([]int, 0, len(open))
		for key := range open {
			keys = append(keys, int(key))
		}
		sort.Ints(keys)
		for _, key := range keys {
			release(uint8(key))
		}
	}

	return collected, tempo
}

func keyName(key uint8) string {
	return fmt.Sprintf("%s%d", pitchClasses[key%12], int(key)/12-1)
}
