package score

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-maestro/grading/notes"
)

// Score is an ideal note sequence with optional presentation metadata
type Score struct {
	Size     int              `json:"size,omitempty"`
	Tempo    float64          `json:"tempo,omitempty"`
	Notes    []notes.Note     `json:"notes"`
	NoteInfo []notes.NoteInfo `json:"note_info,omitempty"`
}

// Validate checks every note and that metadata, when present, lines up
func (s *Score) Validate() error {
	if err := notes.ValidateSequence(s.Notes); err != nil {
		return err
	}
	if len(s.NoteInfo) > 0 && len(s.NoteInfo) != len(s.Notes) {
		return fmt.Errorf("note_info has %d entries for %d notes", len(s.NoteInfo), len(s.Notes))
	}
	if s.Size != 0 && s.Size != len(s.Notes) {
		return fmt.Errorf("size %d does not match %d notes", s.Size, len(s.Notes))
	}
	return nil
}

// ReadJSON decodes a score from r
func ReadJSON(r io.Reader) (*Score, error) {
	var s Score
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode score: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Size = len(s.Notes)
	return &s, nil
}

// Load reads a score file, choosing the format from its extension
func Load(path string) (*Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open score: %w", err)
	}
	defer f.Close()

	return Read(f, filepath.Ext(path))
}

// Read decodes a score in the format named by ext (".json", ".mid", ".midi")
func Read(r io.Reader, ext string) (*Score, error) {
	switch strings.ToLower(ext) {
	case ".mid", ".midi", ".smf":
		return ReadMIDI(r)
	case ".json", "":
		return ReadJSON(r)
	default:
		return nil, fmt.Errorf("unsupported score format %q", ext)
	}
}
