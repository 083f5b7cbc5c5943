package grading

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-maestro/grading/notes"
)

// Report is the outcome of grading one performance
type Report struct {
	ID          string               `json:"id,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	Accuracy    notes.AccuracyTriple `json:"accuracy"`
	Differences []notes.Difference   `json:"differences"`
	Alignment   []notes.AlignedPair  `json:"alignment,omitempty"`
	ActualNotes []notes.Note         `json:"actual_notes,omitempty"`
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Summary is a one-line human readable digest
func (r *Report) Summary() string {
	pct := func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f%%", *v)
	}

	counts := map[notes.DiffType]int{}
	for _, d := range r.Differences {
		counts[d.DiffType]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "tuning %s, dynamics %s, tempo %s", pct(r.Accuracy.Tuning), pct(r.Accuracy.Dynamics), pct(r.Accuracy.Tempo))
	if len(r.Differences) > 0 {
		fmt.Fprintf(&b, "; %d differences (", len(r.Differences))
		first := true
		for _, dt := range []notes.DiffType{notes.DiffPitch, notes.DiffVelocity, notes.DiffStart, notes.DiffEnd, notes.DiffMissing, notes.DiffExtra} {
			if counts[dt] == 0 {
				continue
			}
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s %d", dt, counts[dt])
			first = false
		}
		b.WriteString(")")
	}
	return b.String()
}
