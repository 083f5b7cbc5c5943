package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/sonido-maestro/grading/comparison"
	"github.com/RyanBlaney/sonido-maestro/grading/notes"
	"github.com/RyanBlaney/sonido-maestro/grading/score"
	"github.com/RyanBlaney/sonido-maestro/logging"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	gradeScore     string
	gradeRecording string
	gradeTempo     float64
	gradeDebugDir  string
	gradeSummary   bool
)

func init() {
	gradeCmd.Flags().StringVar(&gradeScore, "score", "", "score file (.json or .mid)")
	gradeCmd.Flags().StringVar(&gradeRecording, "recording", "", "performance recording")
	gradeCmd.Flags().Float64Var(&gradeTempo, "tempo", 0, "performance tempo in BPM (defaults to the score's tempo)")
	gradeCmd.Flags().StringVar(&gradeDebugDir, "debug-dir", "", "write the alignment matrix and path here")
	gradeCmd.Flags().BoolVar(&gradeSummary, "summary", false, "print a one-line summary instead of JSON")
	gradeCmd.MarkFlagRequired("score")
	gradeCmd.MarkFlagRequired("recording")
	rootCmd.AddCommand(gradeCmd)
}

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grades a recording against a score",
	Long:  `Transcribes a recording, aligns it with the score and prints the grading report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGrader()
		if err != nil {
			return err
		}

		if gradeDebugDir != "" {
			if err := os.MkdirAll(gradeDebugDir, 0o755); err != nil {
				return fmt.Errorf("failed to create debug dir: %w", err)
			}
			g = g.WithDiagnostics(debugDump(gradeDebugDir))
		}

		s, err := score.Load(gradeScore)
		if err != nil {
			return err
		}

		rec, err := decodeRecording(cmd.Context(), newDecoder(), gradeRecording)
		if err != nil {
			return err
		}

		report, err := g.Grade(cmd.Context(), s, rec.PCM, rec.SampleRate, gradeTempo)
		if err != nil {
			return err
		}

		if gradeSummary {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			return err
		}
		return report.WriteJSON(cmd.OutOrStdout())
	},
}

// debugDump writes alignment artifacts into dir. Write failures are logged,
// not returned, so a bad debug dir never fails a grade.
func debugDump(dir string) comparison.Diagnostics {
	logger := logging.WithFields(logging.Fields{
		"component": "debug_dump",
		"dir":       dir,
	})

	return comparison.Diagnostics{
		ScoreMatrix: func(m mat.Matrix) {
			path := filepath.Join(dir, "score_matrix.txt")
			data := fmt.Sprintf("%v\n", mat.Formatted(m, mat.Squeeze()))
			if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
				logger.Error(err, "Failed to write score matrix")
			}
		},
		Alignment: func(pairs []notes.AlignedPair) {
			path := filepath.Join(dir, "alignment.json")
			data, err := json.MarshalIndent(pairs, "", "  ")
			if err == nil {
				err = os.WriteFile(path, data, 0o644)
			}
			if err != nil {
				logger.Error(err, "Failed to write alignment")
			}
		},
	}
}
