package cmd

import (
	"encoding/json"

	"github.com/RyanBlaney/sonido-maestro/grading/score"
	"github.com/spf13/cobra"
)

var (
	transcribeRecording string
	transcribeTempo     float64
)

func init() {
	transcribeCmd.Flags().StringVar(&transcribeRecording, "recording", "", "audio file to transcribe")
	transcribeCmd.Flags().Float64Var(&transcribeTempo, "tempo", 0, "performance tempo in BPM (scales the minimum note length)")
	transcribeCmd.MarkFlagRequired("recording")
	rootCmd.AddCommand(transcribeCmd)
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribes a recording into notes",
	Long:  `Transcribes a monophonic recording into a JSON note file that compare accepts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGrader()
		if err != nil {
			return err
		}

		rec, err := decodeRecording(cmd.Context(), newDecoder(), transcribeRecording)
		if err != nil {
			return err
		}

		transcribed, err := g.Transcribe(cmd.Context(), rec.PCM, rec.SampleRate, transcribeTempo)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(score.Score{Size: len(transcribed), Tempo: transcribeTempo, Notes: transcribed})
	},
}
