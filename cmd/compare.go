package cmd

import (
	"github.com/RyanBlaney/sonido-maestro/grading/score"
	"github.com/spf13/cobra"
)

var (
	compareIdeal  string
	compareActual string
)

func init() {
	compareCmd.Flags().StringVar(&compareIdeal, "ideal", "", "ideal notes (.json or .mid)")
	compareCmd.Flags().StringVar(&compareActual, "actual", "", "performed notes (.json or .mid)")
	compareCmd.MarkFlagRequired("ideal")
	compareCmd.MarkFlagRequired("actual")
	rootCmd.AddCommand(compareCmd)
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compares two note files",
	Long:  `Aligns performed notes with ideal notes and prints the grading report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGrader()
		if err != nil {
			return err
		}

		ideal, err := score.Load(compareIdeal)
		if err != nil {
			return err
		}
		actual, err := score.Load(compareActual)
		if err != nil {
			return err
		}

		report, err := g.Compare(ideal.Notes, actual.Notes, ideal.NoteInfo)
		if err != nil {
			return err
		}
		return report.WriteJSON(cmd.OutOrStdout())
	},
}
