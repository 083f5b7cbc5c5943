package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-maestro/grading"
	"github.com/RyanBlaney/sonido-maestro/grading/config"
	"github.com/RyanBlaney/sonido-maestro/logging"
	"github.com/RyanBlaney/sonido-maestro/transcode"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	dcCutoffHz float64

	gradingConfig = config.DefaultGradingConfig()
)

var rootCmd = &cobra.Command{
	Use:   "sonido-maestro",
	Short: "Grades recorded performances against a score",
	Long: `sonido-maestro transcribes a monophonic recording into notes, aligns them
with the notes of a score and reports tuning, dynamics and tempo accuracy
along with every note-level difference.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logging.SetLevel(level)

		if configFile == "" {
			return nil
		}
		cfg, err := config.LoadFile(configFile)
		if err != nil {
			return err
		}
		gradingConfig = cfg
		logging.Debug("Loaded config", logging.Fields{"path": configFile})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "JSON config file overlaid on the defaults")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Float64Var(&dcCutoffHz, "dc-cutoff", 0, "remove DC offset below this frequency (Hz) from recordings, 0 disables")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func newGrader() (*grading.Grader, error) {
	g, err := grading.NewGrader(gradingConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build grader: %w", err)
	}
	return g, nil
}

func newDecoder() *transcode.Decoder {
	cfg := transcode.DefaultDecoderConfig()
	cfg.DCCutoffHz = dcCutoffHz
	return transcode.NewDecoder(cfg)
}

// decodeRecording decodes path, checking first that ffmpeg is usable when
// the file is not a WAV
func decodeRecording(ctx context.Context, dec *transcode.Decoder, path string) (*transcode.Recording, error) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		if err := dec.ValidateConfig(); err != nil {
			return nil, fmt.Errorf("cannot decode %s: %w", path, err)
		}
	}

	rec, err := dec.DecodeFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return rec, nil
}
