package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-maestro/algorithms/filters"
	"github.com/RyanBlaney/sonido-maestro/logging"
	"github.com/go-audio/wav"
)

// ErrNoAudio is returned when decoding yields no samples
var ErrNoAudio = errors.New("no audio samples decoded")

// Recording is a decoded mono performance
type Recording struct {
	PCM            []float64     `json:"-"` // mono, [-1, 1]
	SampleRate     int           `json:"sample_rate"`
	SourceChannels int           `json:"source_channels"`
	Duration       time.Duration `json:"duration"`
	Codec          string        `json:"codec"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// Output sample rate for ffmpeg decodes; 0 keeps the source rate.
	// WAV files are always returned at their native rate.
	TargetSampleRate int           `json:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"` // per ffmpeg/ffprobe invocation

	// Cutoff of the DC blocker applied after decoding; 0 disables it
	DCCutoffHz float64 `json:"dc_cutoff_hz"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 0,
		MaxDuration:      0, // No limit
		ResampleQuality:  "medium",
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		Timeout:          30 * time.Second,
		DCCutoffHz:       0,
	}
}

// Decoder turns uploaded or on-disk recordings into mono PCM. WAV is read
// natively; anything else goes through ffmpeg. Loudness is left untouched
// because dynamics grading depends on absolute level.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// AudioMetadata holds detected audio properties from ffprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// DecodeFile decodes a recording on disk
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*Recording, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	if strings.EqualFold(filepath.Ext(filename), ".wav") {
		f, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close()

		logger.Debug("Decoding wav natively")
		return d.decodeWAV(f)
	}

	metadata, err := d.probe(ctx, []string{filename}, nil)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	return d.decodeWithFFmpeg(ctx, []string{"-i", filename}, nil, metadata)
}

// DecodeBytes decodes a recording held in memory, e.g. an upload
func (d *Decoder) DecodeBytes(ctx context.Context, data []byte) (*Recording, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}

	if isWAV(data) {
		d.logger.Debug("Decoding wav bytes natively", logging.Fields{"data_size": len(data)})
		return d.decodeWAV(bytes.NewReader(data))
	}

	metadata, err := d.probe(ctx, []string{"pipe:0"}, data)
	if err != nil {
		d.logger.Error(err, "Failed to probe audio bytes", logging.Fields{"data_size": len(data)})
		return nil, err
	}

	return d.decodeWithFFmpeg(ctx, []string{"-i", "pipe:0"}, data, metadata)
}

// DecodeReader decodes a recording from r
func (d *Decoder) DecodeReader(ctx context.Context, r io.Reader) (*Recording, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return d.DecodeBytes(ctx, data)
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// decodeWAV reads PCM through go-audio, mixes to mono and scales by bit depth
func (d *Decoder) decodeWAV(rs io.ReadSeeker) (*Recording, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("invalid wav buffer")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported wav bit depth: %d", bitDepth)
	}
	fullScale := float64(int64(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	if limit := d.maxFrames(buf.Format.SampleRate); limit > 0 && frames > limit {
		frames = limit
	}

	pcm := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		pcm[i] = sum / float64(channels) / fullScale
	}

	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}

	rec := d.newRecording(pcm, buf.Format.SampleRate, channels, "pcm")
	d.logger.Debug("Wav decode completed", logging.Fields{
		"sample_rate": rec.SampleRate,
		"channels":    channels,
		"bit_depth":   bitDepth,
		"duration":    rec.Duration.Seconds(),
	})
	return rec, nil
}

func (d *Decoder) maxFrames(sampleRate int) int {
	if d.config.MaxDuration <= 0 {
		return 0
	}
	return int(d.config.MaxDuration.Seconds() * float64(sampleRate))
}

func (d *Decoder) newRecording(pcm []float64, sampleRate, channels int, codec string) *Recording {
	if d.config.DCCutoffHz > 0 {
		filters.NewDCBlocker(sampleRate, d.config.DCCutoffHz).ProcessBuffer(pcm)
	}
	return &Recording{
		PCM:            pcm,
		SampleRate:     sampleRate,
		SourceChannels: channels,
		Duration:       time.Duration(len(pcm)) * time.Second / time.Duration(sampleRate),
		Codec:          codec,
	}
}

// withTimeout bounds an external command by the configured timeout
func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func runCommand(ctx context.Context, path string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("%s failed: %w, stderr: %s", filepath.Base(path), err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("%s failed: %w", filepath.Base(path), err)
	}
	return output, nil
}

// probe uses ffprobe to read the first audio stream's properties
func (d *Decoder) probe(ctx context.Context, input []string, stdin []byte) (*AudioMetadata, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0", // First audio stream only
	}
	args = append(args, input...)

	output, err := runCommand(ctx, d.config.FFprobePath, args, stdin)
	if err != nil {
		return nil, err
	}
	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
	}, nil
}

// outputSampleRate picks the rate ffmpeg should produce
func (d *Decoder) outputSampleRate(metadata *AudioMetadata) int {
	if d.config.TargetSampleRate > 0 {
		return d.config.TargetSampleRate
	}
	return metadata.SampleRate
}

// buildFFmpegArgs builds the output half of an ffmpeg command: mono f64le on stdout
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	sampleRate := d.outputSampleRate(metadata)
	args := []string{
		"-vn",
		"-f", "f64le", // raw float64 little-endian
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
	}

	if sampleRate != metadata.SampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			args = append(args, "-af", "aresample=resampler=soxr:precision=16")
		case "medium":
			args = append(args, "-af", "aresample=resampler=soxr:precision=20")
		case "high":
			args = append(args, "-af", "aresample=resampler=soxr:precision=28")
		}
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	return append(args, "-v", "error", "pipe:1")
}

func (d *Decoder) decodeWithFFmpeg(ctx context.Context, input []string, stdin []byte, metadata *AudioMetadata) (*Recording, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := append(input, d.buildFFmpegArgs(metadata)...)
	d.logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := runCommand(ctx, d.config.FFmpegPath, args, stdin)
	if err != nil {
		d.logger.Error(err, "Ffmpeg decode failed")
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	pcm := bytesToFloat64(output)
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}

	rec := d.newRecording(pcm, d.outputSampleRate(metadata), metadata.Channels, metadata.Codec)
	d.logger.Debug("Ffmpeg decode completed", logging.Fields{
		"input_sample_rate":  metadata.SampleRate,
		"input_channels":     metadata.Channels,
		"input_codec":        metadata.Codec,
		"output_sample_rate": rec.SampleRate,
		"output_duration":    rec.Duration.Seconds(),
		"decode_time":        time.Since(startTime).Seconds(),
	})

	return rec, nil
}

// bytesToFloat64 converts raw float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	// Trim to multiple of 8 bytes
	data = data[:len(data)-(len(data)%8)]
	if len(data) == 0 {
		return nil
	}

	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

// ValidateConfig validates the decoder configuration and checks that
// ffmpeg and ffprobe can be run
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate < 0 {
		return fmt.Errorf("target sample rate must not be negative: %d", d.config.TargetSampleRate)
	}
	if d.config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %v", d.config.Timeout)
	}

	for _, path := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if err := exec.Command(path, "-version").Run(); err != nil {
			return fmt.Errorf("%s not available: %w", path, err)
		}
	}

	return nil
}
