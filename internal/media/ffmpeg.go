// Package media wraps the external ffmpeg/ffprobe binaries for metadata
// probing, audio extraction and single-frame decoding.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"go.uber.org/zap"
)

// FFmpeg invokes the ffmpeg and ffprobe binaries. Paths are configurable so
// deployments can pin specific builds.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

// NewFFmpeg creates an FFmpeg runner. Empty paths fall back to binaries on PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string, logger *zap.Logger) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// Metadata holds the probed properties of a media file.
type Metadata struct {
	Duration float64
	Format   string
	Size     int64
	BitRate  int64
	Width    int
	Height   int
	HasVideo bool
	HasAudio bool
}

// ffprobe -print_format json output shape (only the fields we read).
type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe reads duration, streams and format via ffprobe. A probe failure is
// fatal for downstream timestamp computation, so errors are not softened.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*Metadata, error) {
	out, err := f.run(ctx, f.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	meta := &Metadata{Format: probe.Format.FormatName}
	meta.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	meta.Size, _ = strconv.ParseInt(probe.Format.Size, 10, 64)
	meta.BitRate, _ = strconv.ParseInt(probe.Format.BitRate, 10, 64)
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			meta.HasVideo = true
			if s.Width > 0 {
				meta.Width = s.Width
				meta.Height = s.Height
			}
		case "audio":
			meta.HasAudio = true
		}
	}
	if meta.Duration <= 0 {
		return nil, fmt.Errorf("ffprobe %s: no duration in metadata", path)
	}
	return meta, nil
}

// ExtractAudio writes the audio track as mono 16kHz PCM WAV (the canonical
// container for transcription).
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	_, err := f.run(ctx, f.ffmpegPath,
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

// ConvertToWAV re-encodes any audio container to mono 16kHz WAV. Used as the
// fallback when the transcription API rejects the original container.
func (f *FFmpeg) ConvertToWAV(ctx context.Context, inPath, outPath string) error {
	_, err := f.run(ctx, f.ffmpegPath,
		"-i", inPath,
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		"-y",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("convert to wav: %w", err)
	}
	return nil
}

// ExtractFrame decodes a single frame at the timestamp, scaled to width
// (height preserved) with JPEG quality q (ffmpeg -q:v, 1 best).
func (f *FFmpeg) ExtractFrame(ctx context.Context, videoPath, outPath string, timestamp float64, width, quality int) error {
	_, err := f.run(ctx, f.ffmpegPath,
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", width),
		"-q:v", strconv.Itoa(quality),
		"-y",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("extract frame at %.3fs: %w", timestamp, err)
	}
	return nil
}

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		f.logger.Debug("media command failed",
			zap.String("bin", bin),
			zap.Strings("args", args),
			zap.String("stderr", stderr.String()),
		)
		return nil, fmt.Errorf("%s: %w, stderr: %s", bin, err, stderr.String())
	}
	return out.Bytes(), nil
}
