package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/models"
)

// YouTube wraps the yt-dlp binary for media and caption retrieval.
type YouTube struct {
	binPath string
	logger  *zap.Logger
}

// NewYouTube creates a yt-dlp adapter. binPath empty means "yt-dlp" on PATH.
func NewYouTube(binPath string, logger *zap.Logger) *YouTube {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YouTube{binPath: binPath, logger: logger}
}

func (y *YouTube) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, y.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 400 {
			msg = msg[:400]
		}
		return faults.Wrap(fmt.Errorf("%w: %s", err, msg), faults.TypeExternalAPI, "yt-dlp")
	}
	return nil
}

// Title fetches the video title without downloading.
func (y *YouTube) Title(ctx context.Context, url string) (string, error) {
	cmd := exec.CommandContext(ctx, y.binPath, "--no-playlist", "--skip-download", "--print", "title", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", faults.Wrap(fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())), faults.TypeExternalAPI, "yt-dlp title")
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Download fetches the video as mp4 into outDir and returns the local path.
func (y *YouTube) Download(ctx context.Context, url, outDir string) (string, error) {
	outPath := filepath.Join(outDir, "source.mp4")
	err := y.run(ctx,
		"--no-playlist",
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"-o", outPath,
		url,
	)
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(outPath); statErr != nil {
		return "", faults.Wrap(statErr, faults.TypeFile, "yt-dlp output missing")
	}
	return outPath, nil
}

// Captions fetches subtitle cues for the video. Manually uploaded subtitles
// are tried first; auto-generated ones are the fallback. Returns nil when the
// video has neither.
func (y *YouTube) Captions(ctx context.Context, url, lang, outDir string) ([]models.TranscriptSegment, error) {
	if lang == "" {
		lang = "en"
	}
	for _, flag := range []string{"--write-subs", "--write-auto-subs"} {
		segments, err := y.fetchCaptions(ctx, url, lang, outDir, flag)
		if err != nil {
			y.logger.Debug("caption fetch failed", zap.String("mode", flag), zap.Error(err))
			continue
		}
		if len(segments) > 0 {
			return segments, nil
		}
	}
	return nil, nil
}

func (y *YouTube) fetchCaptions(ctx context.Context, url, lang, outDir, subsFlag string) ([]models.TranscriptSegment, error) {
	template := filepath.Join(outDir, "captions")
	err := y.run(ctx,
		"--no-playlist",
		"--skip-download",
		subsFlag,
		"--sub-langs", lang,
		"--sub-format", "vtt",
		"-o", template,
		url,
	)
	if err != nil {
		return nil, err
	}
	matches, _ := filepath.Glob(template + "*.vtt")
	if len(matches) == 0 {
		return nil, nil
	}
	raw, err := os.ReadFile(matches[0])
	for _, m := range matches {
		_ = os.Remove(m)
	}
	if err != nil {
		return nil, faults.Wrap(err, faults.TypeFile, "read captions")
	}
	return ParseVTT(string(raw)), nil
}
