package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/models"
)

func TestTimestampsCountModeExcludesEndpoints(t *testing.T) {
	ts, err := Timestamps(60, FrameOptions{Count: 5})
	require.NoError(t, err)
	require.Equal(t, []float64{10, 20, 30, 40, 50}, ts)
}

func TestTimestampsIntervalMode(t *testing.T) {
	ts, err := Timestamps(100, FrameOptions{Interval: 30})
	require.NoError(t, err)
	require.Equal(t, []float64{30, 60, 90}, ts)

	// Exact multiple of the duration is excluded.
	ts, err = Timestamps(90, FrameOptions{Interval: 30})
	require.NoError(t, err)
	require.Equal(t, []float64{30, 60}, ts)
}

func TestTimestampsExplicitListFiltered(t *testing.T) {
	ts, err := Timestamps(120, FrameOptions{Timestamps: []float64{-5, 0, 30, 120, 121}})
	require.NoError(t, err)
	require.Equal(t, []float64{0, 30, 120}, ts)
}

func TestTimestampsErrors(t *testing.T) {
	_, err := Timestamps(0, FrameOptions{Count: 3})
	require.Error(t, err)
	require.Equal(t, faults.TypeValidation, faults.Classify(err))

	_, err = Timestamps(60, FrameOptions{})
	require.Error(t, err)

	// All explicit timestamps outside the duration.
	_, err = Timestamps(10, FrameOptions{Timestamps: []float64{20, 30}})
	require.Error(t, err)
}

func TestFrameOptionsMethod(t *testing.T) {
	require.Equal(t, models.ExtractionMethodTimestamps, FrameOptions{Timestamps: []float64{1}}.method())
	require.Equal(t, models.ExtractionMethodCount, FrameOptions{Count: 3}.method())
	require.Equal(t, models.ExtractionMethodInterval, FrameOptions{Interval: 10}.method())
	require.Equal(t, models.ExtractionMethodInterval, FrameOptions{}.method())
}

// stubExtractor writes a placeholder file per frame instead of running ffmpeg.
type stubExtractor struct {
	duration float64
}

func (s stubExtractor) Probe(ctx context.Context, path string) (*Metadata, error) {
	return &Metadata{Duration: s.duration, HasVideo: true}, nil
}

func (s stubExtractor) ExtractFrame(ctx context.Context, videoPath, outPath string, timestamp float64, width, quality int) error {
	return os.WriteFile(outPath, []byte("frame"), 0644)
}

// flakyUploader rejects exactly one call with a non-retryable fault.
type flakyUploader struct {
	calls    int
	failCall int
}

func (u *flakyUploader) UploadFrame(ctx context.Context, videoID, filename, localPath string) (string, error) {
	u.calls++
	if u.calls == u.failCall {
		return "", faults.New(faults.TypeValidation, "bucket rejected object")
	}
	return "https://cdn.example.com/" + videoID + "/" + filename, nil
}

type captureStore struct {
	saved *models.FrameAnalysis
}

func (s *captureStore) SaveFrameAnalysis(ctx context.Context, a *models.FrameAnalysis) error {
	s.saved = a
	return nil
}

func TestExtractAndUploadFramesSkipsFailedUploadAndCleansUp(t *testing.T) {
	tempDir := t.TempDir()
	uploader := &flakyUploader{failCall: 2}
	store := &captureStore{}
	svc := NewFrameService(stubExtractor{duration: 40}, faults.NewService(nil), uploader, store, tempDir, nil)

	analysis, err := svc.ExtractAndUploadFrames(context.Background(), "lecture.mp4", uuid.New(), FrameOptions{Count: 3})
	require.NoError(t, err)

	// Three frames extracted at 10/20/30s, the second upload failed.
	require.Equal(t, 2, analysis.TotalFrames)
	require.Len(t, analysis.Frames, 2)
	require.Equal(t, 10.0, analysis.Frames[0].Timestamp)
	require.Equal(t, 30.0, analysis.Frames[1].Timestamp)
	require.Len(t, analysis.SkippedFrames, 1)
	require.Equal(t, 20.0, analysis.SkippedFrames[0].Timestamp)
	require.NotEmpty(t, analysis.SkippedFrames[0].Reason)
	require.Same(t, analysis, store.saved)

	// Every local temp file is gone, including the failed frame's.
	leftovers, err := filepath.Glob(filepath.Join(tempDir, "frames_*", "*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}
