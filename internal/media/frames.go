package media

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/models"
)

// Default frame extraction parameters.
const (
	defaultFrameWidth   = 1280
	defaultFrameQuality = 2
	keyFrameWidth       = 1920
	keyFrameQuality     = 1
)

// keyFramePositions are the proportional timestamps used for summary
// thumbnails when no explicit key moments are supplied.
var keyFramePositions = []float64{0.10, 0.25, 0.50, 0.75, 0.90}

// FrameOptions selects how extraction timestamps are computed. Exactly one of
// Interval, Count or Timestamps should be set.
type FrameOptions struct {
	Interval   float64   // seconds between frames
	Count      int       // evenly spaced frames, endpoints excluded
	Timestamps []float64 // explicit list, filtered to [0, duration]
	Width      int       // target width, 0 = default
	Quality    int       // ffmpeg -q:v, 0 = default
}

func (o FrameOptions) method() string {
	switch {
	case len(o.Timestamps) > 0:
		return models.ExtractionMethodTimestamps
	case o.Count > 0:
		return models.ExtractionMethodCount
	default:
		return models.ExtractionMethodInterval
	}
}

// ExtractedFrame is one successfully decoded frame, local until uploaded.
type ExtractedFrame struct {
	Timestamp float64
	Filename  string
	LocalPath string
	PublicURL string
	Width     int
	Height    int
}

// ExtractResult reports succeeded and skipped frames separately so callers
// never lose sight of partial failures.
type ExtractResult struct {
	Frames  []ExtractedFrame
	Skipped []models.SkippedFrame
}

// FrameExtractor probes media and decodes single frames. Satisfied by FFmpeg.
type FrameExtractor interface {
	Probe(ctx context.Context, path string) (*Metadata, error)
	ExtractFrame(ctx context.Context, videoPath, outPath string, timestamp float64, width, quality int) error
}

// FrameUploader stores a frame in the frames bucket and returns its public URL.
type FrameUploader interface {
	UploadFrame(ctx context.Context, videoID, filename, localPath string) (publicURL string, err error)
}

// AnalysisStore persists the frame analysis row for a video.
type AnalysisStore interface {
	SaveFrameAnalysis(ctx context.Context, analysis *models.FrameAnalysis) error
}

// FrameService extracts frames from local video files, uploads them and
// persists one analysis row per run. Individual frame failures reduce yield
// but never fail the run; a metadata probe failure is fatal.
type FrameService struct {
	extractor FrameExtractor
	faults    *faults.Service
	uploader  FrameUploader
	store     AnalysisStore
	tempDir   string
	logger    *zap.Logger
}

// NewFrameService creates a frame extraction service. tempDir empty means
// os.TempDir().
func NewFrameService(extractor FrameExtractor, faultSvc *faults.Service, uploader FrameUploader, store AnalysisStore, tempDir string, logger *zap.Logger) *FrameService {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrameService{
		extractor: extractor,
		faults:    faultSvc,
		uploader:  uploader,
		store:     store,
		tempDir:   tempDir,
		logger:    logger,
	}
}

// Timestamps computes the extraction timestamp list for a video duration.
// Count mode spaces count frames evenly in (0, duration) excluding both
// endpoints; interval mode yields interval, 2*interval, ... strictly below
// duration; explicit timestamps are filtered to [0, duration]. An empty
// result is an error.
func Timestamps(duration float64, opts FrameOptions) ([]float64, error) {
	if duration <= 0 {
		return nil, faults.Newf(faults.TypeValidation, "invalid video duration %.3f", duration)
	}

	var ts []float64
	switch {
	case len(opts.Timestamps) > 0:
		for _, t := range opts.Timestamps {
			if t >= 0 && t <= duration {
				ts = append(ts, t)
			}
		}
	case opts.Count > 0:
		step := duration / float64(opts.Count+1)
		for i := 1; i <= opts.Count; i++ {
			ts = append(ts, step*float64(i))
		}
	case opts.Interval > 0:
		for t := opts.Interval; t < duration; t += opts.Interval {
			ts = append(ts, t)
		}
	default:
		return nil, faults.New(faults.TypeValidation, "frame options: interval, count or timestamps required")
	}

	if len(ts) == 0 {
		return nil, faults.New(faults.TypeValidation, "no extraction timestamps within video duration")
	}
	return ts, nil
}

// ExtractFrames decodes one frame per computed timestamp. Each decode is
// retried via the faults service; a frame that still fails is skipped with a
// reason and the batch continues.
func (s *FrameService) ExtractFrames(ctx context.Context, videoPath string, videoID uuid.UUID, opts FrameOptions) (*ExtractResult, float64, error) {
	meta, err := s.extractor.Probe(ctx, videoPath)
	if err != nil {
		return nil, 0, fmt.Errorf("probe video: %w", err)
	}

	timestamps, err := Timestamps(meta.Duration, opts)
	if err != nil {
		return nil, 0, err
	}

	width := opts.Width
	if width <= 0 {
		width = defaultFrameWidth
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = defaultFrameQuality
	}

	// Per-run temp namespace so concurrent extractions never collide.
	runDir := filepath.Join(s.tempDir, fmt.Sprintf("frames_%s_%d", videoID, time.Now().UnixNano()))
	if err := os.MkdirAll(runDir, 0750); err != nil {
		return nil, 0, fmt.Errorf("create frame temp dir: %w", err)
	}

	result := &ExtractResult{}
	for i, t := range timestamps {
		filename := fmt.Sprintf("frame_%03d_%.1fs.jpg", i+1, t)
		localPath := filepath.Join(runDir, filename)

		extractErr := s.faults.ExecuteWithRetry(ctx, "extract_frame", func(ctx context.Context) error {
			return s.extractor.ExtractFrame(ctx, videoPath, localPath, t, width, quality)
		}, &faults.RetryConfig{MaxRetries: 1, BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second, BackoffMultiplier: 2})
		if extractErr != nil {
			s.logger.Warn("frame extraction skipped",
				zap.String("video_id", videoID.String()),
				zap.Float64("timestamp", t),
				zap.Error(extractErr),
			)
			result.Skipped = append(result.Skipped, models.SkippedFrame{Timestamp: t, Reason: extractErr.Error()})
			_ = os.Remove(localPath)
			continue
		}

		w, h := imageSize(localPath)
		result.Frames = append(result.Frames, ExtractedFrame{
			Timestamp: t,
			Filename:  filename,
			LocalPath: localPath,
			Width:     w,
			Height:    h,
		})
	}

	if len(result.Frames) == 0 {
		_ = os.RemoveAll(runDir)
		return nil, 0, faults.Newf(faults.TypeProcessing, "all %d frame extractions failed", len(timestamps))
	}
	return result, meta.Duration, nil
}

// ExtractAndUploadFrames runs extraction, uploads each frame (per-frame upload
// failure is skipped, not fatal), removes every local temp file regardless of
// individual outcomes, and persists one analysis row for the video.
func (s *FrameService) ExtractAndUploadFrames(ctx context.Context, videoPath string, videoID uuid.UUID, opts FrameOptions) (*models.FrameAnalysis, error) {
	result, duration, err := s.ExtractFrames(ctx, videoPath, videoID, opts)
	if err != nil {
		return nil, err
	}
	defer s.removeLocal(result.Frames)

	var records []models.FrameRecord
	for i := range result.Frames {
		frame := &result.Frames[i]
		uploadErr := s.faults.ExecuteWithRetry(ctx, "upload_frame", func(ctx context.Context) error {
			url, err := s.uploader.UploadFrame(ctx, videoID.String(), frame.Filename, frame.LocalPath)
			if err != nil {
				return err
			}
			frame.PublicURL = url
			return nil
		}, nil)
		if uploadErr != nil {
			s.logger.Warn("frame upload skipped",
				zap.String("video_id", videoID.String()),
				zap.String("frame", frame.Filename),
				zap.Error(uploadErr),
			)
			result.Skipped = append(result.Skipped, models.SkippedFrame{Timestamp: frame.Timestamp, Reason: uploadErr.Error()})
			continue
		}
		records = append(records, models.FrameRecord{
			Timestamp: frame.Timestamp,
			Filename:  frame.Filename,
			PublicURL: frame.PublicURL,
			Width:     frame.Width,
			Height:    frame.Height,
		})
	}

	analysis := &models.FrameAnalysis{
		VideoSummaryID:   videoID,
		Frames:           records,
		SkippedFrames:    result.Skipped,
		TotalFrames:      len(records),
		VideoDuration:    duration,
		ExtractionMethod: opts.method(),
		CreatedAt:        time.Now(),
	}
	if err := s.store.SaveFrameAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("save frame analysis: %w", err)
	}
	s.logger.Info("frame extraction completed",
		zap.String("video_id", videoID.String()),
		zap.Int("uploaded", len(records)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return analysis, nil
}

// ExtractKeyFrames extracts high-quality thumbnails at five proportional
// positions, or at the supplied key moments.
func (s *FrameService) ExtractKeyFrames(ctx context.Context, videoPath string, videoID uuid.UUID, keyMoments []float64) (*models.FrameAnalysis, error) {
	opts := FrameOptions{Width: keyFrameWidth, Quality: keyFrameQuality}
	if len(keyMoments) > 0 {
		opts.Timestamps = keyMoments
	} else {
		meta, err := s.extractor.Probe(ctx, videoPath)
		if err != nil {
			return nil, fmt.Errorf("probe video: %w", err)
		}
		for _, p := range keyFramePositions {
			opts.Timestamps = append(opts.Timestamps, meta.Duration*p)
		}
	}
	return s.ExtractAndUploadFrames(ctx, videoPath, videoID, opts)
}

func (s *FrameService) removeLocal(frames []ExtractedFrame) {
	var dir string
	for _, f := range frames {
		if f.LocalPath == "" {
			continue
		}
		dir = filepath.Dir(f.LocalPath)
		if err := os.Remove(f.LocalPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove frame temp file failed", zap.String("path", f.LocalPath), zap.Error(err))
		}
	}
	if dir != "" {
		_ = os.Remove(dir)
	}
}

// imageSize decodes only the image header; zero values when undecodable.
func imageSize(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
