package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/ai"
	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/media"
	"github.com/neurolearn/backend/internal/models"
	"github.com/neurolearn/backend/internal/transcription"
	"github.com/neurolearn/backend/internal/videos"
	"github.com/neurolearn/backend/pkg/storage"
)

const summarizeSystemPrompt = "You are a study assistant. Summarize this video transcript into clear prose covering the main points, key concepts and conclusions. Reply with the summary text only."

// maxSummaryInputRunes bounds the transcript text sent to the chat model.
const maxSummaryInputRunes = 24000

// maxKeyMoments is how many labeled timestamps are derived from a transcript.
const maxKeyMoments = 5

// Options toggles optional pipeline work.
type Options struct {
	ExtractFrames bool
	Language      string
}

// VideoPipeline sequences a full video processing run: resolve input, probe,
// extract audio, transcribe, summarize, store media, persist records.
type VideoPipeline struct {
	repo      *videos.Repository
	ffmpeg    *media.FFmpeg
	frames    *media.FrameService
	whisper   *transcription.Client
	completer ai.Completer
	s3        *storage.S3
	faults    *faults.Service
	youtube   *YouTube
	http      *http.Client
	tempDir   string
	logger    *zap.Logger
}

// NewVideoPipeline creates a video pipeline.
func NewVideoPipeline(
	repo *videos.Repository,
	ffmpeg *media.FFmpeg,
	frames *media.FrameService,
	whisper *transcription.Client,
	completer ai.Completer,
	s3 *storage.S3,
	faultSvc *faults.Service,
	youtube *YouTube,
	tempDir string,
	logger *zap.Logger,
) *VideoPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &VideoPipeline{
		repo:      repo,
		ffmpeg:    ffmpeg,
		frames:    frames,
		whisper:   whisper,
		completer: completer,
		s3:        s3,
		faults:    faultSvc,
		youtube:   youtube,
		http:      &http.Client{Timeout: 30 * time.Minute},
		tempDir:   tempDir,
		logger:    logger,
	}
}

// Process runs the full pipeline for one video. Every temp file lives in a
// per-run directory removed on all exit paths. Committed records from earlier
// stages are kept when a later stage fails; the video row is marked failed.
func (p *VideoPipeline) Process(ctx context.Context, videoID uuid.UUID, opts Options) error {
	v, err := p.repo.GetByID(ctx, videoID)
	if err != nil {
		return fmt.Errorf("load video: %w", err)
	}
	if v == nil {
		return faults.New(faults.TypeValidation, "video not found")
	}

	runDir, err := os.MkdirTemp(p.tempDir, fmt.Sprintf("pipeline_%s_", videoID))
	if err != nil {
		return faults.Wrap(err, faults.TypeFile, "create run dir")
	}
	defer func() { _ = os.RemoveAll(runDir) }()

	opCtx := faults.Context{
		UserID:    v.UserID.String(),
		VideoID:   videoID.String(),
		Operation: "video_process",
	}
	err = p.faults.ExecuteWithProgress(ctx, videoID.String(), opCtx, func(ctx context.Context, update faults.ProgressFunc) error {
		return p.run(ctx, v, runDir, opts, update)
	})
	if err != nil {
		if markErr := p.repo.MarkFailed(ctx, videoID, err.Error()); markErr != nil {
			p.logger.Error("mark video failed errored", zap.Error(markErr), zap.String("video_id", videoID.String()))
		}
		return err
	}
	return nil
}

func (p *VideoPipeline) run(ctx context.Context, v *models.VideoSummary, runDir string, opts Options, update faults.ProgressFunc) error {
	// Resolve input to a local file. Captions found on the YouTube path let
	// the audio and transcription stages be skipped.
	localPath, captions, err := p.resolveInput(ctx, v, runDir, opts, update)
	if err != nil {
		return err
	}

	update("metadata", 10, "probing media")
	meta, err := p.ffmpeg.Probe(ctx, localPath)
	if err != nil {
		return err
	}
	if err := p.repo.UpdateMetadata(ctx, v.ID, meta.Duration, meta.Size); err != nil {
		return faults.Wrap(err, faults.TypeDatabase, "save metadata")
	}

	var segments []models.TranscriptSegment
	var transcriptText, language string

	if len(captions) > 0 {
		update("transcription", 45, fmt.Sprintf("using %d caption cues", len(captions)))
		segments = captions
		language = opts.Language
		transcriptText = joinSegments(captions)
	} else {
		update("audio_extraction", 25, "extracting audio track")
		audioPath := filepath.Join(runDir, "audio.wav")
		if err := p.ffmpeg.ExtractAudio(ctx, localPath, audioPath); err != nil {
			return err
		}

		update("transcription", 45, "transcribing audio")
		var result *transcription.Result
		err = p.faults.ExecuteWithRetry(ctx, "transcription", func(ctx context.Context) error {
			var callErr error
			result, callErr = p.whisper.Transcribe(ctx, audioPath, "audio/wav", transcription.Config{Language: opts.Language})
			return callErr
		}, nil)
		if err != nil {
			return err
		}
		transcriptText = result.Text
		language = result.Language
		segments = segmentsFromResult(result)
	}

	if err := p.repo.InsertTranscript(ctx, v.ID, segments); err != nil {
		return faults.Wrap(err, faults.TypeDatabase, "save transcript")
	}

	update("summarization", 65, "generating summary")
	summary, err := p.summarize(ctx, transcriptText)
	if err != nil {
		return err
	}
	if err := p.repo.UpdateSummary(ctx, v.ID, summary, language); err != nil {
		return faults.Wrap(err, faults.TypeDatabase, "save summary")
	}

	if opts.ExtractFrames && meta.HasVideo {
		update("frames", 75, "extracting key frames")
		if _, err := p.frames.ExtractKeyFrames(ctx, localPath, v.ID, nil); err != nil {
			// Frames are best-effort; a failed extraction does not fail the run.
			p.logger.Warn("key frame extraction failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		}
	}

	update("storage", 80, "storing media")
	mediaURL, mediaKey := v.MediaURL, v.MediaKey
	if mediaKey == "" {
		mediaKey = storage.VideoKey(v.ID.String(), filepath.Base(localPath))
		err = p.faults.ExecuteWithRetry(ctx, "media upload", func(ctx context.Context) error {
			var upErr error
			mediaURL, upErr = p.s3.UploadFile(ctx, p.s3.VideoBucket(), mediaKey, storage.ContentTypeForFilename(localPath), localPath, false)
			if upErr != nil {
				return faults.Wrap(upErr, faults.TypeStorage, "upload media")
			}
			return nil
		}, nil)
		if err != nil {
			return err
		}
	}

	update("database", 90, "saving records")
	if stamps := keyMoments(segments, meta.Duration); len(stamps) > 0 {
		if err := p.repo.InsertTimestamps(ctx, v.ID, stamps); err != nil {
			return faults.Wrap(err, faults.TypeDatabase, "save timestamps")
		}
	}
	if err := p.repo.UpdateMedia(ctx, v.ID, mediaURL, mediaKey); err != nil {
		return faults.Wrap(err, faults.TypeDatabase, "finalize video")
	}

	p.logger.Info("video processed",
		zap.String("video_id", v.ID.String()),
		zap.Float64("duration", meta.Duration),
		zap.Int("segments", len(segments)),
	)
	return nil
}

// resolveInput stages the source media into runDir. For uploads the stored
// object is fetched back; for YouTube sources captions are attempted first.
func (p *VideoPipeline) resolveInput(ctx context.Context, v *models.VideoSummary, runDir string, opts Options, update faults.ProgressFunc) (string, []models.TranscriptSegment, error) {
	switch v.SourceType {
	case models.VideoSourceUpload:
		update("download", 5, "fetching stored media")
		localPath := filepath.Join(runDir, "source"+filepath.Ext(v.MediaKey))
		if err := p.fetchObject(ctx, v.MediaKey, localPath); err != nil {
			return "", nil, err
		}
		return localPath, nil, nil

	case models.VideoSourceYouTube:
		update("download", 5, "downloading from YouTube")
		captions, err := p.youtube.Captions(ctx, v.SourceURL, opts.Language, runDir)
		if err != nil {
			p.logger.Debug("captions unavailable", zap.Error(err), zap.String("video_id", v.ID.String()))
		}
		localPath, err := p.youtube.Download(ctx, v.SourceURL, runDir)
		if err != nil {
			return "", nil, err
		}
		return localPath, captions, nil

	case models.VideoSourceURL:
		update("download", 5, "downloading media")
		ext := filepath.Ext(v.SourceURL)
		if _, ok := storage.AllowedMediaExtensions[strings.ToLower(ext)]; !ok {
			ext = ".mp4"
		}
		localPath := filepath.Join(runDir, "source"+ext)
		if err := p.downloadURL(ctx, v.SourceURL, localPath); err != nil {
			return "", nil, err
		}
		return localPath, nil, nil

	default:
		return "", nil, faults.New(faults.TypeValidation, "unknown source type: "+v.SourceType)
	}
}

func (p *VideoPipeline) fetchObject(ctx context.Context, key, outPath string) error {
	body, _, err := p.s3.GetObjectStream(ctx, p.s3.VideoBucket(), key)
	if err != nil {
		return faults.Wrap(err, faults.TypeStorage, "fetch media object")
	}
	defer body.Close()
	return writeTo(outPath, body)
}

func (p *VideoPipeline) downloadURL(ctx context.Context, url, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return faults.Wrap(err, faults.TypeValidation, "build download request")
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return faults.Wrap(err, faults.TypeNetwork, "download media")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return faults.New(faults.TypeExternalAPI, fmt.Sprintf("media download returned status %d", resp.StatusCode))
	}
	return writeTo(outPath, resp.Body)
}

func writeTo(outPath string, r io.Reader) error {
	f, err := os.Create(outPath)
	if err != nil {
		return faults.Wrap(err, faults.TypeFile, "create media file")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return faults.Wrap(err, faults.TypeFile, "write media file")
	}
	return f.Close()
}

func (p *VideoPipeline) summarize(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", faults.New(faults.TypeProcessing, "transcript is empty, nothing to summarize")
	}
	runes := []rune(transcript)
	if len(runes) > maxSummaryInputRunes {
		transcript = string(runes[:maxSummaryInputRunes])
	}
	var summary string
	err := p.faults.ExecuteWithRetry(ctx, "summarization", func(ctx context.Context) error {
		var callErr error
		summary, callErr = p.completer.Complete(ctx, summarizeSystemPrompt, transcript)
		return callErr
	}, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

func segmentsFromResult(r *transcription.Result) []models.TranscriptSegment {
	if len(r.Segments) == 0 {
		if strings.TrimSpace(r.Text) == "" {
			return nil
		}
		end := r.Duration
		return []models.TranscriptSegment{{StartTime: 0, EndTime: end, Text: strings.TrimSpace(r.Text), Confidence: r.Confidence}}
	}
	out := make([]models.TranscriptSegment, 0, len(r.Segments))
	for _, s := range r.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out = append(out, models.TranscriptSegment{
			StartTime:  s.Start,
			EndTime:    s.End,
			Text:       text,
			Confidence: r.Confidence,
		})
	}
	return out
}

func joinSegments(segments []models.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

// keyMoments picks evenly spread segments as labeled timestamps.
func keyMoments(segments []models.TranscriptSegment, duration float64) []models.VideoTimestamp {
	if len(segments) == 0 {
		return nil
	}
	n := maxKeyMoments
	if len(segments) < n {
		n = len(segments)
	}
	stamps := make([]models.VideoTimestamp, 0, n)
	step := float64(len(segments)) / float64(n)
	seen := map[int]bool{}
	for i := 0; i < n; i++ {
		idx := int(float64(i) * step)
		if idx >= len(segments) || seen[idx] {
			continue
		}
		seen[idx] = true
		s := segments[idx]
		label := s.Text
		if r := []rune(label); len(r) > 80 {
			label = string(r[:80])
		}
		if duration > 0 && s.StartTime > duration {
			continue
		}
		stamps = append(stamps, models.VideoTimestamp{TimeSeconds: s.StartTime, Label: label})
	}
	return stamps
}
