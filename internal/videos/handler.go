package videos

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/media"
	"github.com/neurolearn/backend/internal/middleware"
	"github.com/neurolearn/backend/internal/models"
	"github.com/neurolearn/backend/pkg/queue"
	"github.com/neurolearn/backend/pkg/response"
	"github.com/neurolearn/backend/pkg/storage"
)

// Handler handles video summary HTTP endpoints.
type Handler struct {
	repo    *Repository
	s3      *storage.S3
	queue   *queue.Queue
	faults  *faults.Service
	frames  *media.FrameService
	tempDir string
	logger  *zap.Logger
}

// NewHandler creates a videos handler.
func NewHandler(repo *Repository, s3 *storage.S3, q *queue.Queue, faultSvc *faults.Service, frames *media.FrameService, tempDir string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Handler{repo: repo, s3: s3, queue: q, faults: faultSvc, frames: frames, tempDir: tempDir, logger: logger}
}

// Upload handles POST /videos/upload. Accepts a multipart media file, stores
// it and queues background processing.
func (h *Handler) Upload(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file")
		return
	}
	defer file.Close()

	if header.Size > storage.MaxUploadSize {
		response.BadRequest(c, fmt.Sprintf("file exceeds maximum size of %dMB", storage.MaxUploadSize/(1024*1024)))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !storage.ValidateMediaType(contentType, header.Filename) {
		response.BadRequest(c, "unsupported media type")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	v := &models.VideoSummary{
		UserID:     userID,
		Title:      title,
		SourceType: models.VideoSourceUpload,
		Status:     models.VideoStatusProcessing,
	}
	if err := h.repo.Create(c.Request.Context(), v); err != nil {
		h.logger.Error("create video summary failed", zap.Error(err))
		response.Internal(c, "failed to create video")
		return
	}

	if contentType == "" {
		contentType = storage.ContentTypeForFilename(header.Filename)
	}
	key := storage.VideoKey(v.ID.String(), header.Filename)
	mediaURL, err := h.s3.Upload(c.Request.Context(), h.s3.VideoBucket(), key, contentType, file, header.Size, false)
	if err != nil {
		_ = h.repo.MarkFailed(c.Request.Context(), v.ID, "media upload failed")
		h.logger.Error("upload media failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to store media")
		return
	}
	v.MediaURL = mediaURL
	v.MediaKey = key

	if _, err := h.queue.EnqueueVideoProcess(c.Request.Context(), queue.VideoProcessPayload{
		VideoID:  v.ID,
		UserID:   userID,
		MediaKey: key,
	}); err != nil {
		_ = h.repo.MarkFailed(c.Request.Context(), v.ID, "failed to queue processing")
		h.logger.Error("enqueue video job failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to queue processing")
		return
	}

	response.Accepted(c, v)
}

type processURLRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}

func isYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == "youtube.com" || host == "youtu.be" || host == "m.youtube.com"
}

// ProcessURL handles POST /videos/process-url. Queues processing of a remote
// video URL (YouTube or direct media link).
func (h *Handler) ProcessURL(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req processURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "url is required")
		return
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		response.BadRequest(c, "invalid url")
		return
	}

	sourceType := models.VideoSourceURL
	if isYouTubeURL(req.URL) {
		sourceType = models.VideoSourceYouTube
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.URL
	}

	v := &models.VideoSummary{
		UserID:     userID,
		Title:      title,
		SourceType: sourceType,
		SourceURL:  req.URL,
		Status:     models.VideoStatusProcessing,
	}
	if err := h.repo.Create(c.Request.Context(), v); err != nil {
		h.logger.Error("create video summary failed", zap.Error(err))
		response.Internal(c, "failed to create video")
		return
	}

	if _, err := h.queue.EnqueueVideoProcess(c.Request.Context(), queue.VideoProcessPayload{
		VideoID:   v.ID,
		UserID:    userID,
		SourceURL: req.URL,
	}); err != nil {
		_ = h.repo.MarkFailed(c.Request.Context(), v.ID, "failed to queue processing")
		h.logger.Error("enqueue video job failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to queue processing")
		return
	}

	response.Accepted(c, v)
}

// List handles GET /videos. Returns the caller's video summaries.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list videos failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list videos")
		return
	}
	response.OK(c, list)
}

// getOwned parses :id, loads the video and checks ownership. Writes the
// response on failure and returns nil.
func (h *Handler) getOwned(c *gin.Context) *models.VideoSummary {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return nil
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	v, err := h.repo.GetByID(c.Request.Context(), videoID)
	if err != nil {
		h.logger.Error("get video failed", zap.Error(err), zap.String("video_id", videoID.String()))
		response.Internal(c, "failed to load video")
		return nil
	}
	if v == nil {
		response.NotFound(c, "video not found")
		return nil
	}
	if v.UserID != userID {
		response.Forbidden(c, "not authorized for this video")
		return nil
	}
	return v
}

// Get handles GET /videos/:id.
func (h *Handler) Get(c *gin.Context) {
	v := h.getOwned(c)
	if v == nil {
		return
	}
	response.OK(c, v)
}

// GetTranscript handles GET /videos/:id/transcript.
func (h *Handler) GetTranscript(c *gin.Context) {
	v := h.getOwned(c)
	if v == nil {
		return
	}
	segments, err := h.repo.ListTranscript(c.Request.Context(), v.ID)
	if err != nil {
		h.logger.Error("list transcript failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to load transcript")
		return
	}
	response.OK(c, segments)
}

// GetFrames handles GET /videos/:id/frames.
func (h *Handler) GetFrames(c *gin.Context) {
	v := h.getOwned(c)
	if v == nil {
		return
	}
	analysis, err := h.repo.GetFrameAnalysis(c.Request.Context(), v.ID)
	if err != nil {
		h.logger.Error("get frame analysis failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to load frames")
		return
	}
	if analysis == nil {
		response.NotFound(c, "no frames extracted for this video")
		return
	}
	response.OK(c, analysis)
}

// GetTimestamps handles GET /videos/:id/timestamps.
func (h *Handler) GetTimestamps(c *gin.Context) {
	v := h.getOwned(c)
	if v == nil {
		return
	}
	stamps, err := h.repo.ListTimestamps(c.Request.Context(), v.ID)
	if err != nil {
		h.logger.Error("list timestamps failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to load timestamps")
		return
	}
	response.OK(c, stamps)
}

type extractFramesRequest struct {
	Interval   float64   `json:"interval"`
	Count      int       `json:"count"`
	Timestamps []float64 `json:"timestamps"`
	Width      int       `json:"width"`
	Quality    int       `json:"quality"`
}

// ExtractFrames handles POST /videos/:id/frames/extract. Downloads the stored
// media to a temp file and runs frame extraction synchronously.
func (h *Handler) ExtractFrames(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	v := h.getOwned(c)
	if v == nil {
		return
	}
	if v.MediaKey == "" {
		response.BadRequest(c, "video has no stored media")
		return
	}

	var req extractFramesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	body, _, err := h.s3.GetObjectStream(c.Request.Context(), h.s3.VideoBucket(), v.MediaKey)
	if err != nil {
		h.logger.Error("fetch media failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to fetch media")
		return
	}
	defer body.Close()

	tmp, err := os.CreateTemp(h.tempDir, "media_*"+filepath.Ext(v.MediaKey))
	if err != nil {
		response.Internal(c, "failed to stage media")
		return
	}
	localPath := tmp.Name()
	defer func() { _ = os.Remove(localPath) }()
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		response.Internal(c, "failed to stage media")
		return
	}
	tmp.Close()

	analysis, err := h.frames.ExtractAndUploadFrames(c.Request.Context(), localPath, v.ID, media.FrameOptions{
		Interval:   req.Interval,
		Count:      req.Count,
		Timestamps: req.Timestamps,
		Width:      req.Width,
		Quality:    req.Quality,
	})
	if err != nil {
		pe := h.faults.RecordError(err, faults.Context{
			UserID:    v.UserID.String(),
			VideoID:   v.ID.String(),
			Operation: "frame_extraction",
		})
		h.logger.Error("frame extraction failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.InternalWithID(c, "frame extraction failed", pe.ID)
		return
	}
	response.OK(c, analysis)
}

// progressEvent is one line of the NDJSON progress stream.
type progressEvent struct {
	Type     string  `json:"type"`
	Stage    string  `json:"stage,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// StreamProgress handles GET /videos/:id/progress. Streams processing updates
// as newline-delimited JSON until the video completes or fails.
func (h *Handler) StreamProgress(c *gin.Context) {
	v := h.getOwned(c)
	if v == nil {
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	// Long-lived stream, exempt from the server write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	enc := json.NewEncoder(c.Writer)
	write := func(ev progressEvent) bool {
		if err := enc.Encode(ev); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	switch v.Status {
	case models.VideoStatusCompleted:
		write(progressEvent{Type: "complete"})
		return
	case models.VideoStatusFailed:
		write(progressEvent{Type: "error", Error: v.ErrorMessage})
		return
	}

	operationID := v.ID.String()
	sent := 0
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.NewTimer(30 * time.Minute)
	defer timeout.Stop()

	for {
		updates := h.faults.Updates(operationID)
		for ; sent < len(updates); sent++ {
			u := updates[sent]
			if !write(progressEvent{Type: "progress", Stage: u.Stage, Progress: u.Progress, Message: u.Message}) {
				return
			}
		}

		current, err := h.repo.GetByID(c.Request.Context(), v.ID)
		if err == nil && current != nil {
			switch current.Status {
			case models.VideoStatusCompleted:
				write(progressEvent{Type: "complete"})
				return
			case models.VideoStatusFailed:
				write(progressEvent{Type: "error", Error: current.ErrorMessage})
				return
			}
		}

		select {
		case <-c.Request.Context().Done():
			return
		case <-timeout.C:
			write(progressEvent{Type: "error", Error: "progress stream timed out"})
			return
		case <-ticker.C:
		}
	}
}

// Delete handles DELETE /videos/:id. Removes stored media, frames and all
// database rows for the video.
func (h *Handler) Delete(c *gin.Context) {
	v := h.getOwned(c)
	if v == nil {
		return
	}
	ctx := c.Request.Context()

	if h.s3 != nil {
		if analysis, err := h.repo.GetFrameAnalysis(ctx, v.ID); err == nil && analysis != nil {
			for _, f := range analysis.Frames {
				if err := h.s3.DeleteFrame(ctx, v.ID.String(), f.Filename); err != nil {
					h.logger.Warn("delete frame object failed", zap.Error(err), zap.String("filename", f.Filename))
				}
			}
		}
		if v.MediaKey != "" {
			if err := h.s3.DeleteVideo(ctx, v.MediaKey); err != nil {
				h.logger.Warn("delete media object failed", zap.Error(err), zap.String("key", v.MediaKey))
			}
		}
	}

	if err := h.repo.DeleteChildren(ctx, v.ID); err != nil {
		h.logger.Error("delete video children failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to delete video")
		return
	}
	if err := h.repo.Delete(ctx, v.ID); err != nil {
		h.logger.Error("delete video failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to delete video")
		return
	}
	response.NoContent(c)
}
