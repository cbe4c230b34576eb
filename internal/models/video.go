package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoStatus represents the processing lifecycle of a video summary.
const (
	VideoStatusProcessing = "processing"
	VideoStatusCompleted  = "completed"
	VideoStatusFailed     = "failed"
)

// Source types for video ingestion.
const (
	VideoSourceUpload  = "upload"
	VideoSourceURL     = "url"
	VideoSourceYouTube = "youtube"
)

// VideoSummary is the root entity for a processed video. It owns transcripts,
// frames and timestamps; deletion cascades to all three manually.
type VideoSummary struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Title        string    `json:"title"`
	SourceType   string    `json:"source_type"`
	SourceURL    string    `json:"source_url,omitempty"`
	MediaURL     string    `json:"media_url,omitempty"`
	MediaKey     string    `json:"media_key,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Language     string    `json:"language,omitempty"`
	Duration     float64   `json:"duration"`
	FileSize     int64     `json:"file_size"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TranscriptSegment is one timed transcript row belonging to a video summary.
type TranscriptSegment struct {
	ID             int64     `json:"id"`
	VideoSummaryID uuid.UUID `json:"video_summary_id"`
	StartTime      float64   `json:"start_time"`
	EndTime        float64   `json:"end_time"`
	Text           string    `json:"text"`
	Confidence     *float64  `json:"confidence,omitempty"`
	Speaker        string    `json:"speaker,omitempty"`
}

// Frame extraction methods.
const (
	ExtractionMethodInterval   = "interval"
	ExtractionMethodCount      = "count"
	ExtractionMethodTimestamps = "timestamps"
)

// FrameRecord is one uploaded frame inside a FrameAnalysis.
type FrameRecord struct {
	Timestamp float64 `json:"timestamp"`
	Filename  string  `json:"filename"`
	PublicURL string  `json:"public_url,omitempty"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// SkippedFrame records a per-frame failure that did not abort the batch.
type SkippedFrame struct {
	Timestamp float64 `json:"timestamp"`
	Reason    string  `json:"reason"`
}

// FrameAnalysis summarizes one frame extraction run for a video (one row per
// video, replaced on re-extraction). SkippedFrames is a per-run detail for
// the caller and is not persisted.
type FrameAnalysis struct {
	ID               uuid.UUID      `json:"id"`
	VideoSummaryID   uuid.UUID      `json:"video_summary_id"`
	Frames           []FrameRecord  `json:"frames"`
	SkippedFrames    []SkippedFrame `json:"skipped_frames,omitempty"`
	TotalFrames      int            `json:"total_frames"`
	VideoDuration    float64        `json:"video_duration"`
	ExtractionMethod string         `json:"extraction_method"`
	CreatedAt        time.Time      `json:"created_at"`
}

// VideoTimestamp is a labeled key moment in a video summary.
type VideoTimestamp struct {
	ID             uuid.UUID `json:"id"`
	VideoSummaryID uuid.UUID `json:"video_summary_id"`
	TimeSeconds    float64   `json:"time_seconds"`
	Label          string    `json:"label"`
	CreatedAt      time.Time `json:"created_at"`
}
