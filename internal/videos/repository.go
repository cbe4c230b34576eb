package videos

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neurolearn/backend/internal/models"
)

// Repository handles video summary persistence, including the transcript,
// frame and timestamp children.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const summaryColumns = `id, user_id, title, source_type, COALESCE(source_url,''), COALESCE(media_url,''), COALESCE(media_key,''),
	COALESCE(summary,''), COALESCE(language,''), duration, file_size, status, COALESCE(error_message,''), created_at, updated_at`

func scanSummary(row pgx.Row) (*models.VideoSummary, error) {
	var v models.VideoSummary
	err := row.Scan(&v.ID, &v.UserID, &v.Title, &v.SourceType, &v.SourceURL, &v.MediaURL, &v.MediaKey,
		&v.Summary, &v.Language, &v.Duration, &v.FileSize, &v.Status, &v.ErrorMessage, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new video summary (status = processing).
func (r *Repository) Create(ctx context.Context, v *models.VideoSummary) error {
	const q = `INSERT INTO video_summaries (id, user_id, title, source_type, source_url, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.UserID, v.Title, v.SourceType, v.SourceURL, v.Status).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

// GetByID returns a video summary by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.VideoSummary, error) {
	q := `SELECT ` + summaryColumns + ` FROM video_summaries WHERE id = $1`
	v, err := scanSummary(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// ListByUser returns all video summaries owned by a user.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.VideoSummary, error) {
	q := `SELECT ` + summaryColumns + ` FROM video_summaries WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.VideoSummary
	for rows.Next() {
		v, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// UpdateStatus sets status only (e.g. failed).
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE video_summaries SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, status, id)
	return err
}

// MarkFailed sets status to failed with the error message.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	const q = `UPDATE video_summaries SET status = $1, error_message = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.VideoStatusFailed, message, id)
	return err
}

// UpdateMetadata sets probed duration and file size.
func (r *Repository) UpdateMetadata(ctx context.Context, id uuid.UUID, duration float64, fileSize int64) error {
	const q = `UPDATE video_summaries SET duration = $1, file_size = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, duration, fileSize, id)
	return err
}

// UpdateSummary sets the generated summary text and detected language.
func (r *Repository) UpdateSummary(ctx context.Context, id uuid.UUID, summary, language string) error {
	const q = `UPDATE video_summaries SET summary = $1, language = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, summary, language, id)
	return err
}

// UpdateMedia sets the stored media URL/key and marks the summary completed.
func (r *Repository) UpdateMedia(ctx context.Context, id uuid.UUID, mediaURL, mediaKey string) error {
	const q = `UPDATE video_summaries SET media_url = $1, media_key = $2, status = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, mediaURL, mediaKey, models.VideoStatusCompleted, id)
	return err
}

// InsertTranscript inserts all transcript segments for a video in one batch.
func (r *Repository) InsertTranscript(ctx context.Context, videoID uuid.UUID, segments []models.TranscriptSegment) error {
	if len(segments) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	const q = `INSERT INTO video_transcripts (video_summary_id, start_time, end_time, text, confidence, speaker)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))`
	for _, s := range segments {
		batch.Queue(q, videoID, s.StartTime, s.EndTime, s.Text, s.Confidence, s.Speaker)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range segments {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert transcript segment: %w", err)
		}
	}
	return nil
}

// ListTranscript returns transcript segments ordered by start time.
func (r *Repository) ListTranscript(ctx context.Context, videoID uuid.UUID) ([]models.TranscriptSegment, error) {
	const q = `SELECT id, video_summary_id, start_time, end_time, text, confidence, COALESCE(speaker,'')
		FROM video_transcripts WHERE video_summary_id = $1 ORDER BY start_time`
	rows, err := r.pool.Query(ctx, q, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.TranscriptSegment
	for rows.Next() {
		var s models.TranscriptSegment
		if err := rows.Scan(&s.ID, &s.VideoSummaryID, &s.StartTime, &s.EndTime, &s.Text, &s.Confidence, &s.Speaker); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// SaveFrameAnalysis upserts the one frame analysis row per video.
// Satisfies media.AnalysisStore.
func (r *Repository) SaveFrameAnalysis(ctx context.Context, a *models.FrameAnalysis) error {
	frames, err := json.Marshal(a.Frames)
	if err != nil {
		return fmt.Errorf("marshal frames: %w", err)
	}
	const q = `INSERT INTO video_frames (id, video_summary_id, frames, total_frames, video_duration, extraction_method)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		ON CONFLICT (video_summary_id) DO UPDATE
		SET frames = EXCLUDED.frames, total_frames = EXCLUDED.total_frames,
			video_duration = EXCLUDED.video_duration, extraction_method = EXCLUDED.extraction_method
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, a.VideoSummaryID, frames, a.TotalFrames, a.VideoDuration, a.ExtractionMethod).
		Scan(&a.ID, &a.CreatedAt)
}

// GetFrameAnalysis returns the frame analysis for a video, or nil.
func (r *Repository) GetFrameAnalysis(ctx context.Context, videoID uuid.UUID) (*models.FrameAnalysis, error) {
	const q = `SELECT id, video_summary_id, frames, total_frames, video_duration, extraction_method, created_at
		FROM video_frames WHERE video_summary_id = $1`
	var a models.FrameAnalysis
	var frames []byte
	err := r.pool.QueryRow(ctx, q, videoID).Scan(&a.ID, &a.VideoSummaryID, &frames, &a.TotalFrames, &a.VideoDuration, &a.ExtractionMethod, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(frames, &a.Frames); err != nil {
		return nil, fmt.Errorf("unmarshal frames: %w", err)
	}
	return &a, nil
}

// InsertTimestamps inserts labeled key moments for a video.
func (r *Repository) InsertTimestamps(ctx context.Context, videoID uuid.UUID, stamps []models.VideoTimestamp) error {
	batch := &pgx.Batch{}
	const q = `INSERT INTO video_timestamps (id, video_summary_id, time_seconds, label)
		VALUES (gen_random_uuid(), $1, $2, $3)`
	for _, t := range stamps {
		batch.Queue(q, videoID, t.TimeSeconds, t.Label)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range stamps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert timestamp: %w", err)
		}
	}
	return nil
}

// ListTimestamps returns labeled key moments ordered by time.
func (r *Repository) ListTimestamps(ctx context.Context, videoID uuid.UUID) ([]models.VideoTimestamp, error) {
	const q = `SELECT id, video_summary_id, time_seconds, label, created_at
		FROM video_timestamps WHERE video_summary_id = $1 ORDER BY time_seconds`
	rows, err := r.pool.Query(ctx, q, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.VideoTimestamp
	for rows.Next() {
		var t models.VideoTimestamp
		if err := rows.Scan(&t.ID, &t.VideoSummaryID, &t.TimeSeconds, &t.Label, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// DeleteChildren removes transcript, frame and timestamp rows for a video.
// No DB-level cascade is assumed; deletes are ordered before the summary row.
func (r *Repository) DeleteChildren(ctx context.Context, videoID uuid.UUID) error {
	for _, q := range []string{
		`DELETE FROM video_transcripts WHERE video_summary_id = $1`,
		`DELETE FROM video_frames WHERE video_summary_id = $1`,
		`DELETE FROM video_timestamps WHERE video_summary_id = $1`,
	} {
		if _, err := r.pool.Exec(ctx, q, videoID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the summary row itself. Call DeleteChildren first.
func (r *Repository) Delete(ctx context.Context, videoID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM video_summaries WHERE id = $1`, videoID)
	return err
}
