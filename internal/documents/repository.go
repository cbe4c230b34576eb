package documents

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/neurolearn/backend/internal/models"
)

// chunkInsertWorkers bounds concurrent chunk inserts per document.
const chunkInsertWorkers = 8

// Repository handles document, chunk and summary persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a documents repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new document row (status = processing).
func (r *Repository) Create(ctx context.Context, d *models.Document) error {
	const q = `INSERT INTO documents (id, user_id, name, content_type, file_size, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, d.UserID, d.Name, d.ContentType, d.FileSize, d.Status).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// GetByID returns a document by ID, or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	const q = `SELECT id, user_id, name, COALESCE(content_type,''), file_size, content_length, extraction_success, status, created_at, updated_at
		FROM documents WHERE id = $1`
	var d models.Document
	err := r.pool.QueryRow(ctx, q, id).Scan(&d.ID, &d.UserID, &d.Name, &d.ContentType, &d.FileSize,
		&d.ContentLength, &d.ExtractionSuccess, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// ListByUser returns all documents owned by a user.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Document, error) {
	const q = `SELECT id, user_id, name, COALESCE(content_type,''), file_size, content_length, extraction_success, status, created_at, updated_at
		FROM documents WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.ContentType, &d.FileSize,
			&d.ContentLength, &d.ExtractionSuccess, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// MarkExtracted records extraction results and completes the document.
func (r *Repository) MarkExtracted(ctx context.Context, id uuid.UUID, contentLength int, success bool) error {
	status := models.DocumentStatusCompleted
	if !success {
		status = models.DocumentStatusFailed
	}
	const q = `UPDATE documents SET content_length = $1, extraction_success = $2, status = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, contentLength, success, status, id)
	return err
}

// MarkFailed sets document status to failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, models.DocumentStatusFailed, id)
	return err
}

// ReplaceChunks deletes existing chunks for the document and inserts the new
// set. Inserts are independent rows fired concurrently.
func (r *Repository) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkInsertWorkers)
	const q = `INSERT INTO document_chunks (id, document_id, position, content)
		VALUES (gen_random_uuid(), $1, $2, $3)`
	for i, content := range chunks {
		i, content := i, content
		g.Go(func() error {
			if _, err := r.pool.Exec(gctx, q, documentID, i, content); err != nil {
				return fmt.Errorf("insert chunk %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ListChunks returns document chunks ordered by position.
func (r *Repository) ListChunks(ctx context.Context, documentID uuid.UUID) ([]models.DocumentChunk, error) {
	const q = `SELECT id, document_id, position, content, created_at
		FROM document_chunks WHERE document_id = $1 ORDER BY position`
	rows, err := r.pool.Query(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DocumentChunk
	for rows.Next() {
		var c models.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ListChunksForDocuments returns chunks across several documents, ordered by
// document then position, capped at limit (0 means no cap).
func (r *Repository) ListChunksForDocuments(ctx context.Context, documentIDs []uuid.UUID, limit int) ([]models.DocumentChunk, error) {
	q := `SELECT id, document_id, position, content, created_at
		FROM document_chunks WHERE document_id = ANY($1) ORDER BY document_id, position`
	args := []interface{}{documentIDs}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DocumentChunk
	for rows.Next() {
		var c models.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// SearchChunksByUser returns completed-document chunks for a user whose
// content matches any of the terms (case-insensitive), for topic relevance
// scoring.
func (r *Repository) SearchChunksByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.DocumentChunk, error) {
	const q = `SELECT c.id, c.document_id, c.position, c.content, c.created_at
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.user_id = $1 AND d.status = $2
		ORDER BY c.document_id, c.position
		LIMIT $3`
	rows, err := r.pool.Query(ctx, q, userID, models.DocumentStatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DocumentChunk
	for rows.Next() {
		var c models.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Delete removes a document and its chunks.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, id); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// CreateSummary stores a generated summary and its source document links.
func (r *Repository) CreateSummary(ctx context.Context, s *models.Summary, documentIDs []uuid.UUID) error {
	const q = `INSERT INTO summaries (id, user_id, title, content, model)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, s.UserID, s.Title, s.Content, s.Model).Scan(&s.ID, &s.CreatedAt); err != nil {
		return err
	}
	const link = `INSERT INTO summary_sources (summary_id, document_id) VALUES ($1, $2)`
	for _, docID := range documentIDs {
		if _, err := r.pool.Exec(ctx, link, s.ID, docID); err != nil {
			return fmt.Errorf("link summary source: %w", err)
		}
	}
	return nil
}

// ListSummaries returns a user's summaries, newest first.
func (r *Repository) ListSummaries(ctx context.Context, userID uuid.UUID) ([]models.Summary, error) {
	const q = `SELECT id, user_id, title, content, COALESCE(model,''), created_at
		FROM summaries WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Summary
	for rows.Next() {
		var s models.Summary
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.Content, &s.Model, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
