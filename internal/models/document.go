package models

import (
	"time"

	"github.com/google/uuid"
)

// Document processing statuses.
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// Document is an uploaded source document (docx, text, markdown).
type Document struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	Name              string    `json:"name"`
	ContentType       string    `json:"content_type"`
	FileSize          int64     `json:"file_size"`
	ContentLength     int       `json:"content_length"`
	ExtractionSuccess bool      `json:"extraction_success"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DocumentChunk is one fixed-size slice of extracted document text, used as
// quiz and summary source material.
type DocumentChunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Position   int       `json:"position"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary is a generated summary over one or more source documents.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SummarySource links a summary to a source document.
type SummarySource struct {
	SummaryID  uuid.UUID `json:"summary_id"`
	DocumentID uuid.UUID `json:"document_id"`
}
