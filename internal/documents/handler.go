package documents

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/ai"
	"github.com/neurolearn/backend/internal/middleware"
	"github.com/neurolearn/backend/internal/models"
	"github.com/neurolearn/backend/pkg/queue"
	"github.com/neurolearn/backend/pkg/response"
	"github.com/neurolearn/backend/pkg/storage"
)

const summarySystemPrompt = "You are a study assistant. Summarize the provided course material into clear prose with the key concepts, definitions and takeaways. Reply with the summary text only."

// maxSummaryChunks bounds how much source text one summary prompt carries.
const maxSummaryChunks = 30

// Handler handles document HTTP endpoints.
type Handler struct {
	repo      *Repository
	s3        *storage.S3
	queue     *queue.Queue
	completer ai.Completer
	modelName string
	logger    *zap.Logger
}

// NewHandler creates a documents handler. modelName labels stored summaries.
func NewHandler(repo *Repository, s3 *storage.S3, q *queue.Queue, completer ai.Completer, modelName string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, queue: q, completer: completer, modelName: modelName, logger: logger}
}

// Upload handles POST /documents/upload. Stores the file and queues text
// extraction.
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

	if header.Size > storage.MaxDocumentSize {
		response.BadRequest(c, fmt.Sprintf("document exceeds maximum size of %dMB", storage.MaxDocumentSize/(1024*1024)))
		return
	}
	if !storage.ValidateDocumentType(header.Filename) {
		response.BadRequest(c, "unsupported document format (docx, txt, md)")
		return
	}

	d := &models.Document{
		UserID:      userID,
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		FileSize:    header.Size,
		Status:      models.DocumentStatusProcessing,
	}
	if err := h.repo.Create(c.Request.Context(), d); err != nil {
		h.logger.Error("create document failed", zap.Error(err))
		response.Internal(c, "failed to create document")
		return
	}

	key := storage.DocumentKey(d.ID.String(), header.Filename)
	if _, err := h.s3.Upload(c.Request.Context(), h.s3.VideoBucket(), key, d.ContentType, file, header.Size, false); err != nil {
		_ = h.repo.MarkFailed(c.Request.Context(), d.ID)
		h.logger.Error("upload document failed", zap.Error(err), zap.String("document_id", d.ID.String()))
		response.Internal(c, "failed to store document")
		return
	}

	if _, err := h.queue.EnqueueDocumentProcess(c.Request.Context(), queue.DocumentProcessPayload{
		DocumentID: d.ID,
		UserID:     userID,
		StorageKey: key,
	}); err != nil {
		_ = h.repo.MarkFailed(c.Request.Context(), d.ID)
		h.logger.Error("enqueue document job failed", zap.Error(err), zap.String("document_id", d.ID.String()))
		response.Internal(c, "failed to queue processing")
		return
	}

	response.Accepted(c, d)
}

// List handles GET /documents.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list documents failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list documents")
		return
	}
	response.OK(c, list)
}

func (h *Handler) getOwned(c *gin.Context) *models.Document {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid document id")
		return nil
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	d, err := h.repo.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.logger.Error("get document failed", zap.Error(err), zap.String("document_id", docID.String()))
		response.Internal(c, "failed to load document")
		return nil
	}
	if d == nil {
		response.NotFound(c, "document not found")
		return nil
	}
	if d.UserID != userID {
		response.Forbidden(c, "not authorized for this document")
		return nil
	}
	return d
}

// Get handles GET /documents/:id.
func (h *Handler) Get(c *gin.Context) {
	d := h.getOwned(c)
	if d == nil {
		return
	}
	response.OK(c, d)
}

// GetChunks handles GET /documents/:id/chunks.
func (h *Handler) GetChunks(c *gin.Context) {
	d := h.getOwned(c)
	if d == nil {
		return
	}
	chunks, err := h.repo.ListChunks(c.Request.Context(), d.ID)
	if err != nil {
		h.logger.Error("list chunks failed", zap.Error(err), zap.String("document_id", d.ID.String()))
		response.Internal(c, "failed to load chunks")
		return
	}
	response.OK(c, chunks)
}

// Delete handles DELETE /documents/:id.
func (h *Handler) Delete(c *gin.Context) {
	d := h.getOwned(c)
	if d == nil {
		return
	}
	ctx := c.Request.Context()
	if h.s3 != nil {
		key := storage.DocumentKey(d.ID.String(), d.Name)
		if err := h.s3.DeleteObject(ctx, h.s3.VideoBucket(), key); err != nil {
			h.logger.Warn("delete document object failed", zap.Error(err), zap.String("key", key))
		}
	}
	if err := h.repo.Delete(ctx, d.ID); err != nil {
		h.logger.Error("delete document failed", zap.Error(err), zap.String("document_id", d.ID.String()))
		response.Internal(c, "failed to delete document")
		return
	}
	response.NoContent(c)
}

type generateSummaryRequest struct {
	Title       string      `json:"title"`
	DocumentIDs []uuid.UUID `json:"document_ids" binding:"required,min=1"`
}

// GenerateSummary handles POST /summaries. Builds one prompt from the source
// document chunks and stores the model's reply.
func (h *Handler) GenerateSummary(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req generateSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "document_ids are required")
		return
	}
	ctx := c.Request.Context()

	for _, docID := range req.DocumentIDs {
		d, err := h.repo.GetByID(ctx, docID)
		if err != nil {
			response.Internal(c, "failed to load documents")
			return
		}
		if d == nil || d.UserID != userID {
			response.NotFound(c, "document not found: "+docID.String())
			return
		}
		if d.Status != models.DocumentStatusCompleted {
			response.BadRequest(c, "document is not processed yet: "+d.Name)
			return
		}
	}

	chunks, err := h.repo.ListChunksForDocuments(ctx, req.DocumentIDs, maxSummaryChunks)
	if err != nil {
		h.logger.Error("load summary source chunks failed", zap.Error(err))
		response.Internal(c, "failed to load source material")
		return
	}
	if len(chunks) == 0 {
		response.BadRequest(c, "selected documents have no extracted content")
		return
	}

	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk.Content)
		sb.WriteString("\n\n")
	}

	content, err := h.completer.Complete(ctx, summarySystemPrompt, sb.String())
	if err != nil {
		h.logger.Error("summary generation failed", zap.Error(err))
		response.Internal(c, "summary generation failed")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Summary"
	}
	s := &models.Summary{
		UserID:  userID,
		Title:   title,
		Content: strings.TrimSpace(content),
		Model:   h.modelName,
	}
	if err := h.repo.CreateSummary(ctx, s, req.DocumentIDs); err != nil {
		h.logger.Error("store summary failed", zap.Error(err))
		response.Internal(c, "failed to store summary")
		return
	}
	response.Created(c, s)
}

// ListSummaries handles GET /summaries.
func (h *Handler) ListSummaries(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListSummaries(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list summaries failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list summaries")
		return
	}
	response.OK(c, list)
}
