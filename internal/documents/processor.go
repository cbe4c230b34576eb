package documents

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/pkg/storage"
)

// Processor runs document extraction jobs: download, extract text, chunk,
// persist.
type Processor struct {
	repo    *Repository
	s3      *storage.S3
	faults  *faults.Service
	tempDir string
	logger  *zap.Logger
}

// NewProcessor creates a document processor.
func NewProcessor(repo *Repository, s3 *storage.S3, faultSvc *faults.Service, tempDir string, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Processor{repo: repo, s3: s3, faults: faultSvc, tempDir: tempDir, logger: logger}
}

// Process extracts and chunks one stored document. The document row is marked
// completed or failed; the returned error reflects the failure for retry
// decisions.
func (p *Processor) Process(ctx context.Context, documentID uuid.UUID, storageKey string) error {
	doc, err := p.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return faults.New(faults.TypeValidation, "document not found")
	}

	opCtx := faults.Context{
		UserID:    doc.UserID.String(),
		Operation: "document_process",
	}
	err = p.faults.ExecuteWithProgress(ctx, documentID.String(), opCtx, func(ctx context.Context, update faults.ProgressFunc) error {
		update("download", 10, "fetching document")
		localPath, err := p.download(ctx, storageKey)
		if err != nil {
			return err
		}
		defer func() { _ = os.Remove(localPath) }()

		update("extraction", 40, "extracting text")
		text, err := Extract(localPath)
		if err != nil {
			return err
		}
		if len(text) == 0 {
			return faults.New(faults.TypeFile, "document produced no text")
		}

		update("chunking", 70, "splitting into chunks")
		chunks := ChunkText(text, DefaultChunkSize, DefaultChunkOverlap)

		update("storage", 90, fmt.Sprintf("saving %d chunks", len(chunks)))
		if err := p.repo.ReplaceChunks(ctx, documentID, chunks); err != nil {
			return faults.Wrap(err, faults.TypeDatabase, "save chunks")
		}
		if err := p.repo.MarkExtracted(ctx, documentID, len(text), true); err != nil {
			return faults.Wrap(err, faults.TypeDatabase, "mark extracted")
		}
		p.logger.Info("document processed",
			zap.String("document_id", documentID.String()),
			zap.Int("content_length", len(text)),
			zap.Int("chunks", len(chunks)),
		)
		return nil
	})
	if err != nil {
		if markErr := p.repo.MarkFailed(ctx, documentID); markErr != nil {
			p.logger.Error("mark document failed errored", zap.Error(markErr), zap.String("document_id", documentID.String()))
		}
		return err
	}
	return nil
}

// download stages the stored object into a temp file. Caller removes it.
func (p *Processor) download(ctx context.Context, storageKey string) (string, error) {
	body, _, err := p.s3.GetObjectStream(ctx, p.s3.VideoBucket(), storageKey)
	if err != nil {
		return "", faults.Wrap(err, faults.TypeStorage, "fetch document object")
	}
	defer body.Close()

	tmp, err := os.CreateTemp(p.tempDir, "doc_*"+filepath.Ext(storageKey))
	if err != nil {
		return "", faults.Wrap(err, faults.TypeFile, "create temp file")
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", faults.Wrap(err, faults.TypeFile, "stage document")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", faults.Wrap(err, faults.TypeFile, "close temp file")
	}
	return tmp.Name(), nil
}
