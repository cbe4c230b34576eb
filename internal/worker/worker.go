package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/documents"
	"github.com/neurolearn/backend/internal/faults"
	"github.com/neurolearn/backend/internal/pipeline"
	"github.com/neurolearn/backend/pkg/queue"
)

// Processor consumes processing jobs: video pipeline runs and document
// extraction.
type Processor struct {
	videos    *pipeline.VideoPipeline
	documents *documents.Processor
	queue     *queue.Queue
	logger    *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(videos *pipeline.VideoPipeline, docs *documents.Processor, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{videos: videos, documents: docs, queue: q, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeVideoProcess:
		var payload queue.VideoProcessPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.videos.Process(ctx, payload.VideoID, pipeline.Options{ExtractFrames: true})

	case queue.JobTypeDocumentProcess:
		var payload queue.DocumentProcessPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.documents.Process(ctx, payload.DocumentID, payload.StorageKey)

	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// retryable reports whether a failed job is worth re-enqueueing. Typed faults
// carry their own retry semantics; anything untyped falls back to the
// classifier.
func retryable(err error) bool {
	var f *faults.Fault
	if errors.As(err, &f) {
		return faults.IsRetryable(f.Type)
	}
	return faults.IsRetryable(faults.Classify(err))
}

// Run starts the worker loop: dequeue, process, retry on retryable error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, key, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if !retryable(err) {
				p.logger.Warn("job not retryable, dropping", zap.String("job_id", job.ID))
				continue
			}
			if reErr := p.queue.Retry(ctx, job, key); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
