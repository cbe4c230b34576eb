package faults

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service records classified errors and progress updates for in-flight
// operations. It is an explicitly constructed dependency, wired in main and
// passed to pipeline components; state lives for the process lifetime and is
// swept by Cleanup.
type Service struct {
	logger    *zap.Logger
	mu        sync.RWMutex
	errors    map[string]*ProcessingError
	progress  map[string][]ProgressUpdate
	publisher Publisher
}

// NewService creates a faults service.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:   logger,
		errors:   make(map[string]*ProcessingError),
		progress: make(map[string][]ProgressUpdate),
	}
}

// SetPublisher sets the optional progress publisher (e.g. websocket hub).
func (s *Service) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// RecordOpts carries optional fields for Record.
type RecordOpts struct {
	Severity   Severity
	Details    string
	Context    Context
	Retryable  *bool
	RetryCount int
	MaxRetries int
}

// Record stores and logs a classified error, returning the stored entry.
func (s *Service) Record(t Type, message string, opts RecordOpts) *ProcessingError {
	sev := opts.Severity
	if sev == "" {
		sev = DefaultSeverity(t)
	}
	retryable := IsRetryable(t)
	if opts.Retryable != nil {
		retryable = *opts.Retryable
	}
	pe := &ProcessingError{
		ID:         uuid.New().String(),
		Type:       t,
		Severity:   sev,
		Message:    message,
		Details:    opts.Details,
		Timestamp:  time.Now(),
		Context:    opts.Context,
		Retryable:  retryable,
		RetryCount: opts.RetryCount,
		MaxRetries: opts.MaxRetries,
	}

	s.mu.Lock()
	s.errors[pe.ID] = pe
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("error_id", pe.ID),
		zap.String("fault_type", string(t)),
		zap.String("severity", string(sev)),
		zap.String("operation", opts.Context.Operation),
	}
	switch sev {
	case SeverityCritical, SeverityHigh:
		s.logger.Error(message, fields...)
	case SeverityMedium:
		s.logger.Warn(message, fields...)
	default:
		s.logger.Info(message, fields...)
	}
	return pe
}

// RecordError classifies err and records it.
func (s *Service) RecordError(err error, opCtx Context) *ProcessingError {
	return s.Record(Classify(err), err.Error(), RecordOpts{Context: opCtx})
}

// Error returns a stored error by id.
func (s *Service) Error(id string) (*ProcessingError, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pe, ok := s.errors[id]
	return pe, ok
}

// ProgressFunc reports a stage/percentage/message update for the wrapped
// operation.
type ProgressFunc func(stage string, progress float64, message string)

// ExecuteWithProgress wraps fn with start, completion and error updates.
// The original error is always surfaced to the caller after recording.
func (s *Service) ExecuteWithProgress(ctx context.Context, operationID string, opCtx Context, fn func(ctx context.Context, update ProgressFunc) error) error {
	update := func(stage string, progress float64, message string) {
		s.UpdateProgress(operationID, stage, progress, message, opCtx)
	}

	update("started", 0, "operation started")
	if err := fn(ctx, update); err != nil {
		pe := s.RecordError(err, opCtx)
		s.UpdateProgress(operationID, "error", 0, err.Error(), opCtx)
		s.logger.Error("operation failed",
			zap.String("operation_id", operationID),
			zap.String("error_id", pe.ID),
			zap.Error(err),
		)
		return err
	}
	update("completed", 100, "operation completed")
	return nil
}

// Cleanup purges errors and progress lists whose newest entry is older than
// maxAge. Safe to call repeatedly; a second sweep with nothing to purge is a
// no-op.
func (s *Service) Cleanup(maxAge time.Duration) (removedErrors, removedOperations int) {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pe := range s.errors {
		if !pe.Timestamp.After(cutoff) {
			delete(s.errors, id)
			removedErrors++
		}
	}
	for op, list := range s.progress {
		if len(list) == 0 || !list[len(list)-1].Timestamp.After(cutoff) {
			delete(s.progress, op)
			removedOperations++
		}
	}
	return removedErrors, removedOperations
}

// Counts returns stored error and operation counts (for diagnostics).
func (s *Service) Counts() (errors, operations int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.errors), len(s.progress)
}
