package faults

import (
	"time"
)

// maxUpdatesPerOperation caps the per-operation update list; oldest entries
// are dropped first.
const maxUpdatesPerOperation = 50

// ProgressUpdate is one timestamped stage/percentage/message entry for an
// operation. Read-only once created.
type ProgressUpdate struct {
	OperationID string    `json:"operation_id"`
	Stage       string    `json:"stage"`
	Progress    float64   `json:"progress"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Context     Context   `json:"context,omitempty"`
}

// Publisher receives progress updates as they are recorded (e.g. a websocket
// hub or an NDJSON stream). Implementations must not block.
type Publisher interface {
	PublishProgress(update ProgressUpdate)
}

// clampProgress bounds a percentage to [0,100].
func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// UpdateProgress appends a clamped progress update for the operation and
// forwards it to the publisher when one is set.
func (s *Service) UpdateProgress(operationID, stage string, progress float64, message string, opCtx Context) ProgressUpdate {
	u := ProgressUpdate{
		OperationID: operationID,
		Stage:       stage,
		Progress:    clampProgress(progress),
		Message:     message,
		Timestamp:   time.Now(),
		Context:     opCtx,
	}

	s.mu.Lock()
	list := append(s.progress[operationID], u)
	if len(list) > maxUpdatesPerOperation {
		list = list[len(list)-maxUpdatesPerOperation:]
	}
	s.progress[operationID] = list
	pub := s.publisher
	s.mu.Unlock()

	if pub != nil {
		pub.PublishProgress(u)
	}
	return u
}

// Updates returns a copy of the recorded updates for an operation.
func (s *Service) Updates(operationID string) []ProgressUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.progress[operationID]
	out := make([]ProgressUpdate, len(list))
	copy(out, list)
	return out
}

// LatestUpdate returns the most recent update for an operation, if any.
func (s *Service) LatestUpdate(operationID string) (ProgressUpdate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.progress[operationID]
	if len(list) == 0 {
		return ProgressUpdate{}, false
	}
	return list[len(list)-1], true
}
