// Package faults provides error classification, bounded retries and
// progress bookkeeping shared by the processing pipelines.
package faults

import (
	"fmt"
	"time"
)

// Type is the fault taxonomy. Classification always returns one of these.
type Type string

const (
	TypeValidation     Type = "validation"
	TypeProcessing     Type = "processing"
	TypeStorage        Type = "storage"
	TypeDatabase       Type = "database"
	TypeExternalAPI    Type = "external_api"
	TypeFile           Type = "file"
	TypeNetwork        Type = "network"
	TypeAuthentication Type = "authentication"
	TypeRateLimit      Type = "rate_limit"
	TypeCritical       Type = "critical"
	TypeUnknown        Type = "unknown"
)

// Severity is used for logging verbosity only, never for control flow.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityByType is the fixed type -> default severity table.
var severityByType = map[Type]Severity{
	TypeValidation:     SeverityLow,
	TypeRateLimit:      SeverityLow,
	TypeProcessing:     SeverityMedium,
	TypeFile:           SeverityMedium,
	TypeNetwork:        SeverityMedium,
	TypeAuthentication: SeverityHigh,
	TypeStorage:        SeverityHigh,
	TypeExternalAPI:    SeverityHigh,
	TypeDatabase:       SeverityCritical,
	TypeCritical:       SeverityCritical,
}

// DefaultSeverity returns the default severity for a fault type.
func DefaultSeverity(t Type) Severity {
	if s, ok := severityByType[t]; ok {
		return s
	}
	return SeverityMedium
}

// retryableTypes is the fixed allow-list of retryable fault kinds.
var retryableTypes = map[Type]bool{
	TypeNetwork:     true,
	TypeExternalAPI: true,
	TypeStorage:     true,
	TypeRateLimit:   true,
}

// IsRetryable reports whether a fault type is retryable by default.
func IsRetryable(t Type) bool { return retryableTypes[t] }

// Fault is a typed error variant. Code that controls the failure site should
// return a *Fault so classification does not fall back to message heuristics.
type Fault struct {
	Type    Type
	Message string
	Err     error
}

// Error implements error.
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

// Unwrap returns the wrapped cause.
func (f *Fault) Unwrap() error { return f.Err }

// New creates a typed fault.
func New(t Type, msg string) *Fault {
	return &Fault{Type: t, Message: msg}
}

// Newf creates a typed fault with a formatted message.
func Newf(t Type, format string, args ...interface{}) *Fault {
	return &Fault{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error as a typed fault.
func Wrap(err error, t Type, msg string) *Fault {
	return &Fault{Type: t, Message: msg, Err: err}
}

// Context identifies what an error or progress update belongs to.
type Context struct {
	UserID    string `json:"user_id,omitempty"`
	VideoID   string `json:"video_id,omitempty"`
	Operation string `json:"operation,omitempty"`
	Stage     string `json:"stage,omitempty"`
}

// ProcessingError is a recorded classified error. Immutable once stored;
// purged by Service.Cleanup.
type ProcessingError struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Context    Context   `json:"context"`
	Retryable  bool      `json:"retryable"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
}
