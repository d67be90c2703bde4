// Package models defines data structures for the collection-model ingestion engine.
package models

import "time"

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusExtracting JobStatus = "extracting"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ErrorType classifies a job failure. The worker decides retry vs terminal
// based solely on this classification.
type ErrorType string

const (
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// MaxRetries caps retryable failures per job.
const MaxRetries = 3

// IngestionJob is one unit of work pulled off the queue. Only the worker
// mutates it; terminal states are completed and failed.
type IngestionJob struct {
	JobID        string     `json:"job_id"`
	SourceID     string     `json:"source_id"`
	BlobPath     string     `json:"blob_path"`
	ContentType  string     `json:"content_type"`
	Status       JobStatus  `json:"status"`
	RetryCount   int        `json:"retry_count"`
	ErrorType    ErrorType  `json:"error_type,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ReceivedAt   time.Time  `json:"received_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *IngestionJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Retryable reports whether a failure of the given type may be retried.
// Config and validation errors are permanent: retrying cannot fix a bad
// source config or a malformed archive.
func Retryable(t ErrorType) bool {
	switch t {
	case ErrorTypeConfig, ErrorTypeValidation:
		return false
	default:
		return true
	}
}
