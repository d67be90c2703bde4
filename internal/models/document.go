package models

import "time"

// ExtractionStatus tracks the extraction lifecycle of a document.
type ExtractionStatus string

const (
	ExtractionPending  ExtractionStatus = "pending"
	ExtractionComplete ExtractionStatus = "complete"
	ExtractionFailed   ExtractionStatus = "failed"
)

// RawDocumentRef points at the original artifact in blob storage.
type RawDocumentRef struct {
	Container   string `json:"container"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ExtractionMeta records how and when a document's fields were extracted.
type ExtractionMeta struct {
	Status           ExtractionStatus `json:"status"`
	AgentID          string           `json:"agent_id,omitempty"`
	Confidence       float64          `json:"confidence"`
	ValidationPassed bool             `json:"validation_passed"`
	ErrorType        string           `json:"error_type,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	RequestedAt      time.Time        `json:"requested_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// IngestionMeta links a document back to the job that produced it.
type IngestionMeta struct {
	JobID       string    `json:"job_id"`
	SourceID    string    `json:"source_id"`
	ReceivedAt  time.Time `json:"received_at"`
	ProcessedAt time.Time `json:"processed_at"`
}

// DocumentIndex is the generic, source-agnostic persisted unit.
//
// ExtractedFields and LinkageFields are opaque to the engine: they are copied
// verbatim from source data (or an agent result) and never inspected by field
// name. Domain semantics belong to downstream consumers.
type DocumentIndex struct {
	DocumentID      string         `json:"document_id"`
	RawDocument     RawDocumentRef `json:"raw_document"`
	Extraction      ExtractionMeta `json:"extraction"`
	Ingestion       IngestionMeta  `json:"ingestion"`
	ExtractedFields map[string]any `json:"extracted_fields"`
	LinkageFields   map[string]any `json:"linkage_fields"`
}
