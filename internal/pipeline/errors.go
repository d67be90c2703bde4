package pipeline

import (
	"errors"
	"fmt"

	"github.com/agritrace/collection-model/internal/models"
)

// Sentinel errors for pipeline operations. Use errors.Is() in calling code.
var (
	// ErrProcessorNotFound indicates an unknown processor_type. This is a
	// configuration error and is never retried.
	ErrProcessorNotFound = errors.New("processor not found")

	// ErrManifestInvalid indicates a missing or malformed ZIP manifest.
	ErrManifestInvalid = errors.New("manifest validation failed")
)

// Error attaches a failure class to an underlying error. The worker reads
// the class to decide retry vs terminal; nothing else inspects it.
type Error struct {
	Kind models.ErrorType
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error. The format supports %w.
func Errorf(kind models.ErrorType, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Classify extracts the failure class from err, defaulting to unknown
// (treated as retryable, the conservative choice).
func Classify(err error) models.ErrorType {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return models.ErrorTypeUnknown
}

// BatchError names the document (and file, when relevant) that sank an
// atomic ZIP batch. Zero documents are persisted when this is returned;
// the raw archive remains in the raw container for manual retry.
type BatchError struct {
	DocumentID string
	File       string
	Err        error
}

func (e *BatchError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("batch failed at document %q file %q: %v", e.DocumentID, e.File, e.Err)
	}
	return fmt.Sprintf("batch failed at document %q: %v", e.DocumentID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
