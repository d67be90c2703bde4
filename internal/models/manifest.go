package models

import (
	"errors"
	"fmt"
	"time"
)

// ManifestFile is one file entry inside a manifest document.
type ManifestFile struct {
	Path     string `json:"path"`
	Role     string `json:"role"`
	MimeType string `json:"mime_type"`
}

// ManifestDocument describes one logical document inside a ZIP batch.
type ManifestDocument struct {
	DocumentID string         `json:"document_id"`
	Files      []ManifestFile `json:"files"`
	Attributes map[string]any `json:"attributes"`
}

// ZipManifest is the structured descriptor inside a ZIP batch. It is the sole
// source of truth for the batch: no filename sniffing.
type ZipManifest struct {
	ManifestVersion string             `json:"manifest_version"`
	SourceID        string             `json:"source_id"`
	CreatedAt       time.Time          `json:"created_at"`
	Linkage         map[string]any     `json:"linkage"`
	Documents       []ManifestDocument `json:"documents"`
	Payload         map[string]any     `json:"payload"`
}

// Validate checks the generic manifest envelope.
func (m *ZipManifest) Validate() error {
	if m.ManifestVersion == "" {
		return errors.New("manifest_version is required")
	}
	if m.SourceID == "" {
		return errors.New("source_id is required")
	}
	if len(m.Documents) == 0 {
		return errors.New("manifest contains no documents")
	}
	seen := make(map[string]bool, len(m.Documents))
	for i, doc := range m.Documents {
		if doc.DocumentID == "" {
			return fmt.Errorf("documents[%d]: document_id is required", i)
		}
		if seen[doc.DocumentID] {
			return fmt.Errorf("documents[%d]: duplicate document_id %q", i, doc.DocumentID)
		}
		seen[doc.DocumentID] = true
		for j, f := range doc.Files {
			if f.Path == "" {
				return fmt.Errorf("documents[%d].files[%d]: path is required", i, j)
			}
			if f.Role == "" {
				return fmt.Errorf("documents[%d].files[%d]: role is required", i, j)
			}
		}
	}
	return nil
}
