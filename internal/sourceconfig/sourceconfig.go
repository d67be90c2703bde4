// Package sourceconfig resolves per-source ingestion configuration.
//
// Every behavioral decision in the engine is driven by these configs: which
// processor runs, where blobs and documents land, whether extraction defers
// to an agent, and which events fire on success. No per-source code exists
// anywhere else.
package sourceconfig

import (
	"errors"
	"fmt"
)

// Default resource ceilings for ZIP batches.
const (
	DefaultMaxZipBytes  = 500 << 20 // 500 MiB
	DefaultMaxDocuments = 10000
)

// StorageConfig names blob containers and the document collection.
type StorageConfig struct {
	// InboxContainer holds incoming artifacts referenced by job blob paths.
	// Falls back to RawContainer when empty.
	InboxContainer  string `yaml:"inbox_container"`
	RawContainer    string `yaml:"raw_container"`
	FileContainer   string `yaml:"file_container"`
	FilePathPattern string `yaml:"file_path_pattern"`
	IndexCollection string `yaml:"index_collection"`
}

// TransformationConfig drives field extraction and linkage construction.
//
// FieldMappings maps source field names to linkage field names: on the JSON
// path it selects which payload fields (dotted paths) become linkage fields;
// on the ZIP path it renames manifest linkage keys. LinkField names a key in
// the resulting linkage map whose value becomes part of the document id.
type TransformationConfig struct {
	LinkField         string            `yaml:"link_field"`
	FieldMappings     map[string]string `yaml:"field_mappings"`
	ExtractFields     []string          `yaml:"extract_fields"`
	AIAgentID         string            `yaml:"ai_agent_id"`
	ExtractionEnabled bool              `yaml:"extraction_enabled"`
}

// SuccessEvent configures the event published after successful processing.
type SuccessEvent struct {
	Topic         string   `yaml:"topic"`
	PayloadFields []string `yaml:"payload_fields"`
}

// EventsConfig holds downstream event wiring.
type EventsConfig struct {
	OnSuccess *SuccessEvent `yaml:"on_success"`
}

// LimitsConfig bounds ZIP batch resources.
type LimitsConfig struct {
	MaxZipBytes  int64 `yaml:"max_zip_bytes"`
	MaxDocuments int   `yaml:"max_documents"`
}

// SourceConfig is the full per-source configuration document.
type SourceConfig struct {
	SourceID       string               `yaml:"source_id"`
	ProcessorType  string               `yaml:"processor_type"`
	Storage        StorageConfig        `yaml:"storage"`
	Transformation TransformationConfig `yaml:"transformation"`
	Events         EventsConfig         `yaml:"events"`
	Limits         LimitsConfig         `yaml:"limits"`
}

// Validate checks the fields every processor depends on.
func (c *SourceConfig) Validate() error {
	if c.SourceID == "" {
		return errors.New("source_id is required")
	}
	if c.ProcessorType == "" {
		return errors.New("processor_type is required")
	}
	if c.Storage.RawContainer == "" {
		return errors.New("storage.raw_container is required")
	}
	if c.Storage.IndexCollection == "" {
		return errors.New("storage.index_collection is required")
	}
	if c.Transformation.LinkField == "" {
		return errors.New("transformation.link_field is required")
	}
	if c.Transformation.ExtractionEnabled && c.Transformation.AIAgentID == "" {
		return errors.New("transformation.ai_agent_id is required when extraction is enabled")
	}
	if c.Events.OnSuccess != nil && c.Events.OnSuccess.Topic == "" {
		return errors.New("events.on_success.topic is required when on_success is set")
	}
	return nil
}

// Inbox returns the container incoming job blobs are read from.
func (c *SourceConfig) Inbox() string {
	if c.Storage.InboxContainer != "" {
		return c.Storage.InboxContainer
	}
	return c.Storage.RawContainer
}

// MaxZipBytes returns the configured ZIP size ceiling or the default.
func (c *SourceConfig) MaxZipBytes() int64 {
	if c.Limits.MaxZipBytes > 0 {
		return c.Limits.MaxZipBytes
	}
	return DefaultMaxZipBytes
}

// MaxDocuments returns the configured document-count ceiling or the default.
func (c *SourceConfig) MaxDocuments() int {
	if c.Limits.MaxDocuments > 0 {
		return c.Limits.MaxDocuments
	}
	return DefaultMaxDocuments
}

// AgentExtraction reports whether this source defers extraction to an agent.
func (c *SourceConfig) AgentExtraction() bool {
	return c.Transformation.ExtractionEnabled && c.Transformation.AIAgentID != ""
}

// ErrSourceNotFound indicates no configuration exists for a source id.
var ErrSourceNotFound = errors.New("source config not found")

// NotFoundError wraps ErrSourceNotFound with the offending source id.
func NotFoundError(sourceID string) error {
	return fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID)
}
