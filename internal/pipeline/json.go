package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/agritrace/collection-model/internal/models"
	"github.com/agritrace/collection-model/internal/sourceconfig"
)

// JSONProcessor handles single-document JSON payloads.
//
// When the source config enables agent extraction, the processor persists a
// pending document and publishes an extraction request; the correlator
// observes the result later. Otherwise it extracts the configured fields
// locally and completes synchronously. It never calls the agent directly.
type JSONProcessor struct {
	deps Dependencies
}

var _ ContentProcessor = (*JSONProcessor)(nil)

// NewJSONProcessor creates the processor.
func NewJSONProcessor(deps Dependencies) *JSONProcessor {
	return &JSONProcessor{deps: deps}
}

// Process runs the direct or agent path depending on source config.
func (p *JSONProcessor) Process(ctx context.Context, job models.IngestionJob, cfg sourceconfig.SourceConfig) (Result, error) {
	raw, err := p.deps.Blobs.Download(ctx, cfg.Inbox(), job.BlobPath)
	if err != nil {
		return Result{}, Errorf(models.ErrorTypeStorage, "download payload: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{}, Errorf(models.ErrorTypeExtraction, "parse payload: %w", err)
	}

	linkage := buildLinkage(payload, cfg.Transformation.FieldMappings)
	linkValue, err := LinkageValue(linkage, cfg.Transformation.LinkField)
	if err != nil {
		return Result{}, err
	}
	docID := DocumentID(cfg.SourceID, linkValue, singleDocID)

	hash := sha256.Sum256(raw)
	now := time.Now().UTC()
	doc := models.DocumentIndex{
		DocumentID: docID,
		RawDocument: models.RawDocumentRef{
			Container:   cfg.Inbox(),
			Path:        job.BlobPath,
			ContentHash: hex.EncodeToString(hash[:]),
			SizeBytes:   int64(len(raw)),
		},
		Ingestion: models.IngestionMeta{
			JobID:       job.JobID,
			SourceID:    cfg.SourceID,
			ReceivedAt:  job.ReceivedAt,
			ProcessedAt: now,
		},
		LinkageFields: linkage,
	}

	if cfg.AgentExtraction() {
		return p.processWithAgent(ctx, job, cfg, doc, payload)
	}
	return p.processDirect(ctx, cfg, doc, payload)
}

// processDirect extracts configured fields locally and completes the job.
func (p *JSONProcessor) processDirect(ctx context.Context, cfg sourceconfig.SourceConfig, doc models.DocumentIndex, payload map[string]any) (Result, error) {
	doc.ExtractedFields = extractFields(payload, cfg.Transformation.ExtractFields)
	doc.Extraction = models.ExtractionMeta{
		Status:           models.ExtractionComplete,
		Confidence:       1.0,
		ValidationPassed: true,
		RequestedAt:      doc.Ingestion.ProcessedAt,
		CompletedAt:      &doc.Ingestion.ProcessedAt,
	}

	if err := p.deps.Repo.SaveOne(ctx, cfg.Storage.IndexCollection, doc); err != nil {
		return Result{}, Errorf(models.ErrorTypeStorage, "save document: %w", err)
	}
	if err := PublishSuccess(ctx, p.deps, cfg, []models.DocumentIndex{doc}); err != nil {
		return Result{}, err
	}

	p.deps.logger().Info("document processed",
		"document_id", doc.DocumentID, "source_id", cfg.SourceID, "fields", len(doc.ExtractedFields))
	return Result{
		Success:     true,
		DocumentIDs: []string{doc.DocumentID},
		Summary:     map[string]any{"fields_extracted": len(doc.ExtractedFields)},
	}, nil
}

// processWithAgent persists the pending document, then publishes the
// extraction request. The document row must exist before the request event
// is published so an early completion always finds a row to update.
func (p *JSONProcessor) processWithAgent(ctx context.Context, job models.IngestionJob, cfg sourceconfig.SourceConfig, doc models.DocumentIndex, payload map[string]any) (Result, error) {
	agentID := cfg.Transformation.AIAgentID
	doc.ExtractedFields = map[string]any{}
	doc.Extraction = models.ExtractionMeta{
		Status:      models.ExtractionPending,
		AgentID:     agentID,
		RequestedAt: doc.Ingestion.ProcessedAt,
	}

	if err := p.deps.Repo.SaveOne(ctx, cfg.Storage.IndexCollection, doc); err != nil {
		return Result{}, Errorf(models.ErrorTypeStorage, "save pending document: %w", err)
	}

	req := models.AgentRequestEvent{
		RequestID: doc.DocumentID,
		AgentID:   agentID,
		Linkage:   doc.LinkageFields,
		InputData: map[string]any{
			"payload":        payload,
			"extract_fields": cfg.Transformation.ExtractFields,
		},
		Source: models.EventSource,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return Result{}, Errorf(models.ErrorTypeUnknown, "marshal agent request: %w", err)
	}
	if err := p.deps.Bus.Publish(ctx, models.RequestTopic(agentID), data); err != nil {
		return Result{}, Errorf(models.ErrorTypeStorage, "publish agent request: %w", err)
	}

	p.deps.logger().Info("extraction requested",
		"document_id", doc.DocumentID, "agent_id", agentID, "job_id", job.JobID)
	return Result{
		Success:            true,
		AwaitingExtraction: true,
		DocumentIDs:        []string{doc.DocumentID},
	}, nil
}

// buildLinkage pulls mapped payload fields into a linkage map. Keys of
// FieldMappings are dotted paths into the payload; values are the linkage
// field names downstream consumers see.
func buildLinkage(payload map[string]any, mappings map[string]string) map[string]any {
	linkage := make(map[string]any, len(mappings))
	for srcPath, name := range mappings {
		if v, ok := lookupPath(payload, srcPath); ok {
			linkage[name] = v
		}
	}
	return linkage
}

// extractFields resolves dotted paths against the payload, keyed by path.
// Missing paths are skipped; fields stay opaque to the engine.
func extractFields(payload map[string]any, paths []string) map[string]any {
	fields := make(map[string]any, len(paths))
	for _, path := range paths {
		if v, ok := lookupPath(payload, path); ok {
			fields[path] = v
		}
	}
	return fields
}

func lookupPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = data
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
