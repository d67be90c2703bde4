package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agritrace/collection-model/internal/models"
	"github.com/agritrace/collection-model/internal/sourceconfig"
)

// Result summarizes one Process call.
type Result struct {
	Success bool
	// AwaitingExtraction is set on the JSON agent path: the document is
	// stored pending and completion arrives later via the correlator.
	AwaitingExtraction bool
	DocumentIDs        []string
	Summary            map[string]any
}

// ContentProcessor turns one ingestion job into persisted documents.
//
// Implementations must be idempotent with respect to the job id: document
// ids are deterministic and the repository upserts, so re-running a job
// after a crash never duplicates documents.
type ContentProcessor interface {
	Process(ctx context.Context, job models.IngestionJob, cfg sourceconfig.SourceConfig) (Result, error)
}

// singleDocID is the local document id for single-document JSON payloads.
const singleDocID = "doc"

// DocumentID builds the deterministic composite document id
// {source_id}/{linkage_value}/{local_doc_id}.
func DocumentID(sourceID, linkValue, localID string) string {
	return sourceID + "/" + linkValue + "/" + localID
}

// LinkageValue reads the config-designated link field out of a linkage map.
// A missing value is a data problem, not a transient fault.
func LinkageValue(linkage map[string]any, linkField string) (string, error) {
	v, ok := linkage[linkField]
	if !ok || v == nil {
		return "", Errorf(models.ErrorTypeValidation, "link field %q missing from linkage data", linkField)
	}
	s := fmt.Sprint(v)
	if s == "" {
		return "", Errorf(models.ErrorTypeValidation, "link field %q is empty", linkField)
	}
	return s, nil
}

// PublishSuccess emits the configured on_success event, if any. The payload
// carries the configured field list resolved against the first document's
// extracted and linkage fields, plus framework-guaranteed document_count
// and document_ids.
func PublishSuccess(ctx context.Context, deps Dependencies, cfg sourceconfig.SourceConfig, docs []models.DocumentIndex) error {
	ev := cfg.Events.OnSuccess
	if ev == nil {
		return nil
	}

	payload := map[string]any{
		"source_id":      cfg.SourceID,
		"document_count": len(docs),
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocumentID
	}
	payload["document_ids"] = ids

	if len(docs) > 0 {
		first := docs[0]
		for _, field := range ev.PayloadFields {
			if v, ok := first.ExtractedFields[field]; ok {
				payload[field] = v
			} else if v, ok := first.LinkageFields[field]; ok {
				payload[field] = v
			}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Errorf(models.ErrorTypeUnknown, "marshal success event: %w", err)
	}
	if err := deps.Bus.Publish(ctx, ev.Topic, data); err != nil {
		return Errorf(models.ErrorTypeStorage, "publish success event: %w", err)
	}
	deps.logger().Info("success event published", "topic", ev.Topic, "source_id", cfg.SourceID, "documents", len(docs))
	return nil
}

// remapLinkage renames linkage keys through the configured field mappings.
// Unmapped keys pass through verbatim.
func remapLinkage(linkage map[string]any, mappings map[string]string) map[string]any {
	out := make(map[string]any, len(linkage))
	for k, v := range linkage {
		if mapped, ok := mappings[k]; ok {
			out[mapped] = v
		} else {
			out[k] = v
		}
	}
	return out
}
