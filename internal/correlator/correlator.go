// Package correlator matches asynchronous agent extraction results back to
// their pending documents and jobs. The request id on every agent event is
// the document id, so correlation is a plain lookup with no side table.
package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agritrace/collection-model/internal/bus"
	"github.com/agritrace/collection-model/internal/models"
	"github.com/agritrace/collection-model/internal/pipeline"
	"github.com/agritrace/collection-model/internal/repository"
	"github.com/agritrace/collection-model/internal/sourceconfig"
)

// JobTracker closes out ingestion jobs on agent results. Implemented by
// worker.Manager so the retry decision stays in one place.
type JobTracker interface {
	CompleteJob(ctx context.Context, jobID string) error
	FailJob(ctx context.Context, jobID string, kind models.ErrorType, msg string) error
}

// Correlator consumes {agent}.completed and {agent}.failed topics and updates
// document and job state. Handlers are idempotent: the bus delivers
// at-least-once, so a result already applied is detected by the document's
// extraction status and dropped.
type Correlator struct {
	deps    pipeline.Dependencies
	configs sourceconfig.Provider
	jobs    JobTracker
	bus     bus.Bus
	logger  *slog.Logger
}

// New creates a correlator.
func New(deps pipeline.Dependencies, configs sourceconfig.Provider, jobs JobTracker, b bus.Bus, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{deps: deps, configs: configs, jobs: jobs, bus: b, logger: logger}
}

// Start subscribes to the result topics of every agent id found in source
// configuration. Call once at startup; subscriptions live until the bus
// closes.
func (c *Correlator) Start(agentIDs []string) error {
	for _, agentID := range agentIDs {
		if err := c.bus.Subscribe(models.CompletedTopic(agentID), c.HandleCompleted); err != nil {
			return fmt.Errorf("subscribe %s: %w", models.CompletedTopic(agentID), err)
		}
		if err := c.bus.Subscribe(models.FailedTopic(agentID), c.HandleFailed); err != nil {
			return fmt.Errorf("subscribe %s: %w", models.FailedTopic(agentID), err)
		}
		c.logger.Info("correlator subscribed", "agent_id", agentID)
	}
	return nil
}

// HandleCompleted applies a successful extraction result.
func (c *Correlator) HandleCompleted(ctx context.Context, payload []byte) error {
	var ev models.AgentCompletedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logger.Error("malformed completed event dropped", "error", err)
		return nil
	}

	doc, cfg, ok := c.resolve(ctx, ev.RequestID)
	if !ok {
		return nil
	}
	if doc.Extraction.Status != models.ExtractionPending {
		c.logger.Debug("duplicate agent result dropped",
			"request_id", ev.RequestID, "status", doc.Extraction.Status)
		return nil
	}

	now := time.Now().UTC()
	doc.ExtractedFields = ev.Result.ExtractedFields
	if doc.ExtractedFields == nil {
		doc.ExtractedFields = map[string]any{}
	}
	doc.Extraction.Status = models.ExtractionComplete
	// The wire contract carries no confidence score, so completed results
	// get 1.0 like the direct path; validation_passed carries quality.
	doc.Extraction.Confidence = 1.0
	doc.Extraction.ValidationPassed = len(ev.Result.ValidationErrors) == 0
	doc.Extraction.CompletedAt = &now
	doc.Extraction.ErrorType = ""
	doc.Extraction.ErrorMessage = ""

	if err := c.deps.Repo.SaveOne(ctx, cfg.Storage.IndexCollection, *doc); err != nil {
		return fmt.Errorf("save completed document %s: %w", ev.RequestID, err)
	}
	if err := pipeline.PublishSuccess(ctx, c.deps, cfg, []models.DocumentIndex{*doc}); err != nil {
		c.logger.Error("success event publish failed", "request_id", ev.RequestID, "error", err)
	}
	if err := c.jobs.CompleteJob(ctx, doc.Ingestion.JobID); err != nil {
		c.logger.Error("failed to complete job", "job_id", doc.Ingestion.JobID, "error", err)
	}

	c.logger.Info("extraction completed",
		"request_id", ev.RequestID, "agent_id", ev.AgentID,
		"fields", len(doc.ExtractedFields), "validation_passed", doc.Extraction.ValidationPassed)
	return nil
}

// HandleFailed applies a failed extraction result. No success event is
// published; the job re-enters the bounded-retry path as an extraction error.
func (c *Correlator) HandleFailed(ctx context.Context, payload []byte) error {
	var ev models.AgentFailedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logger.Error("malformed failed event dropped", "error", err)
		return nil
	}

	doc, cfg, ok := c.resolve(ctx, ev.RequestID)
	if !ok {
		return nil
	}
	if doc.Extraction.Status != models.ExtractionPending {
		c.logger.Debug("duplicate agent failure dropped",
			"request_id", ev.RequestID, "status", doc.Extraction.Status)
		return nil
	}

	now := time.Now().UTC()
	doc.Extraction.Status = models.ExtractionFailed
	doc.Extraction.ErrorType = ev.ErrorType
	doc.Extraction.ErrorMessage = ev.ErrorMessage
	doc.Extraction.CompletedAt = &now

	if err := c.deps.Repo.SaveOne(ctx, cfg.Storage.IndexCollection, *doc); err != nil {
		return fmt.Errorf("save failed document %s: %w", ev.RequestID, err)
	}

	msg := fmt.Sprintf("agent %s: %s", ev.AgentID, ev.ErrorMessage)
	if err := c.jobs.FailJob(ctx, doc.Ingestion.JobID, models.ErrorTypeExtraction, msg); err != nil {
		c.logger.Error("failed to fail job", "job_id", doc.Ingestion.JobID, "error", err)
	}

	c.logger.Warn("extraction failed",
		"request_id", ev.RequestID, "agent_id", ev.AgentID, "error_type", ev.ErrorType, "error", ev.ErrorMessage)
	return nil
}

// resolve looks up the document and source config for a request id. Unknown
// request ids are logged and dropped: an orphan result event must never crash
// or retry forever.
func (c *Correlator) resolve(ctx context.Context, requestID string) (*models.DocumentIndex, sourceconfig.SourceConfig, bool) {
	sourceID, _, found := strings.Cut(requestID, "/")
	if !found || sourceID == "" {
		c.logger.Warn("result with malformed request_id dropped", "request_id", requestID)
		return nil, sourceconfig.SourceConfig{}, false
	}

	cfg, err := c.configs.GetConfig(ctx, sourceID)
	if err != nil {
		c.logger.Warn("result for unknown source dropped", "request_id", requestID, "error", err)
		return nil, sourceconfig.SourceConfig{}, false
	}

	doc, err := c.deps.Repo.GetByID(ctx, cfg.Storage.IndexCollection, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		c.logger.Warn("result for unknown document dropped", "request_id", requestID)
		return nil, sourceconfig.SourceConfig{}, false
	}
	if err != nil {
		c.logger.Error("document lookup failed", "request_id", requestID, "error", err)
		return nil, sourceconfig.SourceConfig{}, false
	}
	return doc, cfg, true
}
