// Package agent is an embedded reference extraction agent for development
// setups without an external agent fleet. It consumes extraction requests
// from the bus, asks an LLM to pull the requested fields out of the payload,
// and publishes the result back. Production deployments replace it with
// whatever speaks the same three topics.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agritrace/collection-model/internal/bus"
	"github.com/agritrace/collection-model/internal/models"
)

const extractSystemPrompt = `You are a data extraction assistant. Extract the requested fields from the provided document payload.
Respond with a single JSON object mapping each requested field name to its extracted value.
Use null for fields that cannot be determined from the payload. Respond with JSON only, no prose.`

// Agent consumes one agent id's request topic.
type Agent struct {
	id     string
	model  *Model
	bus    bus.Bus
	logger *slog.Logger
}

// New creates an agent for the given id.
func New(id string, model *Model, b bus.Bus, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{id: id, model: model, bus: b, logger: logger}
}

// Start subscribes to the agent's request topic.
func (a *Agent) Start() error {
	if err := a.bus.Subscribe(models.RequestTopic(a.id), a.handleRequest); err != nil {
		return fmt.Errorf("subscribe %s: %w", models.RequestTopic(a.id), err)
	}
	a.logger.Info("reference agent started", "agent_id", a.id, "model", a.model.Model())
	return nil
}

func (a *Agent) handleRequest(ctx context.Context, payload []byte) error {
	var req models.AgentRequestEvent
	if err := json.Unmarshal(payload, &req); err != nil {
		a.logger.Error("malformed agent request dropped", "error", err)
		return nil
	}

	fields, err := a.extract(ctx, req)
	if err != nil {
		a.logger.Warn("extraction failed", "request_id", req.RequestID, "error", err)
		return a.publishFailed(ctx, req, err)
	}
	return a.publishCompleted(ctx, req, fields)
}

// extract prompts the model and parses its JSON answer.
func (a *Agent) extract(ctx context.Context, req models.AgentRequestEvent) (map[string]any, error) {
	doc, err := json.MarshalIndent(req.InputData["payload"], "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var wanted []string
	if raw, ok := req.InputData["extract_fields"].([]any); ok {
		for _, f := range raw {
			wanted = append(wanted, fmt.Sprint(f))
		}
	}

	userPrompt := fmt.Sprintf(`Document payload:
%s

Fields to extract: %s

Extracted fields as JSON:`, doc, strings.Join(wanted, ", "))

	answer, err := a.model.GenerateWithSystem(ctx, extractSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	fields, err := parseFields(answer)
	if err != nil {
		return nil, fmt.Errorf("parse model answer: %w", err)
	}
	return fields, nil
}

// parseFields pulls the first JSON object out of a model answer. Models wrap
// JSON in code fences often enough that a plain Unmarshal is not enough.
func parseFields(answer string) (map[string]any, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in answer")
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(answer[start:end+1]), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (a *Agent) publishCompleted(ctx context.Context, req models.AgentRequestEvent, fields map[string]any) error {
	ev := models.AgentCompletedEvent{
		RequestID: req.RequestID,
		AgentID:   a.id,
		Linkage:   req.Linkage,
		Result: models.AgentResult{
			ExtractedFields: fields,
		},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal completed event: %w", err)
	}
	if err := a.bus.Publish(ctx, models.CompletedTopic(a.id), data); err != nil {
		return fmt.Errorf("publish completed event: %w", err)
	}
	a.logger.Info("extraction result published", "request_id", req.RequestID, "fields", len(fields))
	return nil
}

func (a *Agent) publishFailed(ctx context.Context, req models.AgentRequestEvent, cause error) error {
	ev := models.AgentFailedEvent{
		RequestID:    req.RequestID,
		AgentID:      a.id,
		Linkage:      req.Linkage,
		ErrorType:    "extraction",
		ErrorMessage: cause.Error(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal failed event: %w", err)
	}
	if err := a.bus.Publish(ctx, models.FailedTopic(a.id), data); err != nil {
		return fmt.Errorf("publish failed event: %w", err)
	}
	return nil
}
