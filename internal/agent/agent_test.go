package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/agritrace/collection-model/internal/bus"
	"github.com/agritrace/collection-model/internal/models"
)

// fakeLLM returns a canned answer.
type fakeLLM struct {
	answer string
	err    error
}

func (f fakeLLM) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.answer}},
	}, nil
}

func (f fakeLLM) Call(ctx context.Context, _ string, _ ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		want    map[string]any
		wantErr bool
	}{
		{
			name:   "plain object",
			answer: `{"crop": "cocoa"}`,
			want:   map[string]any{"crop": "cocoa"},
		},
		{
			name:   "fenced object",
			answer: "Here you go:\n```json\n{\"crop\": \"cocoa\", \"yield_kg\": 120.5}\n```\nDone.",
			want:   map[string]any{"crop": "cocoa", "yield_kg": 120.5},
		},
		{
			name:    "no json",
			answer:  "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "broken json",
			answer:  `{"crop": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFields(tt.answer)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func requestEvent() models.AgentRequestEvent {
	return models.AgentRequestEvent{
		RequestID: "farm-registry/FARM-001/doc",
		AgentID:   "survey-extractor",
		Linkage:   map[string]any{"farm_id": "FARM-001"},
		InputData: map[string]any{
			"payload":        map[string]any{"farm": map[string]any{"name": "Finca"}},
			"extract_fields": []any{"crop", "yield_kg"},
		},
		Source: models.EventSource,
	}
}

func publishRequest(t *testing.T, b *bus.MemoryBus) {
	t.Helper()
	data, err := json.Marshal(requestEvent())
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), models.RequestTopic("survey-extractor"), data))
}

func TestAgentCompletes(t *testing.T) {
	eventBus := bus.NewMemoryBus()
	model := &Model{llm: fakeLLM{answer: `{"crop": "cocoa"}`}, modelName: "fake"}
	a := New("survey-extractor", model, eventBus, nil)
	require.NoError(t, a.Start())

	publishRequest(t, eventBus)

	msgs := eventBus.Messages(models.CompletedTopic("survey-extractor"))
	require.Len(t, msgs, 1)
	var ev models.AgentCompletedEvent
	require.NoError(t, json.Unmarshal(msgs[0], &ev))
	assert.Equal(t, "farm-registry/FARM-001/doc", ev.RequestID)
	assert.Equal(t, "survey-extractor", ev.AgentID)
	assert.Equal(t, "FARM-001", ev.Linkage["farm_id"], "linkage echoed back verbatim")
	assert.Equal(t, "cocoa", ev.Result.ExtractedFields["crop"])

	assert.Empty(t, eventBus.Messages(models.FailedTopic("survey-extractor")))
}

func TestAgentReportsFailure(t *testing.T) {
	eventBus := bus.NewMemoryBus()
	model := &Model{llm: fakeLLM{err: errors.New("model unavailable")}, modelName: "fake"}
	a := New("survey-extractor", model, eventBus, nil)
	require.NoError(t, a.Start())

	publishRequest(t, eventBus)

	msgs := eventBus.Messages(models.FailedTopic("survey-extractor"))
	require.Len(t, msgs, 1)
	var ev models.AgentFailedEvent
	require.NoError(t, json.Unmarshal(msgs[0], &ev))
	assert.Equal(t, "farm-registry/FARM-001/doc", ev.RequestID)
	assert.Equal(t, "extraction", ev.ErrorType)
	assert.Contains(t, ev.ErrorMessage, "model unavailable")

	assert.Empty(t, eventBus.Messages(models.CompletedTopic("survey-extractor")))
}
