package models

// EventSource identifies this system on outgoing agent requests.
const EventSource = "collection-model"

// RequestTopic returns the topic an agent consumes extraction requests from.
func RequestTopic(agentID string) string { return agentID + ".requests" }

// CompletedTopic returns the topic an agent publishes successful results to.
func CompletedTopic(agentID string) string { return agentID + ".completed" }

// FailedTopic returns the topic an agent publishes failures to.
func FailedTopic(agentID string) string { return agentID + ".failed" }

// AgentRequestEvent asks an external extraction agent to process a document.
// RequestID always equals the owning document id, so results correlate back
// without a side table. Linkage is echoed back verbatim by the agent.
type AgentRequestEvent struct {
	RequestID string         `json:"request_id"`
	AgentID   string         `json:"agent_id"`
	Linkage   map[string]any `json:"linkage"`
	InputData map[string]any `json:"input_data"`
	Source    string         `json:"source"`
}

// AgentResult is the payload of a successful extraction.
type AgentResult struct {
	ExtractedFields  map[string]any `json:"extracted_fields"`
	ValidationErrors []string       `json:"validation_errors"`
}

// AgentCompletedEvent reports a finished extraction.
type AgentCompletedEvent struct {
	RequestID string         `json:"request_id"`
	AgentID   string         `json:"agent_id"`
	Linkage   map[string]any `json:"linkage"`
	Result    AgentResult    `json:"result"`
}

// AgentFailedEvent reports an extraction failure.
type AgentFailedEvent struct {
	RequestID    string         `json:"request_id"`
	AgentID      string         `json:"agent_id"`
	Linkage      map[string]any `json:"linkage"`
	ErrorType    string         `json:"error_type"`
	ErrorMessage string         `json:"error_message"`
	RetryCount   int            `json:"retry_count"`
}
