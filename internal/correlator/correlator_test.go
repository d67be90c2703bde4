package correlator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agritrace/collection-model/internal/blob"
	"github.com/agritrace/collection-model/internal/bus"
	"github.com/agritrace/collection-model/internal/models"
	"github.com/agritrace/collection-model/internal/pipeline"
	"github.com/agritrace/collection-model/internal/repository"
	"github.com/agritrace/collection-model/internal/sourceconfig"
)

type memoryRepo struct {
	mu   sync.Mutex
	docs map[string]models.DocumentIndex
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: make(map[string]models.DocumentIndex)}
}

func (r *memoryRepo) SaveOne(_ context.Context, collection string, doc models.DocumentIndex) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[collection+"/"+doc.DocumentID] = doc
	return nil
}

func (r *memoryRepo) SaveBatchAtomic(ctx context.Context, collection string, docs []models.DocumentIndex) error {
	for _, doc := range docs {
		if err := r.SaveOne(ctx, collection, doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, collection, id string) (*models.DocumentIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[collection+"/"+id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", repository.ErrNotFound, id)
	}
	return &doc, nil
}

type fakeTracker struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	failKinds []models.ErrorType
}

func (f *fakeTracker) CompleteJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, jobID)
	return nil
}

func (f *fakeTracker) FailJob(_ context.Context, jobID string, kind models.ErrorType, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, jobID)
	f.failKinds = append(f.failKinds, kind)
	return nil
}

type staticConfigs struct {
	cfg sourceconfig.SourceConfig
}

func (s staticConfigs) GetConfig(_ context.Context, sourceID string) (sourceconfig.SourceConfig, error) {
	if sourceID != s.cfg.SourceID {
		return sourceconfig.SourceConfig{}, sourceconfig.NotFoundError(sourceID)
	}
	return s.cfg, nil
}

type env struct {
	repo    *memoryRepo
	bus     *bus.MemoryBus
	tracker *fakeTracker
	corr    *Correlator
	cfg     sourceconfig.SourceConfig
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := sourceconfig.SourceConfig{
		SourceID:      "farm-registry",
		ProcessorType: "json_extraction",
		Storage: sourceconfig.StorageConfig{
			RawContainer:    "raw",
			IndexCollection: "document_index",
		},
		Transformation: sourceconfig.TransformationConfig{
			LinkField:         "farm_id",
			AIAgentID:         "survey-extractor",
			ExtractionEnabled: true,
		},
		Events: sourceconfig.EventsConfig{
			OnSuccess: &sourceconfig.SuccessEvent{
				Topic:         "farm.ingested",
				PayloadFields: []string{"farm_id"},
			},
		},
	}

	repo := newMemoryRepo()
	eventBus := bus.NewMemoryBus()
	tracker := &fakeTracker{}
	deps := pipeline.Dependencies{Repo: repo, Blobs: blob.NewMemoryStore(), Bus: eventBus}

	corr := New(deps, staticConfigs{cfg: cfg}, tracker, eventBus, nil)
	require.NoError(t, corr.Start([]string{"survey-extractor"}))

	return &env{repo: repo, bus: eventBus, tracker: tracker, corr: corr, cfg: cfg}
}

const docID = "farm-registry/FARM-001/doc"

func (e *env) seedPending(t *testing.T) {
	t.Helper()
	err := e.repo.SaveOne(context.Background(), "document_index", models.DocumentIndex{
		DocumentID: docID,
		Extraction: models.ExtractionMeta{
			Status:      models.ExtractionPending,
			AgentID:     "survey-extractor",
			RequestedAt: time.Now().UTC(),
		},
		Ingestion: models.IngestionMeta{
			JobID:    "job-1",
			SourceID: "farm-registry",
		},
		LinkageFields:   map[string]any{"farm_id": "FARM-001"},
		ExtractedFields: map[string]any{},
	})
	require.NoError(t, err)
}

func (e *env) publishCompleted(t *testing.T, ev models.AgentCompletedEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, e.bus.Publish(context.Background(), models.CompletedTopic("survey-extractor"), data))
}

func (e *env) publishFailed(t *testing.T, ev models.AgentFailedEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, e.bus.Publish(context.Background(), models.FailedTopic("survey-extractor"), data))
}

func completedEvent() models.AgentCompletedEvent {
	return models.AgentCompletedEvent{
		RequestID: docID,
		AgentID:   "survey-extractor",
		Linkage:   map[string]any{"farm_id": "FARM-001"},
		Result: models.AgentResult{
			ExtractedFields: map[string]any{"crop": "cocoa", "yield_kg": 120.5},
		},
	}
}

func TestCompletedResult(t *testing.T) {
	e := newEnv(t)
	e.seedPending(t)

	e.publishCompleted(t, completedEvent())

	doc, err := e.repo.GetByID(context.Background(), "document_index", docID)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractionComplete, doc.Extraction.Status)
	assert.Equal(t, 1.0, doc.Extraction.Confidence, "agent completions score like the direct path")
	assert.True(t, doc.Extraction.ValidationPassed)
	assert.NotNil(t, doc.Extraction.CompletedAt)
	assert.Equal(t, "cocoa", doc.ExtractedFields["crop"])
	assert.Equal(t, 120.5, doc.ExtractedFields["yield_kg"])

	assert.Equal(t, []string{"job-1"}, e.tracker.completed)
	assert.Empty(t, e.tracker.failed)

	msgs := e.bus.Messages("farm.ingested")
	require.Len(t, msgs, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(msgs[0], &payload))
	assert.Equal(t, "FARM-001", payload["farm_id"])
}

func TestCompletedWithValidationErrors(t *testing.T) {
	e := newEnv(t)
	e.seedPending(t)

	ev := completedEvent()
	ev.Result.ValidationErrors = []string{"yield_kg out of range"}
	e.publishCompleted(t, ev)

	doc, err := e.repo.GetByID(context.Background(), "document_index", docID)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractionComplete, doc.Extraction.Status, "validation errors do not fail the document")
	assert.False(t, doc.Extraction.ValidationPassed)
	assert.Equal(t, []string{"job-1"}, e.tracker.completed)
}

func TestDuplicateDeliveryIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.seedPending(t)

	ev := completedEvent()
	e.publishCompleted(t, ev)

	// Same event again, and a late failure for the same request: both must
	// be dropped once the document left pending.
	e.publishCompleted(t, ev)
	e.publishFailed(t, models.AgentFailedEvent{
		RequestID:    docID,
		AgentID:      "survey-extractor",
		ErrorType:    "extraction",
		ErrorMessage: "too late",
	})

	doc, err := e.repo.GetByID(context.Background(), "document_index", docID)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractionComplete, doc.Extraction.Status)

	assert.Equal(t, []string{"job-1"}, e.tracker.completed, "job completed exactly once")
	assert.Empty(t, e.tracker.failed)
	assert.Len(t, e.bus.Messages("farm.ingested"), 1, "success event published exactly once")
}

func TestFailedResult(t *testing.T) {
	e := newEnv(t)
	e.seedPending(t)

	e.publishFailed(t, models.AgentFailedEvent{
		RequestID:    docID,
		AgentID:      "survey-extractor",
		ErrorType:    "timeout",
		ErrorMessage: "model unavailable",
	})

	doc, err := e.repo.GetByID(context.Background(), "document_index", docID)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractionFailed, doc.Extraction.Status)
	assert.Equal(t, "timeout", doc.Extraction.ErrorType)
	assert.Equal(t, "model unavailable", doc.Extraction.ErrorMessage)

	require.Equal(t, []string{"job-1"}, e.tracker.failed)
	assert.Equal(t, []models.ErrorType{models.ErrorTypeExtraction}, e.tracker.failKinds)
	assert.Empty(t, e.tracker.completed)
	assert.Empty(t, e.bus.Messages("farm.ingested"), "no success event on failure")
}

func TestUnknownRequestIDDropped(t *testing.T) {
	e := newEnv(t)

	ev := completedEvent()
	ev.RequestID = "farm-registry/FARM-999/doc"
	e.publishCompleted(t, ev)

	assert.Empty(t, e.tracker.completed)
	assert.Empty(t, e.tracker.failed)
}

func TestUnknownSourceDropped(t *testing.T) {
	e := newEnv(t)

	ev := completedEvent()
	ev.RequestID = "other-source/X/doc"
	e.publishCompleted(t, ev)

	assert.Empty(t, e.tracker.completed)
}

func TestMalformedEventDropped(t *testing.T) {
	e := newEnv(t)
	e.seedPending(t)

	require.NoError(t, e.bus.Publish(context.Background(), models.CompletedTopic("survey-extractor"), []byte("{broken")))

	doc, err := e.repo.GetByID(context.Background(), "document_index", docID)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractionPending, doc.Extraction.Status)
	assert.Empty(t, e.tracker.completed)
}
