package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agritrace/collection-model/internal/blob"
	"github.com/agritrace/collection-model/internal/bus"
	"github.com/agritrace/collection-model/internal/models"
)

// memoryRepo is an in-memory DocumentRepository for processor tests.
type memoryRepo struct {
	mu   sync.Mutex
	docs map[string]models.DocumentIndex

	// failBatch makes SaveBatchAtomic fail without storing anything,
	// simulating a cancelled transaction.
	failBatch bool
	failSave  bool
}

var _ DocumentRepository = (*memoryRepo)(nil)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: make(map[string]models.DocumentIndex)}
}

func (r *memoryRepo) key(collection, id string) string { return collection + "/" + id }

func (r *memoryRepo) SaveOne(_ context.Context, collection string, doc models.DocumentIndex) error {
	if r.failSave {
		return errors.New("simulated save failure")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[r.key(collection, doc.DocumentID)] = doc
	return nil
}

func (r *memoryRepo) SaveBatchAtomic(ctx context.Context, collection string, docs []models.DocumentIndex) error {
	if r.failBatch {
		return errors.New("simulated transaction failure")
	}
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
	doc, ok := r.docs[r.key(collection, id)]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return &doc, nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// testEnv bundles the fakes a processor test needs.
type testEnv struct {
	repo  *memoryRepo
	blobs *blob.MemoryStore
	bus   *bus.MemoryBus
	deps  Dependencies
}

func newTestEnv() *testEnv {
	repo := newMemoryRepo()
	blobs := blob.NewMemoryStore()
	eventBus := bus.NewMemoryBus()
	return &testEnv{
		repo:  repo,
		blobs: blobs,
		bus:   eventBus,
		deps:  Dependencies{Repo: repo, Blobs: blobs, Bus: eventBus},
	}
}

func testJob(sourceID, blobPath string) models.IngestionJob {
	return models.IngestionJob{
		JobID:      "job-1",
		SourceID:   sourceID,
		BlobPath:   blobPath,
		ReceivedAt: time.Now().UTC(),
	}
}
