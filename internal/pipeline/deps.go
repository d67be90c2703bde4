// Package pipeline implements the content processing engine: the processor
// registry, the JSON and ZIP extraction processors, and the shared error
// taxonomy. Processors are selected purely by the processor_type string from
// source configuration; no per-source code exists here.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/agritrace/collection-model/internal/blob"
	"github.com/agritrace/collection-model/internal/models"
)

// DocumentRepository persists DocumentIndex rows. SaveOne and SaveBatchAtomic
// must upsert by document id so re-processing a crashed job is idempotent;
// SaveBatchAtomic must persist all rows or none.
type DocumentRepository interface {
	SaveOne(ctx context.Context, collection string, doc models.DocumentIndex) error
	SaveBatchAtomic(ctx context.Context, collection string, docs []models.DocumentIndex) error
	GetByID(ctx context.Context, collection, id string) (*models.DocumentIndex, error)
}

// Publisher is the outbound half of the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Dependencies carries the external collaborators processors need.
type Dependencies struct {
	Repo   DocumentRepository
	Blobs  blob.Store
	Bus    Publisher
	Logger *slog.Logger
}

func (d Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
