package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/agritrace/collection-model/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// SaveOne upserts a single document keyed on its deterministic document id.
// Re-running a job overwrites the same row instead of duplicating it.
func (c *Client) SaveOne(ctx context.Context, collection string, doc models.DocumentIndex) error {
	sql := `UPSERT type::record($tb, $id) CONTENT $doc RETURN NONE`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"tb":  collection,
		"id":  doc.DocumentID,
		"doc": doc,
	})
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.DocumentID, wrapQueryError(err))
	}
	return nil
}

// SaveBatchAtomic upserts all documents inside one SurrealDB transaction.
// Any failure cancels the transaction: zero documents become visible.
func (c *Client) SaveBatchAtomic(ctx context.Context, collection string, docs []models.DocumentIndex) error {
	if len(docs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	vars := map[string]any{"tb": collection}
	for i, doc := range docs {
		fmt.Fprintf(&sb, "UPSERT type::record($tb, $id%d) CONTENT $doc%d RETURN NONE;\n", i, i)
		vars[fmt.Sprintf("id%d", i)] = doc.DocumentID
		vars[fmt.Sprintf("doc%d", i)] = doc
	}
	sb.WriteString("COMMIT TRANSACTION;")

	if _, err := surrealdb.Query[any](ctx, c.db, sb.String(), vars); err != nil {
		return fmt.Errorf("save batch of %d: %w", len(docs), wrapQueryError(err))
	}
	return nil
}

// GetByID fetches a document by its id. Returns ErrNotFound when absent.
func (c *Client) GetByID(ctx context.Context, collection, id string) (*models.DocumentIndex, error) {
	sql := `SELECT * FROM type::record($tb, $id)`
	results, err := surrealdb.Query[[]models.DocumentIndex](ctx, c.db, sql, map[string]any{
		"tb": collection,
		"id": id,
	})
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return &(*results)[0].Result[0], nil
}

// CountByJob returns how many documents a job produced (used by tests and
// the CLI, not the hot path).
func (c *Client) CountByJob(ctx context.Context, collection, jobID string) (int, error) {
	sql := `SELECT count() AS c FROM type::table($tb) WHERE ingestion.job_id = $job GROUP ALL`
	results, err := surrealdb.Query[[]struct{ C int }](ctx, c.db, sql, map[string]any{
		"tb":  collection,
		"job": jobID,
	})
	if err != nil {
		return 0, fmt.Errorf("count documents for job %s: %w", jobID, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].C, nil
}
