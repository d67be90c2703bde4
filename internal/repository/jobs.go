package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/agritrace/collection-model/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

const jobTable = "ingestion_job"

// SaveJob upserts the full job record keyed on job id.
func (c *Client) SaveJob(ctx context.Context, job models.IngestionJob) error {
	sql := `UPSERT type::record($tb, $id) CONTENT $job RETURN NONE`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"tb":  jobTable,
		"id":  job.JobID,
		"job": job,
	})
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.JobID, wrapQueryError(err))
	}
	return nil
}

// GetJob fetches a job by id. Returns ErrNotFound when absent.
func (c *Client) GetJob(ctx context.Context, jobID string) (*models.IngestionJob, error) {
	sql := `SELECT * FROM type::record($tb, $id)`
	results, err := surrealdb.Query[[]models.IngestionJob](ctx, c.db, sql, map[string]any{
		"tb": jobTable,
		"id": jobID,
	})
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	return &(*results)[0].Result[0], nil
}

// ListJobs returns jobs most recent first, up to limit.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]models.IngestionJob, error) {
	if limit <= 0 {
		limit = 50
	}
	sql := `SELECT * FROM type::table($tb) ORDER BY received_at DESC LIMIT $limit`
	results, err := surrealdb.Query[[]models.IngestionJob](ctx, c.db, sql, map[string]any{
		"tb":    jobTable,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// ListStuckExtracting returns jobs that entered extracting before cutoff and
// never received an agent result. The pending sweeper fails these.
func (c *Client) ListStuckExtracting(ctx context.Context, cutoff time.Time) ([]models.IngestionJob, error) {
	sql := `SELECT * FROM type::table($tb) WHERE status = $status AND started_at < $cutoff`
	results, err := surrealdb.Query[[]models.IngestionJob](ctx, c.db, sql, map[string]any{
		"tb":     jobTable,
		"status": models.JobStatusExtracting,
		"cutoff": cutoff,
	})
	if err != nil {
		return nil, fmt.Errorf("list stuck jobs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}
