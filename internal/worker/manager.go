// Package worker runs the ingestion worker pool and owns the job state machine.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agritrace/collection-model/internal/jobqueue"
	"github.com/agritrace/collection-model/internal/models"
)

// JobStore persists job state. Implemented by repository.Client.
type JobStore interface {
	SaveJob(ctx context.Context, job models.IngestionJob) error
	GetJob(ctx context.Context, jobID string) (*models.IngestionJob, error)
	ListStuckExtracting(ctx context.Context, cutoff time.Time) ([]models.IngestionJob, error)
}

// Manager owns every ingestion-job state transition. Processors and the
// correlator report outcomes; only the manager decides retry vs terminal,
// based on the error taxonomy.
type Manager struct {
	jobs    JobStore
	queue   jobqueue.Queue
	backoff time.Duration
	logger  *slog.Logger
}

// NewManager creates a manager. backoff is the base delay between retries,
// multiplied by the attempt number.
func NewManager(jobs JobStore, queue jobqueue.Queue, backoff time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{jobs: jobs, queue: queue, backoff: backoff, logger: logger}
}

// Submit persists a new queued job and makes it claimable.
func (m *Manager) Submit(ctx context.Context, job models.IngestionJob) error {
	job.Status = models.JobStatusQueued
	if job.ReceivedAt.IsZero() {
		job.ReceivedAt = time.Now().UTC()
	}
	if err := m.jobs.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("persist job: %w", err)
	}
	if err := m.queue.Enqueue(ctx, job.JobID); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	m.logger.Info("job submitted", "job_id", job.JobID, "source_id", job.SourceID)
	return nil
}

// begin claims a queued job for processing. Returns nil when the job should
// be skipped (already terminal, e.g. a stale queue entry after a retry race).
func (m *Manager) begin(ctx context.Context, jobID string) (*models.IngestionJob, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		m.logger.Warn("skipping terminal job from queue", "job_id", jobID, "status", job.Status)
		return nil, nil
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	if err := m.jobs.SaveJob(ctx, *job); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	return job, nil
}

// markExtracting records that the job's extraction request is outstanding.
func (m *Manager) markExtracting(ctx context.Context, job *models.IngestionJob) error {
	job.Status = models.JobStatusExtracting
	if err := m.jobs.SaveJob(ctx, *job); err != nil {
		return fmt.Errorf("mark extracting: %w", err)
	}
	return nil
}

// complete finishes the job successfully.
func (m *Manager) complete(ctx context.Context, job *models.IngestionJob) {
	now := time.Now().UTC()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	job.ErrorType = ""
	job.ErrorMessage = ""
	if err := m.jobs.SaveJob(ctx, *job); err != nil {
		m.logger.Error("failed to persist job completion", "job_id", job.JobID, "error", err)
		return
	}
	m.logger.Info("job completed", "job_id", job.JobID, "source_id", job.SourceID)
}

// fail applies the failure taxonomy: permanent error types and exhausted
// retries are terminal; everything else re-queues with backoff. Permanent
// failures never touch retry_count.
func (m *Manager) fail(ctx context.Context, job *models.IngestionJob, kind models.ErrorType, msg string) {
	job.ErrorType = kind
	job.ErrorMessage = msg

	if models.Retryable(kind) {
		job.RetryCount++
	}
	if models.Retryable(kind) && job.RetryCount < models.MaxRetries {
		job.Status = models.JobStatusQueued
		if err := m.jobs.SaveJob(ctx, *job); err != nil {
			m.logger.Error("failed to persist job retry", "job_id", job.JobID, "error", err)
			return
		}
		delay := time.Duration(job.RetryCount) * m.backoff
		if err := m.queue.EnqueueDelayed(ctx, job.JobID, delay); err != nil {
			m.logger.Error("failed to re-queue job", "job_id", job.JobID, "error", err)
			return
		}
		m.logger.Warn("job retry scheduled",
			"job_id", job.JobID, "error_type", kind, "retry_count", job.RetryCount, "delay", delay, "error", msg)
		return
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.CompletedAt = &now
	if err := m.jobs.SaveJob(ctx, *job); err != nil {
		m.logger.Error("failed to persist job failure", "job_id", job.JobID, "error", err)
		return
	}
	m.logger.Error("job failed", "job_id", job.JobID, "error_type", kind, "error", msg)
}

// CompleteJob finishes a job by id. Called by the correlator when an agent
// result closes out an extracting job.
func (m *Manager) CompleteJob(ctx context.Context, jobID string) error {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}
	m.complete(ctx, job)
	return nil
}

// FailJob fails a job by id with the given classification, applying the
// same retry rules as in-process failures.
func (m *Manager) FailJob(ctx context.Context, jobID string, kind models.ErrorType, msg string) error {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}
	m.fail(ctx, job, kind, msg)
	return nil
}
