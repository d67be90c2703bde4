package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agritrace/collection-model/internal/models"
)

// Sweeper fails jobs stuck in extracting when the agent never answered.
// Agent correlation has no in-band timeout, so without this a lost result
// event would leave a job extracting forever. The failure is classified as
// extraction, which re-enters the normal bounded-retry path.
type Sweeper struct {
	manager  *Manager
	jobs     JobStore
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper. A zero timeout disables it.
func NewSweeper(manager *Manager, jobs JobStore, timeout, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{manager: manager, jobs: jobs, timeout: timeout, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.timeout <= 0 {
		s.logger.Info("pending sweeper disabled")
		return
	}
	s.logger.Info("pending sweeper started", "timeout", s.timeout, "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.timeout)
	stuck, err := s.jobs.ListStuckExtracting(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep query failed", "error", err)
		return
	}
	for _, job := range stuck {
		msg := fmt.Sprintf("no agent result within %s", s.timeout)
		if err := s.manager.FailJob(ctx, job.JobID, models.ErrorTypeExtraction, msg); err != nil {
			s.logger.Error("sweep fail failed", "job_id", job.JobID, "error", err)
			continue
		}
		s.logger.Warn("stuck extraction swept", "job_id", job.JobID, "started_at", job.StartedAt)
	}
}
