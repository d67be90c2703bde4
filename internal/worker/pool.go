package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agritrace/collection-model/internal/jobqueue"
	"github.com/agritrace/collection-model/internal/models"
	"github.com/agritrace/collection-model/internal/pipeline"
	"github.com/agritrace/collection-model/internal/sourceconfig"
)

// Pool runs N workers claiming jobs from the shared queue. Processor calls
// block on blob and repository I/O on worker goroutines, never on the bus
// dispatch path.
type Pool struct {
	manager  *Manager
	queue    jobqueue.Queue
	registry *pipeline.Registry
	configs  sourceconfig.Provider
	count    int
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewPool creates a pool of count workers.
func NewPool(manager *Manager, queue jobqueue.Queue, registry *pipeline.Registry, configs sourceconfig.Provider, count int, logger *slog.Logger) *Pool {
	if count <= 0 {
		count = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		manager:  manager,
		queue:    queue,
		registry: registry,
		configs:  configs,
		count:    count,
		logger:   logger,
	}
}

// Run starts the workers and blocks until ctx is cancelled and all workers
// have drained their current job.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("worker pool starting", "workers", p.count)
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delivery, err := p.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("claim failed", "worker", id, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		p.process(ctx, delivery)
	}
}

func (p *Pool) process(ctx context.Context, delivery *jobqueue.Delivery) {
	defer func() {
		if err := delivery.Ack(ctx); err != nil {
			p.logger.Warn("ack failed", "job_id", delivery.JobID, "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("processor panicked", "job_id", delivery.JobID, "panic", r)
			_ = p.manager.FailJob(ctx, delivery.JobID, models.ErrorTypeUnknown, "internal panic during processing")
		}
	}()

	job, err := p.manager.begin(ctx, delivery.JobID)
	if err != nil {
		p.logger.Error("failed to claim job", "job_id", delivery.JobID, "error", err)
		return
	}
	if job == nil {
		return
	}

	cfg, err := p.configs.GetConfig(ctx, job.SourceID)
	if err != nil {
		p.manager.fail(ctx, job, models.ErrorTypeConfig, err.Error())
		return
	}

	proc, err := p.registry.Resolve(cfg.ProcessorType)
	if err != nil {
		p.manager.fail(ctx, job, pipeline.Classify(err), err.Error())
		return
	}

	result, err := proc.Process(ctx, *job, cfg)
	if err != nil {
		p.manager.fail(ctx, job, pipeline.Classify(err), err.Error())
		return
	}

	if result.AwaitingExtraction {
		if err := p.manager.markExtracting(ctx, job); err != nil {
			// A job left processing is invisible to the pending sweeper, so
			// retry instead. Re-running the job re-publishes the request;
			// duplicate agent results are dropped by the correlator.
			p.logger.Error("failed to mark extracting", "job_id", job.JobID, "error", err)
			p.manager.fail(ctx, job, models.ErrorTypeStorage, "persist extracting status: "+err.Error())
		}
		return
	}
	p.manager.complete(ctx, job)
}
