// Package jobqueue provides the shared job queue with claim/lease semantics.
//
// The queue carries job ids only; job bodies live in the repository. The
// lease (Redis lock key TTL, SQS visibility timeout) is the single-claim
// primitive: no two workers hold the same job concurrently, and a crashed
// worker's job becomes claimable again when its lease expires.
package jobqueue

import (
	"context"
	"time"
)

// Delivery is one claimed job id. Ack releases the claim after the worker
// has durably recorded the outcome.
type Delivery struct {
	JobID string
	Ack   func(ctx context.Context) error
}

// Queue is the job queue interface used by the worker pool and CLI.
type Queue interface {
	// Enqueue makes jobID claimable immediately.
	Enqueue(ctx context.Context, jobID string) error
	// EnqueueDelayed makes jobID claimable after delay (retry backoff).
	EnqueueDelayed(ctx context.Context, jobID string, delay time.Duration) error
	// Claim blocks up to the backend's poll timeout and returns one
	// delivery, or (nil, nil) when nothing is available.
	Claim(ctx context.Context) (*Delivery, error)
}
