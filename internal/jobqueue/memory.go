package jobqueue

import (
	"context"
	"time"
)

// MemoryQueue is a channel-backed Queue for tests.
type MemoryQueue struct {
	ch chan string
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates a queue buffering up to size job ids.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size)}
}

// Enqueue makes jobID claimable.
func (q *MemoryQueue) Enqueue(_ context.Context, jobID string) error {
	q.ch <- jobID
	return nil
}

// EnqueueDelayed re-queues after delay.
func (q *MemoryQueue) EnqueueDelayed(_ context.Context, jobID string, delay time.Duration) error {
	if delay <= 0 {
		q.ch <- jobID
		return nil
	}
	time.AfterFunc(delay, func() { q.ch <- jobID })
	return nil
}

// Claim returns the next job id, or (nil, nil) after a short poll window.
func (q *MemoryQueue) Claim(ctx context.Context) (*Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case jobID := <-q.ch:
		return &Delivery{
			JobID: jobID,
			Ack:   func(context.Context) error { return nil },
		}, nil
	case <-time.After(50 * time.Millisecond):
		return nil, nil
	}
}

// Len returns the number of queued ids (test helper).
func (q *MemoryQueue) Len() int { return len(q.ch) }
