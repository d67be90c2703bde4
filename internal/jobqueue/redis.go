package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue over a Redis list plus two sorted sets: one
// holding delayed retries scored by due time, one holding claim leases scored
// by expiry. All queue state lives in Redis, so a process restart loses
// nothing: any worker's next Claim promotes due retries and expired leases
// back onto the list.
type RedisQueue struct {
	client       *redis.Client
	queueKey     string
	delayedKey   string
	leaseKey     string
	workerID     string
	blockTimeout time.Duration
	lockTTL      time.Duration
	logger       *slog.Logger
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue creates a queue named name on the given client. workerID
// identifies this process in lock values for operator inspection.
func NewRedisQueue(client *redis.Client, name, workerID string, logger *slog.Logger) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	key := "collection:" + name
	return &RedisQueue{
		client:       client,
		queueKey:     key,
		delayedKey:   key + ":delayed",
		leaseKey:     key + ":leases",
		workerID:     workerID,
		blockTimeout: 5 * time.Second,
		lockTTL:      5 * time.Minute,
		logger:       logger,
	}
}

// Enqueue pushes the job id onto the list.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.client.RPush(ctx, q.queueKey, jobID).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

// EnqueueDelayed schedules the job id in the delayed sorted set, scored by
// due time. The schedule is durable: promotion happens on Claim, by whichever
// worker process is alive once the delay has passed.
func (q *RedisQueue) EnqueueDelayed(ctx context.Context, jobID string, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, jobID)
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.client.ZAdd(ctx, q.delayedKey, redis.Z{Score: due, Member: jobID}).Err(); err != nil {
		return fmt.Errorf("enqueue delayed %s: %w", jobID, err)
	}
	return nil
}

// Claim promotes due work, then pops one job id and takes its lock and lease.
// Returns (nil, nil) when the queue is empty for the poll window, or when
// another worker already holds the lock (stale duplicate entry).
func (q *RedisQueue) Claim(ctx context.Context) (*Delivery, error) {
	q.promote(ctx)

	// BLPop returns [key, value]
	result, err := q.client.BLPop(ctx, q.blockTimeout, q.queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	jobID := result[1]

	lockKey := q.queueKey + ":lock:" + jobID
	ok, err := q.client.SetNX(ctx, lockKey, q.workerID, q.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", jobID, err)
	}
	if !ok {
		q.logger.Warn("job already locked, skipping", "job_id", jobID)
		return nil, nil
	}

	expiry := float64(time.Now().Add(q.lockTTL).UnixMilli())
	if err := q.client.ZAdd(ctx, q.leaseKey, redis.Z{Score: expiry, Member: jobID}).Err(); err != nil {
		return nil, fmt.Errorf("lease %s: %w", jobID, err)
	}

	return &Delivery{
		JobID: jobID,
		Ack: func(ctx context.Context) error {
			pipe := q.client.TxPipeline()
			pipe.Del(ctx, lockKey)
			pipe.ZRem(ctx, q.leaseKey, jobID)
			_, err := pipe.Exec(ctx)
			return err
		},
	}, nil
}

// promote moves due delayed retries and expired leases back onto the list.
// Re-enqueue happens before removal from the sorted set, so a crash mid-way
// duplicates an entry rather than losing it; duplicates are absorbed by the
// lock skip in Claim and the terminal-job skip in the worker.
func (q *RedisQueue) promote(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	for _, key := range []string{q.delayedKey, q.leaseKey} {
		due, err := q.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
		if err != nil {
			q.logger.Error("promote scan failed", "key", key, "error", err)
			continue
		}
		for _, jobID := range due {
			if err := q.client.RPush(ctx, q.queueKey, jobID).Err(); err != nil {
				q.logger.Error("promote enqueue failed", "job_id", jobID, "error", err)
				continue
			}
			if key == q.leaseKey {
				q.client.Del(ctx, q.queueKey+":lock:"+jobID)
				q.logger.Warn("expired lease re-enqueued", "job_id", jobID)
			}
			if err := q.client.ZRem(ctx, key, jobID).Err(); err != nil {
				q.logger.Error("promote remove failed", "job_id", jobID, "error", err)
			}
		}
	}
}
