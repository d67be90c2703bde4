//go:build integration

// Package jobqueue integration tests run against a real Redis container.
// Build with -tags integration.
package jobqueue

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testRedis *redis.Client
var redisContainer testcontainers.Container

func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	redisContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testRedis = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, mappedPort.Port()),
	})
	if err := testRedis.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to ping Redis: %v", err)
	}

	code := m.Run()

	_ = testRedis.Close()
	_ = redisContainer.Terminate(ctx)

	os.Exit(code)
}

// newTestQueue returns a queue with a short poll window so empty claims
// return quickly. Each test gets its own queue name.
func newTestQueue(t *testing.T, workerID string) *RedisQueue {
	t.Helper()
	q := NewRedisQueue(testRedis, t.Name(), workerID, nil)
	q.blockTimeout = 100 * time.Millisecond
	return q
}

func TestRedisEnqueueClaimAck(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, "worker-1")

	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	delivery, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if delivery == nil || delivery.JobID != "job-1" {
		t.Fatalf("Expected job-1, got %+v", delivery)
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	// Acked job must not come back.
	delivery, err = q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if delivery != nil {
		t.Errorf("Expected empty queue after ack, got %q", delivery.JobID)
	}
}

func TestRedisDelayedRetrySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, "worker-1")

	if err := q.EnqueueDelayed(ctx, "job-retry", 200*time.Millisecond); err != nil {
		t.Fatalf("EnqueueDelayed failed: %v", err)
	}

	// Not due yet.
	delivery, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if delivery != nil {
		t.Fatalf("Job delivered before its delay elapsed: %q", delivery.JobID)
	}

	// A fresh queue instance stands in for a restarted process: the schedule
	// must live in Redis, not in a timer the old process owned.
	time.Sleep(250 * time.Millisecond)
	restarted := newTestQueue(t, "worker-2")
	delivery, err = restarted.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim after restart failed: %v", err)
	}
	if delivery == nil || delivery.JobID != "job-retry" {
		t.Fatalf("Expected job-retry after restart, got %+v", delivery)
	}
	_ = delivery.Ack(ctx)
}

func TestRedisExpiredLeaseRedelivers(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, "worker-1")
	q.lockTTL = 100 * time.Millisecond

	if err := q.Enqueue(ctx, "job-crash"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// Claim and never ack, as a crashed worker would.
	delivery, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if delivery == nil {
		t.Fatal("Expected a delivery")
	}

	// While the lease holds, the job is invisible.
	delivery, err = q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if delivery != nil {
		t.Fatalf("Job redelivered while leased: %q", delivery.JobID)
	}

	// After expiry the next claim promotes it back onto the list.
	time.Sleep(150 * time.Millisecond)
	delivery, err = q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim after lease expiry failed: %v", err)
	}
	if delivery == nil || delivery.JobID != "job-crash" {
		t.Fatalf("Expected job-crash redelivered, got %+v", delivery)
	}
	_ = delivery.Ack(ctx)
}

func TestRedisDuplicateLockedEntrySkipped(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, "worker-1")

	if err := q.Enqueue(ctx, "job-dup"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, "job-dup"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	delivery, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if delivery == nil || delivery.JobID != "job-dup" {
		t.Fatalf("Expected job-dup, got %+v", delivery)
	}

	// The stale duplicate hits the held lock and is dropped.
	dup, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if dup != nil {
		t.Errorf("Expected duplicate entry to be skipped, got %q", dup.JobID)
	}
	_ = delivery.Ack(ctx)
}
