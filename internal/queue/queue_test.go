package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/centuary/backend-dealer/internal/queue"
)

func newQueueClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEnqueueDequeue(t *testing.T) {
	client := newQueueClient(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := enq.Enqueue(ctx, queue.Task{Kind: "inventory-update", Payload: []byte("payload"), IdempotencyKey: "1"})
	require.NoError(t, err)

	processed := make(chan []byte, 1)
	worker := queue.Worker{
		R:                 client,
		Prefix:            "test",
		Kind:              "inventory-update",
		Concurrency:       1,
		VisibilityTimeout: time.Second,
		RetryBase:         10 * time.Millisecond,
		Handler: func(ctx context.Context, task queue.Task) error {
			processed <- task.Payload
			cancel()
			return nil
		},
	}

	go func() { _ = worker.Run(ctx) }()

	select {
	case payload := <-processed:
		require.Equal(t, []byte("payload"), payload)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not processed in time")
	}
}

func TestEnqueueDedupesByKey(t *testing.T) {
	client := newQueueClient(t)
	enq := queue.Enqueuer{R: client, Prefix: "test", DedupTTL: time.Minute}
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, queue.Task{Kind: "inventory-update", Payload: []byte("a"), IdempotencyKey: "same"}))
	require.NoError(t, enq.Enqueue(ctx, queue.Task{Kind: "inventory-update", Payload: []byte("b"), IdempotencyKey: "same"}))

	size, err := client.ZCard(ctx, "test:queue:inventory-update").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), size)
}

func TestRetryThenDLQ(t *testing.T) {
	client := newQueueClient(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, enq.Enqueue(ctx, queue.Task{
		Kind:           "inventory-update",
		Payload:        []byte("doomed"),
		IdempotencyKey: "d1",
		MaxAttempts:    2,
	}))

	attempts := make(chan int, 4)
	worker := queue.Worker{
		R:                 client,
		Prefix:            "test",
		Kind:              "inventory-update",
		Concurrency:       1,
		VisibilityTimeout: time.Second,
		RetryBase:         10 * time.Millisecond,
		Handler: func(ctx context.Context, task queue.Task) error {
			attempts <- task.Attempt
			return errors.New("downstream unavailable")
		},
	}
	go func() { _ = worker.Run(ctx) }()

	for i := 1; i <= 2; i++ {
		select {
		case got := <-attempts:
			require.Equal(t, i, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("attempt %d never happened", i)
		}
	}

	require.Eventually(t, func() bool {
		size, err := client.LLen(context.Background(), "test:inventory-update:dlq").Result()
		return err == nil && size == 1
	}, 2*time.Second, 20*time.Millisecond, "task should land in the dlq after max attempts")
	cancel()
}
