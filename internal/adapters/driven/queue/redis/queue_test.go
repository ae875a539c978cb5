package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

func setupTestQueue(t *testing.T) (*Queue, *redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	queue, err := NewQueue(client, "test-worker")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	return queue, client, func() {
		client.Close()
		mr.Close()
	}
}

func testIngestTask(t *testing.T) *domain.Task {
	t.Helper()
	doc := &domain.DocumentDescriptor{
		ID:           "doc-1",
		WorkspaceID:  "ws-1",
		Title:        "Weekly Sync",
		DocumentType: "summary",
		Content:      "# Notes\nhello",
	}
	task, err := domain.NewIngestTask(doc)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	queue, _, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	task := testIngestTask(t)

	if err := queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	got, err := queue.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected dequeue error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a task")
	}
	if got.ID != task.ID {
		t.Errorf("expected task %s, got %s", task.ID, got.ID)
	}
	if got.Status != domain.TaskStatusProcessing {
		t.Errorf("expected processing status, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", got.Attempts)
	}

	var doc domain.DocumentDescriptor
	if err := json.Unmarshal(got.Payload, &doc); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if doc.ID != "doc-1" {
		t.Errorf("expected document doc-1, got %s", doc.ID)
	}

	if err := queue.Ack(ctx, task.ID); err != nil {
		t.Fatalf("unexpected ack error: %v", err)
	}

	stored, err := queue.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if stored.Status != domain.TaskStatusCompleted {
		t.Errorf("expected completed status, got %s", stored.Status)
	}
}

func TestQueue_DequeueEmpty(t *testing.T) {
	queue, _, cleanup := setupTestQueue(t)
	defer cleanup()

	got, err := queue.DequeueWithTimeout(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no task, got %s", got.ID)
	}
}

func TestQueue_NackRequeuesWithBackoff(t *testing.T) {
	queue, client, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	task := testIngestTask(t)

	if err := queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	if _, err := queue.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected dequeue error: %v", err)
	}

	if err := queue.Nack(ctx, task.ID, "embedding provider down"); err != nil {
		t.Fatalf("unexpected nack error: %v", err)
	}

	stored, err := queue.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if stored.Status != domain.TaskStatusPending {
		t.Errorf("expected pending status, got %s", stored.Status)
	}
	if stored.Error != "embedding provider down" {
		t.Errorf("expected error recorded, got %q", stored.Error)
	}
	if !stored.ScheduledFor.After(time.Now()) {
		t.Error("expected retry to be scheduled in the future")
	}

	// Retry is parked in the scheduled set, not back on the stream.
	count, err := client.ZCard(ctx, scheduledTasks).Result()
	if err != nil {
		t.Fatalf("unexpected zcard error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 scheduled task, got %d", count)
	}
}

func TestQueue_NackExhaustedMarksFailed(t *testing.T) {
	queue, _, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	task := testIngestTask(t)
	task.MaxAttempts = 1

	if err := queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	if _, err := queue.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected dequeue error: %v", err)
	}

	if err := queue.Nack(ctx, task.ID, "still failing"); err != nil {
		t.Fatalf("unexpected nack error: %v", err)
	}

	stored, err := queue.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if stored.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed status, got %s", stored.Status)
	}
}

func TestQueue_PromotesDueScheduledTasks(t *testing.T) {
	queue, client, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	task := testIngestTask(t)
	// Enqueue as already-due scheduled work.
	task.ScheduledFor = time.Now().Add(-time.Minute)

	taskData, _ := json.Marshal(task)
	if err := client.Set(ctx, taskKeyPrefix+task.ID, taskData, time.Hour).Err(); err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}
	if err := client.ZAdd(ctx, scheduledTasks, redis.Z{
		Score:  float64(task.ScheduledFor.Unix()),
		Member: task.ID,
	}).Err(); err != nil {
		t.Fatalf("failed to seed scheduled set: %v", err)
	}

	got, err := queue.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected dequeue error: %v", err)
	}
	if got == nil {
		t.Fatal("expected promoted task")
	}
	if got.ID != task.ID {
		t.Errorf("expected task %s, got %s", task.ID, got.ID)
	}
}

func TestQueue_GetTask_NotFound(t *testing.T) {
	queue, _, cleanup := setupTestQueue(t)
	defer cleanup()

	got, err := queue.GetTask(context.Background(), "no-such-task")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown task")
	}
}

func TestQueue_Stats(t *testing.T) {
	queue, _, cleanup := setupTestQueue(t)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := queue.Enqueue(ctx, testIngestTask(t)); err != nil {
			t.Fatalf("unexpected enqueue error: %v", err)
		}
	}
	if _, err := queue.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected dequeue error: %v", err)
	}

	stats, err := queue.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}
	if stats.ProcessingCount != 1 {
		t.Errorf("expected 1 processing, got %d", stats.ProcessingCount)
	}
	if stats.PendingCount != 2 {
		t.Errorf("expected 2 pending, got %d", stats.PendingCount)
	}
}

func TestQueue_Ping(t *testing.T) {
	queue, _, cleanup := setupTestQueue(t)
	defer cleanup()

	if err := queue.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
