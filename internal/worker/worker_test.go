package worker

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/ragcore/internal/adapters/driven/queue/memory"
	"github.com/custodia-labs/ragcore/internal/chunking"
	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/ragcore/internal/core/services"
)

func newTestWorker(store *mocks.MockVectorStore, queue *memory.Queue) *Worker {
	pipeline := services.NewSyncPipeline(services.SyncPipelineConfig{
		Store:   store,
		Chunker: chunking.NewEngine(mocks.NewMockSegmenter(), nil),
	})
	return NewWorker(WorkerConfig{
		TaskQueue:      queue,
		Pipeline:       pipeline,
		Concurrency:    2,
		DequeueTimeout: 1,
	})
}

func testDoc(id, workspace string) *domain.DocumentDescriptor {
	return &domain.DocumentDescriptor{
		ID:           id,
		WorkspaceID:  workspace,
		Title:        "Weekly Sync",
		DocumentType: "summary",
		Content:      "# Agenda\nitems\n\n# Decisions\nship it",
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWorker_ProcessesIngestTask(t *testing.T) {
	store := mocks.NewMockVectorStore()
	queue := memory.NewQueue(10)
	defer queue.Close()
	w := newTestWorker(store, queue)
	ctx := context.Background()

	task, err := domain.NewIngestTask(testDoc("doc-1", "ws-1"))
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if err := queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	if !waitFor(t, 2*time.Second, func() bool { return store.Count("ws-1") == 2 }) {
		t.Fatalf("expected 2 chunks indexed, got %d", store.Count("ws-1"))
	}

	if !waitFor(t, 2*time.Second, func() bool {
		stored, _ := queue.GetTask(ctx, task.ID)
		return stored != nil && stored.Status == domain.TaskStatusCompleted
	}) {
		t.Error("expected task to be acked as completed")
	}
}

func TestWorker_ProcessesDeleteTask(t *testing.T) {
	store := mocks.NewMockVectorStore()
	queue := memory.NewQueue(10)
	defer queue.Close()
	w := newTestWorker(store, queue)
	ctx := context.Background()

	ingest, _ := domain.NewIngestTask(testDoc("doc-1", "ws-1"))
	if err := queue.Enqueue(ctx, ingest); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	if !waitFor(t, 2*time.Second, func() bool { return store.Count("ws-1") == 2 }) {
		t.Fatal("ingest task never completed")
	}

	del, _ := domain.NewDeleteTask("doc-1", "ws-1")
	if err := queue.Enqueue(ctx, del); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return store.Count("ws-1") == 0 }) {
		t.Errorf("expected chunks removed, got %d", store.Count("ws-1"))
	}
}

func TestWorker_NacksFailedTask(t *testing.T) {
	store := mocks.NewMockVectorStore()
	queue := memory.NewQueue(10)
	defer queue.Close()
	w := newTestWorker(store, queue)
	ctx := context.Background()

	// One retry only, so the failure surfaces quickly.
	task, _ := domain.NewIngestTask(testDoc("doc-1", "ws-1"))
	task.MaxAttempts = 1
	if err := queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	store.SetFailNext(true)

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	if !waitFor(t, 2*time.Second, func() bool {
		stored, _ := queue.GetTask(ctx, task.ID)
		return stored != nil && stored.Status == domain.TaskStatusFailed
	}) {
		t.Error("expected task to be marked failed after exhausting attempts")
	}
}

func TestWorker_UnknownTaskType(t *testing.T) {
	store := mocks.NewMockVectorStore()
	queue := memory.NewQueue(10)
	defer queue.Close()
	w := newTestWorker(store, queue)
	ctx := context.Background()

	task := domain.NewTask("reindex_everything", "ws-1", []byte(`{}`))
	task.MaxAttempts = 1
	if err := queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	if !waitFor(t, 2*time.Second, func() bool {
		stored, _ := queue.GetTask(ctx, task.ID)
		return stored != nil && stored.Status == domain.TaskStatusFailed
	}) {
		t.Error("expected unknown task type to fail")
	}
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	store := mocks.NewMockVectorStore()
	queue := memory.NewQueue(10)
	defer queue.Close()
	w := newTestWorker(store, queue)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	w.Stop()
	w.Stop() // second call must not panic or block
}

func TestWorker_Health(t *testing.T) {
	store := mocks.NewMockVectorStore()
	queue := memory.NewQueue(10)
	defer queue.Close()
	w := newTestWorker(store, queue)
	ctx := context.Background()

	health := w.Health(ctx)
	if health.Running {
		t.Error("expected not running before start")
	}
	if !health.QueueHealth {
		t.Errorf("expected healthy queue, got error %s", health.Error)
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	health = w.Health(ctx)
	if !health.Running {
		t.Error("expected running after start")
	}
}
