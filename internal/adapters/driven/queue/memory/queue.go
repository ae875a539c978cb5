package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue with an in-process channel. It exists for
// single-instance deployments and tests where Redis is not configured;
// tasks do not survive a restart.
type Queue struct {
	tasks chan *domain.Task

	mu         sync.Mutex
	byID       map[string]*domain.Task
	processing int
	closed     bool
}

// NewQueue creates an in-memory task queue with the given buffer capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{
		tasks: make(chan *domain.Task, capacity),
		byID:  make(map[string]*domain.Task),
	}
}

// Enqueue adds a task to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("queue is closed")
	}
	q.byID[task.ID] = task
	q.mu.Unlock()

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("queue is full")
	}
}

// Dequeue blocks until a task is available or the context is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return nil, nil
		}
		return q.startTask(task), nil
	case <-ctx.Done():
		return nil, nil
	}
}

// DequeueWithTimeout retrieves the next available task, waiting up to timeout
// seconds. Returns nil, nil on timeout.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if timeout <= 0 {
		return q.Dequeue(ctx)
	}

	timer := time.NewTimer(time.Duration(timeout) * time.Second)
	defer timer.Stop()

	select {
	case task, ok := <-q.tasks:
		if !ok {
			return nil, nil
		}
		return q.startTask(task), nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

func (q *Queue) startTask(task *domain.Task) *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	task.MarkProcessing()
	q.processing++
	return task
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.byID[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.MarkCompleted()
	q.processing--
	return nil
}

// Nack re-enqueues the task for retry, or marks it failed once retries are
// exhausted. Backoff delays are not honored in-process; the retry goes
// straight back on the channel.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	q.mu.Lock()
	task, ok := q.byID[taskID]
	if !ok {
		q.mu.Unlock()
		return domain.ErrNotFound
	}
	q.processing--

	if !task.CanRetry() {
		task.MarkFailed(reason)
		q.mu.Unlock()
		return nil
	}
	task.Retry(reason)
	q.mu.Unlock()

	select {
	case q.tasks <- task:
		return nil
	default:
		q.mu.Lock()
		task.MarkFailed("queue full on retry: " + reason)
		q.mu.Unlock()
		return nil
	}
}

// GetTask retrieves a snapshot of a task by ID.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.byID[taskID]
	if !ok {
		return nil, nil
	}
	snapshot := *task
	return &snapshot, nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return &driven.QueueStats{
		PendingCount:    int64(len(q.tasks)),
		ProcessingCount: int64(q.processing),
	}, nil
}

// Ping always succeeds; there is no backend to be unhealthy.
func (q *Queue) Ping(ctx context.Context) error {
	return nil
}

// Close shuts down the queue. Pending tasks are discarded.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	return nil
}
