package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeIngestDocument indexes one document snapshot
	TaskTypeIngestDocument TaskType = "ingest_document"
	// TaskTypeDeleteDocument removes a document's chunks from the index
	TaskTypeDeleteDocument TaskType = "delete_document"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background ingestion job processed by workers.
type Task struct {
	ID        string          `json:"id"`
	Type      TaskType        `json:"type"`
	Namespace string          `json:"namespace"`
	Payload   json.RawMessage `json:"payload"`

	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	Error       string     `json:"error,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, namespace string, payload json.RawMessage) *Task {
	now := time.Now()
	return &Task{
		ID:           uuid.NewString(),
		Type:         taskType,
		Namespace:    namespace,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewIngestTask creates a task to index a document snapshot.
func NewIngestTask(doc *DocumentDescriptor) (*Task, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return NewTask(TaskTypeIngestDocument, doc.Namespace(), payload), nil
}

// DeletePayload is the payload of a delete_document task.
type DeletePayload struct {
	DocumentID string `json:"document_id"`
}

// NewDeleteTask creates a task to remove a document's chunks.
func NewDeleteTask(documentID, namespace string) (*Task, error) {
	payload, err := json.Marshal(DeletePayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}
	return NewTask(TaskTypeDeleteDocument, namespace, payload), nil
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	t.Status = TaskStatusFailed
	t.UpdatedAt = time.Now()
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// 2s, 4s, 8s, ... capped at 5 minutes
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}
