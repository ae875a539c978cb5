package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
)

// Ensure ingestService implements Ingestor
var _ driving.Ingestor = (*ingestService)(nil)

// ingestService enqueues ingestion work for the background workers. The
// actual indexing happens in SyncPipeline; callers only pay for a queue
// write on the document-save path.
type ingestService struct {
	queue  driven.TaskQueue
	logger *slog.Logger
}

// NewIngestService creates a new ingestion service.
func NewIngestService(queue driven.TaskQueue, logger *slog.Logger) driving.Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ingestService{queue: queue, logger: logger}
}

// Ingest enqueues a document snapshot for indexing.
func (s *ingestService) Ingest(ctx context.Context, doc *domain.DocumentDescriptor) error {
	if err := validateDescriptor(doc); err != nil {
		return err
	}

	task, err := domain.NewIngestTask(doc)
	if err != nil {
		return fmt.Errorf("failed to create ingest task: %w", err)
	}

	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error("failed to enqueue ingest task",
			"document_id", doc.ID,
			"namespace", doc.Namespace(),
			"error", err,
		)
		return fmt.Errorf("failed to enqueue ingest task: %w", err)
	}

	s.logger.Info("ingest task enqueued",
		"task_id", task.ID,
		"document_id", doc.ID,
		"namespace", doc.Namespace(),
	)
	return nil
}

// Delete enqueues removal of a document's chunks from the index.
func (s *ingestService) Delete(ctx context.Context, documentID, namespace string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if namespace == "" {
		return domain.ErrMissingNamespace
	}

	task, err := domain.NewDeleteTask(documentID, namespace)
	if err != nil {
		return fmt.Errorf("failed to create delete task: %w", err)
	}

	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error("failed to enqueue delete task",
			"document_id", documentID,
			"namespace", namespace,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue delete task: %w", err)
	}

	s.logger.Info("delete task enqueued",
		"task_id", task.ID,
		"document_id", documentID,
		"namespace", namespace,
	)
	return nil
}
