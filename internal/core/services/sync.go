package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// SyncPipeline coordinates one document's journey into the vector index:
//  1. Validate the descriptor
//  2. Delete the document's existing chunks (UPSERT semantics)
//  3. Chunk per the document-type strategy
//  4. Write the new chunks
//
// Sync returns a result, never an error: ingestion is a side effect of a
// document save and must not be able to break it.
type SyncPipeline struct {
	store   driven.VectorStore
	chunker driven.Chunker
	logger  *slog.Logger
}

// SyncPipelineConfig holds dependencies for SyncPipeline.
type SyncPipelineConfig struct {
	Store   driven.VectorStore
	Chunker driven.Chunker
	Logger  *slog.Logger
}

// NewSyncPipeline creates a new sync pipeline.
func NewSyncPipeline(cfg SyncPipelineConfig) *SyncPipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncPipeline{
		store:   cfg.Store,
		chunker: cfg.Chunker,
		logger:  logger,
	}
}

// Sync indexes one document snapshot, superseding any chunks from earlier
// versions of the same document.
func (p *SyncPipeline) Sync(ctx context.Context, doc *domain.DocumentDescriptor) *domain.SyncResult {
	start := time.Now()

	if err := validateDescriptor(doc); err != nil {
		p.logger.Warn("rejecting invalid document", "error", err)
		result := &domain.SyncResult{Error: err.Error(), Duration: time.Since(start)}
		if doc != nil {
			result.DocumentID = doc.ID
			result.Namespace = doc.Namespace()
		}
		return result
	}

	result := &domain.SyncResult{
		DocumentID: doc.ID,
		Namespace:  doc.Namespace(),
	}

	p.logger.Info("starting document sync",
		"document_id", doc.ID,
		"namespace", doc.Namespace(),
		"document_type", doc.DocumentType,
	)

	// Step 2: delete existing chunks. Re-ingesting may produce fewer chunks
	// than before, so stale ones have to go before the write.
	if err := p.store.DeleteByMetadata(ctx, domain.ByDocumentID(doc.ID), doc.Namespace()); err != nil {
		return p.failSync(result, start, fmt.Errorf("failed to delete existing chunks: %w", err))
	}
	result.ChunksDeleted = true

	// Step 3: chunk
	chunks, err := p.chunker.Chunk(ctx, doc)
	if err != nil {
		return p.failSync(result, start, fmt.Errorf("chunking failed: %w", err))
	}
	if len(chunks) == 0 {
		p.logger.Info("document produced no chunks, skipping write",
			"document_id", doc.ID,
		)
		result.Success = true
		result.Skipped = true
		result.SkipReason = "no chunks produced"
		result.Duration = time.Since(start)
		return result
	}

	// Step 4: write
	writeResult, err := p.store.Write(ctx, chunks, doc.Namespace())
	if err != nil {
		return p.failSync(result, start, fmt.Errorf("failed to write chunks: %w", err))
	}

	result.ChunksWritten = writeResult.Written
	if len(writeResult.BatchErrors) > 0 {
		p.logger.Warn("some chunk batches failed",
			"document_id", doc.ID,
			"written", writeResult.Written,
			"errors", writeResult.BatchErrors,
		)
		result.Error = strings.Join(writeResult.BatchErrors, "; ")
	}
	// Partial writes still count as success; the next re-ingestion heals
	// the gap. Zero written with errors does not.
	result.Success = writeResult.Written > 0 || len(writeResult.BatchErrors) == 0

	result.Duration = time.Since(start)
	p.logger.Info("document sync complete",
		"document_id", doc.ID,
		"chunks_written", result.ChunksWritten,
		"duration", result.Duration,
	)
	return result
}

// Delete removes a document's chunks from the index.
func (p *SyncPipeline) Delete(ctx context.Context, documentID, namespace string) *domain.SyncResult {
	start := time.Now()
	result := &domain.SyncResult{
		DocumentID: documentID,
		Namespace:  namespace,
	}

	if documentID == "" || namespace == "" {
		result.Error = "document id and namespace are required"
		result.Duration = time.Since(start)
		return result
	}

	if err := p.store.DeleteByMetadata(ctx, domain.ByDocumentID(documentID), namespace); err != nil {
		return p.failSync(result, start, fmt.Errorf("failed to delete chunks: %w", err))
	}

	result.Success = true
	result.ChunksDeleted = true
	result.Duration = time.Since(start)
	p.logger.Info("document chunks deleted",
		"document_id", documentID,
		"namespace", namespace,
	)
	return result
}

func (p *SyncPipeline) failSync(result *domain.SyncResult, start time.Time, err error) *domain.SyncResult {
	p.logger.Error("document sync failed",
		"document_id", result.DocumentID,
		"namespace", result.Namespace,
		"error", err,
	)
	result.Success = false
	result.Error = err.Error()
	result.Duration = time.Since(start)
	return result
}

func validateDescriptor(doc *domain.DocumentDescriptor) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if doc.Namespace() == "" {
		return domain.ErrMissingNamespace
	}
	if doc.DocumentType == "" {
		return domain.ErrMissingDocumentType
	}
	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("%w: content is empty", domain.ErrInvalidInput)
	}
	return nil
}
