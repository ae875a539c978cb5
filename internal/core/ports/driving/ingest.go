package driving

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// Ingestor is the fire-and-forget ingestion contract exposed upward. The
// surrounding system calls Ingest on document save and Delete on document
// deletion; neither failure may surface to the primary operation.
type Ingestor interface {
	// Ingest enqueues a document snapshot for indexing.
	Ingest(ctx context.Context, doc *domain.DocumentDescriptor) error

	// Delete enqueues removal of a document's chunks from the index.
	Delete(ctx context.Context, documentID, namespace string) error
}
