package driven

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// Chunker splits a document snapshot into embeddable chunks using the
// strategy resolved from its document type. A malformed document yields an
// empty chunk slice, not an error; errors are reserved for unexpected
// failures the sync pipeline should log.
type Chunker interface {
	Chunk(ctx context.Context, doc *domain.DocumentDescriptor) ([]domain.Chunk, error)
}
