package driven

import (
	"context"
)

// EmbeddingService generates text embeddings.
//
// Embeddings are mode-tagged: content embedded for storage must use document
// mode, search strings must use query mode. Retrieval quality depends on the
// two being mode-matched vectors from the same embedding family.
type EmbeddingService interface {
	// EmbedDocuments generates storage-mode embeddings for multiple texts.
	// The result is order-preserving and 1:1 with the input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates a query-mode embedding for a search string.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
