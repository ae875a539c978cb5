package driven

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// QueryOptions configures a similarity search.
type QueryOptions struct {
	TopK     int
	Filter   *domain.Filter
	MinScore float64
}

// VectorStore is namespace-scoped write/query/delete against the vector
// database. Every operation takes exactly one namespace argument; there is no
// default namespace, so cross-tenant access is structurally impossible.
type VectorStore interface {
	// Write embeds the chunks and upserts {id, vector, metadata} records in
	// bounded batches. A failing batch is recorded in the result and the
	// remaining batches proceed. Empty input succeeds with zero writes and
	// no network call.
	Write(ctx context.Context, chunks []domain.Chunk, namespace string) (*domain.WriteResult, error)

	// Query returns matches with score >= MinScore, descending by score.
	Query(ctx context.Context, vector []float32, namespace string, opts QueryOptions) ([]domain.ScoredMatch, error)

	// QueryByText embeds the text in query mode and runs Query.
	QueryByText(ctx context.Context, text string, namespace string, opts QueryOptions) ([]domain.ScoredMatch, error)

	// FetchByMetadata retrieves up to limit records matching the filter,
	// regardless of similarity. Used for adjacent-chunk context expansion.
	FetchByMetadata(ctx context.Context, filter *domain.Filter, namespace string, limit int) ([]domain.ScoredMatch, error)

	// DeleteByMetadata removes all records matching the filter. A namespace
	// that was never written to is a successful no-op, not an error.
	DeleteByMetadata(ctx context.Context, filter *domain.Filter, namespace string) error

	// DeleteDocuments removes records by chunk ID.
	DeleteDocuments(ctx context.Context, ids []string, namespace string) error

	// DeleteNamespace removes every record in the namespace.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Stats returns index dimension and per-namespace vector counts.
	Stats(ctx context.Context) (*domain.IndexStats, error)
}
