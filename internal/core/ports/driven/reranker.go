package driven

import "context"

// RerankResult scores one candidate document against the query.
// Index refers to the position in the candidate slice passed to Rerank.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker performs second-pass, query-aware relevance scoring of an initial
// similarity-search candidate set (a cross-encoder behind an API).
type Reranker interface {
	// Rerank scores documents against the query and returns the topN results
	// ordered by descending relevance.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)

	// Model returns the reranking model name.
	Model() string
}
