package mocks

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Reranker = (*MockReranker)(nil)

// MockReranker is a configurable Reranker for testing.
type MockReranker struct {
	// Reverse makes the reranker return candidates in reverse input order,
	// so tests can assert reranking actually replaced similarity ordering.
	Reverse bool

	// Err, when set, is returned from every Rerank call.
	Err error

	// Calls counts Rerank invocations.
	Calls int
}

// NewMockReranker creates a MockReranker that preserves input order.
func NewMockReranker() *MockReranker {
	return &MockReranker{}
}

func (m *MockReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]driven.RerankResult, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}

	results := make([]driven.RerankResult, 0, len(documents))
	for i := range documents {
		idx := i
		if m.Reverse {
			idx = len(documents) - 1 - i
		}
		results = append(results, driven.RerankResult{
			Index: idx,
			Score: 1 - float64(i)/float64(len(documents)+1),
		})
	}
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

func (m *MockReranker) Model() string {
	return "mock-reranker"
}
