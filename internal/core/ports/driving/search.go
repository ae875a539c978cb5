package driving

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// Searcher serves semantic-search queries, callable as an agent tool.
// Search never returns a Go error to the caller: failures come back as a
// structured result with Success false that the agent can relay.
type Searcher interface {
	Search(ctx context.Context, req *domain.QueryRequest) *domain.QueryResult
}
