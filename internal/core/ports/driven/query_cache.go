package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// QueryCache is a best-effort TTL cache for query results. Staleness within
// the TTL window is acceptable; a miss or a cache error just means the
// search runs normally.
type QueryCache interface {
	// Get returns the cached result for the key, or (nil, false) on a miss.
	Get(ctx context.Context, key string) (*domain.QueryResult, bool)

	// Set stores a result under the key for the given TTL.
	Set(ctx context.Context, key string, result *domain.QueryResult, ttl time.Duration)
}
