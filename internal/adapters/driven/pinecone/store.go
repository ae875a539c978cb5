package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*Store)(nil)

// upsertBatchSize is the number of records written per upsert call.
const upsertBatchSize = 100

// fetchLimit caps metadata-only fetches so a broad filter cannot pull an
// entire namespace through one query.
const fetchLimit = 1000

// Store implements driven.VectorStore against a Pinecone serverless index.
// Embedding happens inside Write and QueryByText so callers hand over text,
// never vectors.
type Store struct {
	host       string
	apiKey     string
	embedder   driven.EmbeddingService
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds Pinecone connection configuration
type Config struct {
	// Host is the index data-plane endpoint
	// (e.g., https://my-index-abc123.svc.us-east-1.pinecone.io)
	Host string

	// APIKey authenticates data-plane requests
	APIKey string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(host, apiKey string) Config {
	return Config{
		Host:    host,
		APIKey:  apiKey,
		Timeout: 30 * time.Second,
	}
}

// NewStore creates a new Pinecone-backed VectorStore
func NewStore(cfg Config, embedder driven.EmbeddingService, logger *slog.Logger) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("pinecone host is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone API key is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		host:     strings.TrimSuffix(cfg.Host, "/"),
		apiKey:   cfg.APIKey,
		embedder: embedder,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

type upsertVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

type upsertRequest struct {
	Vectors   []upsertVector `json:"vectors"`
	Namespace string         `json:"namespace"`
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Namespace       string         `json:"namespace"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

type deleteRequest struct {
	IDs       []string       `json:"ids,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
	DeleteAll bool           `json:"deleteAll,omitempty"`
	Namespace string         `json:"namespace"`
}

type statsResponse struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int64 `json:"vectorCount"`
	} `json:"namespaces"`
}

// Write embeds the chunks and upserts them in batches. A batch that fails
// is recorded in the result and the remaining batches still go out, so a
// transient error loses one batch, not the whole document.
func (s *Store) Write(ctx context.Context, chunks []domain.Chunk, namespace string) (*domain.WriteResult, error) {
	if namespace == "" {
		return nil, domain.ErrMissingNamespace
	}
	if len(chunks) == 0 {
		return &domain.WriteResult{}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]upsertVector, len(chunks))
	for i, chunk := range chunks {
		records[i] = upsertVector{
			ID:       chunk.ID,
			Values:   vectors[i],
			Metadata: encodeMetadata(chunk),
		}
	}

	result := &domain.WriteResult{}
	for start := 0; start < len(records); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(records))
		batch := records[start:end]
		result.Batches++

		req := upsertRequest{Vectors: batch, Namespace: namespace}
		if err := s.doRequest(ctx, http.MethodPost, "/vectors/upsert", req, nil); err != nil {
			s.logger.Error("vector upsert batch failed",
				"namespace", namespace,
				"batch", result.Batches,
				"size", len(batch),
				"error", err,
			)
			result.BatchErrors = append(result.BatchErrors, err.Error())
			continue
		}
		result.Written += len(batch)
	}

	return result, nil
}

// Query runs a similarity search and filters out matches below MinScore.
// Pinecone has no server-side score threshold, so the cut happens here.
func (s *Store) Query(ctx context.Context, vector []float32, namespace string, opts driven.QueryOptions) ([]domain.ScoredMatch, error) {
	if namespace == "" {
		return nil, domain.ErrMissingNamespace
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	req := queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       namespace,
		Filter:          translateFilter(opts.Filter),
		IncludeMetadata: true,
	}

	var resp queryResponse
	if err := s.doRequest(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	matches := make([]domain.ScoredMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Score < opts.MinScore {
			continue
		}
		md, content := decodeMetadata(m.Metadata)
		matches = append(matches, domain.ScoredMatch{
			ID:       m.ID,
			Score:    m.Score,
			Content:  content,
			Metadata: md,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

// QueryByText embeds the text in query mode and runs Query.
func (s *Store) QueryByText(ctx context.Context, text string, namespace string, opts driven.QueryOptions) ([]domain.ScoredMatch, error) {
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.Query(ctx, vector, namespace, opts)
}

// FetchByMetadata retrieves records by filter alone. Pinecone's query API
// always wants a vector, so this issues a zero-vector query with MinScore
// disabled; similarity scores in the result are meaningless and callers
// must not rank by them.
func (s *Store) FetchByMetadata(ctx context.Context, filter *domain.Filter, namespace string, limit int) ([]domain.ScoredMatch, error) {
	if namespace == "" {
		return nil, domain.ErrMissingNamespace
	}
	if limit <= 0 || limit > fetchLimit {
		limit = fetchLimit
	}

	req := queryRequest{
		Vector:          make([]float32, s.embedder.Dimensions()),
		TopK:            limit,
		Namespace:       namespace,
		Filter:          translateFilter(filter),
		IncludeMetadata: true,
	}

	var resp queryResponse
	if err := s.doRequest(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	matches := make([]domain.ScoredMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		md, content := decodeMetadata(m.Metadata)
		matches = append(matches, domain.ScoredMatch{
			ID:       m.ID,
			Content:  content,
			Metadata: md,
		})
	}
	return matches, nil
}

// DeleteByMetadata removes all records matching the filter. Deleting from a
// namespace that was never written to is a successful no-op: re-ingestion
// always deletes before writing, and the first ingestion of a workspace must
// not fail on that account.
func (s *Store) DeleteByMetadata(ctx context.Context, filter *domain.Filter, namespace string) error {
	if namespace == "" {
		return domain.ErrMissingNamespace
	}
	if filter.Empty() {
		return fmt.Errorf("%w: refusing unfiltered delete", domain.ErrInvalidInput)
	}

	req := deleteRequest{
		Filter:    translateFilter(filter),
		Namespace: namespace,
	}
	return s.ignoreMissingNamespace(s.doRequest(ctx, http.MethodPost, "/vectors/delete", req, nil))
}

// DeleteDocuments removes records by chunk ID.
func (s *Store) DeleteDocuments(ctx context.Context, ids []string, namespace string) error {
	if namespace == "" {
		return domain.ErrMissingNamespace
	}
	if len(ids) == 0 {
		return nil
	}

	req := deleteRequest{
		IDs:       ids,
		Namespace: namespace,
	}
	return s.ignoreMissingNamespace(s.doRequest(ctx, http.MethodPost, "/vectors/delete", req, nil))
}

// DeleteNamespace removes every record in the namespace.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return domain.ErrMissingNamespace
	}

	req := deleteRequest{
		DeleteAll: true,
		Namespace: namespace,
	}
	return s.ignoreMissingNamespace(s.doRequest(ctx, http.MethodPost, "/vectors/delete", req, nil))
}

// Stats returns index dimension and per-namespace vector counts.
func (s *Store) Stats(ctx context.Context) (*domain.IndexStats, error) {
	var resp statsResponse
	if err := s.doRequest(ctx, http.MethodPost, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return nil, err
	}

	stats := &domain.IndexStats{
		Dimension:       resp.Dimension,
		TotalVectors:    int64(resp.TotalVectorCount),
		NamespaceCounts: make(map[string]int64, len(resp.Namespaces)),
	}
	for ns, info := range resp.Namespaces {
		stats.NamespaceCounts[ns] = info.VectorCount
	}
	return stats, nil
}

// HealthCheck verifies the index is reachable
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.Stats(ctx)
	return err
}

// ignoreMissingNamespace treats a namespace-not-found delete as success.
func (s *Store) ignoreMissingNamespace(err error) error {
	if err == nil {
		return nil
	}
	var provErr *domain.ProviderError
	if errors.As(err, &provErr) && provErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Store) doRequest(ctx context.Context, method, path string, reqBody, respBody any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &domain.ProviderError{
			Provider:   "pinecone",
			Status:     resp.StatusCode,
			StatusText: resp.Status,
			Body:       string(data),
		}
	}

	if respBody != nil {
		if err := json.Unmarshal(data, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
