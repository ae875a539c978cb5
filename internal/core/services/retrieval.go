package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
)

// Ensure retrievalService implements Searcher
var _ driving.Searcher = (*retrievalService)(nil)

const (
	// previewLength caps per-match preview content.
	previewLength = 200

	// expansionPenalty discounts adjacent chunks pulled in for context,
	// keeping directly-matched chunks ranked above their neighbors.
	expansionPenalty = 0.8

	// rerankOverfetch widens the candidate pool handed to the cross-encoder.
	rerankOverfetch = 2
)

// retrievalService serves semantic search over the vector index with
// optional reranking, adjacent-chunk context expansion, and a short-TTL
// result cache.
type retrievalService struct {
	store    driven.VectorStore
	reranker driven.Reranker // nil disables reranking
	cache    driven.QueryCache
	logger   *slog.Logger

	minScore    float64
	cacheTTL    time.Duration
	defaultTopK int
}

// RetrievalConfig holds dependencies and tuning for the retrieval service.
type RetrievalConfig struct {
	Store    driven.VectorStore
	Reranker driven.Reranker
	Cache    driven.QueryCache
	Logger   *slog.Logger

	MinScore    float64
	CacheTTL    time.Duration
	DefaultTopK int
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(cfg RetrievalConfig) driving.Searcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	return &retrievalService{
		store:       cfg.Store,
		reranker:    cfg.Reranker,
		cache:       cfg.Cache,
		logger:      logger,
		minScore:    cfg.MinScore,
		cacheTTL:    cfg.CacheTTL,
		defaultTopK: cfg.DefaultTopK,
	}
}

// Search runs the retrieval flow. It never returns a Go error: any failure
// comes back as a result with Success false and a human-readable Error the
// calling agent can relay.
func (s *retrievalService) Search(ctx context.Context, req *domain.QueryRequest) *domain.QueryResult {
	start := time.Now()

	if req == nil || strings.TrimSpace(req.Query) == "" {
		return failResult(req, "query is required", start)
	}
	if req.Namespace == "" {
		return failResult(req, "namespace is required", start)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	cacheKey := requestCacheKey(req, topK)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			s.logger.Debug("query cache hit", "namespace", req.Namespace)
			return cached
		}
	}

	searchK := topK
	useRerank := req.UseReranking && s.reranker != nil
	if useRerank {
		// Overfetch so the cross-encoder has candidates to promote.
		searchK = topK * rerankOverfetch
	}

	matches, err := s.store.QueryByText(ctx, req.Query, req.Namespace, driven.QueryOptions{
		TopK:     searchK,
		Filter:   buildFilter(req),
		MinScore: s.minScore,
	})
	if err != nil {
		s.logger.Error("vector search failed",
			"namespace", req.Namespace,
			"error", err,
		)
		return failResult(req, fmt.Sprintf("search failed: %v", err), start)
	}

	if len(matches) == 0 {
		result := &domain.QueryResult{
			Success: true,
			Query:   req.Query,
			Content: "No relevant content found.",
			Took:    time.Since(start),
		}
		s.cacheResult(ctx, cacheKey, result)
		return result
	}

	if useRerank {
		matches = s.rerank(ctx, req.Query, matches, topK)
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}

	if req.ExpandContext {
		matches = s.expandContext(ctx, req.Namespace, matches)
	}

	result := &domain.QueryResult{
		Success:    true,
		Query:      req.Query,
		Matches:    matches,
		Previews:   buildPreviews(matches),
		Content:    formatContext(matches),
		MatchCount: len(matches),
		Took:       time.Since(start),
	}
	s.cacheResult(ctx, cacheKey, result)
	return result
}

// rerank reorders matches by cross-encoder relevance. On failure the
// similarity order stands; a degraded ranking beats a failed search.
func (s *retrievalService) rerank(ctx context.Context, query string, matches []domain.ScoredMatch, topN int) []domain.ScoredMatch {
	documents := make([]string, len(matches))
	for i, m := range matches {
		documents[i] = m.Content
	}

	results, err := s.reranker.Rerank(ctx, query, documents, topN)
	if err != nil {
		s.logger.Warn("reranking failed, keeping similarity order", "error", err)
		return matches
	}

	reranked := make([]domain.ScoredMatch, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(matches) {
			continue
		}
		match := matches[r.Index]
		match.Score = r.Score
		reranked = append(reranked, match)
	}
	if len(reranked) == 0 {
		return matches
	}
	return reranked
}

// expandContext pulls in the chunks adjacent to each match within the same
// document, discounted by expansionPenalty, then orders everything by
// document and chunk position so the formatted context reads coherently.
func (s *retrievalService) expandContext(ctx context.Context, namespace string, matches []domain.ScoredMatch) []domain.ScoredMatch {
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		seen[m.ID] = struct{}{}
	}

	expanded := matches
	for _, m := range matches {
		if m.Metadata.FileHash == "" || m.Metadata.TotalChunks <= 1 {
			continue
		}

		var wanted []any
		if m.Metadata.ChunkIndex > 0 {
			wanted = append(wanted, m.Metadata.ChunkIndex-1)
		}
		if m.Metadata.ChunkIndex < m.Metadata.TotalChunks-1 {
			wanted = append(wanted, m.Metadata.ChunkIndex+1)
		}
		if len(wanted) == 0 {
			continue
		}

		filter := domain.NewFilter(
			domain.Equals{Key: "file_hash", Value: m.Metadata.FileHash},
			domain.In{Key: "chunk_index", Values: wanted},
		)
		neighbors, err := s.store.FetchByMetadata(ctx, filter, namespace, len(wanted))
		if err != nil {
			s.logger.Warn("context expansion fetch failed",
				"file_hash", m.Metadata.FileHash,
				"error", err,
			)
			continue
		}

		for _, n := range neighbors {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			n.Score = m.Score * expansionPenalty
			expanded = append(expanded, n)
		}
	}

	sort.SliceStable(expanded, func(i, j int) bool {
		if expanded[i].Metadata.FileHash != expanded[j].Metadata.FileHash {
			return expanded[i].Metadata.FileHash < expanded[j].Metadata.FileHash
		}
		return expanded[i].Metadata.ChunkIndex < expanded[j].Metadata.ChunkIndex
	})
	return expanded
}

func (s *retrievalService) cacheResult(ctx context.Context, key string, result *domain.QueryResult) {
	if s.cache != nil {
		s.cache.Set(ctx, key, result, s.cacheTTL)
	}
}

// buildFilter translates the request's optional facets into a metadata
// filter. "all" and empty mean no constraint.
func buildFilter(req *domain.QueryRequest) *domain.Filter {
	filter := domain.NewFilter()

	if req.ContentType != "" && req.ContentType != "all" {
		filter.Add(domain.Equals{Key: "document_type", Value: req.ContentType})
	}
	if req.ContentSource != "" && req.ContentSource != "all" {
		filter.Add(domain.Equals{Key: "content_source", Value: req.ContentSource})
	}
	if len(req.Topics) > 0 {
		filter.Add(domain.In{Key: "topic", Values: toAny(req.Topics)})
	}
	if len(req.Speakers) > 0 {
		filter.Add(domain.In{Key: "speakers", Values: toAny(req.Speakers)})
	}
	if req.DateFrom != nil || req.DateTo != nil {
		r := domain.Range{Key: "created_at"}
		if req.DateFrom != nil {
			r.GTE = float64(req.DateFrom.Unix())
		}
		if req.DateTo != nil {
			r.LTE = float64(req.DateTo.Unix())
		}
		filter.Add(r)
	}

	return filter
}

// requestCacheKey derives a stable cache key from everything that affects
// the result. QueryRequest marshals deterministically (fixed field order),
// so equal requests hash equally.
func requestCacheKey(req *domain.QueryRequest, topK int) string {
	normalized := *req
	normalized.TopK = topK
	normalized.Query = strings.TrimSpace(req.Query)

	data, _ := json.Marshal(&normalized)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func buildPreviews(matches []domain.ScoredMatch) []domain.MatchPreview {
	previews := make([]domain.MatchPreview, len(matches))
	for i, m := range matches {
		content := m.Content
		if len(content) > previewLength {
			content = content[:previewLength]
		}
		previews[i] = domain.MatchPreview{
			ID:      m.ID,
			Score:   m.Score,
			Title:   m.Metadata.Title,
			Content: content,
		}
	}
	return previews
}

// formatContext renders matches as an LLM-ready block, grouped by document
// with chunks in position order.
func formatContext(matches []domain.ScoredMatch) string {
	var b strings.Builder
	lastHash := ""

	for _, m := range matches {
		if m.Metadata.FileHash != lastHash {
			if lastHash != "" {
				b.WriteString("\n")
			}
			lastHash = m.Metadata.FileHash

			fmt.Fprintf(&b, "## %s", m.Metadata.Title)
			if m.Metadata.DocumentType != "" {
				fmt.Fprintf(&b, " (%s)", m.Metadata.DocumentType)
			}
			b.WriteString("\n")
		}

		if m.Metadata.Topic != "" {
			fmt.Fprintf(&b, "### %s\n", m.Metadata.Topic)
			if len(m.Metadata.Speakers) > 0 {
				fmt.Fprintf(&b, "Speakers: %s\n", strings.Join(m.Metadata.Speakers, ", "))
			}
		} else if m.Metadata.SectionTitle != "" && !strings.HasPrefix(m.Content, m.Metadata.SectionTitle) {
			fmt.Fprintf(&b, "### %s\n", m.Metadata.SectionTitle)
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func failResult(req *domain.QueryRequest, msg string, start time.Time) *domain.QueryResult {
	result := &domain.QueryResult{
		Success: false,
		Error:   msg,
		Took:    time.Since(start),
	}
	if req != nil {
		result.Query = req.Query
	}
	return result
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
