package mocks

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*MockVectorStore)(nil)

type storedRecord struct {
	id       string
	vector   []float32
	content  string
	metadata domain.Metadata
}

// MockVectorStore is an in-memory, namespace-partitioned VectorStore for
// testing. Vectors are deterministic hashes of content; similarity is cosine.
type MockVectorStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*storedRecord

	// QueryCalls counts similarity searches for cache tests.
	QueryCalls int
	failNext   bool
}

// NewMockVectorStore creates an empty MockVectorStore.
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		namespaces: make(map[string]map[string]*storedRecord),
	}
}

func (s *MockVectorStore) SetFailNext(fail bool) {
	s.failNext = fail
}

func (s *MockVectorStore) takeFailure() error {
	if s.failNext {
		s.failNext = false
		return context.DeadlineExceeded
	}
	return nil
}

func (s *MockVectorStore) Write(ctx context.Context, chunks []domain.Chunk, namespace string) (*domain.WriteResult, error) {
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return &domain.WriteResult{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]*storedRecord)
		s.namespaces[namespace] = ns
	}

	for _, chunk := range chunks {
		ns[chunk.ID] = &storedRecord{
			id:       chunk.ID,
			vector:   hashVector(chunk.Content),
			content:  chunk.Content,
			metadata: chunk.Metadata,
		}
	}

	return &domain.WriteResult{Written: len(chunks), Batches: 1}, nil
}

func (s *MockVectorStore) Query(ctx context.Context, vector []float32, namespace string, opts driven.QueryOptions) ([]domain.ScoredMatch, error) {
	s.QueryCalls++
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.ScoredMatch
	for _, rec := range s.namespaces[namespace] {
		if !matchesFilter(rec.metadata, opts.Filter) {
			continue
		}
		score := cosine(vector, rec.vector)
		if score < opts.MinScore {
			continue
		}
		matches = append(matches, domain.ScoredMatch{
			ID:       rec.id,
			Score:    score,
			Content:  rec.content,
			Metadata: rec.metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if opts.TopK > 0 && len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}
	return matches, nil
}

func (s *MockVectorStore) QueryByText(ctx context.Context, text string, namespace string, opts driven.QueryOptions) ([]domain.ScoredMatch, error) {
	return s.Query(ctx, hashVector(text), namespace, opts)
}

func (s *MockVectorStore) FetchByMetadata(ctx context.Context, filter *domain.Filter, namespace string, limit int) ([]domain.ScoredMatch, error) {
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.ScoredMatch
	for _, rec := range s.namespaces[namespace] {
		if !matchesFilter(rec.metadata, filter) {
			continue
		}
		matches = append(matches, domain.ScoredMatch{
			ID:       rec.id,
			Score:    1,
			Content:  rec.content,
			Metadata: rec.metadata,
		})
		if limit > 0 && len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

func (s *MockVectorStore) DeleteByMetadata(ctx context.Context, filter *domain.Filter, namespace string) error {
	if err := s.takeFailure(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		// Never-written namespace: nothing to delete.
		return nil
	}
	for id, rec := range ns {
		if matchesFilter(rec.metadata, filter) {
			delete(ns, id)
		}
	}
	return nil
}

func (s *MockVectorStore) DeleteDocuments(ctx context.Context, ids []string, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

func (s *MockVectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	return nil
}

func (s *MockVectorStore) Stats(ctx context.Context) (*domain.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.IndexStats{
		Dimension:       8,
		NamespaceCounts: make(map[string]int64),
	}
	for ns, recs := range s.namespaces {
		stats.NamespaceCounts[ns] = int64(len(recs))
		stats.TotalVectors += int64(len(recs))
	}
	return stats, nil
}

// Count returns the number of records in a namespace (test helper).
func (s *MockVectorStore) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}

// Records returns all records in a namespace sorted by chunk index (test helper).
func (s *MockVectorStore) Records(namespace string) []domain.ScoredMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ScoredMatch
	for _, rec := range s.namespaces[namespace] {
		out = append(out, domain.ScoredMatch{ID: rec.id, Content: rec.content, Metadata: rec.metadata})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.ChunkIndex < out[j].Metadata.ChunkIndex })
	return out
}

// matchesFilter evaluates the domain filter expression against metadata.
func matchesFilter(md domain.Metadata, filter *domain.Filter) bool {
	if filter.Empty() {
		return true
	}
	for _, cond := range filter.Conditions {
		if !matchesCondition(md, cond) {
			return false
		}
	}
	return true
}

func matchesCondition(md domain.Metadata, cond domain.Condition) bool {
	switch c := cond.(type) {
	case domain.Equals:
		values, ok := fieldValues(md, c.Key)
		if !ok {
			return false
		}
		for _, v := range values {
			if v == normalize(c.Value) {
				return true
			}
		}
		return false
	case domain.In:
		values, ok := fieldValues(md, c.Key)
		if !ok {
			return false
		}
		for _, want := range c.Values {
			for _, v := range values {
				if v == normalize(want) {
					return true
				}
			}
		}
		return false
	case domain.Range:
		values, ok := fieldValues(md, c.Key)
		if !ok || len(values) == 0 {
			return false
		}
		num, ok := values[0].(float64)
		if !ok {
			return false
		}
		if c.GTE != nil {
			if gte, ok := normalize(c.GTE).(float64); !ok || num < gte {
				return false
			}
		}
		if c.LTE != nil {
			if lte, ok := normalize(c.LTE).(float64); !ok || num > lte {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// fieldValues flattens a metadata field into comparable values.
// List-valued fields (speakers) match if any element matches.
func fieldValues(md domain.Metadata, key string) ([]any, bool) {
	switch key {
	case "document_id":
		return []any{md.DocumentID}, true
	case "document_type":
		return []any{md.DocumentType}, true
	case "user_id":
		return []any{md.UserID}, true
	case "content_source":
		return []any{md.ContentSource}, true
	case "file_hash":
		return []any{md.FileHash}, true
	case "topic":
		return []any{md.Topic}, true
	case "section_title":
		return []any{md.SectionTitle}, true
	case "chunk_index":
		return []any{float64(md.ChunkIndex)}, true
	case "created_at":
		return []any{float64(md.CreatedAt.Unix())}, true
	case "speakers":
		vals := make([]any, len(md.Speakers))
		for i, s := range md.Speakers {
			vals[i] = s
		}
		return vals, true
	default:
		return nil, false
	}
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// hashVector generates a deterministic unit-ish vector from content.
func hashVector(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, 8)
	for i := range vec {
		seed = seed*1103515245 + 12345
		vec[i] = float32(seed%1000) / 1000.0
	}
	return vec
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		// Dimension mismatch still yields a comparable score in tests.
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
