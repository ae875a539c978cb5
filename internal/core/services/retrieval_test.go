package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/ragcore/internal/cache"
	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
)

// seedWorkspace indexes the canonical three-section meeting summary used
// across retrieval tests.
func seedWorkspace(t *testing.T, store *mocks.MockVectorStore, workspace string) {
	t.Helper()
	pipeline := newTestPipeline(store)
	doc := &domain.DocumentDescriptor{
		ID:            "doc-1",
		WorkspaceID:   workspace,
		Title:         "Weekly Sync",
		DocumentType:  "summary",
		ContentSource: "workspace",
		CreatedBy:     "user-1",
		Content:       "# Agenda\nreview roadmap and hiring\n\n# Decisions\nship the beta on Friday\n\n# Actions\nAlice drafts the announcement",
	}
	if result := pipeline.Sync(context.Background(), doc); !result.Success {
		t.Fatalf("seed sync failed: %s", result.Error)
	}
}

func newTestRetrieval(store *mocks.MockVectorStore, reranker driven.Reranker, queryCache driven.QueryCache) driving.Searcher {
	return NewRetrievalService(RetrievalConfig{
		Store:       store,
		Reranker:    reranker,
		Cache:       queryCache,
		MinScore:    0,
		CacheTTL:    5 * time.Minute,
		DefaultTopK: 5,
	})
}

func TestRetrieval_BasicSearch(t *testing.T) {
	store := mocks.NewMockVectorStore()
	seedWorkspace(t, store, "ws-1")
	svc := newTestRetrieval(store, nil, nil)

	result := svc.Search(context.Background(), &domain.QueryRequest{
		Query:     "Decisions\nship the beta on Friday",
		Namespace: "ws-1",
		TopK:      1,
	})

	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if result.MatchCount != 1 {
		t.Fatalf("expected 1 match, got %d", result.MatchCount)
	}
	if result.Matches[0].ID != "doc-1-section-1" {
		t.Errorf("expected decisions section, got %s", result.Matches[0].ID)
	}
	if len(result.Previews) != 1 {
		t.Errorf("expected 1 preview, got %d", len(result.Previews))
	}
	if result.Previews[0].Title != "Weekly Sync" {
		t.Errorf("unexpected preview title %q", result.Previews[0].Title)
	}
	if !strings.Contains(result.Content, "## Weekly Sync (summary)") {
		t.Errorf("expected document header in content, got:\n%s", result.Content)
	}
}

func TestRetrieval_ValidationFailures(t *testing.T) {
	svc := newTestRetrieval(mocks.NewMockVectorStore(), nil, nil)
	ctx := context.Background()

	for _, req := range []*domain.QueryRequest{
		nil,
		{Query: "  ", Namespace: "ws-1"},
		{Query: "roadmap"},
	} {
		result := svc.Search(ctx, req)
		if result.Success {
			t.Errorf("expected failure for %+v", req)
		}
		if result.Error == "" {
			t.Error("expected error message")
		}
	}
}

func TestRetrieval_StoreFailureReturnsResult(t *testing.T) {
	store := mocks.NewMockVectorStore()
	svc := newTestRetrieval(store, nil, nil)

	store.SetFailNext(true)
	result := svc.Search(context.Background(), &domain.QueryRequest{
		Query:     "roadmap",
		Namespace: "ws-1",
	})

	if result.Success {
		t.Error("expected failure result")
	}
	if !strings.Contains(result.Error, "search failed") {
		t.Errorf("unexpected error %q", result.Error)
	}
}

func TestRetrieval_NoMatches(t *testing.T) {
	store := mocks.NewMockVectorStore()
	svc := newTestRetrieval(store, nil, nil)

	result := svc.Search(context.Background(), &domain.QueryRequest{
		Query:     "anything",
		Namespace: "empty-ws",
	})

	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if result.MatchCount != 0 {
		t.Errorf("expected 0 matches, got %d", result.MatchCount)
	}
	if result.Content != "No relevant content found." {
		t.Errorf("unexpected content %q", result.Content)
	}
}

func TestRetrieval_CacheHitSkipsSearch(t *testing.T) {
	store := mocks.NewMockVectorStore()
	seedWorkspace(t, store, "ws-1")
	svc := newTestRetrieval(store, nil, cache.NewMemory())

	req := &domain.QueryRequest{Query: "roadmap and hiring", Namespace: "ws-1", TopK: 2}
	ctx := context.Background()

	first := svc.Search(ctx, req)
	if !first.Success {
		t.Fatalf("first search failed: %s", first.Error)
	}
	second := svc.Search(ctx, req)
	if !second.Success {
		t.Fatalf("second search failed: %s", second.Error)
	}

	if store.QueryCalls != 1 {
		t.Errorf("expected 1 store query, got %d", store.QueryCalls)
	}
	if second.MatchCount != first.MatchCount {
		t.Errorf("cached result differs: %d vs %d", second.MatchCount, first.MatchCount)
	}
}

func TestRetrieval_DifferentRequestsMissCache(t *testing.T) {
	store := mocks.NewMockVectorStore()
	seedWorkspace(t, store, "ws-1")
	svc := newTestRetrieval(store, nil, cache.NewMemory())
	ctx := context.Background()

	svc.Search(ctx, &domain.QueryRequest{Query: "roadmap", Namespace: "ws-1"})
	svc.Search(ctx, &domain.QueryRequest{Query: "roadmap", Namespace: "ws-1", TopK: 2})

	if store.QueryCalls != 2 {
		t.Errorf("expected 2 store queries for distinct requests, got %d", store.QueryCalls)
	}
}

func TestRetrieval_RerankReordersMatches(t *testing.T) {
	store := mocks.NewMockVectorStore()
	seedWorkspace(t, store, "ws-1")
	reranker := &mocks.MockReranker{Reverse: true}
	svc := newTestRetrieval(store, reranker, nil)

	baseline := svc.Search(context.Background(), &domain.QueryRequest{
		Query:     "roadmap and hiring",
		Namespace: "ws-1",
		TopK:      3,
	})
	if !baseline.Success || baseline.MatchCount != 3 {
		t.Fatalf("baseline search failed: %+v", baseline)
	}
	if reranker.Calls != 0 {
		t.Fatal("reranker must not run unless requested")
	}

	reranked := svc.Search(context.Background(), &domain.QueryRequest{
		Query:        "roadmap and hiring",
		Namespace:    "ws-1",
		TopK:         3,
		UseReranking: true,
	})
	if !reranked.Success {
		t.Fatalf("reranked search failed: %s", reranked.Error)
	}
	if reranker.Calls != 1 {
		t.Errorf("expected 1 rerank call, got %d", reranker.Calls)
	}
	if reranked.Matches[0].ID == baseline.Matches[0].ID {
		t.Error("expected reranking to change the top match")
	}
}

func TestRetrieval_RerankFailureDegrades(t *testing.T) {
	store := mocks.NewMockVectorStore()
	seedWorkspace(t, store, "ws-1")
	reranker := &mocks.MockReranker{Err: errors.New("rate limited")}
	svc := newTestRetrieval(store, reranker, nil)

	result := svc.Search(context.Background(), &domain.QueryRequest{
		Query:        "roadmap and hiring",
		Namespace:    "ws-1",
		TopK:         2,
		UseReranking: true,
	})

	if !result.Success {
		t.Fatalf("expected degraded success, got %s", result.Error)
	}
	if result.MatchCount != 2 {
		t.Errorf("expected 2 matches in similarity order, got %d", result.MatchCount)
	}
	if reranker.Calls != 1 {
		t.Errorf("expected rerank attempted once, got %d", reranker.Calls)
	}
}

func TestRetrieval_ContextExpansion(t *testing.T) {
	store := mocks.NewMockVectorStore()
	seedWorkspace(t, store, "ws-1")
	svc := newTestRetrieval(store, nil, nil)

	// Exact-content query pins the middle section as the single match;
	// expansion should pull in both neighbors.
	result := svc.Search(context.Background(), &domain.QueryRequest{
		Query:         "Decisions\nship the beta on Friday",
		Namespace:     "ws-1",
		TopK:          1,
		ExpandContext: true,
	})

	if !result.Success {
		t.Fatalf("search failed: %s", result.Error)
	}
	if result.MatchCount != 3 {
		t.Fatalf("expected 3 matches after expansion, got %d", result.MatchCount)
	}

	// Ordered by chunk position within the document.
	for i, m := range result.Matches {
		if m.Metadata.ChunkIndex != i {
			t.Errorf("expected chunk index %d at position %d, got %d", i, i, m.Metadata.ChunkIndex)
		}
	}

	direct := result.Matches[1]
	if direct.ID != "doc-1-section-1" {
		t.Fatalf("expected direct match in the middle, got %s", direct.ID)
	}
	for _, i := range []int{0, 2} {
		neighbor := result.Matches[i]
		want := direct.Score * 0.8
		if diff := neighbor.Score - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("expected neighbor score %f, got %f", want, neighbor.Score)
		}
	}
}

func TestRetrieval_ExpansionDeduplicates(t *testing.T) {
	store := mocks.NewMockVectorStore()
	seedWorkspace(t, store, "ws-1")
	svc := newTestRetrieval(store, nil, nil)

	// All three sections already match; expansion must not duplicate them.
	result := svc.Search(context.Background(), &domain.QueryRequest{
		Query:         "roadmap and hiring",
		Namespace:     "ws-1",
		TopK:          3,
		ExpandContext: true,
	})

	if !result.Success {
		t.Fatalf("search failed: %s", result.Error)
	}
	if result.MatchCount != 3 {
		t.Errorf("expected 3 unique matches, got %d", result.MatchCount)
	}
	seen := make(map[string]bool)
	for _, m := range result.Matches {
		if seen[m.ID] {
			t.Errorf("duplicate match %s", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestRetrieval_TypeFilter(t *testing.T) {
	store := mocks.NewMockVectorStore()
	seedWorkspace(t, store, "ws-1")
	svc := newTestRetrieval(store, nil, nil)
	ctx := context.Background()

	filtered := svc.Search(ctx, &domain.QueryRequest{
		Query:       "roadmap and hiring",
		Namespace:   "ws-1",
		ContentType: "ai-transcript",
	})
	if !filtered.Success {
		t.Fatalf("search failed: %s", filtered.Error)
	}
	if filtered.MatchCount != 0 {
		t.Errorf("expected type filter to exclude summaries, got %d matches", filtered.MatchCount)
	}

	// "all" means no constraint.
	unfiltered := svc.Search(ctx, &domain.QueryRequest{
		Query:       "roadmap and hiring",
		Namespace:   "ws-1",
		ContentType: "all",
	})
	if unfiltered.MatchCount == 0 {
		t.Error("expected matches with content type all")
	}
}

func TestRetrieval_NamespaceIsolation(t *testing.T) {
	store := mocks.NewMockVectorStore()
	seedWorkspace(t, store, "ws-1")
	svc := newTestRetrieval(store, nil, nil)

	result := svc.Search(context.Background(), &domain.QueryRequest{
		Query:     "roadmap and hiring",
		Namespace: "ws-other",
	})

	if !result.Success {
		t.Fatalf("search failed: %s", result.Error)
	}
	if result.MatchCount != 0 {
		t.Errorf("expected no cross-namespace matches, got %d", result.MatchCount)
	}
}

func TestBuildFilter(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	filter := buildFilter(&domain.QueryRequest{
		ContentType:   "summary",
		ContentSource: "workspace",
		Topics:        []string{"roadmap"},
		Speakers:      []string{"Alice", "Bob"},
		DateFrom:      &from,
		DateTo:        &to,
	})
	if len(filter.Conditions) != 5 {
		t.Errorf("expected 5 conditions, got %d", len(filter.Conditions))
	}

	empty := buildFilter(&domain.QueryRequest{ContentType: "all"})
	if !empty.Empty() {
		t.Errorf("expected empty filter, got %d conditions", len(empty.Conditions))
	}
}
