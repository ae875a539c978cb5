package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// setupTestCache creates a test Redis client and QueryCache
func setupTestCache(t *testing.T) (*QueryCache, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewQueryCache(client, nil)

	return cache, mr, func() {
		client.Close()
		mr.Close()
	}
}

func testResult(query string) *domain.QueryResult {
	return &domain.QueryResult{
		Success:    true,
		Query:      query,
		MatchCount: 2,
		Content:    "formatted context",
		Matches: []domain.ScoredMatch{
			{ID: "doc-1-section-0", Score: 0.91, Content: "alpha"},
			{ID: "doc-1-section-1", Score: 0.82, Content: "beta"},
		},
	}
}

func TestQueryCache_SetAndGet(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()

	ctx := context.Background()
	cache.Set(ctx, "key-1", testResult("roadmap"), 5*time.Minute)

	got, ok := cache.Get(ctx, "key-1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Query != "roadmap" {
		t.Errorf("expected query %q, got %q", "roadmap", got.Query)
	}
	if len(got.Matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got.Matches))
	}
	if got.Matches[0].Score != 0.91 {
		t.Errorf("expected score 0.91, got %f", got.Matches[0].Score)
	}
}

func TestQueryCache_Miss(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()

	got, ok := cache.Get(context.Background(), "never-set")
	if ok {
		t.Error("expected cache miss")
	}
	if got != nil {
		t.Error("expected nil result on miss")
	}
}

func TestQueryCache_Expiry(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()

	ctx := context.Background()
	cache.Set(ctx, "key-1", testResult("roadmap"), time.Minute)

	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx, "key-1"); ok {
		t.Error("expected entry to have expired")
	}
}

func TestQueryCache_CorruptEntryDropped(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()

	ctx := context.Background()
	mr.Set(cachePrefix+"key-1", "not json")

	if _, ok := cache.Get(ctx, "key-1"); ok {
		t.Error("expected corrupt entry to read as miss")
	}
	if mr.Exists(cachePrefix + "key-1") {
		t.Error("expected corrupt entry to be deleted")
	}
}

func TestQueryCache_ZeroTTLIgnored(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()

	cache.Set(context.Background(), "key-1", testResult("roadmap"), 0)

	if mr.Exists(cachePrefix + "key-1") {
		t.Error("expected nothing stored for zero TTL")
	}
}

func TestQueryCache_BackendDownDegrades(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()

	mr.Close()

	ctx := context.Background()
	// Neither call should panic or surface an error.
	cache.Set(ctx, "key-1", testResult("roadmap"), time.Minute)
	if _, ok := cache.Get(ctx, "key-1"); ok {
		t.Error("expected miss when backend is down")
	}
}
