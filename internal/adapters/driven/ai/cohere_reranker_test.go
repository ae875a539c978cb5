package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCohereReranker_Rerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "roadmap concerns", req.Query)
		assert.Len(t, req.Documents, 3)

		// Scores out of order; the client must sort descending.
		w.Write([]byte(`{"results":[
			{"index":0,"relevance_score":0.2},
			{"index":2,"relevance_score":0.9},
			{"index":1,"relevance_score":0.5}
		]}`))
	}))
	defer server.Close()

	reranker, err := NewCohereReranker("test-key", "", server.URL)
	require.NoError(t, err)

	results, err := reranker.Rerank(context.Background(), "roadmap concerns", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, 1, results[1].Index)
}

func TestCohereReranker_DropsOutOfRangeIndices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"index":5,"relevance_score":0.9},
			{"index":0,"relevance_score":0.4}
		]}`))
	}))
	defer server.Close()

	reranker, err := NewCohereReranker("test-key", "", server.URL)
	require.NoError(t, err)

	results, err := reranker.Rerank(context.Background(), "q", []string{"a", "b"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Index)
}

func TestCohereReranker_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer server.Close()

	reranker, err := NewCohereReranker("test-key", "", server.URL)
	require.NoError(t, err)

	_, err = reranker.Rerank(context.Background(), "q", []string{"a"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCohereReranker_EmptyDocuments(t *testing.T) {
	reranker, err := NewCohereReranker("test-key", "", "http://unused.invalid")
	require.NoError(t, err)

	results, err := reranker.Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestNewCohereReranker_Defaults(t *testing.T) {
	_, err := NewCohereReranker("", "", "")
	require.Error(t, err)

	reranker, err := NewCohereReranker("key", "", "")
	require.NoError(t, err)
	assert.Equal(t, "rerank-v3.5", reranker.Model())
}
