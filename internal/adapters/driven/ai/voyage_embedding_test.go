package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer responds to /embeddings with deterministic vectors
// derived from the input index, so tests can verify order preservation.
func fakeEmbeddingServer(t *testing.T, onRequest func(req embeddingRequest) int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if onRequest != nil {
			if status := onRequest(req); status != http.StatusOK {
				w.WriteHeader(status)
				w.Write([]byte(`{"detail":"batch size is too large"}`))
				return
			}
		}

		inputs := req.Input.([]any)
		resp := embeddingResponse{Model: req.Model}
		// Return data in reverse index order to exercise reassembly.
		for i := len(inputs) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Object    string    `json:"object"`
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{
				Object:    "embedding",
				Index:     i,
				Embedding: []float32{float32(i), float32(len(inputs[i].(string)))},
			})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestEmbedding(t *testing.T, url string) *VoyageEmbedding {
	t.Helper()
	svc, err := NewVoyageEmbedding("test-key", "voyage-3", url)
	require.NoError(t, err)
	// Keep sub-batch pacing out of test runtime.
	svc.limiter.SetLimit(1e6)
	return svc
}

func TestVoyageEmbedding_EmbedDocumentsPreservesOrder(t *testing.T) {
	var inputTypes []string
	server := fakeEmbeddingServer(t, func(req embeddingRequest) int {
		inputTypes = append(inputTypes, req.InputType)
		return http.StatusOK
	})
	defer server.Close()

	svc := newTestEmbedding(t, server.URL)

	vectors, err := svc.EmbedDocuments(context.Background(), []string{"aa", "bbbb", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	// Vector[1] encodes the provider index; the server responded in reverse
	// order, so matching indices prove reassembly by index.
	assert.Equal(t, float32(0), vectors[0][0])
	assert.Equal(t, float32(1), vectors[1][0])
	assert.Equal(t, float32(2), vectors[2][0])
	assert.Equal(t, []string{inputTypeDocument}, inputTypes)
}

func TestVoyageEmbedding_EmbedQueryUsesQueryMode(t *testing.T) {
	var gotType string
	server := fakeEmbeddingServer(t, func(req embeddingRequest) int {
		gotType = req.InputType
		return http.StatusOK
	})
	defer server.Close()

	svc := newTestEmbedding(t, server.URL)

	vector, err := svc.EmbedQuery(context.Background(), "what changed last week")
	require.NoError(t, err)
	require.NotEmpty(t, vector)
	assert.Equal(t, inputTypeQuery, gotType)
}

func TestVoyageEmbedding_SplitsOversizedBatches(t *testing.T) {
	var batchSizes []int
	server := fakeEmbeddingServer(t, func(req embeddingRequest) int {
		batchSizes = append(batchSizes, len(req.Input.([]any)))
		return http.StatusOK
	})
	defer server.Close()

	svc := newTestEmbedding(t, server.URL)

	texts := make([]string, 1500)
	for i := range texts {
		texts[i] = "short text"
	}

	vectors, err := svc.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 1500)
	assert.Equal(t, []int{1000, 500}, batchSizes)
}

func TestVoyageEmbedding_HalvesBatchOnLimitError(t *testing.T) {
	var calls atomic.Int32
	server := fakeEmbeddingServer(t, func(req embeddingRequest) int {
		if calls.Add(1) == 1 {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusOK
	})
	defer server.Close()

	svc := newTestEmbedding(t, server.URL)

	vectors, err := svc.EmbedDocuments(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.Len(t, vectors, 4)
	// Initial rejected call plus one per half.
	assert.Equal(t, int32(3), calls.Load())
}

func TestVoyageEmbedding_HalvedRetryFailurePropagates(t *testing.T) {
	server := fakeEmbeddingServer(t, func(req embeddingRequest) int {
		return http.StatusRequestEntityTooLarge
	})
	defer server.Close()

	svc := newTestEmbedding(t, server.URL)

	_, err := svc.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestVoyageEmbedding_NonLimitErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer server.Close()

	svc := newTestEmbedding(t, server.URL)

	_, err := svc.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "401")
}

func TestVoyageEmbedding_EmptyInput(t *testing.T) {
	svc := newTestEmbedding(t, "http://unused.invalid")

	vectors, err := svc.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestSplitBatches_TokenBudget(t *testing.T) {
	// Each text estimates to ~50k tokens, so only two fit per batch.
	big := strings.Repeat("x", 200_000)
	batches := splitBatches([]string{big, big, big, big, big})
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
}

func TestNewVoyageEmbedding_Validation(t *testing.T) {
	_, err := NewVoyageEmbedding("", "voyage-3", "")
	require.Error(t, err)

	svc, err := NewVoyageEmbedding("key", "", "")
	require.NoError(t, err)
	assert.Equal(t, "voyage-3", svc.Model())
	assert.Equal(t, 1024, svc.Dimensions())

	lite, err := NewVoyageEmbedding("key", "voyage-3-lite", "")
	require.NoError(t, err)
	assert.Equal(t, 512, lite.Dimensions())
}
