package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure VoyageEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*VoyageEmbedding)(nil)

const (
	// maxBatchSize is the provider's hard cap on inputs per call.
	maxBatchSize = 1000

	// maxBatchTokens is the aggregate per-call token budget.
	maxBatchTokens = 120_000

	// charsPerToken is the rough estimate used to stay under the budget
	// without a tokenizer round trip.
	charsPerToken = 4
)

// Embedding input modes. Storage and search must use mode-matched vectors
// from the same embedding family.
const (
	inputTypeDocument = "document"
	inputTypeQuery    = "query"
)

// Model dimensions for Voyage embedding models
var voyageModelDimensions = map[string]int{
	"voyage-3":       1024,
	"voyage-3-lite":  512,
	"voyage-3-large": 1024,
	"voyage-code-3":  1024,
}

// VoyageEmbedding implements EmbeddingService using Voyage AI's embedding API
type VoyageEmbedding struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	client     *http.Client

	// limiter paces sub-batches so a large document doesn't burst through
	// the provider's throughput limits.
	limiter *rate.Limiter
}

// NewVoyageEmbedding creates a new Voyage embedding service
func NewVoyageEmbedding(apiKey, model, baseURL string) (*VoyageEmbedding, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("voyage API key is required")
	}

	if model == "" {
		model = "voyage-3"
	}

	if baseURL == "" {
		baseURL = "https://api.voyageai.com/v1"
	}

	dimensions, ok := voyageModelDimensions[model]
	if !ok {
		dimensions = 1024
	}

	return &VoyageEmbedding{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		dimensions: dimensions,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}, nil
}

// embeddingRequest is the request body for the Voyage embedding API
type embeddingRequest struct {
	Input           any    `json:"input"` // string or []string
	Model           string `json:"model"`
	InputType       string `json:"input_type"`
	Truncation      bool   `json:"truncation"`
	OutputDimension int    `json:"output_dimension,omitempty"`
	OutputDtype     string `json:"output_dtype,omitempty"`
}

// embeddingResponse is the response from the Voyage embedding API
type embeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbedDocuments generates storage-mode embeddings for multiple texts.
// Oversized inputs are split into sub-batches under the provider's
// cardinality and token limits, awaited sequentially, and reassembled in
// input order.
func (e *VoyageEmbedding) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batches := splitBatches(texts)
	out := make([][]float32, 0, len(texts))

	for _, batch := range batches {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := e.embedBatch(ctx, batch, inputTypeDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	return out, nil
}

// EmbedQuery generates a query-mode embedding for a search string.
func (e *VoyageEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{query}, inputTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return vectors[0], nil
}

// embedBatch embeds one sub-batch. On a limit-attributable rejection it
// halves the batch and retries each half once rather than failing outright.
func (e *VoyageEmbedding) embedBatch(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	vectors, err := e.doRequest(ctx, texts, inputType)
	if err == nil {
		return vectors, nil
	}

	if !isLimitError(err) || len(texts) < 2 {
		return nil, err
	}

	mid := len(texts) / 2
	first, err := e.doRequest(ctx, texts[:mid], inputType)
	if err != nil {
		return nil, err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	second, err := e.doRequest(ctx, texts[mid:], inputType)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

// doRequest makes one call to the embedding endpoint and reassembles the
// result by the provider-returned index so output order matches input order.
func (e *VoyageEmbedding) doRequest(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Input:           texts,
		Model:           e.model,
		InputType:       inputType,
		Truncation:      true,
		OutputDimension: e.dimensions,
		OutputDtype:     "float",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{
			Provider:   "voyage",
			Status:     resp.StatusCode,
			StatusText: resp.Status,
			Body:       string(respBody),
		}
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	sort.Slice(embResp.Data, func(i, j int) bool {
		return embResp.Data[i].Index < embResp.Data[j].Index
	})

	vectors := make([][]float32, len(texts))
	for _, d := range embResp.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension size
func (e *VoyageEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *VoyageEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding service is available
func (e *VoyageEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *VoyageEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// splitBatches splits texts into sub-batches under both the cardinality cap
// and the aggregate token budget.
func splitBatches(texts []string) [][]string {
	var batches [][]string
	var current []string
	tokens := 0

	for _, text := range texts {
		cost := estimateTokens(text)
		if len(current) > 0 && (len(current) >= maxBatchSize || tokens+cost > maxBatchTokens) {
			batches = append(batches, current)
			current = nil
			tokens = 0
		}
		current = append(current, text)
		tokens += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func estimateTokens(text string) int {
	return len(text)/charsPerToken + 1
}

// isLimitError reports whether the provider rejected the call for exceeding
// batch or payload limits, which halving can fix.
func isLimitError(err error) bool {
	var provErr *domain.ProviderError
	if errors.As(err, &provErr) {
		if provErr.IsLimitExceeded() {
			return true
		}
		body := strings.ToLower(provErr.Body)
		return strings.Contains(body, "too large") || strings.Contains(body, "too many")
	}
	return false
}
