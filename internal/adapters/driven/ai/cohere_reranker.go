package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure CohereReranker implements Reranker
var _ driven.Reranker = (*CohereReranker)(nil)

// CohereReranker implements cross-encoder reranking via Cohere's rerank API.
type CohereReranker struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewCohereReranker creates a new Cohere-backed reranker.
func NewCohereReranker(apiKey, model, baseURL string) (*CohereReranker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cohere API key is required")
	}

	if model == "" {
		model = "rerank-v3.5"
	}

	if baseURL == "" {
		baseURL = "https://api.cohere.com/v2"
	}

	return &CohereReranker{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores documents against the query and returns the topN results
// ordered by descending relevance.
func (r *CohereReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]driven.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	reqBody := rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
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
			Provider:   "cohere",
			Status:     resp.StatusCode,
			StatusText: resp.Status,
			Body:       string(respBody),
		}
	}

	var rerankResp rerankResponse
	if err := json.Unmarshal(respBody, &rerankResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]driven.RerankResult, 0, len(rerankResp.Results))
	for _, res := range rerankResp.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			continue
		}
		results = append(results, driven.RerankResult{
			Index: res.Index,
			Score: res.RelevanceScore,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// Model returns the reranking model name.
func (r *CohereReranker) Model() string {
	return r.model
}
