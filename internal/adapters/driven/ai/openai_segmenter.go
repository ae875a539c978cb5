package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure OpenAISegmenter implements TopicSegmenter
var _ driven.TopicSegmenter = (*OpenAISegmenter)(nil)

// maxSegmenterTurns caps how many turns are sent to the model in one call.
// Longer transcripts are truncated rather than split; topic boundaries in
// the tail of a multi-hour meeting are not worth a second model call.
const maxSegmenterTurns = 500

// OpenAISegmenter implements topic segmentation using an OpenAI-compatible
// chat completions API.
type OpenAISegmenter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAISegmenter creates a new chat-model-backed topic segmenter.
func NewOpenAISegmenter(apiKey, model, baseURL string) (*OpenAISegmenter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("segmenter API key is required")
	}

	if model == "" {
		model = "gpt-4o-mini"
	}

	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAISegmenter{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// segmentPayload is the JSON shape the model is instructed to return.
type segmentPayload struct {
	Segments []struct {
		Topic string `json:"topic"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	} `json:"segments"`
}

const segmenterSystemPrompt = `You segment meeting transcripts into topical sections.
Given numbered speaker turns, group consecutive turns into segments that each cover one topic.
Respond with JSON only: {"segments":[{"topic":"short topic label","start":<first turn index>,"end":<last turn index>}]}.
Indices are zero-based and inclusive. Segments must not overlap and should cover every turn.`

// Segment asks the chat model for topic boundaries over the given turns.
// Topic hints, when present, bias the labels the model chooses.
func (s *OpenAISegmenter) Segment(ctx context.Context, turns []driven.Turn, hints []string) ([]driven.TopicSegment, error) {
	if len(turns) == 0 {
		return nil, nil
	}
	if len(turns) > maxSegmenterTurns {
		turns = turns[:maxSegmenterTurns]
	}

	var b strings.Builder
	if len(hints) > 0 {
		fmt.Fprintf(&b, "Expected topics: %s\n\n", strings.Join(hints, ", "))
	}
	b.WriteString("Transcript turns:\n")
	for i, turn := range turns {
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i, turn.Timestamp, turn.Speaker, turn.Text)
	}

	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: segmenterSystemPrompt},
			{Role: "user", Content: b.String()},
		},
		Temperature:    0,
		ResponseFormat: &chatFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
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
			Provider:   "segmenter",
			Status:     resp.StatusCode,
			StatusText: resp.Status,
			Body:       string(respBody),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: chat response had no choices", domain.ErrParseFailed)
	}

	return parseSegments(chatResp.Choices[0].Message.Content)
}

// Model returns the chat model name.
func (s *OpenAISegmenter) Model() string {
	return s.model
}

// parseSegments extracts topic segments from the model's JSON reply. Models
// occasionally wrap JSON in markdown fences despite instructions, so those
// are stripped before parsing.
func parseSegments(content string) ([]driven.TopicSegment, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload segmentPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}

	segments := make([]driven.TopicSegment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		topic := strings.TrimSpace(seg.Topic)
		if topic == "" {
			topic = "General"
		}
		segments = append(segments, driven.TopicSegment{
			Topic: topic,
			Start: seg.Start,
			End:   seg.End,
		})
	}
	return segments, nil
}
