package domain

import "time"

// QueryRequest describes one semantic-search call.
type QueryRequest struct {
	Query         string     `json:"query"`
	Namespace     string     `json:"namespace"`
	ContentType   string     `json:"content_type,omitempty"` // "all" or empty means no type filter
	ContentSource string     `json:"content_source,omitempty"`
	Topics        []string   `json:"topics,omitempty"`
	Speakers      []string   `json:"speakers,omitempty"`
	DateFrom      *time.Time `json:"date_from,omitempty"`
	DateTo        *time.Time `json:"date_to,omitempty"`
	TopK          int        `json:"top_k,omitempty"`
	ExpandContext bool       `json:"expand_context,omitempty"`
	UseReranking  bool       `json:"use_reranking,omitempty"`
}

// MatchPreview is a truncated view of a match for compact tool output.
type MatchPreview struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	Content string  `json:"content"` // capped at 200 chars
}

// QueryResult is the structured outcome of a search. A failed search is a
// result with Success false, never a raised error; the calling agent relays
// the failure conversationally.
type QueryResult struct {
	Success    bool           `json:"success"`
	Query      string         `json:"query"`
	Matches    []ScoredMatch  `json:"matches,omitempty"`
	Previews   []MatchPreview `json:"previews,omitempty"`
	Content    string         `json:"content,omitempty"` // LLM-ready formatted block
	MatchCount int            `json:"match_count"`
	Took       time.Duration  `json:"took"`
	Error      string         `json:"error,omitempty"`
}
