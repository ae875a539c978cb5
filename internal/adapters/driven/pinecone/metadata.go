package pinecone

import (
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// Pinecone metadata values are limited to strings, numbers, booleans, and
// lists of strings. Timestamps are stored as unix-seconds floats so range
// filters on created_at work server-side.

func encodeMetadata(chunk domain.Chunk) map[string]any {
	md := chunk.Metadata
	out := map[string]any{
		"content":       chunk.Content,
		"document_id":   md.DocumentID,
		"document_type": md.DocumentType,
		"user_id":       md.UserID,
		"title":         md.Title,
		"kind":          md.Kind,
		"created_at":    float64(md.CreatedAt.Unix()),
		"chunk_index":   float64(md.ChunkIndex),
		"total_chunks":  float64(md.TotalChunks),
		"file_hash":     md.FileHash,
	}
	if md.ContentSource != "" {
		out["content_source"] = md.ContentSource
	}
	if md.Topic != "" {
		out["topic"] = md.Topic
	}
	if len(md.Speakers) > 0 {
		out["speakers"] = md.Speakers
	}
	if md.StartTime != "" {
		out["start_time"] = md.StartTime
	}
	if md.EndTime != "" {
		out["end_time"] = md.EndTime
	}
	if md.SectionTitle != "" {
		out["section_title"] = md.SectionTitle
	}
	if len(md.SourceTranscriptIDs) > 0 {
		out["source_transcript_ids"] = md.SourceTranscriptIDs
	}
	if md.MeetingDate != "" {
		out["meeting_date"] = md.MeetingDate
	}
	if len(md.Participants) > 0 {
		out["participants"] = md.Participants
	}
	return out
}

func decodeMetadata(raw map[string]any) (domain.Metadata, string) {
	md := domain.Metadata{
		DocumentID:          asString(raw["document_id"]),
		DocumentType:        asString(raw["document_type"]),
		UserID:              asString(raw["user_id"]),
		Title:               asString(raw["title"]),
		Kind:                asString(raw["kind"]),
		ChunkIndex:          asInt(raw["chunk_index"]),
		TotalChunks:         asInt(raw["total_chunks"]),
		FileHash:            asString(raw["file_hash"]),
		ContentSource:       asString(raw["content_source"]),
		Topic:               asString(raw["topic"]),
		Speakers:            asStrings(raw["speakers"]),
		StartTime:           asString(raw["start_time"]),
		EndTime:             asString(raw["end_time"]),
		SectionTitle:        asString(raw["section_title"]),
		SourceTranscriptIDs: asStrings(raw["source_transcript_ids"]),
		MeetingDate:         asString(raw["meeting_date"]),
		Participants:        asStrings(raw["participants"]),
	}
	if secs, ok := raw["created_at"].(float64); ok {
		md.CreatedAt = time.Unix(int64(secs), 0).UTC()
	}
	return md, asString(raw["content"])
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	f, _ := v.(float64)
	return int(f)
}

func asStrings(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
