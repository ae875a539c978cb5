package domain

import (
	"fmt"
	"hash/fnv"
	"time"
)

// DocumentDescriptor is the content snapshot the surrounding system hands us
// when a document is saved. Documents are persisted and versioned elsewhere;
// this subsystem only indexes them.
type DocumentDescriptor struct {
	ID            string    `json:"id"`
	WorkspaceID   string    `json:"workspace_id"`
	Title         string    `json:"title"`
	DocumentType  string    `json:"document_type"`
	Content       string    `json:"content"`
	ContentSource string    `json:"content_source"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`

	// Optional, strategy-dependent hints.
	TopicHints          []string `json:"topic_hints,omitempty"`
	SourceTranscriptIDs []string `json:"source_transcript_ids,omitempty"`
	MeetingDate         string   `json:"meeting_date,omitempty"`
	Participants        []string `json:"participants,omitempty"`
}

// Namespace returns the tenant-isolation key for this document.
// Workspace is the sole namespace key.
func (d *DocumentDescriptor) Namespace() string {
	return d.WorkspaceID
}

// Chunk is an ephemeral projection of a document: one retrievable,
// independently embedded unit. Chunks are produced fresh on every ingestion
// and superseded wholesale on re-ingestion.
type Chunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Metadata is the per-chunk metadata stored alongside the vector.
type Metadata struct {
	// Required for every chunk.
	DocumentID    string    `json:"document_id"`
	DocumentType  string    `json:"document_type"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Kind          string    `json:"kind"`
	CreatedAt     time.Time `json:"created_at"`
	ChunkIndex    int       `json:"chunk_index"`
	TotalChunks   int       `json:"total_chunks"`
	FileHash      string    `json:"file_hash"`
	ContentSource string    `json:"content_source"`

	// Strategy-dependent.
	Topic        string   `json:"topic,omitempty"`
	Speakers     []string `json:"speakers,omitempty"`
	StartTime    string   `json:"start_time,omitempty"`
	EndTime      string   `json:"end_time,omitempty"`
	SectionTitle string   `json:"section_title,omitempty"`

	SourceTranscriptIDs []string `json:"source_transcript_ids,omitempty"`
	MeetingDate         string   `json:"meeting_date,omitempty"`
	Participants        []string `json:"participants,omitempty"`
}

// Validate checks the chunk-index invariant.
func (m *Metadata) Validate() error {
	if m.DocumentID == "" {
		return fmt.Errorf("%w: document_id is required", ErrInvalidInput)
	}
	if m.ChunkIndex < 0 || m.ChunkIndex >= m.TotalChunks {
		return fmt.Errorf("%w: chunk_index %d out of range [0,%d)", ErrInvalidInput, m.ChunkIndex, m.TotalChunks)
	}
	return nil
}

// FileHash returns a stable hash of a document ID. All chunks of one document
// share it, which is what adjacent-chunk lookup keys on.
func FileHash(documentID string) string {
	h := fnv.New32a()
	h.Write([]byte(documentID))
	return fmt.Sprintf("%08x", h.Sum32())
}

// ScoredMatch is one similarity-search hit.
type ScoredMatch struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// WriteResult reports the outcome of a batched vector write.
// A failing batch is recorded here, not raised; remaining batches proceed.
type WriteResult struct {
	Written     int      `json:"written"`
	Batches     int      `json:"batches"`
	BatchErrors []string `json:"batch_errors,omitempty"`
}

// IndexStats describes the vector index.
type IndexStats struct {
	Dimension       int              `json:"dimension"`
	TotalVectors    int64            `json:"total_vectors"`
	NamespaceCounts map[string]int64 `json:"namespace_counts"`
}
