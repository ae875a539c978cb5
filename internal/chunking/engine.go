// Package chunking splits raw document content into semantically meaningful
// units per content-type strategy, attaching the metadata retrieval depends
// on. The strategy set is closed: transcript, section-based, and none.
package chunking

import (
	"context"
	"log/slog"
	"strings"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Chunker = (*Engine)(nil)

// Strategy selects how a document type is decomposed into chunks.
type Strategy string

const (
	// StrategySection splits structured documents on heading boundaries.
	// This is the forward-compatible default for unknown document types.
	StrategySection Strategy = "section"

	// StrategyTranscript parses speaker turns and groups them into
	// LLM-segmented topic chunks.
	StrategyTranscript Strategy = "transcript"

	// StrategyNone indexes the whole document as a single chunk.
	StrategyNone Strategy = "none"
)

// strategyTable maps document types to strategies. Unmapped types fall back
// to section-based chunking rather than failing.
var strategyTable = map[string]Strategy{
	"ai-transcript":   StrategyTranscript,
	"context-summary": StrategyNone,
}

// StrategyFor resolves the chunking strategy for a document type.
func StrategyFor(documentType string) Strategy {
	if s, ok := strategyTable[strings.ToLower(strings.TrimSpace(documentType))]; ok {
		return s
	}
	return StrategySection
}

// Engine implements the Chunker port. The segmenter collaborator is only
// consulted for transcripts; it may be nil, in which case transcripts chunk
// as a single topic.
type Engine struct {
	segmenter driven.TopicSegmenter
	logger    *slog.Logger
}

// NewEngine creates a chunking engine.
func NewEngine(segmenter driven.TopicSegmenter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{segmenter: segmenter, logger: logger}
}

// Chunk splits the document using the strategy resolved from its type.
// A malformed document yields an empty slice, never an error: the caller
// logs and skips indexing instead of aborting the save that triggered it.
func (e *Engine) Chunk(ctx context.Context, doc *domain.DocumentDescriptor) ([]domain.Chunk, error) {
	switch StrategyFor(doc.DocumentType) {
	case StrategyTranscript:
		return e.chunkTranscript(ctx, doc)
	case StrategyNone:
		return e.chunkWhole(doc), nil
	default:
		return e.chunkSections(doc), nil
	}
}

// baseMetadata fills the fields shared by every chunk of a document.
// ChunkIndex and TotalChunks are set by the strategy once counts are known.
func baseMetadata(doc *domain.DocumentDescriptor, kind string) domain.Metadata {
	return domain.Metadata{
		DocumentID:          doc.ID,
		DocumentType:        doc.DocumentType,
		UserID:              doc.CreatedBy,
		Title:               doc.Title,
		Kind:                kind,
		CreatedAt:           doc.CreatedAt,
		FileHash:            domain.FileHash(doc.ID),
		ContentSource:       doc.ContentSource,
		SourceTranscriptIDs: doc.SourceTranscriptIDs,
		MeetingDate:         doc.MeetingDate,
		Participants:        doc.Participants,
	}
}

// chunkWhole indexes the entire document as one chunk.
func (e *Engine) chunkWhole(doc *domain.DocumentDescriptor) []domain.Chunk {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil
	}

	md := baseMetadata(doc, "document")
	md.ChunkIndex = 0
	md.TotalChunks = 1

	return []domain.Chunk{{
		ID:       doc.ID + "-full",
		Content:  content,
		Metadata: md,
	}}
}
