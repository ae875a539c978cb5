package chunking

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// turnPattern matches a timestamped speaker turn, e.g.
// "[00:01:23] Alice: we should ship on Friday".
var turnPattern = regexp.MustCompile(`^\[(\d{1,2}:\d{2}(?::\d{2})?)\]\s*([^:]+?):\s*(.*)$`)

// chunkTranscript parses speaker turns and groups them into topic segments.
// Parse or segmentation failure yields an empty chunk slice; a malformed
// transcript must not abort the ingestion that carried it.
func (e *Engine) chunkTranscript(ctx context.Context, doc *domain.DocumentDescriptor) ([]domain.Chunk, error) {
	turns := parseTurns(doc.Content)
	if len(turns) == 0 {
		e.logger.Warn("transcript parse produced no turns, skipping",
			"document_id", doc.ID,
		)
		return nil, nil
	}

	segments := e.segmentTurns(ctx, doc, turns)
	if len(segments) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, len(segments))
	for i, seg := range segments {
		segTurns := turns[seg.Start : seg.End+1]

		md := baseMetadata(doc, "transcript")
		md.ChunkIndex = i
		md.TotalChunks = len(segments)
		md.Topic = seg.Topic
		md.Speakers = uniqueSpeakers(segTurns)
		md.StartTime = segTurns[0].Timestamp
		md.EndTime = segTurns[len(segTurns)-1].Timestamp

		chunks = append(chunks, domain.Chunk{
			ID:       fmt.Sprintf("%s-chunk-%d", doc.ID, i),
			Content:  renderTurns(segTurns),
			Metadata: md,
		})
	}
	return chunks, nil
}

// segmentTurns runs the LLM-assisted topic pass, falling back to a single
// segment when no segmenter is configured and to no segments on failure.
func (e *Engine) segmentTurns(ctx context.Context, doc *domain.DocumentDescriptor, turns []driven.Turn) []driven.TopicSegment {
	if e.segmenter == nil {
		return []driven.TopicSegment{{Topic: "General", Start: 0, End: len(turns) - 1}}
	}

	segments, err := e.segmenter.Segment(ctx, turns, doc.TopicHints)
	if err != nil {
		e.logger.Warn("topic segmentation failed, skipping transcript",
			"document_id", doc.ID,
			"error", err,
		)
		return nil
	}

	// Drop segments with out-of-range or inverted bounds instead of trusting
	// the model output.
	valid := segments[:0]
	for _, seg := range segments {
		if seg.Start < 0 || seg.End >= len(turns) || seg.Start > seg.End {
			e.logger.Warn("dropping invalid topic segment",
				"document_id", doc.ID,
				"start", seg.Start,
				"end", seg.End,
			)
			continue
		}
		valid = append(valid, seg)
	}
	return valid
}

// parseTurns decomposes raw transcript text into timestamped speaker turns.
// Lines that match no turn pattern continue the previous turn's text.
func parseTurns(content string) []driven.Turn {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var turns []driven.Turn
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := turnPattern.FindStringSubmatch(line); m != nil {
			turns = append(turns, driven.Turn{
				Timestamp: m[1],
				Speaker:   strings.TrimSpace(m[2]),
				Text:      m[3],
			})
			continue
		}
		if len(turns) > 0 {
			turns[len(turns)-1].Text += "\n" + line
		}
	}
	return turns
}

// uniqueSpeakers deduplicates speakers preserving first-appearance order.
func uniqueSpeakers(turns []driven.Turn) []string {
	seen := make(map[string]struct{}, len(turns))
	var speakers []string
	for _, turn := range turns {
		if _, ok := seen[turn.Speaker]; ok {
			continue
		}
		seen[turn.Speaker] = struct{}{}
		speakers = append(speakers, turn.Speaker)
	}
	return speakers
}

// renderTurns reconstructs the segment text in transcript form.
func renderTurns(turns []driven.Turn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s: %s", turn.Timestamp, turn.Speaker, turn.Text)
	}
	return b.String()
}
