package driven

import "context"

// Turn is one timestamped speaker turn from a transcript.
type Turn struct {
	Timestamp string
	Speaker   string
	Text      string
}

// TopicSegment groups a contiguous run of turns under one topic.
// Start and End are inclusive turn indices.
type TopicSegment struct {
	Topic string
	Start int
	End   int
}

// TopicSegmenter groups contiguous transcript turns into topic segments,
// optionally guided by a hint list of expected topics. Implementations are
// LLM-assisted; the transcript chunker treats any failure as "no segments"
// rather than aborting ingestion.
type TopicSegmenter interface {
	Segment(ctx context.Context, turns []Turn, hints []string) ([]TopicSegment, error)
}
