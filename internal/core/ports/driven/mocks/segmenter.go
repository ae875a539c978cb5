package mocks

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TopicSegmenter = (*MockSegmenter)(nil)

// MockSegmenter is a configurable TopicSegmenter for testing.
type MockSegmenter struct {
	// Segments, when set, is returned verbatim.
	Segments []driven.TopicSegment

	// Err, when set, is returned from every Segment call.
	Err error

	// LastHints captures the hint list from the most recent call.
	LastHints []string
}

// NewMockSegmenter creates a segmenter that puts all turns in one segment.
func NewMockSegmenter() *MockSegmenter {
	return &MockSegmenter{}
}

func (m *MockSegmenter) Segment(ctx context.Context, turns []driven.Turn, hints []string) ([]driven.TopicSegment, error) {
	m.LastHints = hints
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Segments != nil {
		return m.Segments, nil
	}
	if len(turns) == 0 {
		return nil, nil
	}
	return []driven.TopicSegment{{Topic: "General", Start: 0, End: len(turns) - 1}}, nil
}
