package chunking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// headingPattern matches markdown-style heading lines, the structural
// boundary section chunking splits on.
var headingPattern = regexp.MustCompile(`^#{1,6}\s+(.+)$`)

// section is one structural slice of a document.
type section struct {
	title string
	body  string
}

// chunkSections splits the document on heading boundaries into ordered
// sections, one chunk each. A document without headings becomes a single
// untitled section.
func (e *Engine) chunkSections(doc *domain.DocumentDescriptor) []domain.Chunk {
	sections := splitSections(doc.Content)
	if len(sections) == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, 0, len(sections))
	for i, sec := range sections {
		md := baseMetadata(doc, "section")
		md.ChunkIndex = i
		md.TotalChunks = len(sections)
		md.SectionTitle = sec.title

		content := sec.body
		if sec.title != "" {
			content = sec.title + "\n" + sec.body
		}

		chunks = append(chunks, domain.Chunk{
			ID:       fmt.Sprintf("%s-section-%d", doc.ID, i),
			Content:  content,
			Metadata: md,
		})
	}
	return chunks
}

// splitSections decomposes content into titled sections. Text before the
// first heading becomes an untitled leading section; whitespace-only
// sections are dropped.
func splitSections(content string) []section {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	var sections []section
	current := section{}
	var body []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" || current.title != "" {
			current.body = text
			sections = append(sections, current)
		}
		body = nil
	}

	sawHeading := false
	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = section{title: strings.TrimSpace(m[1])}
			sawHeading = true
			continue
		}
		body = append(body, line)
	}
	flush()

	if !sawHeading {
		// No structural boundaries: one untitled section with everything.
		text := strings.TrimSpace(content)
		if text == "" {
			return nil
		}
		return []section{{body: text}}
	}
	return sections
}
