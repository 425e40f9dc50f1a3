package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dbawebdesign/lailms-ingest/core"
)

const (
	defaultWindowSize = 1500
	defaultOverlap    = 200
)

var (
	pageMarkerPattern = regexp.MustCompile(`\[PAGE (\d+)\]`)
	timeMarkerPattern = regexp.MustCompile(`\[TIME (\d{2}:\d{2}:\d{2})\]`)
)

// Option configures a Chunker.
type Option func(*Chunker)

// WithWindowSize sets the target window size in characters.
func WithWindowSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.windowSize = size
		}
	}
}

// WithOverlap sets the character overlap between consecutive windows.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithProgress sets a callback invoked after each produced chunk.
func WithProgress(fn func(current, total int)) Option {
	return func(c *Chunker) {
		c.progress = fn
	}
}

// Chunker splits extracted text into bounded, overlapping windows while
// preserving a section identifier per chunk. Splitting is a pure function of
// (input, configuration): re-running it on the same text produces identical
// chunks.
type Chunker struct {
	windowSize int
	overlap    int
	progress   func(current, total int)
}

// New creates a chunker with the default 1500-character window and
// 200-character overlap.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		windowSize: defaultWindowSize,
		overlap:    defaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.windowSize {
		c.overlap = c.windowSize / 4
	}
	return c
}

// span is one windowed piece of text plus its section identifier.
type span struct {
	text      string
	sectionID string
}

// Split chunks the extracted text of one document. Page markers trigger
// page-aware splitting, time markers timestamp-aware splitting, anything
// else the generic structural splitter. Whitespace-only input yields zero
// chunks, which is pipeline-fatal upstream.
func (c *Chunker) Split(documentID, text string) []*core.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var spans []span
	switch {
	case pageMarkerPattern.MatchString(text):
		spans = c.splitPages(text)
	case timeMarkerPattern.MatchString(text):
		spans = c.splitTimestamps(text)
	default:
		spans = c.splitGeneric(text)
	}

	chunks := make([]*core.Chunk, 0, len(spans))
	for i, s := range spans {
		content := strings.TrimSpace(s.text)
		if content == "" {
			continue
		}
		index := len(chunks)
		chunks = append(chunks, &core.Chunk{
			ID:                   core.NewID(),
			DocumentID:           documentID,
			Index:                index,
			Content:              content,
			TokenCount:           TokenCount(content),
			SectionID:            s.sectionID,
			CitationKey:          core.CitationKey(documentID, s.sectionID, index),
			SummaryStatus:        core.SummaryPending,
			SectionSummaryStatus: sectionStatus(s.sectionID),
		})
		if c.progress != nil {
			c.progress(i+1, len(spans))
		}
	}
	return chunks
}

func sectionStatus(sectionID string) core.SummaryStatus {
	if sectionID == "" {
		return core.SummaryNone
	}
	return core.SummaryPending
}

// splitPages windows each page independently so a chunk never straddles a
// page boundary. Section identifier is the page number.
func (c *Chunker) splitPages(text string) []span {
	markers := pageMarkerPattern.FindAllStringSubmatchIndex(text, -1)

	var spans []span
	for i, m := range markers {
		pageNum := text[m[2]:m[3]]
		start := m[1]
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		sectionID := "Page " + pageNum
		for _, w := range c.windows(text[start:end]) {
			spans = append(spans, span{text: w, sectionID: sectionID})
		}
	}
	return spans
}

// splitTimestamps packs caption segments into windows; a window's section
// identifier is the timestamp of its first segment.
func (c *Chunker) splitTimestamps(text string) []span {
	markers := timeMarkerPattern.FindAllStringSubmatchIndex(text, -1)

	var spans []span
	var b strings.Builder
	var windowStamp string

	flush := func() {
		if b.Len() > 0 {
			spans = append(spans, span{text: b.String(), sectionID: "Time " + windowStamp})
			b.Reset()
		}
	}

	for i, m := range markers {
		stamp := text[m[2]:m[3]]
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		segment := strings.TrimSpace(text[m[1]:end])
		if segment == "" {
			continue
		}

		if b.Len() == 0 {
			windowStamp = stamp
		} else if b.Len()+len(segment)+1 > c.windowSize {
			flush()
			windowStamp = stamp
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(segment)
	}
	flush()
	return spans
}

// splitGeneric windows flat text with overlap, preferring to cut at a
// paragraph, then sentence, then word boundary. Sections fall back to one
// `Part n` per window.
func (c *Chunker) splitGeneric(text string) []span {
	windows := c.windows(text)
	spans := make([]span, len(windows))
	for i, w := range windows {
		spans[i] = span{text: w, sectionID: fmt.Sprintf("Part %d", i+1)}
	}
	return spans
}

// windows slices text into overlapping windows. Each window ends at the best
// boundary found in the tail third of the window; consecutive windows share
// c.overlap characters so no cut severs a sentence from all its context.
func (c *Chunker) windows(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.windowSize {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(text) {
		end := start + c.windowSize
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}

		end = cutPoint(text, start, end)
		out = append(out, text[start:end])

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// cutPoint finds the best boundary at or before end, searching the tail
// third of the window. Paragraph breaks beat sentence ends beat word
// boundaries; a hard cut is the last resort.
func cutPoint(text string, start, end int) int {
	searchFrom := start + (end-start)*2/3
	window := text[searchFrom:end]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return searchFrom + i + 2
	}
	for _, boundary := range []string{". ", ".\n", "! ", "? "} {
		if i := strings.LastIndex(window, boundary); i >= 0 {
			return searchFrom + i + len(boundary)
		}
	}
	if i := strings.LastIndexByte(window, ' '); i >= 0 {
		return searchFrom + i + 1
	}
	return end
}
