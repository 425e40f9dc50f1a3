package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID generates a random identifier for a new domain entity.
func NewID() string {
	return uuid.NewString()
}

// IDFromContent generates a deterministic 64-bit key from text content using
// BLAKE2b hashing. Identical content always produces the identical key.
func IDFromContent(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// DocumentStatus is the lifecycle status of a document in the pipeline.
type DocumentStatus string

const (
	StatusQueued              DocumentStatus = "queued"
	StatusProcessing          DocumentStatus = "processing"
	StatusChunking            DocumentStatus = "chunking"
	StatusSummarizingChunks   DocumentStatus = "summarizing_chunks"
	StatusSummarizingDocument DocumentStatus = "summarizing_document"
	StatusCompleted           DocumentStatus = "completed"
	StatusCompletedWithErrors DocumentStatus = "completed_with_errors"
	StatusError               DocumentStatus = "error"
	StatusProcessingFailed    DocumentStatus = "processing_failed"
)

// statusRank orders the forward-only portion of the lifecycle. Terminal
// states share the highest rank.
var statusRank = map[DocumentStatus]int{
	StatusQueued:              0,
	StatusProcessing:          1,
	StatusChunking:            2,
	StatusSummarizingChunks:   3,
	StatusSummarizingDocument: 4,
	StatusCompleted:           5,
	StatusCompletedWithErrors: 5,
	StatusProcessingFailed:    5,
}

// CanTransition reports whether a document may move from one status to
// another. Transitions are monotonic forward; StatusError is reachable from
// any non-terminal state, and StatusError itself can be retried into any
// forward state.
func CanTransition(from, to DocumentStatus) bool {
	if from == to {
		return true
	}
	if from == StatusCompleted || from == StatusCompletedWithErrors {
		return false
	}
	if to == StatusError || to == StatusProcessingFailed {
		return true
	}
	if from == StatusError {
		// A stage re-run recovers an errored document.
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// IsTerminal reports whether a status ends the pipeline for a document.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusProcessingFailed:
		return true
	}
	return false
}

// SourceKind identifies the extraction strategy for a document.
type SourceKind string

const (
	SourceKindPDF   SourceKind = "pdf"
	SourceKindWeb   SourceKind = "web"
	SourceKindVideo SourceKind = "video"
	SourceKindAudio SourceKind = "audio"
	SourceKindText  SourceKind = "text"
)

// Document represents one ingested source. It is created when the source is
// registered and mutated by every pipeline stage; the pipeline never deletes
// it.
type Document struct {
	ID          string
	OrgID       string
	StoragePath string // opaque locator into the blob store
	MediaType   string // declared content type
	SourceURL   string // set for web and video sources
	Status      DocumentStatus
	Metadata    map[string]string // merged, never overwritten wholesale
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SummaryStatus is the per-entity status of a summarization step.
type SummaryStatus string

const (
	SummaryPending   SummaryStatus = "pending"
	SummaryCompleted SummaryStatus = "completed"
	SummaryError     SummaryStatus = "error"
	// SummaryNone marks a chunk that has no section and therefore no
	// section-level summary.
	SummaryNone SummaryStatus = ""
)

// Chunk is one bounded span of a document's extracted text, the unit of
// embedding and summarization.
//
// Chunk indices for a document are contiguous from 0, assigned once at chunk
// time and never reused. The embedding is set exactly once by the embedder;
// summary fields are owned by the summarizer.
type Chunk struct {
	ID          string
	DocumentID  string
	Index       int
	Content     string
	TokenCount  int
	SectionID   string // "Page 3", "Time 00:04:10", "Part 2"; empty when unknown
	CitationKey string
	Embedding   []float32 // nil until the embedder runs
	Truncated   bool      // content was cut to fit the embedding context window

	SummaryText          string
	SummaryStatus        SummaryStatus
	SectionSummaryText   string
	SectionSummaryStatus SummaryStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SummaryLevelDocument is the only summary level stored per document today.
const SummaryLevelDocument = "document"

// DocumentSummary is the single document-level rollup. At most one row
// exists per (DocumentID, Level); writes are upserts keyed on that pair.
type DocumentSummary struct {
	DocumentID string
	Level      string
	Summary    string
	Status     SummaryStatus
	Model      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CitationKey derives the stable per-chunk attribution key from the document
// id, the chunk's section identifier, and the chunk index. Keys are unique
// within a document because indices are unique within a document.
func CitationKey(documentID, sectionID string, index int) string {
	docPart := documentID
	if len(docPart) > 8 {
		docPart = docPart[:8]
	}
	return fmt.Sprintf("%s-%08x-%d", docPart, IDFromContent(sectionID)&0xffffffff, index)
}
