package storage

import (
	"context"
	"time"

	"github.com/dbawebdesign/lailms-ingest/core"
)

// DocumentPatch describes a partial document update. Nil fields are left
// untouched; Metadata entries are merged into the stored map, never
// replacing it wholesale, so previously recorded stage history survives
// every write.
type DocumentPatch struct {
	Status   *core.DocumentStatus
	Metadata map[string]string
}

// ChunkFilter selects chunks of one document. Nil fields match everything.
type ChunkFilter struct {
	SummaryStatus        *core.SummaryStatus
	SectionSummaryStatus *core.SummaryStatus
	SectionID            *string
	MissingEmbedding     bool // only chunks with no stored embedding
}

// ChunkPatch describes a partial chunk update applied to a set of chunk ids.
// Nil fields are left untouched.
type ChunkPatch struct {
	SummaryText          *string
	SummaryStatus        *core.SummaryStatus
	SectionSummaryText   *string
	SectionSummaryStatus *core.SummaryStatus
}

// ChunkMatch is one chunk returned from vector similarity search.
type ChunkMatch struct {
	Chunk *core.Chunk
	Score float32
}

// DocumentRepository provides operations for managing document records.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// InsertDocument adds a new document record. Sets CreatedAt/UpdatedAt
	// if unset. Returns ErrDuplicateKey if the id already exists.
	InsertDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by id.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// UpdateDocument applies a patch and returns the updated document.
	// Metadata keys are merged into the stored map. Returns ErrNotFound if
	// the document doesn't exist.
	UpdateDocument(ctx context.Context, id string, patch DocumentPatch) (*core.Document, error)

	// ClaimDocument conditionally transitions a document from one status to
	// another in a single statement. The observed UpdatedAt of the caller's
	// snapshot acts as a lease version, so a claim that leaves the status in
	// place still excludes concurrent claimants. Returns ErrAlreadyClaimed
	// when the stored status or revision no longer match, which means another
	// invocation claimed the document first.
	ClaimDocument(ctx context.Context, id string, from, to core.DocumentStatus, observed time.Time) error

	// Close releases resources held by the repository.
	Close() error
}

// ChunkRepository provides operations for managing chunks.
type ChunkRepository interface {
	// InsertChunks adds the chunks of one document in a single transaction.
	// Sets CreatedAt/UpdatedAt. Returns ErrDuplicateKey on an index
	// collision, which indicates the document was already chunked.
	InsertChunks(ctx context.Context, chunks []*core.Chunk) error

	// GetChunks retrieves the chunks of a document matching the filter,
	// ordered by ordinal index.
	GetChunks(ctx context.Context, documentID string, filter ChunkFilter) ([]*core.Chunk, error)

	// UpdateChunks applies the same patch to every chunk in ids within one
	// transaction, so a section's status flips atomically as a set.
	UpdateChunks(ctx context.Context, ids []string, patch ChunkPatch) error

	// SetEmbedding stores a chunk's embedding vector and truncation flag.
	// The embedding is written once; nil vector records an embedding
	// failure without blocking the rest of the document.
	SetEmbedding(ctx context.Context, id string, vector []float32, truncated bool) error

	// FindSimilar ranks a document's embedded chunks by cosine similarity
	// against the query vector. Returns matches with score >= minScore,
	// highest first, up to limit.
	FindSimilar(ctx context.Context, documentID string, vector []float32, minScore float32, limit int) ([]*ChunkMatch, error)

	// Close releases resources held by the repository.
	Close() error
}

// SummaryRepository provides operations for document-level summaries.
type SummaryRepository interface {
	// UpsertSummary inserts or updates the summary row keyed on
	// (DocumentID, Level).
	UpsertSummary(ctx context.Context, summary *core.DocumentSummary) error

	// GetSummary retrieves the summary for a document at the given level.
	// Returns ErrNotFound if no row exists.
	GetSummary(ctx context.Context, documentID, level string) (*core.DocumentSummary, error)

	// Close releases resources held by the repository.
	Close() error
}

// BlobStore provides access to raw uploaded source bytes, organized into
// per-organization buckets.
type BlobStore interface {
	// Download retrieves the blob at bucket/path.
	// Returns ErrNotFound if no such object exists.
	Download(ctx context.Context, bucket, path string) ([]byte, error)

	// Upload stores a blob at bucket/path, overwriting any existing object.
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
}

// UploadBucket returns the per-organization bucket name holding uploaded
// sources.
func UploadBucket(orgID string) string {
	return "org-" + orgID + "-uploads"
}
