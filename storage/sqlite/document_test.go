package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/storage"
)

func newQueuedDocument() *core.Document {
	return &core.Document{
		ID:          core.NewID(),
		OrgID:       "org-1",
		StoragePath: "uploads/sample.pdf",
		MediaType:   "application/pdf",
		Status:      core.StatusQueued,
	}
}

func TestDocumentInsertAndGet(t *testing.T) {
	docs, _, _ := newTestRepos(t)
	ctx := context.Background()

	doc := newQueuedDocument()
	doc.Metadata = map[string]string{"title": "Sample"}
	require.NoError(t, docs.InsertDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "org-1", got.OrgID)
	assert.Equal(t, core.StatusQueued, got.Status)
	assert.Equal(t, "Sample", got.Metadata["title"])
	assert.False(t, got.CreatedAt.IsZero())
}

func TestDocumentInsertDuplicate(t *testing.T) {
	docs, _, _ := newTestRepos(t)
	ctx := context.Background()

	doc := newQueuedDocument()
	require.NoError(t, docs.InsertDocument(ctx, doc))

	err := docs.InsertDocument(ctx, doc)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDocumentGetNotFound(t *testing.T) {
	docs, _, _ := newTestRepos(t)

	_, err := docs.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentUpdateMergesMetadata(t *testing.T) {
	docs, _, _ := newTestRepos(t)
	ctx := context.Background()

	doc := newQueuedDocument()
	doc.Metadata = map[string]string{"title": "Sample", "pages": "10"}
	require.NoError(t, docs.InsertDocument(ctx, doc))

	status := core.StatusProcessing
	updated, err := docs.UpdateDocument(ctx, doc.ID, storage.DocumentPatch{
		Status:   &status,
		Metadata: map[string]string{"pages": "12", "stage": "extract"},
	})
	require.NoError(t, err)

	assert.Equal(t, core.StatusProcessing, updated.Status)
	// Untouched keys survive, patched keys win.
	assert.Equal(t, "Sample", updated.Metadata["title"])
	assert.Equal(t, "12", updated.Metadata["pages"])
	assert.Equal(t, "extract", updated.Metadata["stage"])

	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Metadata, got.Metadata)
}

func TestDocumentUpdateNotFound(t *testing.T) {
	docs, _, _ := newTestRepos(t)

	status := core.StatusProcessing
	_, err := docs.UpdateDocument(context.Background(), "missing", storage.DocumentPatch{Status: &status})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClaimDocument(t *testing.T) {
	docs, _, _ := newTestRepos(t)
	ctx := context.Background()

	doc := newQueuedDocument()
	require.NoError(t, docs.InsertDocument(ctx, doc))

	require.NoError(t, docs.ClaimDocument(ctx, doc.ID, core.StatusQueued, core.StatusProcessing, doc.UpdatedAt))

	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, got.Status)

	// Second claim from the old snapshot loses.
	err = docs.ClaimDocument(ctx, doc.ID, core.StatusQueued, core.StatusProcessing, doc.UpdatedAt)
	assert.ErrorIs(t, err, storage.ErrAlreadyClaimed)
}

func TestClaimDocumentSameStatusLease(t *testing.T) {
	docs, _, _ := newTestRepos(t)
	ctx := context.Background()

	doc := newQueuedDocument()
	doc.Status = core.StatusChunking
	require.NoError(t, docs.InsertDocument(ctx, doc))

	// Two workers re-running a stage read the same snapshot and both claim
	// chunking -> chunking. The status alone cannot tell them apart; only the
	// revision match may let the first one through.
	require.NoError(t, docs.ClaimDocument(ctx, doc.ID, core.StatusChunking, core.StatusChunking, doc.UpdatedAt))

	err := docs.ClaimDocument(ctx, doc.ID, core.StatusChunking, core.StatusChunking, doc.UpdatedAt)
	assert.ErrorIs(t, err, storage.ErrAlreadyClaimed)

	// A fresh read picks up the advanced revision and can claim again.
	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NoError(t, docs.ClaimDocument(ctx, doc.ID, got.Status, got.Status, got.UpdatedAt))
}

func TestClaimDocumentNotFound(t *testing.T) {
	docs, _, _ := newTestRepos(t)

	err := docs.ClaimDocument(context.Background(), "missing", core.StatusQueued, core.StatusProcessing, time.Now())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClaimDocumentInvalidTransition(t *testing.T) {
	docs, _, _ := newTestRepos(t)
	ctx := context.Background()

	doc := newQueuedDocument()
	doc.Status = core.StatusCompleted
	require.NoError(t, docs.InsertDocument(ctx, doc))

	err := docs.ClaimDocument(ctx, doc.ID, core.StatusCompleted, core.StatusProcessing, doc.UpdatedAt)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestClaimDocumentConcurrent(t *testing.T) {
	docs, _, _ := newTestRepos(t)
	ctx := context.Background()

	doc := newQueuedDocument()
	require.NoError(t, docs.InsertDocument(ctx, doc))

	const workers = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := docs.ClaimDocument(ctx, doc.ID, core.StatusQueued, core.StatusProcessing, doc.UpdatedAt); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for range wins {
		winners++
	}
	assert.Equal(t, 1, winners, "exactly one concurrent claim should win")
}
