package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/storage"
)

func insertTestDocument(t *testing.T, docs storage.DocumentRepository) *core.Document {
	t.Helper()
	doc := newQueuedDocument()
	require.NoError(t, docs.InsertDocument(context.Background(), doc))
	return doc
}

func makeChunks(documentID string, n int) []*core.Chunk {
	chunks := make([]*core.Chunk, n)
	for i := 0; i < n; i++ {
		sectionID := fmt.Sprintf("Page %d", i/2+1)
		chunks[i] = &core.Chunk{
			ID:            core.NewID(),
			DocumentID:    documentID,
			Index:         i,
			Content:       fmt.Sprintf("chunk %d content", i),
			TokenCount:    5,
			SectionID:     sectionID,
			CitationKey:   core.CitationKey(documentID, sectionID, i),
			SummaryStatus: core.SummaryPending,
		}
	}
	return chunks
}

func TestChunkInsertAndGet(t *testing.T) {
	docs, chunks, _ := newTestRepos(t)
	ctx := context.Background()
	doc := insertTestDocument(t, docs)

	require.NoError(t, chunks.InsertChunks(ctx, makeChunks(doc.ID, 4)))

	got, err := chunks.GetChunks(ctx, doc.ID, storage.ChunkFilter{})
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, chunk := range got {
		assert.Equal(t, i, chunk.Index)
		assert.Nil(t, chunk.Embedding)
		assert.Equal(t, core.SummaryPending, chunk.SummaryStatus)
		assert.NotEmpty(t, chunk.CitationKey)
	}
}

func TestChunkInsertDuplicateIndex(t *testing.T) {
	docs, chunks, _ := newTestRepos(t)
	ctx := context.Background()
	doc := insertTestDocument(t, docs)

	require.NoError(t, chunks.InsertChunks(ctx, makeChunks(doc.ID, 2)))

	err := chunks.InsertChunks(ctx, makeChunks(doc.ID, 2))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The failed insert rolled back entirely.
	got, err := chunks.GetChunks(ctx, doc.ID, storage.ChunkFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestChunkFilters(t *testing.T) {
	docs, chunks, _ := newTestRepos(t)
	ctx := context.Background()
	doc := insertTestDocument(t, docs)

	all := makeChunks(doc.ID, 4)
	require.NoError(t, chunks.InsertChunks(ctx, all))

	completed := core.SummaryCompleted
	require.NoError(t, chunks.UpdateChunks(ctx, []string{all[0].ID, all[1].ID},
		storage.ChunkPatch{SummaryStatus: &completed}))

	pending := core.SummaryPending
	got, err := chunks.GetChunks(ctx, doc.ID, storage.ChunkFilter{SummaryStatus: &pending})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	page1 := "Page 1"
	got, err = chunks.GetChunks(ctx, doc.ID, storage.ChunkFilter{SectionID: &page1})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, chunks.SetEmbedding(ctx, all[0].ID, []float32{1, 0, 0}, false))
	got, err = chunks.GetChunks(ctx, doc.ID, storage.ChunkFilter{MissingEmbedding: true})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestUpdateChunksAppliesPatchToSet(t *testing.T) {
	docs, chunks, _ := newTestRepos(t)
	ctx := context.Background()
	doc := insertTestDocument(t, docs)

	all := makeChunks(doc.ID, 3)
	require.NoError(t, chunks.InsertChunks(ctx, all))

	text := "section rollup"
	completed := core.SummaryCompleted
	require.NoError(t, chunks.UpdateChunks(ctx, []string{all[0].ID, all[2].ID}, storage.ChunkPatch{
		SectionSummaryText:   &text,
		SectionSummaryStatus: &completed,
	}))

	got, err := chunks.GetChunks(ctx, doc.ID, storage.ChunkFilter{})
	require.NoError(t, err)
	assert.Equal(t, "section rollup", got[0].SectionSummaryText)
	assert.Equal(t, core.SummaryCompleted, got[0].SectionSummaryStatus)
	assert.Empty(t, got[1].SectionSummaryText)
	assert.Equal(t, "section rollup", got[2].SectionSummaryText)
}

func TestSetEmbeddingRoundTrip(t *testing.T) {
	docs, chunks, _ := newTestRepos(t)
	ctx := context.Background()
	doc := insertTestDocument(t, docs)

	all := makeChunks(doc.ID, 1)
	require.NoError(t, chunks.InsertChunks(ctx, all))

	vector := storage.NormalizeVector([]float32{0.1, 0.2, 0.3})
	require.NoError(t, chunks.SetEmbedding(ctx, all[0].ID, vector, true))

	got, err := chunks.GetChunks(ctx, doc.ID, storage.ChunkFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, vector, got[0].Embedding)
	assert.True(t, got[0].Truncated)
}

func TestSetEmbeddingNotFound(t *testing.T) {
	_, chunks, _ := newTestRepos(t)

	err := chunks.SetEmbedding(context.Background(), "missing", []float32{1}, false)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindSimilar(t *testing.T) {
	docs, chunks, _ := newTestRepos(t)
	ctx := context.Background()
	doc := insertTestDocument(t, docs)

	all := makeChunks(doc.ID, 3)
	require.NoError(t, chunks.InsertChunks(ctx, all))

	require.NoError(t, chunks.SetEmbedding(ctx, all[0].ID, []float32{1, 0}, false))
	require.NoError(t, chunks.SetEmbedding(ctx, all[1].ID, []float32{0, 1}, false))
	// Chunk 2 has no embedding and must not appear in results.

	matches, err := chunks.FindSimilar(ctx, doc.ID, []float32{1, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, all[0].ID, matches[0].Chunk.ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)

	// Lower threshold returns both, best first.
	matches, err = chunks.FindSimilar(ctx, doc.ID, []float32{1, 0.2}, -1, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, all[0].ID, matches[0].Chunk.ID)

	matches, err = chunks.FindSimilar(ctx, doc.ID, []float32{1, 0.2}, -1, 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
