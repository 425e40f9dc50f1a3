package summarize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/ai/mock"
	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/storage"
	"github.com/dbawebdesign/lailms-ingest/storage/sqlite"
)

func newTestStores(t *testing.T) (storage.DocumentRepository, storage.ChunkRepository, storage.SummaryRepository) {
	t.Helper()
	docs, chunks, summaries, store, err := sqlite.NewTestRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(filepath.Dir(store.Path()))
	})
	return docs, chunks, summaries
}

// seedRow describes one chunk to insert for a test document.
type seedRow struct {
	content       string
	sectionID     string
	summary       string
	status        core.SummaryStatus
	sectionText   string
	sectionStatus core.SummaryStatus
}

func seedDocument(t *testing.T, docs storage.DocumentRepository, chunks storage.ChunkRepository, rows []seedRow) string {
	t.Helper()
	ctx := context.Background()

	doc := &core.Document{ID: core.NewID(), Status: core.StatusSummarizingChunks}
	require.NoError(t, docs.InsertDocument(ctx, doc))

	out := make([]*core.Chunk, len(rows))
	for i, r := range rows {
		out[i] = &core.Chunk{
			ID:                   core.NewID(),
			DocumentID:           doc.ID,
			Index:                i,
			Content:              r.content,
			TokenCount:           len(r.content) / 4,
			SectionID:            r.sectionID,
			CitationKey:          core.CitationKey(doc.ID, r.sectionID, i),
			SummaryText:          r.summary,
			SummaryStatus:        r.status,
			SectionSummaryText:   r.sectionText,
			SectionSummaryStatus: r.sectionStatus,
		}
	}
	require.NoError(t, chunks.InsertChunks(ctx, out))
	return doc.ID
}

func pendingRows(n int) []seedRow {
	rows := make([]seedRow, n)
	for i := range rows {
		rows[i] = seedRow{
			content:       fmt.Sprintf("chunk %02d body text", i),
			sectionID:     "Part 1",
			status:        core.SummaryPending,
			sectionStatus: core.SummaryPending,
		}
	}
	return rows
}

func lastUserMessage(messages []ai.Message) string {
	var last string
	for _, m := range messages {
		if m.Role == ai.RoleUser {
			last = m.Content
		}
	}
	return last
}

func TestSummarizeChunksBatchProtocol(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	docID := seedDocument(t, docs, chunks, pendingRows(4))

	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
		var b strings.Builder
		for i := 1; i <= 4; i++ {
			fmt.Fprintf(&b, "=== CHUNK %d ===\nsummary of passage %d\n", i, i)
		}
		return b.String(), nil
	}

	s := New(docs, chunks, summaries, gen, WithBatchPause(0))
	result, err := s.SummarizeChunks(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 4, result.Completed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, gen.CallCount(), "a clean batch reply needs one call")

	stored, err := chunks.GetChunks(context.Background(), docID, storage.ChunkFilter{})
	require.NoError(t, err)
	for i, c := range stored {
		assert.Equal(t, core.SummaryCompleted, c.SummaryStatus)
		assert.Equal(t, fmt.Sprintf("summary of passage %d", i+1), c.SummaryText)
	}
}

func TestSummarizeChunksLineFallback(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	docID := seedDocument(t, docs, chunks, pendingRows(3))

	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
		// No markers, but one numbered line per passage.
		return "1. first line summary\n2. second line summary\n3. third line summary", nil
	}

	s := New(docs, chunks, summaries, gen, WithBatchPause(0))
	result, err := s.SummarizeChunks(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Completed)
	assert.Equal(t, 1, gen.CallCount())

	stored, err := chunks.GetChunks(context.Background(), docID, storage.ChunkFilter{})
	require.NoError(t, err)
	assert.Equal(t, "first line summary", stored[0].SummaryText)
	assert.Equal(t, "second line summary", stored[1].SummaryText)
	assert.Equal(t, "third line summary", stored[2].SummaryText)
}

func TestSummarizeChunksIndividualFallback(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	docID := seedDocument(t, docs, chunks, pendingRows(3))

	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
		if strings.Contains(lastUserMessage(messages), "=== CHUNK") {
			// Unparseable: no markers and the wrong number of lines.
			return "a rambling reply\nthat ignores\nthe requested\nformat entirely", nil
		}
		return "individual summary", nil
	}

	s := New(docs, chunks, summaries, gen, WithBatchPause(0))
	result, err := s.SummarizeChunks(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Completed)
	assert.Equal(t, 4, gen.CallCount(), "one failed batch call plus one call per chunk")

	stored, err := chunks.GetChunks(context.Background(), docID, storage.ChunkFilter{})
	require.NoError(t, err)
	for _, c := range stored {
		assert.Equal(t, "individual summary", c.SummaryText)
	}
}

func TestSummarizeChunksPartialFailureIsolation(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	docID := seedDocument(t, docs, chunks, pendingRows(10))

	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
		prompt := lastUserMessage(messages)
		if strings.Contains(prompt, "=== CHUNK") {
			return "", errors.New("rate limited")
		}
		if strings.Contains(prompt, "chunk 04 body") {
			return "", errors.New("model error")
		}
		return "ok summary", nil
	}

	s := New(docs, chunks, summaries, gen, WithBatchPause(0))
	result, err := s.SummarizeChunks(context.Background(), docID)
	require.NoError(t, err, "one bad chunk must not abort the pass")
	assert.Equal(t, 9, result.Completed)
	assert.Equal(t, 1, result.Failed)

	stored, err := chunks.GetChunks(context.Background(), docID, storage.ChunkFilter{})
	require.NoError(t, err)
	for _, c := range stored {
		if c.Index == 4 {
			assert.Equal(t, core.SummaryError, c.SummaryStatus)
			assert.Empty(t, c.SummaryText)
			continue
		}
		assert.Equal(t, core.SummaryCompleted, c.SummaryStatus, "chunk %d", c.Index)
	}
}

func TestSummarizeChunksNothingPending(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	rows := pendingRows(2)
	for i := range rows {
		rows[i].status = core.SummaryCompleted
		rows[i].summary = "done"
	}
	docID := seedDocument(t, docs, chunks, rows)

	gen := mock.NewGenerator()
	s := New(docs, chunks, summaries, gen, WithBatchPause(0))

	result, err := s.SummarizeChunks(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.Equal(t, 0, gen.CallCount())
}

func TestSummarizeSectionsGating(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	docID := seedDocument(t, docs, chunks, []seedRow{
		{content: "page one a", sectionID: "Page 1", summary: "s", status: core.SummaryCompleted, sectionStatus: core.SummaryPending},
		{content: "page one b", sectionID: "Page 1", summary: "s", status: core.SummaryCompleted, sectionStatus: core.SummaryPending},
		// Page 2 still has an unsummarized chunk, so its section must wait.
		{content: "page two a", sectionID: "Page 2", status: core.SummaryPending, sectionStatus: core.SummaryPending},
		// Page 3 is already done and must not be redone.
		{content: "page three a", sectionID: "Page 3", summary: "s", status: core.SummaryCompleted,
			sectionText: "existing", sectionStatus: core.SummaryCompleted},
	})

	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
		return "the page one summary", nil
	}

	s := New(docs, chunks, summaries, gen)
	result, err := s.SummarizeSections(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total, "only Page 1 passes the gate")
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 1, gen.CallCount())

	stored, err := chunks.GetChunks(context.Background(), docID, storage.ChunkFilter{})
	require.NoError(t, err)
	for _, c := range stored {
		switch c.SectionID {
		case "Page 1":
			assert.Equal(t, core.SummaryCompleted, c.SectionSummaryStatus)
			assert.Equal(t, "the page one summary", c.SectionSummaryText)
		case "Page 2":
			assert.Equal(t, core.SummaryPending, c.SectionSummaryStatus)
			assert.Empty(t, c.SectionSummaryText)
		case "Page 3":
			assert.Equal(t, "existing", c.SectionSummaryText)
		}
	}
}

func TestSummarizeSectionsErrorFlipsWholeSet(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	rows := pendingRows(3)
	for i := range rows {
		rows[i].status = core.SummaryCompleted
		rows[i].summary = "s"
	}
	docID := seedDocument(t, docs, chunks, rows)

	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
		return "", errors.New("model unavailable")
	}

	s := New(docs, chunks, summaries, gen)
	result, err := s.SummarizeSections(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	stored, err := chunks.GetChunks(context.Background(), docID, storage.ChunkFilter{})
	require.NoError(t, err)
	for _, c := range stored {
		assert.Equal(t, core.SummaryError, c.SectionSummaryStatus)
		assert.Empty(t, c.SectionSummaryText)
	}
}

func TestSummarizeDocumentUpsertsRollup(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	docID := seedDocument(t, docs, chunks, []seedRow{
		{content: "a", sectionID: "Page 1", summary: "s", status: core.SummaryCompleted,
			sectionText: "page one covers alpha", sectionStatus: core.SummaryCompleted},
		{content: "b", sectionID: "Page 2", summary: "s", status: core.SummaryCompleted,
			sectionText: "page two covers beta", sectionStatus: core.SummaryCompleted},
	})

	var prompt string
	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
		prompt = lastUserMessage(messages)
		return "the document overview", nil
	}

	s := New(docs, chunks, summaries, gen)
	result, err := s.SummarizeDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.True(t, result.Written)
	assert.Equal(t, "the document overview", result.Summary)
	assert.Contains(t, prompt, "page one covers alpha")
	assert.Contains(t, prompt, "page two covers beta")

	row, err := summaries.GetSummary(context.Background(), docID, core.SummaryLevelDocument)
	require.NoError(t, err)
	assert.Equal(t, "the document overview", row.Summary)
	assert.Equal(t, core.SummaryCompleted, row.Status)
	assert.Equal(t, "mock-generator", row.Model)
}

func TestSummarizeDocumentPseudoSections(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	rows := make([]seedRow, 7)
	for i := range rows {
		rows[i] = seedRow{
			content: fmt.Sprintf("body %d", i),
			summary: fmt.Sprintf("orphan summary %d", i),
			status:  core.SummaryCompleted,
			// No section, so the chunk summary feeds the rollup directly.
			sectionStatus: core.SummaryNone,
		}
	}
	docID := seedDocument(t, docs, chunks, rows)

	var prompt string
	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
		prompt = lastUserMessage(messages)
		return "rollup", nil
	}

	s := New(docs, chunks, summaries, gen)
	result, err := s.SummarizeDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.True(t, result.Written)
	for i := 0; i < 7; i++ {
		assert.Contains(t, prompt, fmt.Sprintf("orphan summary %d", i))
	}
}

func TestSummarizeDocumentGenerationFailure(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	docID := seedDocument(t, docs, chunks, []seedRow{
		{content: "a", sectionID: "Page 1", summary: "s", status: core.SummaryCompleted,
			sectionText: "page one covers alpha", sectionStatus: core.SummaryCompleted},
	})

	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
		return "", errors.New("model unavailable")
	}

	s := New(docs, chunks, summaries, gen)
	_, err := s.SummarizeDocument(context.Background(), docID)
	require.Error(t, err)

	var stageErr *core.StageError
	require.ErrorAs(t, err, &stageErr, "a failed rollup carries its status-bearing code")
	assert.Equal(t, core.ErrCodeSummaryFailed, stageErr.Code)

	doc, err := docs.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessingFailed, doc.Status)
	assert.NotEmpty(t, doc.Metadata["summary_error"])

	_, err = summaries.GetSummary(context.Background(), docID, core.SummaryLevelDocument)
	assert.ErrorIs(t, err, storage.ErrNotFound, "no summary row is written")
}

func TestSummarizeDocumentNoContent(t *testing.T) {
	docs, chunks, summaries := newTestStores(t)
	docID := seedDocument(t, docs, chunks, pendingRows(3))

	gen := mock.NewGenerator()
	s := New(docs, chunks, summaries, gen)

	result, err := s.SummarizeDocument(context.Background(), docID)
	require.NoError(t, err, "an empty document is reported, not raised")
	assert.False(t, result.Written)
	assert.Equal(t, NoContentMessage, result.Message)
	assert.Equal(t, 0, gen.CallCount())

	_, err = summaries.GetSummary(context.Background(), docID, core.SummaryLevelDocument)
	assert.ErrorIs(t, err, storage.ErrNotFound, "no summary row is written")

	doc, err := docs.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessingFailed, doc.Status)
	assert.Equal(t, NoContentMessage, doc.Metadata["summary_error"])
}
