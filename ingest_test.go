package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbawebdesign/lailms-ingest/ai/mock"
	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/embed"
	"github.com/dbawebdesign/lailms-ingest/pipeline"
	"github.com/dbawebdesign/lailms-ingest/storage"
	"github.com/dbawebdesign/lailms-ingest/summarize"
)

const sampleText = `The ingestion pipeline extracts text from uploaded sources, splits it
into chunks, embeds the chunks for retrieval, and produces a hierarchical
summary. Every stage records its progress so an asynchronous UI can poll
for status without holding a connection open.`

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir(), "",
		WithProvider(mock.NewProvider()),
		WithPipelineOptions(
			pipeline.WithEmbedOptions(embed.WithRetry(1, time.Millisecond), embed.WithBatchPause(0)),
			pipeline.WithSummarizeOptions(summarize.WithBatchPause(0)),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestRegisterFileAndProcess(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc, err := svc.RegisterFile(ctx, "org1", "notes.txt", []byte(sampleText), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, core.StatusQueued, doc.Status)
	assert.NotEmpty(t, doc.StoragePath)

	result := svc.Process(ctx, doc.ID)
	require.True(t, result.Success, result.Message)

	status, err := svc.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, status.Status)
	assert.Equal(t, 100, status.Percent)
	assert.Nil(t, status.LastError)

	summary, err := svc.Summary(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, summary.Summary)
}

func TestRegisterFileRejectsEmpty(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RegisterFile(context.Background(), "org1", "empty.txt", nil, "text/plain")
	assert.Error(t, err)
}

func TestRegisterURL(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc, err := svc.RegisterURL(ctx, "org1", "https://example.com/article")
	require.NoError(t, err)
	assert.Equal(t, core.StatusQueued, doc.Status)
	assert.Equal(t, "https://example.com/article", doc.SourceURL)
	assert.Empty(t, doc.StoragePath)
}

func TestSearchRanksChunks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc, err := svc.RegisterFile(ctx, "org1", "notes.txt", []byte(sampleText), "text/plain")
	require.NoError(t, err)
	result := svc.Process(ctx, doc.ID)
	require.True(t, result.Success, result.Message)

	matches, err := svc.Search(ctx, doc.ID, "how does chunking work", 3)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestStatusOfUnknownDocument(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
