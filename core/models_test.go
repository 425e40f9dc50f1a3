package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent_Deterministic(t *testing.T) {
	a := IDFromContent("the same content")
	b := IDFromContent("the same content")
	c := IDFromContent("different content")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    DocumentStatus
		to      DocumentStatus
		allowed bool
	}{
		{"queued to processing", StatusQueued, StatusProcessing, true},
		{"processing to chunking", StatusProcessing, StatusChunking, true},
		{"chunking to summarizing chunks", StatusChunking, StatusSummarizingChunks, true},
		{"summarizing chunks to summarizing document", StatusSummarizingChunks, StatusSummarizingDocument, true},
		{"summarizing document to completed", StatusSummarizingDocument, StatusCompleted, true},
		{"skip ahead", StatusProcessing, StatusSummarizingDocument, true},
		{"backwards", StatusChunking, StatusProcessing, false},
		{"completed is terminal", StatusCompleted, StatusProcessing, false},
		{"completed cannot error", StatusCompleted, StatusError, false},
		{"error from anywhere", StatusChunking, StatusError, true},
		{"processing failed from anywhere", StatusSummarizingDocument, StatusProcessingFailed, true},
		{"error is retryable", StatusError, StatusProcessing, true},
		{"same status", StatusChunking, StatusChunking, true},
		{"completed with errors is terminal", StatusCompletedWithErrors, StatusSummarizingDocument, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestDocumentStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCompletedWithErrors.IsTerminal())
	assert.True(t, StatusProcessingFailed.IsTerminal())
	assert.False(t, StatusError.IsTerminal())
	assert.False(t, StatusQueued.IsTerminal())
	assert.False(t, StatusSummarizingChunks.IsTerminal())
}

func TestCitationKey(t *testing.T) {
	docID := "3f2a9c1e-0000-4000-8000-000000000000"

	key := CitationKey(docID, "Page 3", 7)
	assert.True(t, strings.HasPrefix(key, "3f2a9c1e-"))
	assert.True(t, strings.HasSuffix(key, "-7"))

	// Same inputs, same key.
	assert.Equal(t, key, CitationKey(docID, "Page 3", 7))

	// Unique per (section, index) within a document.
	seen := map[string]bool{}
	for _, section := range []string{"Page 1", "Page 2", ""} {
		for i := 0; i < 5; i++ {
			k := CitationKey(docID, section, i)
			require.False(t, seen[k], "duplicate citation key %s", k)
			seen[k] = true
		}
	}
}

func TestStageError_RoundTrip(t *testing.T) {
	se := NewStageError(ErrCodeFetchBlocked, "all header profiles returned 403",
		"This site is blocking automated access.",
		"Try copying the page text into a plain text file")

	require.NotEmpty(t, se.Stack)
	assert.LessOrEqual(t, len(se.Stack), maxStackBytes)
	assert.False(t, se.Timestamp.IsZero())

	decoded := StageErrorFromJSON(se.JSON())
	require.NotNil(t, decoded)
	assert.Equal(t, se.Code, decoded.Code)
	assert.Equal(t, se.UserMessage, decoded.UserMessage)
	assert.Equal(t, se.SuggestedActions, decoded.SuggestedActions)

	assert.Nil(t, StageErrorFromJSON("not json"))
}
