package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/ai/mock"
	"github.com/dbawebdesign/lailms-ingest/core"
)

func videoSource(url string) *Source {
	return &Source{Document: &core.Document{ID: core.NewID(), SourceURL: url}}
}

func TestVideoExtractRendersTimeMarkers(t *testing.T) {
	fetcher := mock.NewTranscriptFetcher()
	fetcher.FetchFunc = func(ctx context.Context, videoURL, language string) ([]ai.CaptionSegment, error) {
		return []ai.CaptionSegment{
			{Start: 0, Text: "welcome to the course"},
			{Start: 4*time.Minute + 10*time.Second, Text: "first topic"},
			{Start: time.Hour + 2*time.Second, Text: "closing remarks"},
		}, nil
	}

	e := NewVideoExtractor(fetcher)
	result, err := e.Extract(context.Background(), videoSource("https://youtu.be/dQw4w9WgXcQ"))
	require.NoError(t, err)
	assert.Contains(t, result.Text, "[TIME 00:00:00] welcome to the course")
	assert.Contains(t, result.Text, "[TIME 00:04:10] first topic")
	assert.Contains(t, result.Text, "[TIME 01:00:02] closing remarks")
	assert.Equal(t, "3", result.Metadata["video_caption_segments"])
}

func TestVideoExtractLanguageFallback(t *testing.T) {
	var requested []string
	fetcher := mock.NewTranscriptFetcher()
	fetcher.FetchFunc = func(ctx context.Context, videoURL, language string) ([]ai.CaptionSegment, error) {
		requested = append(requested, language)
		if language != "es" {
			return nil, &ai.TranscriptError{Kind: ai.TranscriptNotFound, Message: "no track"}
		}
		return []ai.CaptionSegment{{Start: 0, Text: "hola"}}, nil
	}

	e := NewVideoExtractor(fetcher)
	result, err := e.Extract(context.Background(), videoSource("https://youtu.be/dQw4w9WgXcQ"))
	require.NoError(t, err)
	assert.Contains(t, result.Text, "hola")
	assert.Equal(t, []string{"", "en", "en-US", "es"}, requested)
	assert.Equal(t, "es", result.Metadata["video_caption_language"])
}

func TestVideoExtractStopsOnHardFailure(t *testing.T) {
	var calls int
	fetcher := mock.NewTranscriptFetcher()
	fetcher.FetchFunc = func(ctx context.Context, videoURL, language string) ([]ai.CaptionSegment, error) {
		calls++
		return nil, &ai.TranscriptError{Kind: ai.TranscriptPrivate, Message: "denied"}
	}

	e := NewVideoExtractor(fetcher)
	_, err := e.Extract(context.Background(), videoSource("https://youtu.be/dQw4w9WgXcQ"))

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, core.ErrCodeVideoPrivate, extractErr.Code)
	assert.Equal(t, 1, calls, "private videos are the same in every language")
}

func TestVideoExtractErrorClasses(t *testing.T) {
	tests := []struct {
		name string
		kind ai.TranscriptErrorKind
		code string
	}{
		{"disabled", ai.TranscriptDisabled, core.ErrCodeTranscriptsOff},
		{"private", ai.TranscriptPrivate, core.ErrCodeVideoPrivate},
		{"not found", ai.TranscriptNotFound, core.ErrCodeVideoNotFound},
		{"region", ai.TranscriptRegion, core.ErrCodeVideoRegion},
		{"unknown", ai.TranscriptUnknown, core.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := mock.NewTranscriptFetcher()
			fetcher.FetchFunc = func(ctx context.Context, videoURL, language string) ([]ai.CaptionSegment, error) {
				return nil, &ai.TranscriptError{Kind: tt.kind, Message: "failed"}
			}

			e := NewVideoExtractor(fetcher)
			_, err := e.Extract(context.Background(), videoSource("https://youtu.be/dQw4w9WgXcQ"))

			var extractErr *Error
			require.ErrorAs(t, err, &extractErr)
			assert.Equal(t, tt.code, extractErr.Code)
			assert.NotEmpty(t, extractErr.UserMessage)
			assert.NotEmpty(t, extractErr.Actions)
		})
	}
}
