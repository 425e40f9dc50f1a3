package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbawebdesign/lailms-ingest/ai/mock"
	"github.com/dbawebdesign/lailms-ingest/core"
)

func TestAudioExtract(t *testing.T) {
	transcriber := mock.NewTranscriber()
	transcriber.TranscribeFunc = func(ctx context.Context, audio []byte, mediaType string) (string, error) {
		assert.Equal(t, "audio/mpeg", mediaType)
		return "lecture transcript text", nil
	}

	e := NewAudioExtractor(transcriber)
	result, err := e.Extract(context.Background(), &Source{
		Document: &core.Document{ID: "d", MediaType: "audio/mpeg"},
		Data:     []byte("fake audio bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "lecture transcript text", result.Text)
}

func TestAudioExtractFailureIsFatal(t *testing.T) {
	transcriber := mock.NewTranscriber()
	transcriber.TranscribeFunc = func(ctx context.Context, audio []byte, mediaType string) (string, error) {
		return "", errors.New("service unavailable")
	}

	e := NewAudioExtractor(transcriber)
	_, err := e.Extract(context.Background(), &Source{
		Document: &core.Document{ID: "d", MediaType: "audio/mpeg"},
		Data:     []byte("fake audio bytes"),
	})

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, core.ErrCodeTranscription, extractErr.Code)
}

func TestAudioExtractEmptyTranscript(t *testing.T) {
	transcriber := mock.NewTranscriber()
	transcriber.TranscribeFunc = func(ctx context.Context, audio []byte, mediaType string) (string, error) {
		return "   ", nil
	}

	e := NewAudioExtractor(transcriber)
	_, err := e.Extract(context.Background(), &Source{
		Document: &core.Document{ID: "d", MediaType: "audio/mpeg"},
		Data:     []byte("fake audio bytes"),
	})

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, core.ErrCodeContentUnusable, extractErr.Code)
}
