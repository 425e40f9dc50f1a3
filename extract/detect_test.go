package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbawebdesign/lailms-ingest/core"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		doc  *core.Document
		want core.SourceKind
	}{
		{"pdf", &core.Document{MediaType: "application/pdf"}, core.SourceKindPDF},
		{"audio", &core.Document{MediaType: "audio/mpeg"}, core.SourceKindAudio},
		{"plain text", &core.Document{MediaType: "text/plain"}, core.SourceKindText},
		{"word document", &core.Document{MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"}, core.SourceKindText},
		{"json", &core.Document{MediaType: "application/json"}, core.SourceKindText},
		{"web url", &core.Document{SourceURL: "https://example.com/article"}, core.SourceKindWeb},
		{"youtube watch url", &core.Document{SourceURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}, core.SourceKindVideo},
		{"short video url", &core.Document{SourceURL: "https://youtu.be/dQw4w9WgXcQ"}, core.SourceKindVideo},
		{"vimeo url", &core.Document{SourceURL: "https://vimeo.com/123456789"}, core.SourceKindVideo},
		{"url wins over media type", &core.Document{SourceURL: "https://example.com/doc", MediaType: "application/pdf"}, core.SourceKindWeb},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := Detect(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestDetectUnsupported(t *testing.T) {
	_, err := Detect(&core.Document{MediaType: "image/png"})
	require.Error(t, err)

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, core.ErrCodeUnsupportedType, extractErr.Code)
	assert.NotEmpty(t, extractErr.UserMessage)
	assert.NotEmpty(t, extractErr.Actions)
}

func TestRegistryUnknownKind(t *testing.T) {
	registry := NewRegistry(NewTextExtractor())

	_, err := registry.For(core.SourceKindPDF)
	require.Error(t, err)

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, core.ErrCodeUnsupportedType, extractErr.Code)
}
