package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/core"
)

// AudioExtractor submits an audio upload to the speech-to-text service.
// Single attempt; a transcription failure is fatal for the document.
type AudioExtractor struct {
	transcriber ai.Transcriber
	logger      *slog.Logger
}

var _ Extractor = (*AudioExtractor)(nil)

// NewAudioExtractor creates an audio extractor over the transcription
// service.
func NewAudioExtractor(transcriber ai.Transcriber) *AudioExtractor {
	return &AudioExtractor{
		transcriber: transcriber,
		logger:      slog.Default().With("component", "extract-audio"),
	}
}

func (e *AudioExtractor) Kind() core.SourceKind {
	return core.SourceKindAudio
}

func (e *AudioExtractor) Extract(ctx context.Context, src *Source) (*Result, error) {
	if len(src.Data) == 0 {
		return nil, missingSourceError("uploaded content")
	}

	transcript, err := e.transcriber.Transcribe(ctx, src.Data, src.Document.MediaType)
	if err != nil {
		return nil, &Error{
			Code:        core.ErrCodeTranscription,
			Message:     fmt.Sprintf("transcribing audio: %v", err),
			UserMessage: "The audio could not be transcribed.",
			Actions: []string{
				"Check that the file plays correctly.",
				"Try a common format such as mp3 or m4a.",
			},
			Err: err,
		}
	}

	text := Sanitize(transcript)
	if text == "" {
		return nil, unusableContentError("transcription returned no text, audio may be silent or music only")
	}

	e.logger.Debug("transcribed audio", "document", src.Document.ID, "bytes", len(src.Data), "chars", len(text))
	return &Result{
		Text: text,
		Metadata: map[string]string{
			"audio_bytes": fmt.Sprintf("%d", len(src.Data)),
		},
	}, nil
}
