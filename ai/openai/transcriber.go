package openai

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"

	"github.com/dbawebdesign/lailms-ingest/ai"
)

// Transcriber implements ai.Transcriber using an OpenAI-compatible audio
// transcription endpoint.
type Transcriber struct {
	client openaiclient.Client
	model  string
	logger *slog.Logger
}

// newTranscriber is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newTranscriber(config *ai.Config) (*Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := openaiclient.NewClient(
		openaioption.WithBaseURL(config.SpeechHost),
		openaioption.WithAPIKey(config.APIKey),
	)

	return &Transcriber{
		client: client,
		model:  config.SpeechModel,
		logger: slog.Default().With("component", "openai-transcriber"),
	}, nil
}

// NewTranscriber creates a new speech-to-text client using the provided
// configuration.
//
// Returns ai.Transcriber interface to enforce abstraction.
func NewTranscriber(config *ai.Config) (ai.Transcriber, error) {
	return newTranscriber(config)
}

// Transcribe submits the audio blob to the transcription endpoint and
// returns the transcript text. A single attempt; errors propagate.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mediaType string) (string, error) {
	t.logger.Debug("transcribing audio", "bytes", len(audio), "mediaType", mediaType)

	filename := "audio" + extensionFor(mediaType)
	resp, err := t.client.Audio.Transcriptions.New(ctx, openaiclient.AudioTranscriptionNewParams{
		File:  openaiclient.File(bytes.NewReader(audio), filename, mediaType),
		Model: openaiclient.AudioModel(t.model),
	})
	if err != nil {
		t.logger.Error("transcription failed", "err", err)
		return "", err
	}

	return strings.TrimSpace(resp.Text), nil
}

// extensionFor maps a declared audio media type to a filename extension the
// transcription endpoint recognizes.
func extensionFor(mediaType string) string {
	switch {
	case strings.Contains(mediaType, "mpeg"), strings.Contains(mediaType, "mp3"):
		return ".mp3"
	case strings.Contains(mediaType, "wav"):
		return ".wav"
	case strings.Contains(mediaType, "ogg"):
		return ".ogg"
	case strings.Contains(mediaType, "mp4"), strings.Contains(mediaType, "m4a"):
		return ".m4a"
	case strings.Contains(mediaType, "webm"):
		return ".webm"
	default:
		return ".mp3"
	}
}
