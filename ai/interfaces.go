package ai

import "context"

// TextGenerator produces text from a list of role-tagged messages.
// Implementations must be thread-safe for concurrent use.
type TextGenerator interface {
	// Generate sends the messages to the model and returns the generated
	// text. maxTokens bounds the length of the response.
	// Returns an error if generation fails or the model returns no choices.
	Generate(ctx context.Context, messages []Message, maxTokens int) (string, error)

	// Model returns the identifier of the underlying model, recorded on
	// stored summaries for provenance.
	Model() string
}

// Embedder generates vector embeddings from text for semantic retrieval.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedBatch generates one fixed-dimension vector per input text.
	// Each result carries the positional index of its input; callers must
	// not assume the returned slice is in request order.
	EmbedBatch(ctx context.Context, texts []string) ([]IndexedEmbedding, error)
}

// Transcriber converts an audio blob into transcript text.
type Transcriber interface {
	// Transcribe submits the audio to a speech-to-text service and returns
	// the transcript. A single attempt; failures propagate to the caller.
	Transcribe(ctx context.Context, audio []byte, mediaType string) (string, error)
}

// TranscriptFetcher retrieves an existing caption track for a hosted video.
type TranscriptFetcher interface {
	// Fetch returns the timed caption segments for the video in the given
	// language ("" requests the default track). Errors are classified; see
	// TranscriptError.
	Fetch(ctx context.Context, videoURL, language string) ([]CaptionSegment, error)
}

// Provider aggregates the AI services consumed by the pipeline so they can
// be initialized and torn down together.
type Provider interface {
	// Generator returns the text-generation service used for summaries.
	Generator() TextGenerator

	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Transcriber returns the speech-to-text service.
	Transcriber() Transcriber

	// Transcripts returns the video caption-track service.
	Transcripts() TranscriptFetcher

	// Close releases resources held by the provider and its services.
	Close() error
}
