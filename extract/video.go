package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/core"
)

// TimeMarker prefixes each caption segment in the extracted output. The
// chunker recognizes it for timestamp-aware splitting.
const TimeMarker = "[TIME %s]"

// transcriptLanguages is the fallback order for caption-track retrieval. The
// empty string requests the video's default track.
var transcriptLanguages = []string{"", "en", "en-US", "es", "de", "fr"}

// VideoExtractor retrieves an existing caption track for a hosted video.
// There is no audio-transcription fallback; videos without captions fail
// with an explanation rather than silently.
type VideoExtractor struct {
	transcripts ai.TranscriptFetcher
	logger      *slog.Logger
}

var _ Extractor = (*VideoExtractor)(nil)

// NewVideoExtractor creates a video extractor over the caption fetch
// service.
func NewVideoExtractor(transcripts ai.TranscriptFetcher) *VideoExtractor {
	return &VideoExtractor{
		transcripts: transcripts,
		logger:      slog.Default().With("component", "extract-video"),
	}
}

func (e *VideoExtractor) Kind() core.SourceKind {
	return core.SourceKindVideo
}

func (e *VideoExtractor) Extract(ctx context.Context, src *Source) (*Result, error) {
	videoURL := src.Document.SourceURL
	if videoURL == "" {
		return nil, missingSourceError("source URL")
	}

	var segments []ai.CaptionSegment
	var lastErr error
	var language string
	for _, lang := range transcriptLanguages {
		var err error
		segments, err = e.transcripts.Fetch(ctx, videoURL, lang)
		if err == nil && len(segments) > 0 {
			language = lang
			break
		}
		lastErr = err
		e.logger.Debug("caption fetch failed", "url", videoURL, "lang", lang, "err", err)

		// Hard failures are the same in every language; only keep walking
		// the fallback list when this particular track is missing.
		kind := ai.TranscriptErrorKindOf(err)
		if kind == ai.TranscriptPrivate || kind == ai.TranscriptRegion {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}
	}

	if len(segments) == 0 {
		return nil, transcriptError(videoURL, lastErr)
	}

	var b strings.Builder
	for _, segment := range segments {
		text := Sanitize(segment.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, TimeMarker+" %s\n", formatTimestamp(segment.Start), text)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, transcriptError(videoURL, lastErr)
	}

	return &Result{
		Text: text,
		Metadata: map[string]string{
			"video_caption_segments": fmt.Sprintf("%d", len(segments)),
			"video_caption_language": language,
		},
	}, nil
}

func formatTimestamp(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// transcriptError maps a caption failure to its user-facing explanation.
func transcriptError(videoURL string, err error) *Error {
	switch ai.TranscriptErrorKindOf(err) {
	case ai.TranscriptDisabled:
		return &Error{
			Code:        core.ErrCodeTranscriptsOff,
			Message:     fmt.Sprintf("captions disabled for %s", videoURL),
			UserMessage: "This video has captions turned off, so its content cannot be read.",
			Actions:     []string{"Try a different video that has captions available."},
			Err:         err,
		}
	case ai.TranscriptPrivate:
		return &Error{
			Code:        core.ErrCodeVideoPrivate,
			Message:     fmt.Sprintf("video %s is private or access denied", videoURL),
			UserMessage: "This video is private or requires sign-in.",
			Actions:     []string{"Use a publicly accessible video."},
			Err:         err,
		}
	case ai.TranscriptNotFound:
		return &Error{
			Code:        core.ErrCodeVideoNotFound,
			Message:     fmt.Sprintf("video %s not found", videoURL),
			UserMessage: "The video could not be found.",
			Actions:     []string{"Check the video link for typos.", "The video may have been removed; try a different one."},
			Err:         err,
		}
	case ai.TranscriptRegion:
		return &Error{
			Code:        core.ErrCodeVideoRegion,
			Message:     fmt.Sprintf("video %s is region restricted", videoURL),
			UserMessage: "This video is not available in the service's region.",
			Actions:     []string{"Try a different video covering the same content."},
			Err:         err,
		}
	}
	return &Error{
		Code:        core.ErrCodeInternal,
		Message:     fmt.Sprintf("fetching captions for %s: %v", videoURL, err),
		UserMessage: "The video's captions could not be retrieved.",
		Actions:     []string{"Try again in a few minutes.", "If the problem persists, try a different video."},
		Err:         err,
	}
}
