package ai

import (
	"errors"
	"fmt"
	"time"
)

// Message roles understood by TextGenerator implementations.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one role-tagged entry in a generation request.
type Message struct {
	Role    string
	Content string
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// IndexedEmbedding is one embedding result tagged with the positional index
// of the input text it belongs to.
type IndexedEmbedding struct {
	Index  int
	Vector []float32
}

// CaptionSegment is one timed span of a video transcript.
type CaptionSegment struct {
	Start time.Duration
	Text  string
}

// TranscriptErrorKind classifies caption-track retrieval failures so each
// can produce a distinct user-facing explanation.
type TranscriptErrorKind string

const (
	TranscriptDisabled TranscriptErrorKind = "disabled"
	TranscriptPrivate  TranscriptErrorKind = "private"
	TranscriptNotFound TranscriptErrorKind = "not_found"
	TranscriptRegion   TranscriptErrorKind = "region_restricted"
	TranscriptUnknown  TranscriptErrorKind = "unknown"
)

// TranscriptError reports why a caption track could not be retrieved.
type TranscriptError struct {
	Kind    TranscriptErrorKind
	Message string
}

func (e *TranscriptError) Error() string {
	return fmt.Sprintf("transcript %s: %s", e.Kind, e.Message)
}

// TranscriptErrorKindOf extracts the classification from an error chain,
// defaulting to TranscriptUnknown.
func TranscriptErrorKindOf(err error) TranscriptErrorKind {
	var te *TranscriptError
	if errors.As(err, &te) {
		return te.Kind
	}
	return TranscriptUnknown
}
