package core

import (
	"encoding/json"
	"runtime/debug"
	"time"
)

// Error codes recorded on documents by the status tracker. The code selects
// the user-facing explanation; Message carries the technical detail.
const (
	ErrCodeUnsupportedType  = "unsupported_type"
	ErrCodeMissingSource    = "missing_source"
	ErrCodeFetchBlocked     = "fetch_blocked"
	ErrCodeFetchTimeout     = "fetch_timeout"
	ErrCodeFetchNotFound    = "fetch_not_found"
	ErrCodeFetchServerError = "fetch_server_error"
	ErrCodeFetchTLS         = "fetch_tls"
	ErrCodeTranscriptsOff   = "transcripts_disabled"
	ErrCodeVideoPrivate     = "video_private"
	ErrCodeVideoNotFound    = "video_not_found"
	ErrCodeVideoRegion      = "video_region_restricted"
	ErrCodeContentUnusable  = "content_unusable"
	ErrCodeNoChunks         = "no_chunks_created"
	ErrCodeNoSummaries      = "no_content_to_summarize"
	ErrCodeSummaryFailed    = "summary_failed"
	ErrCodeTranscription    = "transcription_failed"
	ErrCodeInternal         = "internal_error"
)

const maxStackBytes = 2000

// StageError is the structured error object written into a document's
// metadata when a pipeline stage fails. UserMessage and SuggestedActions are
// short and non-technical; Message is the log-grade detail.
type StageError struct {
	Code             string    `json:"code"`
	Message          string    `json:"message"`
	UserMessage      string    `json:"userFriendlyMessage"`
	SuggestedActions []string  `json:"suggestedActions,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Stack            string    `json:"stack,omitempty"`
}

// NewStageError builds a StageError for the given code, capturing a
// truncated stack trace and the current time.
func NewStageError(code, message, userMessage string, actions ...string) *StageError {
	stack := string(debug.Stack())
	if len(stack) > maxStackBytes {
		stack = stack[:maxStackBytes]
	}
	return &StageError{
		Code:             code,
		Message:          message,
		UserMessage:      userMessage,
		SuggestedActions: actions,
		Timestamp:        time.Now().UTC(),
		Stack:            stack,
	}
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return e.Code + ": " + e.Message
}

// JSON renders the error for storage in a metadata map. Marshaling a
// StageError cannot fail; the fallback covers future field additions.
func (e *StageError) JSON() string {
	bs, err := json.Marshal(e)
	if err != nil {
		return `{"code":"` + e.Code + `"}`
	}
	return string(bs)
}

// StageErrorFromJSON decodes a stored StageError. Returns nil if the payload
// does not parse.
func StageErrorFromJSON(s string) *StageError {
	var e StageError
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil
	}
	return &e
}
