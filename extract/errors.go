package extract

import (
	"fmt"

	"github.com/dbawebdesign/lailms-ingest/core"
)

// Error is a classified extraction failure carrying both the technical
// message and the user-facing explanation with concrete next steps. The
// pipeline converts it into the structured error recorded on the document.
type Error struct {
	Code        string
	Message     string
	UserMessage string
	Actions     []string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageError converts the extraction error into the structured form stored
// on the document record.
func (e *Error) StageError() *core.StageError {
	return core.NewStageError(e.Code, e.Message, e.UserMessage, e.Actions...)
}

func missingSourceError(what string) *Error {
	return &Error{
		Code:        core.ErrCodeMissingSource,
		Message:     fmt.Sprintf("document has no %s", what),
		UserMessage: "The document is missing its source data.",
		Actions:     []string{"Re-upload the file or register the document again."},
	}
}

func unusableContentError(message string) *Error {
	return &Error{
		Code:        core.ErrCodeContentUnusable,
		Message:     message,
		UserMessage: "The document may be corrupted, password protected, or in an unsupported format.",
		Actions: []string{
			"Remove password protection if the document has any.",
			"If this is a scanned PDF, run OCR and upload the result.",
			"Try converting the document to plain text or PDF.",
		},
	}
}
